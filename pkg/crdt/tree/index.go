package tree

import "github.com/kevinxiao27/docweave/pkg/clock"

// IndexToPos converts a visible document index into a Pos, splitting a text
// leaf via FindNodesAndSplitText's rule if the index falls strictly inside
// one. Index space follows the usual tag-weight convention: each element
// node contributes 2 (open + close), each text unit contributes 1.
func (t *Tree) IndexToPos(index int, executedAt clock.TimeTicket) (Pos, error) {
	pos, err := t.traverse(t.root, index, executedAt)
	if err != nil {
		return Pos{}, err
	}
	return pos, nil
}

func (t *Tree) traverse(parent *Node, remaining int, executedAt clock.TimeTicket) (Pos, error) {
	var prev *Node
	for _, child := range parent.children {
		if child.IsRemoved() {
			continue
		}
		if remaining == 0 {
			return PosOf(parent, prev), nil
		}
		if child.IsText() {
			length := child.Len()
			if remaining < length {
				right := child.splitText(remaining)
				t.byID[right.id] = right
				return PosOf(parent, child), nil
			}
			remaining -= length
			prev = child
			continue
		}
		size := subtreeVisibleSize(child)
		if remaining < size {
			return t.traverse(child, remaining-1, executedAt)
		}
		remaining -= size
		prev = child
	}
	return PosOf(parent, prev), nil
}

// EditByIndex is the index-space convenience wrapper spec scenarios use
// directly: resolves [fromIndex, toIndex) to Pos boundaries (splitting text
// as needed) and delegates to Edit.
func (t *Tree) EditByIndex(fromIndex, toIndex int, contents []*Node, executedAt clock.TimeTicket) error {
	toPos, err := t.IndexToPos(toIndex, executedAt)
	if err != nil {
		return err
	}
	fromPos, err := t.IndexToPos(fromIndex, executedAt)
	if err != nil {
		return err
	}
	return t.Edit(fromPos, toPos, contents, executedAt)
}
