// Package tree implements the tree CRDT: nested nodes ordered among
// siblings by an RGA keyed on node ID, addressed by parent + left-sibling
// position rather than by index, so concurrent inserts at the same site
// converge deterministically.
package tree

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/kevinxiao27/docweave/pkg/clock"
)

// ErrStructure mirrors rga.ErrStructure: a referenced node ID is unknown.
var ErrStructure = errors.New("tree: referenced node id is unknown")

// NodeID identifies a tree node by the ticket that created it plus an
// offset, mirroring rga.ID so text-leaf splitting reuses the same identity
// scheme (spec §3.3: CRDTTreeNodeID (createdAt, offset)).
type NodeID struct {
	CreatedAt clock.TimeTicket
	Offset    int
}

func (id NodeID) String() string {
	return fmt.Sprintf("%s/%d", id.CreatedAt.String(), id.Offset)
}

// Pos is an insertion site: "inside Parent, immediately right of
// LeftSibling". HasLeft == false means "first child of Parent".
type Pos struct {
	Parent      NodeID
	LeftSibling NodeID
	HasLeft     bool
}

// Node is one element or text leaf in the tree.
type Node struct {
	id       NodeID
	nodeType string
	text     []uint16 // non-nil only for text leaves

	parent   *Node
	children []*Node // live and tombstoned children, in RGA order

	removedAt clock.TimeTicket
	hasRemove bool

	insertedAt clock.TimeTicket
}

// NewElementNode creates an element (container) node.
func NewElementNode(id NodeID, nodeType string, insertedAt clock.TimeTicket) *Node {
	return &Node{id: id, nodeType: nodeType, insertedAt: insertedAt}
}

// NewTextNode creates a text leaf node.
func NewTextNode(id NodeID, content string, insertedAt clock.TimeTicket) *Node {
	return &Node{id: id, nodeType: "text", text: utf16.Encode([]rune(content)), insertedAt: insertedAt}
}

func (n *Node) ID() NodeID        { return n.id }
func (n *Node) Type() string      { return n.nodeType }
func (n *Node) IsText() bool      { return n.text != nil || n.nodeType == "text" }
func (n *Node) IsRemoved() bool   { return n.hasRemove }
func (n *Node) RemovedAt() clock.TimeTicket { return n.removedAt }

// Remove tombstones the node at executedAt, honoring the monotonic-removal
// invariant. Exported for callers reconstructing a tree outside of Edit's
// usual resolve-and-splice path, e.g. DeepCopy.
func (n *Node) Remove(executedAt clock.TimeTicket) bool { return n.remove(executedAt) }
func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) Children() []*Node { return n.children }

// Len returns the text length in UTF-16 code units for a text leaf, or the
// number of live children for an element node.
func (n *Node) Len() int {
	if n.IsText() {
		return len(n.text)
	}
	count := 0
	for _, c := range n.children {
		if !c.IsRemoved() {
			count++
		}
	}
	return count
}

// TextContent decodes a text leaf's UTF-16 content back to a string.
func (n *Node) TextContent() string {
	return string(utf16.Decode(n.text))
}

func (n *Node) remove(executedAt clock.TimeTicket) bool {
	if n.hasRemove && !n.removedAt.Before(executedAt) {
		return false
	}
	n.hasRemove = true
	n.removedAt = executedAt
	return true
}

func (n *Node) splitText(offset int) *Node {
	right := &Node{
		id:         NodeID{CreatedAt: n.id.CreatedAt, Offset: n.id.Offset + offset},
		nodeType:   "text",
		text:       append([]uint16{}, n.text[offset:]...),
		insertedAt: n.insertedAt,
		hasRemove:  n.hasRemove,
		removedAt:  n.removedAt,
		parent:     n.parent,
	}
	n.text = append([]uint16{}, n.text[:offset]...)

	if n.parent != nil {
		idx := indexOfChild(n.parent.children, n)
		n.parent.children = append(n.parent.children[:idx+1], append([]*Node{right}, n.parent.children[idx+1:]...)...)
	}
	return right
}

func indexOfChild(children []*Node, target *Node) int {
	for i, c := range children {
		if c == target {
			return i
		}
	}
	return -1
}

// Tree is the tree CRDT rooted at a synthetic invisible root node.
type Tree struct {
	root *Node
	byID map[NodeID]*Node
}

// New creates a tree with a synthetic root element of the given type
// (conventionally "root").
func New(rootID NodeID, rootType string) *Tree {
	root := NewElementNode(rootID, rootType, clock.Initial)
	return &Tree{root: root, byID: map[NodeID]*Node{rootID: root}}
}

// Root returns the synthetic root node.
func (t *Tree) Root() *Node { return t.root }

func (t *Tree) nodeAt(id NodeID) (*Node, error) {
	n, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrStructure, id)
	}
	return n, nil
}

// insertChild inserts child into parent's children RGA, immediately after
// `after` (nil meaning "first child"), applying the same larger-ticket-
// sorts-left tie-break rule as the RGA tree-split (spec §4.1's rule reused
// verbatim by §4.3).
func (t *Tree) insertChild(parent *Node, after *Node, child *Node) {
	child.parent = parent
	t.byID[child.id] = child

	startIdx := 0
	if after != nil {
		startIdx = indexOfChild(parent.children, after) + 1
	}
	insertIdx := startIdx
	for insertIdx < len(parent.children) {
		sibling := parent.children[insertIdx]
		if sibling.insertedAt.After(child.insertedAt) {
			insertIdx++
			continue
		}
		break
	}
	parent.children = append(parent.children, nil)
	copy(parent.children[insertIdx+1:], parent.children[insertIdx:])
	parent.children[insertIdx] = child
}

// resolvePos implements the "closest live position" rule from spec §4.3: if
// the resolved parent or left-sibling has been tombstoned, walk left/up to
// the nearest live sibling/ancestor.
func (t *Tree) resolvePos(pos Pos) (parent *Node, left *Node, err error) {
	parent, err = t.nodeAt(pos.Parent)
	if err != nil {
		return nil, nil, err
	}
	if !pos.HasLeft {
		return t.closestLiveParent(parent), nil, nil
	}
	leftNode, err := t.nodeAt(pos.LeftSibling)
	if err != nil {
		return nil, nil, err
	}
	return t.closestLive(parent, leftNode)
}

// closestLiveParent walks up from a (possibly tombstoned) parent to the
// nearest live ancestor.
func (t *Tree) closestLiveParent(n *Node) *Node {
	for n.IsRemoved() && n.parent != nil {
		n = n.parent
	}
	return n
}

// closestLive resolves (parent, left) to the nearest live pair: if left is
// tombstoned, the closest live sibling before it under parent takes its
// place (nil if there is none); if parent itself is tombstoned, resolution
// climbs one level and uses the closest live sibling before parent there.
// For the case in spec scenario 5, tombstoning the sole child of a
// still-live parent resolves back to (parent, nil), and tombstoning the
// parent itself resolves up one more level.
func (t *Tree) closestLive(parent *Node, left *Node) (*Node, *Node, error) {
	if !parent.IsRemoved() {
		if left == nil || !left.IsRemoved() {
			return parent, left, nil
		}
		// left has been removed: fall back to the closest live sibling
		// before it, or to "first child of parent" when nothing live
		// remains before it at this level (matches scenario 5: removing the
		// only text child of <p> makes any pos naming it resolve to (p, nil)).
		return parent, previousLiveSibling(parent, left), nil
	}
	// parent itself has been tombstoned: climb to its own parent and use
	// parent's position among siblings as the new left-sibling reference.
	grandparent := parent.parent
	if grandparent == nil {
		return parent, left, nil
	}
	return t.closestLive(grandparent, previousLiveSibling(grandparent, parent))
}

func previousLiveSibling(parent *Node, of *Node) *Node {
	idx := indexOfChild(parent.children, of)
	for i := idx - 1; i >= 0; i-- {
		if !parent.children[i].IsRemoved() {
			return parent.children[i]
		}
	}
	return nil
}

// ToIndex walks the tree computing the visible offset of (parent, left):
// the index immediately after `left`'s subtree, or immediately after
// parent's own opening tag if left is nil.
func (t *Tree) ToIndex(parent *Node, left *Node) int {
	start := t.contentStart(parent)
	if left == nil {
		return start
	}
	return start + t.offsetOfChild(parent, left) + subtreeVisibleSize(left)
}

// contentStart returns the absolute index where parent's own content
// begins: 0 for the synthetic root (whose tags are invisible), or one past
// wherever parent's opening tag sits otherwise.
func (t *Tree) contentStart(parent *Node) int {
	if parent == t.root || parent.parent == nil {
		return 0
	}
	grandparent := parent.parent
	return t.contentStart(grandparent) + t.offsetOfChild(grandparent, parent) + 1
}

// offsetOfChild returns the sum of visible sizes of every sibling of child
// under parent that precedes it in document order.
func (t *Tree) offsetOfChild(parent *Node, child *Node) int {
	total := 0
	for _, c := range parent.children {
		if c == child {
			break
		}
		total += subtreeVisibleSize(c)
	}
	return total
}

func subtreeVisibleSize(n *Node) int {
	if n.IsRemoved() {
		return 0
	}
	if n.IsText() {
		return n.Len()
	}
	total := 2 // open + close tag
	for _, c := range n.children {
		total += subtreeVisibleSize(c)
	}
	return total
}

// FindNodesAndSplitText resolves pos to a (parent, left) pair by the
// closest-live-position rule. A Pos always names a gap between nodes, so no
// text leaf is split here; IndexToPos does the splitting for index-space
// callers.
func (t *Tree) FindNodesAndSplitText(pos Pos, executedAt clock.TimeTicket) (*Node, *Node, error) {
	_ = executedAt
	return t.resolvePos(pos)
}

// Edit implements the multi-boundary tree edit from spec §4.3: tombstones
// everything strictly between (fromParent,fromLeft) and (toParent,toLeft),
// re-parenting surviving children of tombstoned element nodes to the
// from-side parent, then inserts contents at the from-site.
func (t *Tree) Edit(from, to Pos, contents []*Node, executedAt clock.TimeTicket) error {
	fromParent, fromLeft, err := t.resolvePos(from)
	if err != nil {
		return err
	}
	toParent, toLeft, err := t.resolvePos(to)
	if err != nil {
		return err
	}

	anchor, err := t.removeBetween(fromParent, fromLeft, toParent, toLeft, executedAt)
	if err != nil {
		return err
	}

	for _, c := range contents {
		t.insertChild(fromParent, anchor, c)
		anchor = c
	}
	return nil
}

// removeBetween walks document order from (fromParent,fromLeft) exclusive
// to (toParent,toLeft) exclusive, tombstoning every node in between. When a
// tombstoned node is an element, its surviving children are spliced into
// fromParent — the from-side parent of the whole edit, not the removed
// element's own parent — at the current merge point (merge semantics, spec
// §4.3 step 2). Returns the final anchor node under fromParent that new
// content should be inserted after.
func (t *Tree) removeBetween(fromParent, fromLeft, toParent, toLeft *Node, executedAt clock.TimeTicket) (*Node, error) {
	seq := t.flatten()
	fromIdx := t.flatIndexAfter(seq, fromParent, fromLeft)
	toIdx := t.flatIndexAfter(seq, toParent, toLeft)
	anchor := fromLeft
	if fromIdx < 0 || toIdx < 0 || fromIdx > toIdx {
		return anchor, nil
	}

	for i := fromIdx; i < toIdx; i++ {
		n := seq[i]
		if n.IsRemoved() {
			continue
		}
		removedNow := n.remove(executedAt)
		if removedNow && !n.IsText() && len(n.children) > 0 {
			anchor = t.mergeChildrenInto(n, fromParent, anchor)
		}
	}
	return anchor, nil
}

// mergeChildrenInto re-parents a tombstoned element's current direct
// children into fromParent, splicing them in immediately after anchor, and
// returns the new anchor (the last moved child) so subsequent merges and
// the final content insertion stay in document order.
func (t *Tree) mergeChildrenInto(n *Node, fromParent *Node, anchor *Node) *Node {
	movedChildren := n.children
	n.children = nil
	if len(movedChildren) == 0 {
		return anchor
	}
	for _, c := range movedChildren {
		c.parent = fromParent
	}

	startIdx := 0
	if anchor != nil {
		startIdx = indexOfChild(fromParent.children, anchor) + 1
	}
	fromParent.children = append(fromParent.children[:startIdx], append(append([]*Node{}, movedChildren...), fromParent.children[startIdx:]...)...)
	return movedChildren[len(movedChildren)-1]
}

// flatten returns every node in document (pre-order) traversal order,
// excluding the synthetic root itself.
func (t *Tree) flatten() []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.children {
			out = append(out, c)
			if !c.IsText() {
				walk(c)
			}
		}
	}
	walk(t.root)
	return out
}

// flatIndexAfter returns the index in seq immediately after the node
// identified by (parent, left) — i.e. the boundary point that (parent,
// left) names — or -1 if left is non-nil but not found under parent.
func (t *Tree) flatIndexAfter(seq []*Node, parent *Node, left *Node) int {
	if left == nil {
		// boundary is right after parent's opening position: the first
		// child slot, i.e. right before parent's first (possibly absent)
		// child in the flattened sequence.
		for i, n := range seq {
			if n == parent {
				return i + 1
			}
		}
		if parent == t.root {
			return 0
		}
		return -1
	}
	for i, n := range seq {
		if n == left {
			// skip past left's entire subtree
			j := i + 1
			for j < len(seq) && isDescendantOf(seq[j], left) {
				j++
			}
			return j
		}
	}
	return -1
}

func isDescendantOf(n, ancestor *Node) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// NodeByID exposes node lookup for callers building Pos values.
func (t *Tree) NodeByID(id NodeID) (*Node, error) { return t.nodeAt(id) }

// PosOf returns the Pos naming "immediately after node", for use as an edit
// boundary.
func PosOf(parent *Node, left *Node) Pos {
	if left == nil {
		return Pos{Parent: parent.id, HasLeft: false}
	}
	return Pos{Parent: parent.id, LeftSibling: left.id, HasLeft: true}
}
