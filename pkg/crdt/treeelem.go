package crdt

import (
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt/tree"
)

// Tree is the nested-node tree element, spec §3.3.
type Tree struct {
	base
	inner *tree.Tree
}

// NewTree returns a tree element with a synthetic root of rootType.
func NewTree(createdAt clock.TimeTicket, rootType string) *Tree {
	rootID := tree.NodeID{CreatedAt: createdAt}
	return &Tree{base: newBase(createdAt), inner: tree.New(rootID, rootType)}
}

// Inner exposes the underlying tree CRDT for TreeEditOperation to drive.
func (t *Tree) Inner() *tree.Tree { return t.inner }

func (t *Tree) DeepCopy() Element {
	cp := NewTree(t.createdAt, t.inner.Root().Type())
	cp.base = t.base.deepCopyBase()
	copyChildren(cp.inner, cp.inner.Root(), t.inner.Root())
	return cp
}

func copyChildren(dst *tree.Tree, dstParent, srcParent *tree.Node) {
	var anchor *tree.Node
	for _, c := range srcParent.Children() {
		var copied *tree.Node
		if c.IsText() {
			copied = tree.NewTextNode(c.ID(), c.TextContent(), clock.Initial)
		} else {
			copied = tree.NewElementNode(c.ID(), c.Type(), clock.Initial)
		}
		if c.IsRemoved() {
			copied = withRemoved(copied, c)
		}
		_ = dst.Edit(tree.PosOf(dstParent, anchor), tree.PosOf(dstParent, anchor), []*tree.Node{copied}, c.ID().CreatedAt)
		anchor = copied
		if !c.IsText() {
			copyChildren(dst, copied, c)
		}
	}
}

// withRemoved re-stamps a freshly built copy with the source node's
// tombstone ticket, preserving the monotonic-removal invariant across
// DeepCopy (spec §3.4: removal is never undone by a copy round-trip).
func withRemoved(copy *tree.Node, src *tree.Node) *tree.Node {
	copy.Remove(src.RemovedAt())
	return copy
}

func (t *Tree) MarshalCanonicalJSON(buf []byte) []byte {
	buf = append(buf, '"')
	buf = appendTreeNode(buf, t.inner.Root())
	buf = append(buf, '"')
	return buf
}

func appendTreeNode(buf []byte, n *tree.Node) []byte {
	if n.IsRemoved() {
		return buf
	}
	if n.IsText() {
		return append(buf, n.TextContent()...)
	}
	buf = append(buf, '<')
	buf = append(buf, n.Type()...)
	buf = append(buf, '>')
	for _, c := range n.Children() {
		buf = appendTreeNode(buf, c)
	}
	buf = append(buf, '<', '/')
	buf = append(buf, n.Type()...)
	buf = append(buf, '>')
	return buf
}
