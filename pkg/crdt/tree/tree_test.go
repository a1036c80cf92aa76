package tree_test

import (
	"testing"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// visibleText renders the live text content of a subtree, depth-first,
// skipping tombstoned nodes entirely.
func visibleText(n *tree.Node) string {
	if n.IsRemoved() {
		return ""
	}
	if n.IsText() {
		return n.TextContent()
	}
	out := ""
	for _, c := range n.Children() {
		out += visibleText(c)
	}
	return out
}

func visibleSize(n *tree.Node) int {
	if n.IsRemoved() {
		return 0
	}
	if n.IsText() {
		return len(n.TextContent())
	}
	total := 2
	for _, c := range n.Children() {
		total += visibleSize(c)
	}
	return total
}

// contentSize is the visible index size of the document under root: the
// synthetic root's own tags are invisible, so only its children count.
func contentSize(root *tree.Node) int {
	total := 0
	for _, c := range root.Children() {
		total += visibleSize(c)
	}
	return total
}

// Scenario 4: editing across <r><p>ab</p><p>cd</p></r> at index range [2,6)
// tombstones the text and the second <p>, merging its surviving children
// ("c","d" — themselves then tombstoned by the same range) up into the
// first <p>, converging on <r><p>ad</p></r> with visible size 4.
func TestScenarioTreeEditMergesSiblingChildren(t *testing.T) {
	a := actor.New()
	tk := func(l int64) clock.TimeTicket { return clock.NewTicket(l, 0, a) }

	tr := tree.New(tree.NodeID{CreatedAt: clock.Initial}, "root")
	root := tr.Root()

	p1 := tree.NewElementNode(tree.NodeID{CreatedAt: tk(1)}, "p", tk(1))
	textAB := tree.NewTextNode(tree.NodeID{CreatedAt: tk(2)}, "ab", tk(2))
	p2 := tree.NewElementNode(tree.NodeID{CreatedAt: tk(3)}, "p", tk(3))
	textCD := tree.NewTextNode(tree.NodeID{CreatedAt: tk(4)}, "cd", tk(4))

	require.NoError(t, tr.EditByIndex(0, 0, []*tree.Node{p1}, tk(1)))
	require.NoError(t, tr.EditByIndex(1, 1, []*tree.Node{textAB}, tk(2)))
	require.NoError(t, tr.EditByIndex(4, 4, []*tree.Node{p2}, tk(3)))
	require.NoError(t, tr.EditByIndex(5, 5, []*tree.Node{textCD}, tk(4)))

	require.Equal(t, "abcd", visibleText(root))
	require.Equal(t, 8, contentSize(root))

	editAt := tk(5)
	require.NoError(t, tr.EditByIndex(2, 6, nil, editAt))

	assert.Equal(t, "ad", visibleText(root))
	assert.Equal(t, 4, contentSize(root))

	p1Live, err := tr.NodeByID(p1.ID())
	require.NoError(t, err)
	assert.False(t, p1Live.IsRemoved())

	p2Live, err := tr.NodeByID(p2.ID())
	require.NoError(t, err)
	assert.True(t, p2Live.IsRemoved())
}

// Scenario 5: once a node is tombstoned, a Pos naming it as a left sibling
// must resolve to the nearest live position instead — walking up through
// successive levels of tombstoning.
func TestScenarioClosestLivePositionAcrossEdits(t *testing.T) {
	a := actor.New()
	tk := func(l int64) clock.TimeTicket { return clock.NewTicket(l, 0, a) }

	tr := tree.New(tree.NodeID{CreatedAt: clock.Initial}, "root")
	root := tr.Root()

	p := tree.NewElementNode(tree.NodeID{CreatedAt: tk(1)}, "p", tk(1))
	textAB := tree.NewTextNode(tree.NodeID{CreatedAt: tk(2)}, "ab", tk(2))

	require.NoError(t, tr.EditByIndex(0, 0, []*tree.Node{p}, tk(1)))
	require.NoError(t, tr.EditByIndex(1, 1, []*tree.Node{textAB}, tk(2)))
	require.Equal(t, "ab", visibleText(root))

	require.NoError(t, tr.EditByIndex(1, 3, nil, tk(3)))
	assert.Equal(t, "", visibleText(root))

	staleTextPos := tree.Pos{Parent: p.ID(), LeftSibling: textAB.ID(), HasLeft: true}
	resolvedParent, resolvedLeft, err := tr.FindNodesAndSplitText(staleTextPos, tk(4))
	require.NoError(t, err)
	assert.Equal(t, p.ID(), resolvedParent.ID())
	assert.Nil(t, resolvedLeft)
	assert.Equal(t, 1, tr.ToIndex(resolvedParent, resolvedLeft))

	require.NoError(t, tr.EditByIndex(0, 2, nil, tk(5)))

	resolvedParent, resolvedLeft, err = tr.FindNodesAndSplitText(staleTextPos, tk(6))
	require.NoError(t, err)
	assert.Equal(t, root.ID(), resolvedParent.ID())
	assert.Nil(t, resolvedLeft)
	assert.Equal(t, 0, tr.ToIndex(resolvedParent, resolvedLeft))
}

func TestNewTreeStartsEmpty(t *testing.T) {
	tr := tree.New(tree.NodeID{CreatedAt: clock.Initial}, "root")
	assert.Equal(t, "", visibleText(tr.Root()))
	assert.Equal(t, 0, tr.ToIndex(tr.Root(), nil))
}
