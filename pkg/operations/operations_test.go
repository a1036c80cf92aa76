package operations_test

import (
	"errors"
	"testing"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/crdt/rga"
	"github.com/kevinxiao27/docweave/pkg/crdt/tree"
	"github.com/kevinxiao27/docweave/pkg/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExec(t *testing.T, root *crdt.CRDTRoot, op operations.Operation) {
	t.Helper()
	_, err := op.Execute(root)
	require.NoError(t, err)
}

func TestSetThenGetThroughRoot(t *testing.T) {
	a := actor.New()
	root := crdt.NewRoot(clock.Initial)

	t1 := clock.NewTicket(1, 0, a)
	op := &operations.SetOperation{
		ParentCreatedAt: root.Object().CreatedAt(),
		Key:             "name",
		Value:           crdt.NewPrimitive(crdt.KindString, "ana", t1),
		At:              t1,
	}
	_, err := op.Execute(root)
	require.NoError(t, err)

	v, err := root.Object().Get("name")
	require.NoError(t, err)
	assert.Equal(t, "ana", v.(*crdt.Primitive).Value())
}

func TestSetTargetNotFoundError(t *testing.T) {
	a := actor.New()
	root := crdt.NewRoot(clock.Initial)
	t1 := clock.NewTicket(1, 0, a)
	op := &operations.SetOperation{
		ParentCreatedAt: clock.NewTicket(99, 0, a),
		Key:             "x",
		Value:           crdt.NewPrimitive(crdt.KindBool, true, t1),
		At:              t1,
	}
	_, err := op.Execute(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, crdt.ErrTargetNotFound))
}

func TestSetTypeMismatchAgainstArray(t *testing.T) {
	a := actor.New()
	root := crdt.NewRoot(clock.Initial)
	t1 := clock.NewTicket(1, 0, a)
	arr := crdt.NewArray(t1)
	setOp := &operations.SetOperation{ParentCreatedAt: root.Object().CreatedAt(), Key: "list", Value: arr, At: t1}
	_, err := setOp.Execute(root)
	require.NoError(t, err)

	t2 := clock.NewTicket(2, 0, a)
	badOp := &operations.AddOperation{
		ParentCreatedAt: root.Object().CreatedAt(), // this is an object, not array
		PrevCreatedAt:   clock.Initial,
		Value:           crdt.NewPrimitive(crdt.KindBool, true, t2),
		At:              t2,
	}
	_, err = badOp.Execute(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, crdt.ErrTypeMismatch))
}

func TestAddMoveRemoveOnArray(t *testing.T) {
	a := actor.New()
	root := crdt.NewRoot(clock.Initial)
	t1 := clock.NewTicket(1, 0, a)
	arr := crdt.NewArray(t1)
	mustExec(t, root, &operations.SetOperation{ParentCreatedAt: root.Object().CreatedAt(), Key: "list", Value: arr, At: t1})

	t2 := clock.NewTicket(2, 0, a)
	elemA := crdt.NewPrimitive(crdt.KindString, "a", t2)
	mustExec(t, root, &operations.AddOperation{ParentCreatedAt: t1, PrevCreatedAt: clock.Initial, Value: elemA, At: t2})

	t3 := clock.NewTicket(3, 0, a)
	elemB := crdt.NewPrimitive(crdt.KindString, "b", t3)
	mustExec(t, root, &operations.AddOperation{ParentCreatedAt: t1, PrevCreatedAt: t2, Value: elemB, At: t3})

	assert.Equal(t, []string{"a", "b"}, stringsOf(arr.Elements()))

	t4 := clock.NewTicket(4, 0, a)
	mustExec(t, root, &operations.MoveOperation{ParentCreatedAt: t1, PrevCreatedAt: clock.Initial, TargetCreatedAt: t3, At: t4})
	assert.Equal(t, []string{"b", "a"}, stringsOf(arr.Elements()))

	t5 := clock.NewTicket(5, 0, a)
	mustExec(t, root, &operations.RemoveOperation{ParentCreatedAt: t1, TargetCreatedAt: t2, At: t5})
	assert.Equal(t, []string{"b"}, stringsOf(arr.Elements()))
}

func stringsOf(elems []crdt.Element) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.(*crdt.Primitive).Value().(string)
	}
	return out
}

func TestEditOperationOnText(t *testing.T) {
	a := actor.New()
	root := crdt.NewRoot(clock.Initial)
	t1 := clock.NewTicket(1, 0, a)
	text := crdt.NewText(t1)
	mustExec(t, root, &operations.SetOperation{ParentCreatedAt: root.Object().CreatedAt(), Key: "body", Value: text, At: t1})

	head := rga.NodePos{ID: text.Split().HeadID()}
	t2 := clock.NewTicket(2, 0, a)
	editOp := &operations.EditOperation{ParentCreatedAt: t1, From: head, To: head, Content: "hello", At: t2}
	_, err := editOp.Execute(root)
	require.NoError(t, err)
	assert.Equal(t, "hello", text.String())
}

func TestIncreaseOperationOnCounter(t *testing.T) {
	a := actor.New()
	root := crdt.NewRoot(clock.Initial)
	t1 := clock.NewTicket(1, 0, a)
	counter := crdt.NewCounter(crdt.CounterInt64, t1)
	mustExec(t, root, &operations.SetOperation{ParentCreatedAt: root.Object().CreatedAt(), Key: "count", Value: counter, At: t1})

	t2 := clock.NewTicket(2, 0, a)
	_, err := (&operations.IncreaseOperation{ParentCreatedAt: t1, Delta: 3, At: t2}).Execute(root)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counter.Value())
}

func TestTreeEditOperationMergesSiblingChildren(t *testing.T) {
	a := actor.New()
	root := crdt.NewRoot(clock.Initial)
	t1 := clock.NewTicket(1, 0, a)
	treeElem := crdt.NewTree(t1, "root")
	mustExec(t, root, &operations.SetOperation{ParentCreatedAt: root.Object().CreatedAt(), Key: "doc", Value: treeElem, At: t1})

	inner := treeElem.Inner()
	rootNode := inner.Root()
	t2 := clock.NewTicket(2, 0, a)
	p1 := tree.NewElementNode(tree.NodeID{CreatedAt: t2}, "p", t2)
	require.NoError(t, inner.EditByIndex(0, 0, []*tree.Node{p1}, t2))

	t3 := clock.NewTicket(3, 0, a)
	require.NoError(t, inner.EditByIndex(1, 1, []*tree.Node{tree.NewTextNode(tree.NodeID{CreatedAt: t3}, "ab", t3)}, t3))

	t4 := clock.NewTicket(4, 0, a)
	p2 := tree.NewElementNode(tree.NodeID{CreatedAt: t4}, "p", t4)
	require.NoError(t, inner.EditByIndex(4, 4, []*tree.Node{p2}, t4))

	t5 := clock.NewTicket(5, 0, a)
	require.NoError(t, inner.EditByIndex(5, 5, []*tree.Node{tree.NewTextNode(tree.NodeID{CreatedAt: t5}, "cd", t5)}, t5))

	t6 := clock.NewTicket(6, 0, a)
	fromPos, err := inner.IndexToPos(2, t6)
	require.NoError(t, err)
	toPos, err := inner.IndexToPos(6, t6)
	require.NoError(t, err)

	op := &operations.TreeEditOperation{ParentCreatedAt: t1, From: fromPos, To: toPos, At: t6}
	_, err = op.Execute(root)
	require.NoError(t, err)

	assert.Equal(t, "ad", renderVisible(rootNode))
}

func renderVisible(n *tree.Node) string {
	if n.IsRemoved() {
		return ""
	}
	if n.IsText() {
		return n.TextContent()
	}
	out := ""
	for _, c := range n.Children() {
		out += renderVisible(c)
	}
	return out
}

func TestTreeMoveOperationIsRejected(t *testing.T) {
	a := actor.New()
	root := crdt.NewRoot(clock.Initial)
	op := &operations.TreeMoveOperation{ParentCreatedAt: clock.Initial, At: clock.NewTicket(1, 0, a)}
	_, err := op.Execute(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, operations.ErrTreeMoveNotSupported))
}
