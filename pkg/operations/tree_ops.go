package operations

import (
	"errors"

	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/crdt/tree"
)

// ErrTreeMoveNotSupported is returned by any attempt to move a tree node.
// Spec §9 Design Notes: the source leaves Tree.Move's concurrent-cycle
// resolution policy uncommitted, so this core reserves the operation kind
// but rejects every invocation outright rather than guessing a policy —
// "implementers should detect cycles and reject the move locally" is
// satisfied degenerately, since rejecting unconditionally never creates one.
var ErrTreeMoveNotSupported = errors.New("operations: tree move is not supported")

// TreeEditOperation edits the tree at ParentCreatedAt over [From, To),
// inserting Contents in order at the from-site (spec §4.3).
type TreeEditOperation struct {
	ParentCreatedAt clock.TimeTicket
	From, To        tree.Pos
	Contents        []*tree.Node
	At              clock.TimeTicket
}

func (op *TreeEditOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *TreeEditOperation) Execute(root *crdt.CRDTRoot) ([]OpInfo, error) {
	elem, err := targetTree(root, op.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	if err := elem.Inner().Edit(op.From, op.To, op.Contents, op.At); err != nil {
		return nil, err
	}
	root.MarkInternallyTombstoned(elem)
	return []OpInfo{{Kind: "tree-edit", ParentCreatedAt: op.ParentCreatedAt, Path: root.CreatePath(op.ParentCreatedAt)}}, nil
}

// TreeMoveOperation is the reserved-but-unsupported operation kind; Execute
// always fails with ErrTreeMoveNotSupported.
type TreeMoveOperation struct {
	ParentCreatedAt clock.TimeTicket
	At              clock.TimeTicket
}

func (op *TreeMoveOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *TreeMoveOperation) Execute(*crdt.CRDTRoot) ([]OpInfo, error) {
	return nil, ErrTreeMoveNotSupported
}
