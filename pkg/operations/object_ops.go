package operations

import (
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
)

// SetOperation assigns value under key in the object at parentCreatedAt
// (spec §4.4).
type SetOperation struct {
	ParentCreatedAt clock.TimeTicket
	Key             string
	Value           crdt.Element
	At              clock.TimeTicket
}

func (op *SetOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *SetOperation) Execute(root *crdt.CRDTRoot) ([]OpInfo, error) {
	obj, err := targetObject(root, op.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	obj.Set(op.Key, op.Value, op.At)
	root.RegisterChild(op.Value, obj)
	return []OpInfo{{Kind: "set", ParentCreatedAt: op.ParentCreatedAt, Key: op.Key, Path: root.CreatePath(op.Value.CreatedAt())}}, nil
}

// RemoveOperation removes a single element. For an object target, Key
// names the entry to delete; for an array target, Key is ignored and
// TargetCreatedAt names the member.
type RemoveOperation struct {
	ParentCreatedAt clock.TimeTicket
	Key             string
	TargetCreatedAt clock.TimeTicket
	At              clock.TimeTicket
}

func (op *RemoveOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *RemoveOperation) Execute(root *crdt.CRDTRoot) ([]OpInfo, error) {
	elem, err := root.FindByCreatedAt(op.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	switch parent := elem.(type) {
	case *crdt.Object:
		path := root.CreatePath(op.ParentCreatedAt)
		target, getErr := parent.Get(op.Key)
		if getErr == nil {
			root.MarkRemoved(target)
		}
		parent.Delete(op.Key, op.At)
		return []OpInfo{{Kind: "remove", ParentCreatedAt: op.ParentCreatedAt, Key: op.Key, Path: path}}, nil
	case *crdt.Array:
		target, findErr := root.FindByCreatedAt(op.TargetCreatedAt)
		if findErr == nil {
			root.MarkRemoved(target)
		}
		if removeErr := parent.Remove(op.TargetCreatedAt, op.At); removeErr != nil {
			return nil, removeErr
		}
		return []OpInfo{{Kind: "remove", ParentCreatedAt: op.ParentCreatedAt, Path: root.CreatePath(op.ParentCreatedAt)}}, nil
	default:
		return nil, crdt.ErrTypeMismatch
	}
}

// AddOperation appends value to the array at parentCreatedAt, immediately
// after the member created at PrevCreatedAt (spec §4.4's RGA insert rule).
type AddOperation struct {
	ParentCreatedAt clock.TimeTicket
	PrevCreatedAt   clock.TimeTicket
	Value           crdt.Element
	At              clock.TimeTicket
}

func (op *AddOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *AddOperation) Execute(root *crdt.CRDTRoot) ([]OpInfo, error) {
	arr, err := targetArray(root, op.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	if err := arr.InsertAfter(op.PrevCreatedAt, op.Value); err != nil {
		return nil, err
	}
	root.RegisterChild(op.Value, arr)
	return []OpInfo{{Kind: "add", ParentCreatedAt: op.ParentCreatedAt, Path: root.CreatePath(op.Value.CreatedAt())}}, nil
}

// MoveOperation re-splices the array member TargetCreatedAt to just after
// PrevCreatedAt (spec §4.4).
type MoveOperation struct {
	ParentCreatedAt clock.TimeTicket
	PrevCreatedAt   clock.TimeTicket
	TargetCreatedAt clock.TimeTicket
	At              clock.TimeTicket
}

func (op *MoveOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *MoveOperation) Execute(root *crdt.CRDTRoot) ([]OpInfo, error) {
	arr, err := targetArray(root, op.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	if err := arr.MoveAfter(op.PrevCreatedAt, op.TargetCreatedAt, op.At); err != nil {
		return nil, err
	}
	return []OpInfo{{Kind: "move", ParentCreatedAt: op.ParentCreatedAt, Path: root.CreatePath(op.ParentCreatedAt)}}, nil
}
