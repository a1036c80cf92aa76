// Package operations implements the operation sum type that executes
// against a crdt.CRDTRoot (spec §4.4): Set, Add, Move, Remove, Edit,
// Style, Increase, and TreeEdit.
package operations

import (
	"fmt"

	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
)

// OpInfo is the per-operation event payload execute() emits, enough for a
// caller to build Snapshot/LocalChange/RemoteChange events (spec §6.4)
// without re-deriving what changed.
type OpInfo struct {
	Kind            string
	ParentCreatedAt clock.TimeTicket
	Key             string
	Path            string
}

// Operation is the common interface every variant satisfies.
type Operation interface {
	// Execute applies the operation to root, returning the OpInfo events it
	// produced (usually exactly one).
	Execute(root *crdt.CRDTRoot) ([]OpInfo, error)
	ExecutedAt() clock.TimeTicket
}

func targetObject(root *crdt.CRDTRoot, parentCreatedAt clock.TimeTicket) (*crdt.Object, error) {
	elem, err := root.FindByCreatedAt(parentCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w", crdt.ErrTargetNotFound)
	}
	obj, ok := elem.(*crdt.Object)
	if !ok {
		return nil, fmt.Errorf("%w: expected object", crdt.ErrTypeMismatch)
	}
	return obj, nil
}

func targetArray(root *crdt.CRDTRoot, parentCreatedAt clock.TimeTicket) (*crdt.Array, error) {
	elem, err := root.FindByCreatedAt(parentCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w", crdt.ErrTargetNotFound)
	}
	arr, ok := elem.(*crdt.Array)
	if !ok {
		return nil, fmt.Errorf("%w: expected array", crdt.ErrTypeMismatch)
	}
	return arr, nil
}

func targetText(root *crdt.CRDTRoot, parentCreatedAt clock.TimeTicket) (*crdt.Text, error) {
	elem, err := root.FindByCreatedAt(parentCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w", crdt.ErrTargetNotFound)
	}
	txt, ok := elem.(*crdt.Text)
	if !ok {
		return nil, fmt.Errorf("%w: expected text", crdt.ErrTypeMismatch)
	}
	return txt, nil
}

func targetCounter(root *crdt.CRDTRoot, parentCreatedAt clock.TimeTicket) (*crdt.Counter, error) {
	elem, err := root.FindByCreatedAt(parentCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w", crdt.ErrTargetNotFound)
	}
	c, ok := elem.(*crdt.Counter)
	if !ok {
		return nil, fmt.Errorf("%w: expected counter", crdt.ErrTypeMismatch)
	}
	return c, nil
}

func targetTree(root *crdt.CRDTRoot, parentCreatedAt clock.TimeTicket) (*crdt.Tree, error) {
	elem, err := root.FindByCreatedAt(parentCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w", crdt.ErrTargetNotFound)
	}
	tr, ok := elem.(*crdt.Tree)
	if !ok {
		return nil, fmt.Errorf("%w: expected tree", crdt.ErrTypeMismatch)
	}
	return tr, nil
}
