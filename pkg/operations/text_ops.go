package operations

import (
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/crdt/rga"
)

// EditOperation edits the text at ParentCreatedAt over [From, To), inserting
// Content if non-empty (spec §4.1's edit, exposed as an operation).
type EditOperation struct {
	ParentCreatedAt        clock.TimeTicket
	From, To               rga.NodePos
	Content                string
	At                     clock.TimeTicket
	LatestCreatedAtByActor map[string]clock.TimeTicket
}

func (op *EditOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *EditOperation) Execute(root *crdt.CRDTRoot) ([]OpInfo, error) {
	txt, err := targetText(root, op.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	var value rga.Value
	if op.Content != "" {
		value = rga.NewTextValue(op.Content)
	}
	_, _, _, err = txt.Split().Edit(rga.NodeRange{From: op.From, To: op.To}, op.At, value, op.LatestCreatedAtByActor)
	if err != nil {
		return nil, err
	}
	root.MarkInternallyTombstoned(txt)
	return []OpInfo{{Kind: "edit", ParentCreatedAt: op.ParentCreatedAt, Path: root.CreatePath(op.ParentCreatedAt)}}, nil
}

// StyleOperation applies a style attribute to every run in [From, To) of
// the text at ParentCreatedAt.
type StyleOperation struct {
	ParentCreatedAt clock.TimeTicket
	From, To        rga.NodePos
	Key, Value      string
	At              clock.TimeTicket
}

func (op *StyleOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *StyleOperation) Execute(root *crdt.CRDTRoot) ([]OpInfo, error) {
	txt, err := targetText(root, op.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	split := txt.Split()
	from, to, err := split.FindIndexesFromRange(rga.NodeRange{From: op.From, To: op.To})
	if err != nil {
		return nil, err
	}

	// Applies the style to every live run overlapping [from, to) in visible
	// index space. Unlike Edit, style doesn't need exact-offset splitting —
	// a run partially inside the range still carries the attribute for its
	// whole extent, which is the behavior a later split (from an
	// overlapping concurrent edit) will simply inherit.
	offset := 0
	for _, n := range split.Nodes() {
		length := n.Len()
		start, end := offset, offset+length
		offset = end
		if start >= to || end <= from {
			continue
		}
		if tv, ok := n.Value().(*rga.TextValue); ok {
			tv.Style().Set(op.Key, op.Value, op.At)
		}
	}
	return []OpInfo{{Kind: "style", ParentCreatedAt: op.ParentCreatedAt, Path: root.CreatePath(op.ParentCreatedAt)}}, nil
}

// IncreaseOperation adds Delta to the counter at ParentCreatedAt.
type IncreaseOperation struct {
	ParentCreatedAt clock.TimeTicket
	Delta           int64
	At              clock.TimeTicket
}

func (op *IncreaseOperation) ExecutedAt() clock.TimeTicket { return op.At }

func (op *IncreaseOperation) Execute(root *crdt.CRDTRoot) ([]OpInfo, error) {
	c, err := targetCounter(root, op.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	c.Increase(op.Delta, op.At)
	return []OpInfo{{Kind: "increase", ParentCreatedAt: op.ParentCreatedAt, Path: root.CreatePath(op.ParentCreatedAt)}}, nil
}
