package crdt

import (
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt/rga"
)

// Text is the rich-text element: an RGATreeSplit of styled runs, spec §3.3.
type Text struct {
	base
	split *rga.Split
}

// NewText returns an empty text element, seeded with headID as the
// sequence's sentinel origin (conventionally createdAt itself, offset 0).
func NewText(createdAt clock.TimeTicket) *Text {
	headID := rga.ID{CreatedAt: createdAt}
	return &Text{base: newBase(createdAt), split: rga.NewSplit(headID)}
}

// Split exposes the underlying RGATreeSplit for operations to drive
// directly (Edit, Style, index<->pos translation).
func (t *Text) Split() *rga.Split { return t.split }

// Len returns the visible UTF-16 code-unit length.
func (t *Text) Len() int { return t.split.Len() }

// String renders the current visible plain-text content.
func (t *Text) String() string {
	out := ""
	for _, n := range t.split.Nodes() {
		out += n.Value().(*rga.TextValue).String()
	}
	return out
}

func (t *Text) DeepCopy() Element {
	cp := NewText(t.createdAt)
	cp.base = t.base.deepCopyBase()
	prev, _ := cp.split.NodeByID(cp.split.HeadID())
	for _, n := range t.split.AllNodes() {
		val := n.Value().(*rga.TextValue).DeepCopy().(*rga.TextValue)
		next := cp.split.InsertAfter(prev, n.ID(), val)
		if n.IsRemoved() {
			next.Remove(n.RemovedAt())
		}
		prev = next
	}
	return cp
}

// purgeBefore drops tombstoned runs whose RemovedAt precedes ticket,
// satisfying the hasInternalTombstones contract used by CRDTRoot's GC
// sweep (spec §4.4).
func (t *Text) purgeBefore(ticket clock.TimeTicket) int {
	return t.split.PurgeRemovedNodesBefore(ticket)
}

func (t *Text) MarshalCanonicalJSON(buf []byte) []byte {
	buf = append(buf, '"')
	buf = append(buf, t.String()...)
	buf = append(buf, '"')
	return buf
}
