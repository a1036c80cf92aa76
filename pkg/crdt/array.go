package crdt

import (
	"errors"

	"github.com/kevinxiao27/docweave/pkg/clock"
)

// ErrArrayTarget is returned when an array operation names a prevCreatedAt
// or target createdAt that isn't present (spec §7 StructureError).
var ErrArrayTarget = errors.New("crdt: array node not found")

// arrayNode wraps one element in the array's RGA ordering. Order follows
// the same "insert to the right of prevCreatedAt" rule as RGATreeSplit
// (spec §4.1), applied here to whole elements instead of splittable runs —
// there is no split/merge for array members, only insert/remove/move.
type arrayNode struct {
	value Element
	prev, next *arrayNode
}

// Array is the RGA-ordered sequence element, spec §3.3.
type Array struct {
	base
	head     *arrayNode // sentinel, not itself a member
	byCreate map[string]*arrayNode
}

// NewArray returns an empty array.
func NewArray(createdAt clock.TimeTicket) *Array {
	head := &arrayNode{}
	return &Array{base: newBase(createdAt), head: head, byCreate: make(map[string]*arrayNode)}
}

func (a *Array) nodeAt(createdAt clock.TimeTicket) (*arrayNode, error) {
	n, ok := a.byCreate[createdAt.Key()]
	if !ok {
		return nil, ErrArrayTarget
	}
	return n, nil
}

// InsertAfter splices value immediately after the member created at
// prevCreatedAt (the zero ticket meaning "at the head"), applying the RGA
// tie-break: walk right past every following neighbor whose ticket is larger
// than value's, so the larger ticket sorts closer to the origin (spec §4.1's rule, reused verbatim by §4.4's Add/Move).
func (a *Array) InsertAfter(prevCreatedAt clock.TimeTicket, value Element) error {
	var after *arrayNode
	if prevCreatedAt.Equal(clock.Initial) {
		after = a.head
	} else {
		n, err := a.nodeAt(prevCreatedAt)
		if err != nil {
			return err
		}
		after = n
	}

	insertionPoint := after
	cursor := after.next
	for cursor != nil && cursor.value.CreatedAt().After(value.CreatedAt()) {
		insertionPoint = cursor
		cursor = cursor.next
	}

	n := &arrayNode{value: value}
	n.next = insertionPoint.next
	if insertionPoint.next != nil {
		insertionPoint.next.prev = n
	}
	insertionPoint.next = n
	n.prev = insertionPoint
	a.byCreate[value.CreatedAt().Key()] = n
	return nil
}

// MoveAfter re-splices the member created at targetCreatedAt to just after
// prevCreatedAt, honoring Element.Move's LWW gate: a move that loses the
// race against a later-observed move is silently dropped.
func (a *Array) MoveAfter(prevCreatedAt, targetCreatedAt clock.TimeTicket, executedAt clock.TimeTicket) error {
	target, err := a.nodeAt(targetCreatedAt)
	if err != nil {
		return err
	}
	if !target.value.Move(executedAt) {
		return nil
	}
	if target.prev != nil {
		target.prev.next = target.next
	}
	if target.next != nil {
		target.next.prev = target.prev
	}

	var after *arrayNode
	if prevCreatedAt.Equal(clock.Initial) {
		after = a.head
	} else {
		after, err = a.nodeAt(prevCreatedAt)
		if err != nil {
			return err
		}
	}
	target.next = after.next
	if after.next != nil {
		after.next.prev = target
	}
	after.next = target
	target.prev = after
	return nil
}

// Remove tombstones the member created at targetCreatedAt.
func (a *Array) Remove(targetCreatedAt clock.TimeTicket, executedAt clock.TimeTicket) error {
	n, err := a.nodeAt(targetCreatedAt)
	if err != nil {
		return err
	}
	n.value.Remove(executedAt)
	return nil
}

// Elements returns every live member in order.
func (a *Array) Elements() []Element {
	var out []Element
	for n := a.head.next; n != nil; n = n.next {
		if !n.value.IsRemoved() {
			out = append(out, n.value)
		}
	}
	return out
}

// AllElements returns every member including tombstones, for GC traversal.
func (a *Array) AllElements() []Element {
	var out []Element
	for n := a.head.next; n != nil; n = n.next {
		out = append(out, n.value)
	}
	return out
}

func (a *Array) DeepCopy() Element {
	cp := NewArray(a.createdAt)
	cp.base = a.base.deepCopyBase()
	prevKey := clock.Initial
	for n := a.head.next; n != nil; n = n.next {
		copied := n.value.DeepCopy()
		_ = cp.InsertAfter(prevKey, copied)
		prevKey = copied.CreatedAt()
	}
	return cp
}

// purgeBefore unlinks tombstoned members whose RemovedAt precedes ticket,
// satisfying the hasInternalTombstones contract (spec §4.4).
func (a *Array) purgeBefore(ticket clock.TimeTicket) int {
	count := 0
	for n := a.head.next; n != nil; {
		next := n.next
		if n.value.IsRemoved() {
			removedAt, ok := n.value.RemovedAt()
			if ok && removedAt.Before(ticket) {
				if n.prev != nil {
					n.prev.next = n.next
				}
				if n.next != nil {
					n.next.prev = n.prev
				}
				delete(a.byCreate, n.value.CreatedAt().Key())
				count++
			}
		}
		n = next
	}
	return count
}

// hasRemainingTombstones reports whether any member is still tombstoned,
// used by CRDTRoot to decide whether to keep tracking this array for GC.
func (a *Array) hasRemainingTombstones() bool {
	for n := a.head.next; n != nil; n = n.next {
		if n.value.IsRemoved() {
			return true
		}
	}
	return false
}

func (a *Array) MarshalCanonicalJSON(buf []byte) []byte {
	buf = append(buf, '[')
	for i, e := range a.Elements() {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = e.MarshalCanonicalJSON(buf)
	}
	buf = append(buf, ']')
	return buf
}
