// Package crdt implements the element taxonomy (spec §3.3) and the root
// registry that operations execute against (spec §4.4): primitive, object,
// array, counter, text, and tree elements, all sharing the createdAt /
// movedAt / removedAt lifecycle from spec §3.5.
package crdt

import "github.com/kevinxiao27/docweave/pkg/clock"

// Element is the common interface every CRDT value type satisfies. Every
// element carries createdAt and may carry movedAt/removedAt (spec §3.3).
type Element interface {
	CreatedAt() clock.TimeTicket
	MovedAt() (clock.TimeTicket, bool)
	RemovedAt() (clock.TimeTicket, bool)
	IsRemoved() bool
	// Remove tombstones the element at executedAt, honoring the monotonic
	// removal invariant (spec §3.4: removedAt never cleared). Returns false
	// if executedAt didn't win the LWW gate against an existing removal.
	Remove(executedAt clock.TimeTicket) bool
	// Move records executedAt as the element's movedAt if it's the newest
	// seen, implementing the LWW-on-position rule spec §3.5 describes for
	// array elements. No-op (returns false) for element kinds without a
	// meaningful position, i.e. everything but array members.
	Move(executedAt clock.TimeTicket) bool
	// DeepCopy returns an independent element subtree; createdAt is
	// preserved, identity (address) is not (spec §9 Design Notes).
	DeepCopy() Element
	// MarshalCanonicalJSON appends this element's canonical JSON rendering
	// (live content only) to buf, returning the extended slice.
	MarshalCanonicalJSON(buf []byte) []byte
}

// base holds the lifecycle fields shared by every element kind.
type base struct {
	createdAt clock.TimeTicket

	movedAt    clock.TimeTicket
	hasMovedAt bool

	removedAt    clock.TimeTicket
	hasRemovedAt bool
}

func newBase(createdAt clock.TimeTicket) base {
	return base{createdAt: createdAt}
}

func (b *base) CreatedAt() clock.TimeTicket { return b.createdAt }

func (b *base) MovedAt() (clock.TimeTicket, bool) { return b.movedAt, b.hasMovedAt }

func (b *base) RemovedAt() (clock.TimeTicket, bool) { return b.removedAt, b.hasRemovedAt }

func (b *base) IsRemoved() bool { return b.hasRemovedAt }

func (b *base) Remove(executedAt clock.TimeTicket) bool {
	if b.hasRemovedAt && !b.removedAt.Before(executedAt) {
		return false
	}
	b.hasRemovedAt = true
	b.removedAt = executedAt
	return true
}

func (b *base) Move(executedAt clock.TimeTicket) bool {
	if b.hasMovedAt && !b.movedAt.Before(executedAt) {
		return false
	}
	b.hasMovedAt = true
	b.movedAt = executedAt
	return true
}

func (b base) deepCopyBase() base {
	return b
}
