package clock

import "github.com/kevinxiao27/docweave/pkg/actor"

// ChangeID identifies a single local change: a per-actor client sequence
// number plus the Lamport value in effect when the change was created. Every
// TimeTicket issued while building that change shares this Lamport value and
// is disambiguated only by an incrementing delimiter.
type ChangeID struct {
	clientSeq uint32
	lamport   Lamport
	actorID   actor.ID
	delimiter Delimiter
}

// InitialChangeID is the clock state of a brand-new, unattached document.
func InitialChangeID(id actor.ID) ChangeID {
	return ChangeID{clientSeq: 0, lamport: 0, actorID: id, delimiter: 0}
}

// ClientSeq returns the per-actor sequence number of this change.
func (c ChangeID) ClientSeq() uint32 { return c.clientSeq }

// Lamport returns the Lamport value this change was created at.
func (c ChangeID) Lamport() Lamport { return c.lamport }

// ActorID returns the owning actor.
func (c ChangeID) ActorID() actor.ID { return c.actorID }

// SetActor returns a copy of c attributed to a different actor; used after
// decoding a remote change off the wire.
func (c ChangeID) SetActor(id actor.ID) ChangeID {
	c.actorID = id
	return c
}

// Next increments the client sequence and Lamport clock, returning the
// ChangeID for the next local change. The delimiter resets to zero: each
// change starts its own per-change ticket sequence.
func (c ChangeID) Next() ChangeID {
	return ChangeID{
		clientSeq: c.clientSeq + 1,
		lamport:   c.lamport + 1,
		actorID:   c.actorID,
		delimiter: 0,
	}
}

// SyncLamport merges a peer's Lamport value into the local clock. Called
// when a remote change is applied: if remoteLamport is greater than or equal
// to the local value, the clock moves to remoteLamport+1; otherwise it is
// left unchanged. clientSeq is never touched (that's a purely local counter).
func (c ChangeID) SyncLamport(remoteLamport Lamport) ChangeID {
	next := c.lamport
	if remoteLamport > next {
		next = remoteLamport
	}
	// A received change represents an event itself: when the remote value
	// catches up with or passes the local one, advance one past it.
	if remoteLamport >= c.lamport {
		next = remoteLamport + 1
	}
	c.lamport = next
	return c
}

// IssueTimeTicket returns the next TimeTicket for this change and the
// ChangeID advanced past it. Successive calls within the same change
// increment only the delimiter, holding the Lamport value fixed — ticket
// order within a change is carried entirely by the delimiter (spec §3.2,
// §3.4: "logical time strictly increases within a single change's operation
// sequence").
func (c ChangeID) IssueTimeTicket() (TimeTicket, ChangeID) {
	c.delimiter++
	ticket := NewTicket(c.lamport, c.delimiter, c.actorID)
	return ticket, c
}
