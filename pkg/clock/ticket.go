// Package clock implements the hybrid logical clock that orders every
// mutation in a document: Lamport timestamps, per-change delimiters, and the
// TimeTicket/ChangeID pair derived from them.
package clock

import (
	"fmt"
	"math"

	"github.com/kevinxiao27/docweave/pkg/actor"
)

// Lamport is a monotonic counter advanced on each local event and on receipt
// of a remote event carrying a higher value.
type Lamport = int64

// Delimiter disambiguates TimeTickets issued within the same change at the
// same Lamport value.
type Delimiter = uint32

// TimeTicket is an immutable, totally ordered logical timestamp.
type TimeTicket struct {
	lamport   Lamport
	delimiter Delimiter
	actorID   actor.ID
}

// Initial is the smallest possible ticket, used as the zero value for
// "nothing has happened yet" comparisons.
var Initial = TimeTicket{lamport: 0, delimiter: 0, actorID: actor.InitialActorID}

// Max sorts after every real ticket; used as an upper bound, e.g. when a
// garbage-collection sweep should purge everything regardless of sync state.
var Max = TimeTicket{lamport: math.MaxInt64, delimiter: math.MaxUint32, actorID: actor.MaxActorID}

// NewTicket constructs a ticket from its three components.
func NewTicket(lamport Lamport, delimiter Delimiter, actorID actor.ID) TimeTicket {
	return TimeTicket{lamport: lamport, delimiter: delimiter, actorID: actorID}
}

// Lamport returns the ticket's Lamport component.
func (t TimeTicket) Lamport() Lamport { return t.lamport }

// Delimiter returns the ticket's delimiter component.
func (t TimeTicket) Delimiter() Delimiter { return t.delimiter }

// ActorID returns the ticket's actor component.
func (t TimeTicket) ActorID() actor.ID { return t.actorID }

// SetActor returns a copy of the ticket with a different actor; used when an
// operation pulled from a change pack needs to be stamped with the change's
// originating actor after decoding.
func (t TimeTicket) SetActor(id actor.ID) TimeTicket {
	t.actorID = id
	return t
}

// Compare implements the total order from spec §3.1: lamport, then actor
// (lexicographic, nil/initial sorts low), then delimiter.
func (t TimeTicket) Compare(other TimeTicket) int {
	if t.lamport != other.lamport {
		if t.lamport < other.lamport {
			return -1
		}
		return 1
	}
	if c := actor.Compare(t.actorID, other.actorID); c != 0 {
		return c
	}
	if t.delimiter != other.delimiter {
		if t.delimiter < other.delimiter {
			return -1
		}
		return 1
	}
	return 0
}

// After reports whether t is strictly greater than other.
func (t TimeTicket) After(other TimeTicket) bool { return t.Compare(other) > 0 }

// Before reports whether t is strictly less than other.
func (t TimeTicket) Before(other TimeTicket) bool { return t.Compare(other) < 0 }

// Equal reports value equality.
func (t TimeTicket) Equal(other TimeTicket) bool { return t.Compare(other) == 0 }

// Key returns the map key form of the ticket, for use as e.g. a
// createdAt-indexed registry key.
func (t TimeTicket) Key() string { return t.String() }

// String renders the canonical "<lamport>:<actor-or-nil>:<delimiter>" form.
func (t TimeTicket) String() string {
	actorStr := "nil"
	if !t.actorID.IsInitial() {
		actorStr = t.actorID.String()
	}
	return fmt.Sprintf("%d:%s:%d", t.lamport, actorStr, t.delimiter)
}
