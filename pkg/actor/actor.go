// Package actor identifies replicas participating in a document session.
package actor

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/oklog/ulid/v2"
)

// ID is a stable, lexicographically ordered identifier for a replica.
//
// Comparable and totally ordered: ID{} (the zero value) is reserved as the
// InitialActorID, and the all-0xff MaxActorID sorts after every generated
// ID, making it usable as the sentinel for TimeTicket.MAX.
type ID [16]byte

// InitialActorID is the actor used for the clock's zero value.
var InitialActorID = ID{}

// MaxActorID sorts after every real actor ID.
var MaxActorID = ID{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// ErrInvalidLength is returned when decoding a byte slice of the wrong size.
var ErrInvalidLength = errors.New("actor: id must be 16 bytes")

// New mints a fresh, time-sortable actor ID.
func New() ID {
	return ID(ulid.Make())
}

// FromBytes decodes a 16-byte slice into an ID.
func FromBytes(b []byte) (ID, error) {
	if len(b) != 16 {
		return ID{}, ErrInvalidLength
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// Bytes returns the raw 16-byte representation.
func (id ID) Bytes() []byte {
	return id[:]
}

// String renders the ID as hex, matching the ULID's underlying byte order so
// two IDs compare equal as strings iff they compare equal as IDs.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Compare returns -1, 0, or 1 per the standard ordering contract, comparing
// lexicographically over the raw bytes.
func Compare(a, b ID) int {
	return bytes.Compare(a[:], b[:])
}

// IsInitial reports whether id is the reserved zero actor.
func (id ID) IsInitial() bool {
	return id == InitialActorID
}
