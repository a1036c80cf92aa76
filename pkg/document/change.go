// Package document implements Document: the API surface owning a CRDTRoot,
// a local clock, a local change buffer, and the push/pull protocol over
// ChangePack (spec §4.5, §6.1, §6.4).
package document

import (
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/operations"
	"github.com/kevinxiao27/docweave/pkg/presence"
)

// Checkpoint tracks how far a replica has synced: the highest server
// sequence it has received, and the highest client sequence the server has
// acknowledged (spec §6.1).
type Checkpoint struct {
	ServerSeq int64
	ClientSeq uint32
}

// Change is a causally consistent bundle of operations identified by a
// ChangeID, plus an optional presence update (spec §6.1).
type Change struct {
	ID         clock.ChangeID
	Message    string
	Operations []operations.Operation
	Presence   *presence.Data
}

// ChangePack aggregates changes, a checkpoint, and an optional snapshot for
// transport (spec §4.5, §6.1). MinSyncedTicket, when present, is the
// server's authoritative GC bound; when absent the document falls back to
// its own version-vector estimate.
type ChangePack struct {
	DocumentKey     string
	Checkpoint      Checkpoint
	Changes         []Change
	Snapshot        []byte
	MinSyncedTicket *clock.TimeTicket
}

// HasChanges reports whether the pack carries anything to apply.
func (p *ChangePack) HasChanges() bool { return len(p.Changes) > 0 }
