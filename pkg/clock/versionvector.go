package clock

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kevinxiao27/docweave/pkg/actor"
)

// VersionVector tracks, for every peer a document has heard from, the
// highest TimeTicket observed from that peer. Document.ApplyChangePack
// derives the GC-safe minSyncedTicket (spec §3.5, §4.4) from it: no live
// peer needs a tombstone older than the slowest peer's frontier.
//
// Grounded on the teacher's expandLVToSet/mapset.Set[LV] frontier
// arithmetic (eg/checkout.go), generalized from a single replica's LV
// frontier to a per-actor TimeTicket frontier.
type VersionVector struct {
	frontier map[actor.ID]TimeTicket
}

// NewVersionVector returns an empty frontier.
func NewVersionVector() *VersionVector {
	return &VersionVector{frontier: make(map[actor.ID]TimeTicket)}
}

// Record advances the tracked frontier for id to ticket, if ticket is newer
// than what is already recorded for that actor.
func (vv *VersionVector) Record(id actor.ID, ticket TimeTicket) {
	if cur, ok := vv.frontier[id]; !ok || ticket.After(cur) {
		vv.frontier[id] = ticket
	}
}

// Get returns the frontier ticket recorded for id, or Initial if none.
func (vv *VersionVector) Get(id actor.ID) TimeTicket {
	if t, ok := vv.frontier[id]; ok {
		return t
	}
	return Initial
}

// Actors returns the set of peers this vector has heard from.
func (vv *VersionVector) Actors() mapset.Set[actor.ID] {
	s := mapset.NewSet[actor.ID]()
	for id := range vv.frontier {
		s.Add(id)
	}
	return s
}

// MinSyncedTicket returns the minimum frontier ticket across every tracked
// peer, the GC-safe upper bound a garbage collection pass may purge
// tombstones below. With no peers tracked yet, a document has nothing to
// protect and returns Max, permitting an unconditional sweep.
func (vv *VersionVector) MinSyncedTicket() TimeTicket {
	min := Max
	for _, t := range vv.frontier {
		if t.Before(min) {
			min = t
		}
	}
	return min
}

// CommonActors returns the peers both vv and other have observed.
func (vv *VersionVector) CommonActors(other *VersionVector) mapset.Set[actor.ID] {
	return vv.Actors().Intersect(other.Actors())
}
