package document

import (
	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/operations"
)

// EventKind tags which of the four events a Document emits (spec §6.4).
type EventKind string

const (
	EventSnapshot     EventKind = "snapshot"
	EventLocalChange  EventKind = "local-change"
	EventRemoteChange EventKind = "remote-change"
	EventPeersChanged EventKind = "peers-changed"
)

// Event is delivered to every handler registered via Document.Subscribe.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind   EventKind
	Change *Change
	Info   []operations.OpInfo
	Peers  []actor.ID
}

// EventHandler observes Document events (spec §6.4's subscribe contract).
type EventHandler func(Event)
