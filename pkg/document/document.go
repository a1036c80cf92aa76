package document

import (
	"errors"
	"sync"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/operations"
	"github.com/kevinxiao27/docweave/pkg/presence"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Status is a Document's attach lifecycle state (spec §6.4).
type Status int

const (
	StatusDetached Status = iota
	StatusAttached
	StatusRemoved
)

// ErrAlreadyAttached is returned by Attach on a Document that is already
// attached.
var ErrAlreadyAttached = errors.New("document: already attached")

// ErrNotAttached is returned by Detach and by operations that require an
// attached Document.
var ErrNotAttached = errors.New("document: not attached")

// RootView is the read-only handle getRoot() returns externally (spec
// §6.4): callers may read but never mutate through it — mutation only
// happens inside an Update closure's proxies.
type RootView struct{ obj *crdt.Object }

func (r RootView) Get(key string) (crdt.Element, error) { return r.obj.Get(key) }
func (r RootView) Has(key string) bool                  { return r.obj.Has(key) }
func (r RootView) Keys() []string                       { return r.obj.Keys() }
func (r RootView) MarshalCanonicalJSON() []byte         { return r.obj.MarshalCanonicalJSON(nil) }

// Document owns a CRDTRoot, the local clock, a local change buffer, and a
// presence map (spec §4.5). All mutation is serialized behind a mutex: push
// (Update) and pull (ApplyChangePack) are mutually exclusive (spec §5).
type Document struct {
	mu sync.Mutex

	key    string
	status Status

	root          *crdt.CRDTRoot
	changeID      clock.ChangeID
	checkpoint    Checkpoint
	localChanges  []Change
	versionVector *clock.VersionVector

	myPresence *presence.Data
	peers      map[actor.ID]*presence.Data

	handlers []EventHandler
}

// New returns a detached Document bound to key, clocked by actorID.
func New(key string, actorID actor.ID) *Document {
	return &Document{
		key:           key,
		status:        StatusDetached,
		root:          crdt.NewRoot(clock.Initial),
		changeID:      clock.InitialChangeID(actorID),
		versionVector: clock.NewVersionVector(),
		myPresence:    presence.New(),
		peers:         make(map[actor.ID]*presence.Data),
	}
}

func (d *Document) Key() string       { return d.key }
func (d *Document) Status() Status    { return d.status }
func (d *Document) ActorID() actor.ID { return d.changeID.ActorID() }

// Attach marks the document attached, the precondition for Update and
// ApplyChangePack to participate in push/pull (spec §6.4).
func (d *Document) Attach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == StatusAttached {
		return ErrAlreadyAttached
	}
	d.status = StatusAttached
	return nil
}

// Detach marks the document detached; local state is left untouched, so a
// later re-Attach can resume from the same buffer.
func (d *Document) Detach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != StatusAttached {
		return ErrNotAttached
	}
	d.status = StatusDetached
	return nil
}

// GetRoot returns a read-only view of the document's top-level object.
func (d *Document) GetRoot() RootView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return RootView{obj: d.root.Object()}
}

// Subscribe registers h to receive every future event.
func (d *Document) Subscribe(h EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

func (d *Document) emit(e Event) {
	for _, h := range d.handlers {
		h(e)
	}
}

// Update opens a ChangeContext, runs closure against a staged copy of the
// root, and — only if closure returns nil — commits the staged copy as the
// new live root and appends exactly one Change to the local buffer (spec
// §4.5: "building operations first and committing atomically to the
// root"). If closure returns an error, the live root is completely
// untouched; if closure built no operations, nothing is committed and no
// event fires.
func (d *Document) Update(message string, closure func(root *ObjectProxy) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	staged := d.root.DeepCopy()
	ctx := newChangeContext(d.changeID, staged)
	rootProxy := newObjectProxy(ctx, staged.Object())

	if err := closure(rootProxy); err != nil {
		return err
	}
	if len(ctx.ops) == 0 {
		return nil
	}

	change := Change{ID: d.changeID, Message: message, Operations: ctx.ops}
	d.root = staged
	d.changeID = d.changeID.Next()
	d.localChanges = append(d.localChanges, change)

	log.WithFields(logrus.Fields{"docKey": d.key, "clientSeq": change.ID.ClientSeq()}).Debug("document: local change applied")
	d.emit(Event{Kind: EventLocalChange, Change: &change, Info: ctx.infos})
	return nil
}

// ApplyChangePack applies a pack received from a peer/server (spec §4.5):
// install a snapshot if present, replay each remote change in order, update
// the checkpoint, discard acknowledged local changes, and garbage collect.
//
// A change whose operations fail with a StructureError/TypeMismatch is
// logged and the remainder of the pack is not applied further (spec §7:
// "the pack is not applied further (preserves monotonicity)") — already
// applied changes in this call, and the checkpoint/GC step below, still
// take effect.
func (d *Document) ApplyChangePack(pack ChangePack) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pack.Snapshot != nil {
		root, changeID, err := DecodeSnapshot(pack.Snapshot)
		if err != nil {
			return err
		}
		d.root = root
		d.changeID = changeID
		d.emit(Event{Kind: EventSnapshot})
	}

	for _, change := range pack.Changes {
		d.changeID = d.changeID.SyncLamport(change.ID.Lamport())
		d.versionVector.Record(change.ID.ActorID(), clock.NewTicket(change.ID.Lamport(), 0, change.ID.ActorID()))

		var infos []operations.OpInfo
		failed := false
		for _, op := range change.Operations {
			opInfos, err := op.Execute(d.root)
			if err != nil {
				log.WithFields(logrus.Fields{"docKey": d.key, "err": err}).Warn("document: remote change rejected, stopping pack application")
				failed = true
				break
			}
			infos = append(infos, opInfos...)
		}

		if change.Presence != nil {
			d.mergePeerPresence(change.ID.ActorID(), change.Presence)
		}
		d.emit(Event{Kind: EventRemoteChange, Change: &change, Info: infos})

		if failed {
			break
		}
	}

	d.checkpoint = pack.Checkpoint
	d.discardAcknowledged(pack.Checkpoint.ClientSeq)

	minSynced := clock.Max
	if pack.MinSyncedTicket != nil {
		minSynced = *pack.MinSyncedTicket
	} else if d.versionVector.Actors().Cardinality() > 0 {
		minSynced = d.versionVector.MinSyncedTicket()
	}
	d.root.GarbageCollect(minSynced)
	return nil
}

// CreateChangePack builds the pack a push would send: every buffered local
// change the server hasn't acknowledged yet, plus the current checkpoint.
func (d *Document) CreateChangePack() ChangePack {
	d.mu.Lock()
	defer d.mu.Unlock()
	changes := make([]Change, len(d.localChanges))
	copy(changes, d.localChanges)
	return ChangePack{DocumentKey: d.key, Checkpoint: d.checkpoint, Changes: changes}
}

// Snapshot encodes the current root and clock into opaque bytes, for a
// caller that wants to hand a fresh ChangePack.Snapshot to a lagging peer.
func (d *Document) Snapshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return EncodeSnapshot(d.root, d.changeID)
}

func (d *Document) discardAcknowledged(ackedClientSeq uint32) {
	kept := d.localChanges[:0]
	for _, c := range d.localChanges {
		if c.ID.ClientSeq() > ackedClientSeq {
			kept = append(kept, c)
		}
	}
	d.localChanges = kept
}

// SetMyPresence merges key=value into this replica's own presence (spec §9
// open question (a): Set merges, never replaces wholesale).
func (d *Document) SetMyPresence(key string, value presence.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.myPresence.Set(key, value)
}

// ClearMyPresence removes key from this replica's own presence.
func (d *Document) ClearMyPresence(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.myPresence.Clear(key)
}

// MyPresence returns an independent copy of this replica's own presence,
// for building the Change.Presence a caller attaches to its next push.
func (d *Document) MyPresence() *presence.Data {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.myPresence.DeepCopy()
}

// Peers returns an independent copy of every known peer's merged presence.
func (d *Document) Peers() map[actor.ID]*presence.Data {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[actor.ID]*presence.Data, len(d.peers))
	for id, p := range d.peers {
		out[id] = p.DeepCopy()
	}
	return out
}

func (d *Document) mergePeerPresence(id actor.ID, p *presence.Data) {
	existing, ok := d.peers[id]
	if !ok {
		existing = presence.New()
		d.peers[id] = existing
	}
	existing.Merge(p)

	peerIDs := make([]actor.ID, 0, len(d.peers))
	for peerID := range d.peers {
		peerIDs = append(peerIDs, peerID)
	}
	d.emit(Event{Kind: EventPeersChanged, Peers: peerIDs})
}
