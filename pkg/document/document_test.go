package document_test

import (
	"errors"
	"testing"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/document"
	"github.com/kevinxiao27/docweave/pkg/operations"
	"github.com/kevinxiao27/docweave/pkg/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateCommitsOnSuccess(t *testing.T) {
	doc := document.New("doc-1", actor.New())

	err := doc.Update("set title", func(root *document.ObjectProxy) error {
		return root.SetString("title", "hello")
	})
	require.NoError(t, err)

	v, err := doc.GetRoot().Get("title")
	require.NoError(t, err)
	assert.Equal(t, "hello", v.(*crdt.Primitive).Value())
}

func TestUpdateLeavesRootUntouchedOnClosureError(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	boom := errors.New("boom")

	err := doc.Update("bad update", func(root *document.ObjectProxy) error {
		if setErr := root.SetString("title", "partial"); setErr != nil {
			return setErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, doc.GetRoot().Has("title"))
}

func TestUpdateWithNoOperationsCommitsNothing(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	err := doc.Update("noop", func(root *document.ObjectProxy) error { return nil })
	require.NoError(t, err)

	pack := doc.CreateChangePack()
	assert.False(t, pack.HasChanges())
}

func TestUpdateRecordsExactlyOneLocalChange(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	require.NoError(t, doc.Update("a", func(root *document.ObjectProxy) error {
		return root.SetInt32("count", 1)
	}))
	require.NoError(t, doc.Update("b", func(root *document.ObjectProxy) error {
		return root.SetInt32("count", 2)
	}))

	pack := doc.CreateChangePack()
	require.Len(t, pack.Changes, 2)
	assert.Equal(t, uint32(0), pack.Changes[0].ID.ClientSeq())
	assert.Equal(t, uint32(1), pack.Changes[1].ID.ClientSeq())
}

func TestApplyChangePackReplaysRemoteChanges(t *testing.T) {
	local := document.New("doc-1", actor.New())
	remote := document.New("doc-1", actor.New())

	require.NoError(t, remote.Update("remote write", func(root *document.ObjectProxy) error {
		return root.SetString("greeting", "hi")
	}))

	pack := remote.CreateChangePack()
	require.NoError(t, local.ApplyChangePack(pack))

	v, err := local.GetRoot().Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi", v.(*crdt.Primitive).Value())
}

func TestApplyChangePackUpdatesCheckpointAndPrunesLocalChanges(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	require.NoError(t, doc.Update("one", func(root *document.ObjectProxy) error {
		return root.SetInt32("x", 1)
	}))
	require.NoError(t, doc.Update("two", func(root *document.ObjectProxy) error {
		return root.SetInt32("x", 2)
	}))

	require.NoError(t, doc.ApplyChangePack(document.ChangePack{
		Checkpoint: document.Checkpoint{ServerSeq: 5, ClientSeq: 0},
	}))

	pack := doc.CreateChangePack()
	require.Len(t, pack.Changes, 1)
	assert.Equal(t, uint32(1), pack.Changes[0].ID.ClientSeq())
}

func TestApplyChangePackStopsAfterFirstFailureButStillCommitsCheckpoint(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	remoteActor := actor.New()

	badTicket := clock.NewTicket(1, 1, remoteActor)
	badChange := document.Change{
		ID: clock.InitialChangeID(remoteActor),
		Operations: []operations.Operation{
			&operations.SetOperation{
				ParentCreatedAt: clock.NewTicket(99, 0, remoteActor),
				Key:             "unreachable",
				Value:           crdt.NewPrimitive(crdt.KindBool, true, badTicket),
				At:              badTicket,
			},
		},
	}

	laterTicket := clock.NewTicket(2, 1, remoteActor)
	laterChange := document.Change{
		ID: clock.InitialChangeID(remoteActor).Next(),
		Operations: []operations.Operation{
			&operations.SetOperation{
				ParentCreatedAt: clock.Initial,
				Key:             "reached",
				Value:           crdt.NewPrimitive(crdt.KindBool, true, laterTicket),
				At:              laterTicket,
			},
		},
	}

	var events []document.EventKind
	doc.Subscribe(func(e document.Event) { events = append(events, e.Kind) })

	err := doc.ApplyChangePack(document.ChangePack{
		Checkpoint: document.Checkpoint{ServerSeq: 1, ClientSeq: 0},
		Changes:    []document.Change{badChange, laterChange},
	})
	require.NoError(t, err)
	assert.Contains(t, events, document.EventRemoteChange)
	assert.False(t, doc.GetRoot().Has("reached"))
	assert.Equal(t, document.Checkpoint{ServerSeq: 1, ClientSeq: 0}, doc.CreateChangePack().Checkpoint)
}

func TestSnapshotRoundTrip(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	require.NoError(t, doc.Update("seed", func(root *document.ObjectProxy) error {
		return root.SetString("a", "b")
	}))

	snap, err := doc.Snapshot()
	require.NoError(t, err)

	other := document.New("doc-1", actor.New())
	require.NoError(t, other.ApplyChangePack(document.ChangePack{Snapshot: snap}))

	v, err := other.GetRoot().Get("a")
	require.NoError(t, err)
	assert.Equal(t, "b", v.(*crdt.Primitive).Value())
}

func TestMyPresenceSetMergesRatherThanReplaces(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	doc.SetMyPresence("cursor", presence.NewInt(1))
	doc.SetMyPresence("name", presence.NewString("ana"))

	p := doc.MyPresence()
	cursor, ok := p.Get("cursor")
	require.True(t, ok)
	assert.True(t, cursor.Equal(presence.NewInt(1)))

	name, ok := p.Get("name")
	require.True(t, ok)
	assert.True(t, name.Equal(presence.NewString("ana")))
}
