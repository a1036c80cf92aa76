package document_test

import (
	"testing"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePackWireRoundTrip(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	require.NoError(t, doc.Update("write", func(root *document.ObjectProxy) error {
		if err := root.SetString("title", "hello"); err != nil {
			return err
		}
		return root.SetInt32("count", 3)
	}))

	pack := doc.CreateChangePack()
	raw, err := document.EncodeChangePack(pack)
	require.NoError(t, err)

	decoded, err := document.DecodeChangePack(raw)
	require.NoError(t, err)
	require.Len(t, decoded.Changes, 1)
	assert.Equal(t, pack.Changes[0].ID.ClientSeq(), decoded.Changes[0].ID.ClientSeq())
	require.Len(t, decoded.Changes[0].Operations, 2)

	other := document.New("doc-1", actor.New())
	require.NoError(t, other.ApplyChangePack(decoded))

	v, err := other.GetRoot().Get("title")
	require.NoError(t, err)
	assert.Equal(t, "hello", v.(*crdt.Primitive).Value())
}

func TestChangePackWireRoundTripCarriesSnapshot(t *testing.T) {
	doc := document.New("doc-1", actor.New())
	require.NoError(t, doc.Update("seed", func(root *document.ObjectProxy) error {
		return root.SetString("a", "b")
	}))
	snap, err := doc.Snapshot()
	require.NoError(t, err)

	raw, err := document.EncodeChangePack(document.ChangePack{DocumentKey: "doc-1", Snapshot: snap})
	require.NoError(t, err)

	decoded, err := document.DecodeChangePack(raw)
	require.NoError(t, err)
	assert.Equal(t, snap, decoded.Snapshot)
}
