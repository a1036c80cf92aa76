package rht_test

import (
	"testing"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt/rht"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLWWOutOfOrderWrites(t *testing.T) {
	// Scenario 6: set("k","v1",t=5) then set("k","v0",t=3); get must return v1.
	a := actor.New()
	h := rht.New()
	h.Set("k", "v1", clock.NewTicket(5, 0, a))
	h.Set("k", "v0", clock.NewTicket(3, 0, a))

	v, err := h.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestDeepCopyPreservesWinner(t *testing.T) {
	a := actor.New()
	h := rht.New()
	h.Set("k", "v1", clock.NewTicket(5, 0, a))
	h.Set("k", "v0", clock.NewTicket(3, 0, a))

	cp := h.DeepCopy()
	v, err := cp.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestGetMissingKey(t *testing.T) {
	h := rht.New()
	_, err := h.Get("missing")
	assert.ErrorIs(t, err, rht.ErrNotFound)
}

func TestRemoveIsLWWGated(t *testing.T) {
	a := actor.New()
	h := rht.New()
	h.Set("k", "v", clock.NewTicket(10, 0, a))
	h.Remove("k", clock.NewTicket(5, 0, a)) // older than the set, loses

	v, err := h.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	h.Remove("k", clock.NewTicket(20, 0, a))
	assert.False(t, h.Has("k"))
}

func TestKeysLexicographicOrder(t *testing.T) {
	a := actor.New()
	h := rht.New()
	h.Set("zeta", "1", clock.NewTicket(1, 0, a))
	h.Set("alpha", "2", clock.NewTicket(2, 0, a))
	h.Set("mid", "3", clock.NewTicket(3, 0, a))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, h.Keys())
}

func TestElementsInsertionOrder(t *testing.T) {
	a := actor.New()
	h := rht.New()
	h.Set("b", "2", clock.NewTicket(2, 0, a))
	h.Set("a", "1", clock.NewTicket(1, 0, a))
	// re-writing "b" with a later ticket must not move its insertion slot.
	h.Set("b", "2-updated", clock.NewTicket(3, 0, a))

	els := h.Elements()
	require.Len(t, els, 2)
	assert.Equal(t, "b", els[0].Key)
	assert.Equal(t, "2-updated", els[0].Value)
	assert.Equal(t, "a", els[1].Key)
}
