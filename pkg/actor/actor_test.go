package actor_test

import (
	"testing"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareTotalOrder(t *testing.T) {
	a := actor.New()
	b := actor.New()
	c := actor.New()

	cmp := func(x, y actor.ID) int { return actor.Compare(x, y) }

	// exactly one of <, =, > holds for every pair
	count := 0
	if cmp(a, b) < 0 {
		count++
	}
	if cmp(a, b) == 0 {
		count++
	}
	if cmp(a, b) > 0 {
		count++
	}
	assert.Equal(t, 1, count)

	assert.Equal(t, 0, cmp(a, a))
	assert.True(t, cmp(actor.InitialActorID, a) <= 0 || a == actor.InitialActorID)
	assert.True(t, cmp(c, actor.MaxActorID) < 0)
}

func TestFromBytesRoundTrip(t *testing.T) {
	id := actor.New()
	decoded, err := actor.FromBytes(id.Bytes())
	require.NoError(t, err)
	assert.Equal(t, id, decoded)

	_, err = actor.FromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, actor.ErrInvalidLength)
}

func TestIsInitial(t *testing.T) {
	assert.True(t, actor.InitialActorID.IsInitial())
	assert.False(t, actor.New().IsInitial())
}
