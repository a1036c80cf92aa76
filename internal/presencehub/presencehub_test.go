package presencehub_test

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinxiao27/docweave/internal/presencehub"
	"github.com/kevinxiao27/docweave/pkg/actor"
)

func newTestHub(t *testing.T) (*presencehub.Hub, context.Context) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.FlushAll(ctx) })
	return presencehub.NewHub(rdb), ctx
}

func TestJoinThenAliveActorsReturnsMember(t *testing.T) {
	hub, ctx := newTestHub(t)
	id := actor.New()

	require.NoError(t, hub.Join(ctx, "doc-1", id, time.Minute))

	alive, err := hub.AliveActors(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, alive, 1)
	assert.Equal(t, id, alive[0])
}

func TestExpiredMemberIsSweptFromRoster(t *testing.T) {
	hub, ctx := newTestHub(t)
	id := actor.New()

	require.NoError(t, hub.Join(ctx, "doc-1", id, -time.Second))

	alive, err := hub.AliveActors(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, alive)
}

func TestLeaveRemovesMemberImmediately(t *testing.T) {
	hub, ctx := newTestHub(t)
	id := actor.New()
	require.NoError(t, hub.Join(ctx, "doc-1", id, time.Minute))
	require.NoError(t, hub.Leave(ctx, "doc-1", id))

	alive, err := hub.AliveActors(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, alive)
}

func TestSetAndGetPresenceRoundTrips(t *testing.T) {
	hub, ctx := newTestHub(t)
	id := actor.New()
	payload := []byte(`{"cursor":42}`)

	require.NoError(t, hub.SetPresence(ctx, "doc-1", id, payload, time.Minute))

	got, err := hub.GetPresence(ctx, "doc-1", id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestGetPresenceForUnknownActorReturnsNilNoError(t *testing.T) {
	hub, ctx := newTestHub(t)
	got, err := hub.GetPresence(ctx, "doc-1", actor.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocumentsListsRostersButNotPresenceKeys(t *testing.T) {
	hub, ctx := newTestHub(t)
	require.NoError(t, hub.Join(ctx, "doc-a", actor.New(), time.Minute))
	require.NoError(t, hub.SetPresence(ctx, "doc-a", actor.New(), []byte("x"), time.Minute))

	docs, err := hub.Documents(ctx)
	require.NoError(t, err)
	assert.Contains(t, docs, "doc-a")
	for _, d := range docs {
		assert.NotContains(t, d, "presence:data:")
	}
}
