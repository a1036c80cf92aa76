// Package presencehub fans out presence across server instances via Redis:
// which actors are alive on a document, and each actor's last-known
// presence payload (spec §9's PresenceData), each kept under its own Redis
// key rather than inside a ChangePack.
package presencehub

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/kevinxiao27/docweave/internal/util"
	"github.com/kevinxiao27/docweave/pkg/actor"
)

// Hub is a Redis-backed presence roster, one instance shared across every
// document a server process hosts.
type Hub struct {
	rdb *redis.Client
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{rdb: rdb}
}

func roomKey(docKey string) string     { return "presence:room:" + docKey }
func presenceKey(docKey, actorHex string) string {
	return "presence:data:" + docKey + ":" + actorHex
}

// Join marks actorID alive on docKey for ttl, refreshable by calling again.
func (h *Hub) Join(ctx context.Context, docKey string, actorID actor.ID, ttl time.Duration) error {
	expireAt := time.Now().Add(ttl).Unix()
	return h.rdb.ZAdd(ctx, roomKey(docKey), redis.Z{Score: float64(expireAt), Member: actorID.String()}).Err()
}

// Leave removes actorID from docKey's roster immediately, for a clean
// disconnect rather than waiting out the TTL.
func (h *Hub) Leave(ctx context.Context, docKey string, actorID actor.ID) error {
	return h.rdb.ZRem(ctx, roomKey(docKey), actorID.String()).Err()
}

// SetPresence stores actorID's latest presence payload for ttl.
func (h *Hub) SetPresence(ctx context.Context, docKey string, actorID actor.ID, data []byte, ttl time.Duration) error {
	return h.rdb.Set(ctx, presenceKey(docKey, actorID.String()), data, ttl).Err()
}

// GetPresence returns actorID's last-known presence payload, if any.
func (h *Hub) GetPresence(ctx context.Context, docKey string, actorID actor.ID) ([]byte, error) {
	data, err := h.rdb.Get(ctx, presenceKey(docKey, actorID.String())).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// sweepExpired is the same "drop entries whose score is in the past"
// cleanup as the ZSET roster pattern this is grounded on.
const sweepExpired = `
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if #expired > 0 then
	redis.call("ZREM", KEYS[1], unpack(expired))
end
return #expired
`

// AliveActors sweeps expired entries off docKey's roster and returns every
// actor still alive.
func (h *Hub) AliveActors(ctx context.Context, docKey string) ([]actor.ID, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	script := redis.NewScript(sweepExpired)
	if _, err := script.Run(ctx, h.rdb, []string{roomKey(docKey)}, now).Int(); err != nil && err != redis.Nil {
		return nil, err
	}

	members, err := h.rdb.ZRangeByScore(ctx, roomKey(docKey), &redis.ZRangeBy{
		Min: "(" + now,
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	out := util.MapN(members, func(m string) (actor.ID, error) {
		raw, err := hex.DecodeString(m)
		if err != nil {
			return actor.ID{}, err
		}
		return actor.FromBytes(raw)
	})
	return out, nil
}

// Documents lists every document key whose roster currently holds at least
// one entry, live or expired but not yet swept; a roster emptied by Leave
// or a sweep no longer exists in Redis and is not listed.
func (h *Hub) Documents(ctx context.Context) ([]string, error) {
	var docs []string
	iter := h.rdb.Scan(ctx, 0, "presence:room:*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if strings.Contains(k, ":data:") {
			continue
		}
		docs = append(docs, strings.TrimPrefix(k, "presence:room:"))
	}
	return docs, iter.Err()
}
