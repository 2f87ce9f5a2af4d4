// Package rarity is the narrow contract to the external card-metadata
// collaborator. The engine never touches it; game implementations consume
// it to resolve a card's auction-lot ref.
package rarity

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yola1107/kratos/v2/log"
)

type Service interface {
	// Prioritize hints the collaborator to fetch metadata for the given
	// cards soon. Fire and forget.
	Prioritize(ctx context.Context, cardIDs []int64, queueLevel int, startScore float64)
	// RequireLot blocks until the card's lot ref is available.
	RequireLot(ctx context.Context, cardID int64) (string, error)
	// GetLotIfCached returns the lot ref only if already known.
	GetLotIfCached(ctx context.Context, cardID int64) (string, bool)
}

func lotKey(cardID int64) string {
	return "lot:" + strconv.FormatInt(cardID, 10)
}

// Cache reads lot refs that the external fetcher parks in redis. Prioritize
// is a no-op hint here; the real queue lives with the collaborator.
type Cache struct {
	rdb  *redis.Client
	poll time.Duration
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, poll: 200 * time.Millisecond}
}

func (c *Cache) Prioritize(ctx context.Context, cardIDs []int64, queueLevel int, startScore float64) {
}

func (c *Cache) RequireLot(ctx context.Context, cardID int64) (string, error) {
	for {
		lot, err := c.rdb.Get(ctx, lotKey(cardID)).Result()
		if err == nil {
			return lot, nil
		}
		if !errors.Is(err, redis.Nil) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

func (c *Cache) GetLotIfCached(ctx context.Context, cardID int64) (string, bool) {
	lot, err := c.rdb.Get(ctx, lotKey(cardID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("rarity: lot lookup %d: %v", cardID, err)
		}
		return "", false
	}
	return lot, true
}

var _ Service = (*Cache)(nil)

// Nop satisfies Service where no collaborator is deployed.
type Nop struct{}

func (Nop) Prioritize(context.Context, []int64, int, float64) {}
func (Nop) RequireLot(context.Context, int64) (string, error) { return "", nil }
func (Nop) GetLotIfCached(context.Context, int64) (string, bool) {
	return "", false
}

var _ Service = Nop{}
