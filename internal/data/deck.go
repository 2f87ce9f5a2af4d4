package data

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/aleiby/cardtable/internal/biz/deck"
	"github.com/aleiby/cardtable/pkg/xredis"
)

// Deck mutations run as server-side scripts so that concurrent clicks on the
// same deck serialize in the store, not in this process. Positions are sorted
// set scores: the front of a deck is its lowest score. Prepends write a block
// of scores below the current minimum and appends above the current maximum,
// so existing cards never renumber.

// addScript appends (or prepends, ARGV[1]=="1") the card ids in ARGV[2..] as
// one block, preserving their given order.
var addScript = redis.NewScript(`
local n = #ARGV - 1
if n == 0 then return 0 end
local base
if ARGV[1] == "1" then
	local min = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
	if #min == 0 then base = 1 else base = tonumber(min[2]) - n end
else
	local max = redis.call("ZRANGE", KEYS[1], -1, -1, "WITHSCORES")
	if #max == 0 then base = 1 else base = tonumber(max[2]) + 1 end
end
for i = 1, n do
	redis.call("ZADD", KEYS[1], base + i - 1, ARGV[i+1])
end
return n
`)

// drawScript pops the front card of KEYS[1] onto the back of KEYS[2],
// carrying its face-up flag from KEYS[3] to KEYS[4]. Returns the card id or
// nil when the source is empty.
var drawScript = redis.NewScript(`
local front = redis.call("ZRANGE", KEYS[1], 0, 0)
if #front == 0 then return false end
local card = front[1]
redis.call("ZREM", KEYS[1], card)
local max = redis.call("ZRANGE", KEYS[2], -1, -1, "WITHSCORES")
local score
if #max == 0 then score = 1 else score = tonumber(max[2]) + 1 end
redis.call("ZADD", KEYS[2], score, card)
if redis.call("SREM", KEYS[3], card) == 1 then
	redis.call("SADD", KEYS[4], card)
end
return card
`)

// moveScript moves the subset of ARGV[2..] present in KEYS[1] onto KEYS[2]
// as one block (ARGV[1]=="1" prepends), carrying face-up flags. Returns the
// number of cards moved.
var moveScript = redis.NewScript(`
local moved = {}
for i = 2, #ARGV do
	if redis.call("ZSCORE", KEYS[1], ARGV[i]) then
		moved[#moved+1] = ARGV[i]
	end
end
local n = #moved
if n == 0 then return 0 end
for i = 1, n do
	redis.call("ZREM", KEYS[1], moved[i])
end
local base
if ARGV[1] == "1" then
	local min = redis.call("ZRANGE", KEYS[2], 0, 0, "WITHSCORES")
	if #min == 0 then base = 1 else base = tonumber(min[2]) - n end
else
	local max = redis.call("ZRANGE", KEYS[2], -1, -1, "WITHSCORES")
	if #max == 0 then base = 1 else base = tonumber(max[2]) + 1 end
end
for i = 1, n do
	local card = moved[i]
	redis.call("ZADD", KEYS[2], base + i - 1, card)
	if redis.call("SREM", KEYS[3], card) == 1 then
		redis.call("SADD", KEYS[4], card)
	end
end
return n
`)

// moveAllScript appends every card of KEYS[1] to KEYS[2] in order and
// transfers the whole facing set.
var moveAllScript = redis.NewScript(`
local cards = redis.call("ZRANGE", KEYS[1], 0, -1)
local n = #cards
if n == 0 then return 0 end
local max = redis.call("ZRANGE", KEYS[2], -1, -1, "WITHSCORES")
local base
if #max == 0 then base = 1 else base = tonumber(max[2]) + 1 end
for i = 1, n do
	redis.call("ZADD", KEYS[2], base + i - 1, cards[i])
end
redis.call("DEL", KEYS[1])
local facing = redis.call("SMEMBERS", KEYS[3])
if #facing > 0 then
	redis.call("SADD", KEYS[4], unpack(facing))
	redis.call("DEL", KEYS[3])
end
return n
`)

// shuffleIntoScript drains KEYS[1], reshuffles the drained ids with the
// seed in ARGV[1] and appends them face down past KEYS[2]'s tail. The
// destination's order and face-up state are untouched. Returns the number
// of cards drained; 0 when the source was already empty.
var shuffleIntoScript = redis.NewScript(`
local cards = redis.call("ZRANGE", KEYS[1], 0, -1)
local n = #cards
if n == 0 then return 0 end
math.randomseed(tonumber(ARGV[1]))
for i = n, 2, -1 do
	local j = math.random(i)
	cards[i], cards[j] = cards[j], cards[i]
end
redis.call("DEL", KEYS[1], KEYS[3])
local max = redis.call("ZRANGE", KEYS[2], -1, -1, "WITHSCORES")
local base
if #max == 0 then base = 1 else base = tonumber(max[2]) + 1 end
for i = 1, n do
	redis.call("ZADD", KEYS[2], base + i - 1, cards[i])
end
return n
`)

// flipScript toggles the face-up flag of every ARGV card present in KEYS[1].
var flipScript = redis.NewScript(`
local n = 0
for i = 1, #ARGV do
	if redis.call("ZSCORE", KEYS[1], ARGV[i]) then
		if redis.call("SREM", KEYS[2], ARGV[i]) == 0 then
			redis.call("SADD", KEYS[2], ARGV[i])
		end
		n = n + 1
	end
end
return n
`)

type deckRepo struct {
	data *Data
}

// NewDeckRepo creates the redis-backed deck store.
func NewDeckRepo(data *Data) deck.Repo {
	return &deckRepo{data: data}
}

func (r *deckRepo) RegisterCards(ctx context.Context, values []int32, refs []string) ([]int64, error) {
	if len(values) != len(refs) {
		return nil, fmt.Errorf("deck: %d values for %d refs", len(values), len(refs))
	}
	if len(values) == 0 {
		return nil, nil
	}

	last, err := r.data.rdb.IncrBy(ctx, xredis.NextCardIDKey, int64(len(values))).Result()
	if err != nil {
		return nil, err
	}
	first := last - int64(len(values)) + 1

	pipe := r.data.rdb.Pipeline()
	ids := make([]int64, len(values))
	for i := range values {
		ids[i] = first + int64(i)
		pipe.HSet(ctx, xredis.CardKey(ids[i]),
			xredis.CardValueField, int64(values[i]),
			xredis.CardRefField, refs[i],
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *deckRepo) GetCard(ctx context.Context, id int64) (*deck.Card, error) {
	fields, err := r.data.rdb.HMGet(ctx, xredis.CardKey(id), xredis.CardValueField, xredis.CardRefField).Result()
	if err != nil {
		return nil, err
	}
	if fields[0] == nil {
		return nil, fmt.Errorf("deck: unknown card %d", id)
	}
	value, err := strconv.ParseInt(fields[0].(string), 10, 32)
	if err != nil {
		return nil, err
	}
	ref, _ := fields[1].(string)
	return &deck.Card{ID: id, Value: int32(value), Ref: ref}, nil
}

func (r *deckRepo) GetCards(ctx context.Context, ids []int64) ([]*deck.Card, error) {
	cards := make([]*deck.Card, 0, len(ids))
	for _, id := range ids {
		card, err := r.GetCard(ctx, id)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (r *deckRepo) Add(ctx context.Context, tableID int64, name string, cards []int64, atStart bool) error {
	if len(cards) == 0 {
		return nil
	}
	keys := []string{xredis.DeckKey(tableID, name)}
	args := append([]interface{}{boolArg(atStart)}, cardArgs(cards)...)
	return addScript.Run(ctx, r.data.rdb, keys, args...).Err()
}

func (r *deckRepo) Draw(ctx context.Context, tableID int64, src, dst string) (int64, bool, error) {
	keys := []string{
		xredis.DeckKey(tableID, src),
		xredis.DeckKey(tableID, dst),
		xredis.DeckFacingKey(tableID, src),
		xredis.DeckFacingKey(tableID, dst),
	}
	card, err := drawScript.Run(ctx, r.data.rdb, keys).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return card, true, nil
}

func (r *deckRepo) Move(ctx context.Context, tableID int64, src string, cards []int64, dst string, atStart bool) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}
	keys := []string{
		xredis.DeckKey(tableID, src),
		xredis.DeckKey(tableID, dst),
		xredis.DeckFacingKey(tableID, src),
		xredis.DeckFacingKey(tableID, dst),
	}
	args := append([]interface{}{boolArg(atStart)}, cardArgs(cards)...)
	return moveScript.Run(ctx, r.data.rdb, keys, args...).Int()
}

func (r *deckRepo) MoveAll(ctx context.Context, tableID int64, src, dst string) (int, error) {
	keys := []string{
		xredis.DeckKey(tableID, src),
		xredis.DeckKey(tableID, dst),
		xredis.DeckFacingKey(tableID, src),
		xredis.DeckFacingKey(tableID, dst),
	}
	return moveAllScript.Run(ctx, r.data.rdb, keys).Int()
}

func (r *deckRepo) ShuffleInto(ctx context.Context, tableID int64, src, dst string) (int, error) {
	keys := []string{
		xredis.DeckKey(tableID, src),
		xredis.DeckKey(tableID, dst),
		xredis.DeckFacingKey(tableID, src),
		xredis.DeckFacingKey(tableID, dst),
	}
	return shuffleIntoScript.Run(ctx, r.data.rdb, keys, rand.Int63()).Int()
}

func (r *deckRepo) Flip(ctx context.Context, tableID int64, name string, cards []int64) error {
	if len(cards) == 0 {
		return nil
	}
	keys := []string{
		xredis.DeckKey(tableID, name),
		xredis.DeckFacingKey(tableID, name),
	}
	return flipScript.Run(ctx, r.data.rdb, keys, cardArgs(cards)...).Err()
}

func (r *deckRepo) PeekID(ctx context.Context, tableID int64, name string) (int64, bool, error) {
	front, err := r.data.rdb.ZRange(ctx, xredis.DeckKey(tableID, name), 0, 0).Result()
	if err != nil {
		return 0, false, err
	}
	if len(front) == 0 {
		return 0, false, nil
	}
	card, err := strconv.ParseInt(front[0], 10, 64)
	if err != nil {
		return 0, false, err
	}
	return card, true, nil
}

func (r *deckRepo) List(ctx context.Context, tableID int64, name string) ([]int64, error) {
	members, err := r.data.rdb.ZRange(ctx, xredis.DeckKey(tableID, name), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i], err = strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (r *deckRepo) Count(ctx context.Context, tableID int64, name string) (int64, error) {
	return r.data.rdb.ZCard(ctx, xredis.DeckKey(tableID, name)).Result()
}

func (r *deckRepo) IsFlipped(ctx context.Context, tableID int64, name string, card int64) (bool, error) {
	return r.data.rdb.SIsMember(ctx, xredis.DeckFacingKey(tableID, name), card).Result()
}

func (r *deckRepo) AreFlipped(ctx context.Context, tableID int64, name string, cards []int64) (bool, error) {
	for _, card := range cards {
		flipped, err := r.IsFlipped(ctx, tableID, name, card)
		if err != nil || !flipped {
			return false, err
		}
	}
	return true, nil
}

func (r *deckRepo) Clear(ctx context.Context, tableID int64, name string) error {
	return r.data.rdb.Del(ctx,
		xredis.DeckKey(tableID, name),
		xredis.DeckFacingKey(tableID, name),
	).Err()
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func cardArgs(cards []int64) []interface{} {
	return lo.Map(cards, func(card int64, _ int) interface{} { return card })
}
