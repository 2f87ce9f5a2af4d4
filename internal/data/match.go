package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aleiby/cardtable/internal/biz/conn"
	"github.com/aleiby/cardtable/pkg/xredis"
)

// enqueueScript pushes ARGV[1] onto the game's waiting list unless already
// queued, then cuts the first ARGV[2] identities when enough are waiting.
// The check and the cut are one script, so two racing enqueues can never
// both claim a group. Replies {1, id...} on a match, {0, queued} otherwise.
var enqueueScript = redis.NewScript(`
local items = redis.call("LRANGE", KEYS[1], 0, -1)
for i = 1, #items do
	if items[i] == ARGV[1] then
		return {0, #items}
	end
end
redis.call("RPUSH", KEYS[1], ARGV[1])
local n = #items + 1
local need = tonumber(ARGV[2])
if n < need then
	return {0, n}
end
local matched = {}
for i = 1, need do
	matched[#matched+1] = redis.call("LPOP", KEYS[1])
end
return {1, unpack(matched)}
`)

type matchRepo struct {
	data *Data
}

// NewMatchRepo creates the redis-backed pending-match queue.
func NewMatchRepo(data *Data) conn.MatchRepo {
	return &matchRepo{data: data}
}

func (r *matchRepo) Enqueue(ctx context.Context, gameName, identity string, need int) ([]string, int, error) {
	reply, err := enqueueScript.Run(ctx, r.data.rdb,
		[]string{xredis.PendingKey(gameName)}, identity, need).Slice()
	if err != nil {
		return nil, 0, err
	}
	if len(reply) == 0 {
		return nil, 0, fmt.Errorf("match: empty enqueue reply for %q", gameName)
	}

	flag, _ := reply[0].(int64)
	if flag == 0 {
		waiting, _ := reply[1].(int64)
		return nil, int(waiting), nil
	}

	matched := make([]string, 0, len(reply)-1)
	for _, v := range reply[1:] {
		id, ok := v.(string)
		if !ok {
			return nil, 0, fmt.Errorf("match: bad identity %v in enqueue reply", v)
		}
		matched = append(matched, id)
	}
	return matched, 0, nil
}

func (r *matchRepo) Remove(ctx context.Context, gameName, identity string) error {
	return r.data.rdb.LRem(ctx, xredis.PendingKey(gameName), 0, identity).Err()
}

func (r *matchRepo) SetPending(ctx context.Context, identity, gameName string) error {
	return r.data.rdb.HSet(ctx, xredis.PlayerKey(identity), xredis.PlayerPendingField, gameName).Err()
}

func (r *matchRepo) Pending(ctx context.Context, identity string) (string, error) {
	name, err := r.data.rdb.HGet(ctx, xredis.PlayerKey(identity), xredis.PlayerPendingField).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return name, err
}

func (r *matchRepo) ClearPending(ctx context.Context, identity string) error {
	return r.data.rdb.HDel(ctx, xredis.PlayerKey(identity), xredis.PlayerPendingField).Err()
}
