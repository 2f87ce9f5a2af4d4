package data

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aleiby/cardtable/internal/biz/table"
	"github.com/aleiby/cardtable/pkg/xredis"
)

// tableRepo keeps seats as a sorted set (score = seat slot), table and
// player attributes as hashes, and event/chat logs as streams.
type tableRepo struct {
	data *Data
}

// NewTableRepo creates the redis-backed table store.
func NewTableRepo(data *Data) table.Repo {
	return &tableRepo{data: data}
}

func (r *tableRepo) NextTableID(ctx context.Context) (int64, error) {
	return r.data.rdb.Incr(ctx, xredis.NextTableIDKey).Result()
}

func (r *tableRepo) SeatPlayers(ctx context.Context, tableID int64, players []string) error {
	if len(players) == 0 {
		return nil
	}
	key := xredis.TablePlayersKey(tableID)

	// slots grow past the highest taken one; leavers never renumber anyone
	base := int64(0)
	top, err := r.data.rdb.ZRevRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return err
	}
	if len(top) > 0 {
		base = int64(top[0].Score) + 1
	}

	pipe := r.data.rdb.Pipeline()
	for i, identity := range players {
		pipe.ZAddNX(ctx, key, redis.Z{Score: float64(base + int64(i)), Member: identity})
		pipe.HSet(ctx, xredis.PlayerKey(identity), xredis.PlayerTableField, tableID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *tableRepo) RemovePlayer(ctx context.Context, tableID int64, identity string) error {
	if err := r.data.rdb.ZRem(ctx, xredis.TablePlayersKey(tableID), identity).Err(); err != nil {
		return err
	}
	ref, err := r.data.rdb.HGet(ctx, xredis.PlayerKey(identity), xredis.PlayerTableField).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if ref == strconv.FormatInt(tableID, 10) {
		return r.data.rdb.HDel(ctx, xredis.PlayerKey(identity), xredis.PlayerTableField).Err()
	}
	return nil
}

func (r *tableRepo) Players(ctx context.Context, tableID int64) ([]string, error) {
	return r.data.rdb.ZRange(ctx, xredis.TablePlayersKey(tableID), 0, -1).Result()
}

func (r *tableRepo) PlayerSlot(ctx context.Context, tableID int64, identity string) (int64, bool, error) {
	score, err := r.data.rdb.ZScore(ctx, xredis.TablePlayersKey(tableID), identity).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int64(score), true, nil
}

func (r *tableRepo) PlayerBySlot(ctx context.Context, tableID int64, slot int64) (string, bool, error) {
	s := strconv.FormatInt(slot, 10)
	members, err := r.data.rdb.ZRangeByScore(ctx, xredis.TablePlayersKey(tableID), &redis.ZRangeBy{
		Min: s, Max: s,
	}).Result()
	if err != nil {
		return "", false, err
	}
	if len(members) == 0 {
		return "", false, nil
	}
	return members[0], true, nil
}

func (r *tableRepo) PlayerTable(ctx context.Context, identity string) (int64, bool, error) {
	ref, err := r.data.rdb.HGet(ctx, xredis.PlayerKey(identity), xredis.PlayerTableField).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	tableID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return tableID, true, nil
}

func (r *tableRepo) SetGameName(ctx context.Context, tableID int64, name string) error {
	return r.data.rdb.HSet(ctx, xredis.TableKey(tableID), xredis.TableGameField, name).Err()
}

func (r *tableRepo) GameName(ctx context.Context, tableID int64) (string, error) {
	name, err := r.data.rdb.HGet(ctx, xredis.TableKey(tableID), xredis.TableGameField).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return name, err
}

func (r *tableRepo) SetTableField(ctx context.Context, tableID int64, field, value string) error {
	return r.data.rdb.HSet(ctx, xredis.TableKey(tableID), field, value).Err()
}

func (r *tableRepo) TableField(ctx context.Context, tableID int64, field string) (string, error) {
	value, err := r.data.rdb.HGet(ctx, xredis.TableKey(tableID), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func (r *tableRepo) SetPlayerName(ctx context.Context, identity, name string) error {
	return r.data.rdb.HSet(ctx, xredis.PlayerKey(identity), xredis.PlayerNameField, name).Err()
}

func (r *tableRepo) AppendEvent(ctx context.Context, stream string, e *table.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.data.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"event": payload},
	}).Err()
}

// LastID reports the stream's newest entry id, or "0-0" when empty, so a
// tail started here sees exactly the entries appended afterwards.
func (r *tableRepo) LastID(ctx context.Context, stream string) (string, error) {
	entries, err := r.data.rdb.XRevRangeN(ctx, stream, "+", "-", 1).Result()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "0-0", nil
	}
	return entries[0].ID, nil
}

func (r *tableRepo) Tail(ctx context.Context, streams, ids []string, block time.Duration) ([]table.Entry, error) {
	reply, err := r.data.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: append(append([]string{}, streams...), ids...),
		Count:   64,
		Block:   block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []table.Entry
	for _, stream := range reply {
		for _, msg := range stream.Messages {
			payload, ok := msg.Values["event"].(string)
			if !ok {
				continue
			}
			var e table.Event
			if err := json.Unmarshal([]byte(payload), &e); err != nil {
				return nil, err
			}
			entries = append(entries, table.Entry{Stream: stream.Stream, ID: msg.ID, Event: e})
		}
	}
	return entries, nil
}

func (r *tableRepo) PlayerEventsStream(identity string) string {
	return xredis.PlayerEventsKey(identity)
}

func (r *tableRepo) TableEventsStream(tableID int64) string {
	return xredis.TableEventsKey(tableID)
}

func (r *tableRepo) TableChatStream(tableID int64) string {
	return xredis.TableChatKey(tableID)
}
