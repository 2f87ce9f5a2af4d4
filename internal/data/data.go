package data

import (
	"context"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/yola1107/kratos/v2/log"

	"github.com/aleiby/cardtable/internal/conf"
	"github.com/aleiby/cardtable/pkg/rarity"
	"github.com/aleiby/cardtable/pkg/xredis"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(NewData, NewDeckRepo, NewTableRepo, NewMatchRepo, NewBus, NewRarity)

// Data wraps the redis client shared by all repos.
type Data struct {
	rdb *redis.Client
}

// NewData builds the redis client and pings it.
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	opts := []xredis.ClientOption{}
	if c != nil && c.Redis != nil {
		opts = append(opts,
			xredis.WithAddress(c.Redis.Addr),
			xredis.WithPassword(c.Redis.Password),
			xredis.WithDB(c.Redis.DB),
		)
	}
	rdb := xredis.NewClient(opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, err
	}

	d := &Data{rdb: rdb}
	cleanup := func() {
		helper.Info("closing the data resources")
		if err := rdb.Close(); err != nil {
			helper.Errorf("close redis: %v", err)
		}
	}
	return d, cleanup, nil
}

// NewDataFromClient wraps an existing client; tests use it with miniredis.
func NewDataFromClient(rdb *redis.Client) *Data {
	return &Data{rdb: rdb}
}

// NewRarity exposes the lot cache the external metadata fetcher fills.
func NewRarity(data *Data) rarity.Service {
	return rarity.NewCache(data.rdb)
}
