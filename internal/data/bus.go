package data

import (
	"context"

	"github.com/yola1107/kratos/v2/library/xgo"

	"github.com/aleiby/cardtable/internal/biz/game"
)

// bus is the click fan-out over redis pub/sub. Clicks are fire-and-forget:
// a click published while nobody subscribes is dropped, which is the wanted
// behavior for tables whose game is not running here.
type bus struct {
	data *Data
}

// NewBus creates the redis-backed click bus.
func NewBus(data *Data) game.Bus {
	return &bus{data: data}
}

func (b *bus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.data.rdb.Publish(ctx, channel, payload).Err()
}

func (b *bus) Subscribe(channels []string, fn func(channel string, payload []byte)) (func(), error) {
	sub := b.data.rdb.Subscribe(context.Background(), channels...)
	if _, err := sub.Receive(context.Background()); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		defer xgo.RecoverFromError(nil)
		for msg := range sub.Channel() {
			fn(msg.Channel, []byte(msg.Payload))
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return cancel, nil
}
