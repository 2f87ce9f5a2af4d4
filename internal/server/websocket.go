package server

import (
	"time"

	"github.com/yola1107/kratos/v2/log"
	"github.com/yola1107/kratos/v2/middleware/recovery"
	"github.com/yola1107/kratos/v2/transport/websocket"

	v1 "github.com/aleiby/cardtable/api/gateway/v1"
	"github.com/aleiby/cardtable/internal/conf"
	"github.com/aleiby/cardtable/internal/service"
)

// NewWebsocketServer new an Websocket server.
func NewWebsocketServer(c *conf.Server, gateway *service.Service, logger log.Logger) *websocket.Server {
	var opts = []websocket.ServerOption{
		websocket.Middleware(
			recovery.Recovery(),
		),
	}
	if c != nil && c.Websocket != nil {
		if c.Websocket.Network != "" {
			opts = append(opts, websocket.Network(c.Websocket.Network))
		}
		if c.Websocket.Addr != "" {
			opts = append(opts, websocket.Address(c.Websocket.Addr))
		}
		if c.Websocket.Timeout != "" {
			if d, err := time.ParseDuration(c.Websocket.Timeout); err == nil {
				opts = append(opts, websocket.Timeout(d))
			} else {
				log.Warnf("bad websocket timeout %q: %v", c.Websocket.Timeout, err)
			}
		}
	}
	srv := websocket.NewServer(opts...)
	v1.RegisterGatewayWebsocketServer(srv, gateway, gateway.OnSessionOpen, gateway.OnSessionClose)
	return srv
}
