package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/wire"
	"github.com/yola1107/kratos/v2/library/work"
	"github.com/yola1107/kratos/v2/log"
	"github.com/yola1107/kratos/v2/transport/websocket"
	"github.com/yola1107/kratos/v2/transport/websocket/proto"

	v1 "github.com/aleiby/cardtable/api/gateway/v1"
	"github.com/aleiby/cardtable/internal/biz/conn"
	"github.com/aleiby/cardtable/internal/biz/deck"
	"github.com/aleiby/cardtable/internal/biz/game"
	"github.com/aleiby/cardtable/internal/biz/table"
	"github.com/aleiby/cardtable/internal/conf"
	"github.com/aleiby/cardtable/pkg/rarity"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewService)

var _ v1.GatewayWebsocketServer = (*Service)(nil)

var defaultPendingNum = 10000

// Service is the websocket gateway: one Connection per session, created on
// the session's SetWallet and torn down on Logout or session close.
type Service struct {
	logger log.Logger

	ws     work.IWorkStore
	tables *table.Manager
	games  *game.Registry
	deps   conn.Deps

	conns sync.Map // session id -> *conn.Connection
}

// NewService builds the table core on top of the data layer.
func NewService(logger log.Logger, c *conf.Room, tableRepo table.Repo, deckRepo deck.Repo,
	bus game.Bus, match conn.MatchRepo, lots rarity.Service) (*Service, func(), error) {
	log.Infof("start server:%q version:%s", conf.Name, conf.Version)

	ctx, cancel := context.WithCancel(context.Background())

	pending := defaultPendingNum
	if c != nil && c.TaskLoopSize > 0 {
		pending = c.TaskLoopSize
	}

	s := &Service{logger: logger}
	s.ws = work.NewWorkStore(ctx, pending)
	s.tables = table.NewManager(tableRepo)
	s.games = game.NewRegistry(game.Deps{
		Tables: s.tables,
		Decks:  deckRepo,
		Bus:    bus,
		Sched:  s.ws,
		Rarity: lots,
	})
	s.deps = conn.Deps{Tables: s.tables, Games: s.games, Match: match}

	cleanup := func() {
		log.NewHelper(logger).Info("closing the table core")
		cancel()
		s.conns.Range(func(key, value any) bool {
			value.(*conn.Connection).Disconnect()
			s.conns.Delete(key)
			return true
		})
		s.games.Stop()
		s.ws.Stop()
	}
	return s, cleanup, s.ws.Start()
}

// GetLoop exposes the shared task pool.
func (s *Service) GetLoop() work.ITaskLoop {
	return s.ws
}

// OnSessionOpen 连接建立回调
func (s *Service) OnSessionOpen(sess *websocket.Session) {
	log.Infof("OnOpenFunc: %q", sess.ID())
}

// OnSessionClose 连接关闭回调
func (s *Service) OnSessionClose(sess *websocket.Session) {
	log.Infof("OnCloseFunc: %q", sess.ID())
	if value, ok := s.conns.LoadAndDelete(sess.ID()); ok {
		value.(*conn.Connection).Disconnect()
	}
}

// session pulls the caller's session out of the handler context.
func (s *Service) session(ctx context.Context) (*websocket.Session, bool) {
	sess, ok := ctx.Value(websocket.CtxSessionKey).(*websocket.Session)
	return sess, ok
}

// connection returns the session's Connection, if SetWallet created one.
func (s *Service) connection(ctx context.Context) (*conn.Connection, bool) {
	sess, ok := s.session(ctx)
	if !ok {
		return nil, false
	}
	value, ok := s.conns.Load(sess.ID())
	if !ok {
		return nil, false
	}
	return value.(*conn.Connection), true
}

// sessionPusher frames events as JSON pushes on one session.
type sessionPusher struct {
	sess *websocket.Session
}

func (p sessionPusher) Push(event string, args ...any) error {
	body, err := json.Marshal(&v1.Event{Name: event, Args: args})
	if err != nil {
		return err
	}
	return p.sess.SendPayload(&proto.Payload{
		Op:      proto.OpPush,
		Place:   proto.PlaceServer,
		Command: v1.CmdEventPush,
		Body:    body,
	})
}
