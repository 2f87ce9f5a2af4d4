package service

import (
	"context"

	"github.com/yola1107/kratos/v2/log"
	"github.com/yola1107/kratos/v2/transport/websocket"

	v1 "github.com/aleiby/cardtable/api/gateway/v1"
	"github.com/aleiby/cardtable/internal/biz/conn"
)

// SetWallet authenticates the session and brings up its delivery channel.
// Repeat calls on the same session are no-ops.
func (s *Service) SetWallet(ctx context.Context, req *v1.SetWalletReq) (*v1.SetWalletRsp, error) {
	sess, ok := s.session(ctx)
	if !ok || req.Identity == "" {
		return &v1.SetWalletRsp{}, nil
	}

	c := conn.New(s.deps, sessionPusher{sess: sess})
	if actual, loaded := s.conns.LoadOrStore(sess.ID(), c); loaded {
		c = actual.(*conn.Connection)
		if c.Identity() != "" && c.Identity() != req.Identity {
			log.Warnf("session %q rebinding %q over %q ignored", sess.ID(), req.Identity, c.Identity())
			return &v1.SetWalletRsp{}, nil
		}
	}
	if err := c.SetIdentity(ctx, req.Identity, req.Name); err != nil {
		return nil, err
	}
	return &v1.SetWalletRsp{Ok: true}, nil
}

func (s *Service) PlayGame(ctx context.Context, req *v1.PlayGameReq) (*v1.PlayGameRsp, error) {
	c, ok := s.connection(ctx)
	if !ok {
		return &v1.PlayGameRsp{}, nil
	}
	if err := c.PlayGame(ctx, req.Game); err != nil {
		return nil, err
	}
	return &v1.PlayGameRsp{Ok: true}, nil
}

func (s *Service) QuitGame(ctx context.Context, req *v1.QuitGameReq) (*v1.QuitGameRsp, error) {
	c, ok := s.connection(ctx)
	if !ok {
		return &v1.QuitGameRsp{}, nil
	}
	if err := c.QuitGame(ctx, req.Game); err != nil {
		return nil, err
	}
	return &v1.QuitGameRsp{Ok: true}, nil
}

func (s *Service) Chat(ctx context.Context, req *v1.ChatReq) (*v1.ChatRsp, error) {
	c, ok := s.connection(ctx)
	if !ok {
		return &v1.ChatRsp{}, nil
	}
	if err := c.Chat(ctx, req.Text); err != nil {
		return nil, err
	}
	return &v1.ChatRsp{Ok: true}, nil
}

func (s *Service) ClickDeck(ctx context.Context, req *v1.ClickDeckReq) (*v1.ClickDeckRsp, error) {
	c, ok := s.connection(ctx)
	if !ok {
		return &v1.ClickDeckRsp{}, nil
	}
	if err := c.ClickDeck(ctx, req.Deck, req.Selection, req.Right); err != nil {
		return nil, err
	}
	return &v1.ClickDeckRsp{Ok: true}, nil
}

func (s *Service) ClickTable(ctx context.Context, req *v1.ClickTableReq) (*v1.ClickTableRsp, error) {
	c, ok := s.connection(ctx)
	if !ok {
		return &v1.ClickTableRsp{}, nil
	}
	if err := c.ClickTable(ctx, req.X, req.Z, req.Selection, req.Right); err != nil {
		return nil, err
	}
	return &v1.ClickTableRsp{Ok: true}, nil
}

// Logout tears the session's delivery channel down. The identity stays
// seated; a later SetWallet resumes where it left off.
func (s *Service) Logout(ctx context.Context, req *v1.LogoutReq) (*v1.LogoutRsp, error) {
	sess, ok := ctx.Value(websocket.CtxSessionKey).(*websocket.Session)
	if !ok {
		return &v1.LogoutRsp{}, nil
	}
	if value, loaded := s.conns.LoadAndDelete(sess.ID()); loaded {
		value.(*conn.Connection).Disconnect()
	}
	return &v1.LogoutRsp{Ok: true}, nil
}
