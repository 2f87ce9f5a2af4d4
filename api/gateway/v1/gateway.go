// Package v1 defines the client-facing card-table gateway: request and
// response bodies ride proto.Payload frames as JSON, keyed by command.
package v1

import (
	"context"
	"encoding/json"

	"github.com/yola1107/kratos/v2/errors"
	"github.com/yola1107/kratos/v2/transport/websocket"
)

// Request commands. Responses echo the request command.
const (
	CmdSetWalletReq  int32 = 1001
	CmdPlayGameReq   int32 = 1003
	CmdQuitGameReq   int32 = 1005
	CmdChatReq       int32 = 1007
	CmdClickDeckReq  int32 = 1009
	CmdClickTableReq int32 = 1011
	CmdLogoutReq     int32 = 1013
)

// CmdEventPush carries server-initiated Event frames.
const CmdEventPush int32 = 2001

// Event is one named client event with positional arguments.
type Event struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
}

type SetWalletReq struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
}

type SetWalletRsp struct {
	Ok bool `json:"ok"`
}

type PlayGameReq struct {
	Game string `json:"game"`
}

type PlayGameRsp struct {
	Ok bool `json:"ok"`
}

type QuitGameReq struct {
	Game string `json:"game"`
}

type QuitGameRsp struct {
	Ok bool `json:"ok"`
}

type ChatReq struct {
	Text string `json:"text"`
}

type ChatRsp struct {
	Ok bool `json:"ok"`
}

type ClickDeckReq struct {
	Deck      string  `json:"deck"`
	Selection []int64 `json:"selection,omitempty"`
	Right     bool    `json:"right,omitempty"`
}

type ClickDeckRsp struct {
	Ok bool `json:"ok"`
}

type ClickTableReq struct {
	X         float64 `json:"x"`
	Z         float64 `json:"z"`
	Selection []int64 `json:"selection,omitempty"`
	Right     bool    `json:"right,omitempty"`
}

type ClickTableRsp struct {
	Ok bool `json:"ok"`
}

type LogoutReq struct{}

type LogoutRsp struct {
	Ok bool `json:"ok"`
}

// GatewayWebsocketServer is the websocket service interface.
type GatewayWebsocketServer interface {
	SetWallet(ctx context.Context, req *SetWalletReq) (*SetWalletRsp, error)
	PlayGame(ctx context.Context, req *PlayGameReq) (*PlayGameRsp, error)
	QuitGame(ctx context.Context, req *QuitGameReq) (*QuitGameRsp, error)
	Chat(ctx context.Context, req *ChatReq) (*ChatRsp, error)
	ClickDeck(ctx context.Context, req *ClickDeckReq) (*ClickDeckRsp, error)
	ClickTable(ctx context.Context, req *ClickTableReq) (*ClickTableRsp, error)
	Logout(ctx context.Context, req *LogoutReq) (*LogoutRsp, error)
}

func unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.BadRequest("CODEC", err.Error())
	}
	return nil
}

func _Gateway_SetWallet_Handler(srv interface{}, ctx context.Context, data []byte, interceptor websocket.UnaryServerInterceptor) ([]byte, error) {
	in := new(SetWalletReq)
	if err := unmarshal(data, in); err != nil {
		return nil, err
	}
	do := func(ctx context.Context, req interface{}) ([]byte, error) {
		rsp, err := srv.(GatewayWebsocketServer).SetWallet(ctx, req.(*SetWalletReq))
		if err != nil {
			return nil, err
		}
		return json.Marshal(rsp)
	}
	if interceptor == nil {
		return do(ctx, in)
	}
	info := &websocket.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/gateway.v1.Gateway/SetWallet",
	}
	return interceptor(ctx, in, info, do)
}

func _Gateway_PlayGame_Handler(srv interface{}, ctx context.Context, data []byte, interceptor websocket.UnaryServerInterceptor) ([]byte, error) {
	in := new(PlayGameReq)
	if err := unmarshal(data, in); err != nil {
		return nil, err
	}
	do := func(ctx context.Context, req interface{}) ([]byte, error) {
		rsp, err := srv.(GatewayWebsocketServer).PlayGame(ctx, req.(*PlayGameReq))
		if err != nil {
			return nil, err
		}
		return json.Marshal(rsp)
	}
	if interceptor == nil {
		return do(ctx, in)
	}
	info := &websocket.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/gateway.v1.Gateway/PlayGame",
	}
	return interceptor(ctx, in, info, do)
}

func _Gateway_QuitGame_Handler(srv interface{}, ctx context.Context, data []byte, interceptor websocket.UnaryServerInterceptor) ([]byte, error) {
	in := new(QuitGameReq)
	if err := unmarshal(data, in); err != nil {
		return nil, err
	}
	do := func(ctx context.Context, req interface{}) ([]byte, error) {
		rsp, err := srv.(GatewayWebsocketServer).QuitGame(ctx, req.(*QuitGameReq))
		if err != nil {
			return nil, err
		}
		return json.Marshal(rsp)
	}
	if interceptor == nil {
		return do(ctx, in)
	}
	info := &websocket.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/gateway.v1.Gateway/QuitGame",
	}
	return interceptor(ctx, in, info, do)
}

func _Gateway_Chat_Handler(srv interface{}, ctx context.Context, data []byte, interceptor websocket.UnaryServerInterceptor) ([]byte, error) {
	in := new(ChatReq)
	if err := unmarshal(data, in); err != nil {
		return nil, err
	}
	do := func(ctx context.Context, req interface{}) ([]byte, error) {
		rsp, err := srv.(GatewayWebsocketServer).Chat(ctx, req.(*ChatReq))
		if err != nil {
			return nil, err
		}
		return json.Marshal(rsp)
	}
	if interceptor == nil {
		return do(ctx, in)
	}
	info := &websocket.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/gateway.v1.Gateway/Chat",
	}
	return interceptor(ctx, in, info, do)
}

func _Gateway_ClickDeck_Handler(srv interface{}, ctx context.Context, data []byte, interceptor websocket.UnaryServerInterceptor) ([]byte, error) {
	in := new(ClickDeckReq)
	if err := unmarshal(data, in); err != nil {
		return nil, err
	}
	do := func(ctx context.Context, req interface{}) ([]byte, error) {
		rsp, err := srv.(GatewayWebsocketServer).ClickDeck(ctx, req.(*ClickDeckReq))
		if err != nil {
			return nil, err
		}
		return json.Marshal(rsp)
	}
	if interceptor == nil {
		return do(ctx, in)
	}
	info := &websocket.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/gateway.v1.Gateway/ClickDeck",
	}
	return interceptor(ctx, in, info, do)
}

func _Gateway_ClickTable_Handler(srv interface{}, ctx context.Context, data []byte, interceptor websocket.UnaryServerInterceptor) ([]byte, error) {
	in := new(ClickTableReq)
	if err := unmarshal(data, in); err != nil {
		return nil, err
	}
	do := func(ctx context.Context, req interface{}) ([]byte, error) {
		rsp, err := srv.(GatewayWebsocketServer).ClickTable(ctx, req.(*ClickTableReq))
		if err != nil {
			return nil, err
		}
		return json.Marshal(rsp)
	}
	if interceptor == nil {
		return do(ctx, in)
	}
	info := &websocket.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/gateway.v1.Gateway/ClickTable",
	}
	return interceptor(ctx, in, info, do)
}

func _Gateway_Logout_Handler(srv interface{}, ctx context.Context, data []byte, interceptor websocket.UnaryServerInterceptor) ([]byte, error) {
	in := new(LogoutReq)
	if err := unmarshal(data, in); err != nil {
		return nil, err
	}
	do := func(ctx context.Context, req interface{}) ([]byte, error) {
		rsp, err := srv.(GatewayWebsocketServer).Logout(ctx, req.(*LogoutReq))
		if err != nil {
			return nil, err
		}
		return json.Marshal(rsp)
	}
	if interceptor == nil {
		return do(ctx, in)
	}
	info := &websocket.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/gateway.v1.Gateway/Logout",
	}
	return interceptor(ctx, in, info, do)
}

var GatewayServiceDesc = websocket.ServiceDesc{
	ServiceName: "gateway.v1.Gateway",
	HandlerType: (*GatewayWebsocketServer)(nil),
	Methods: []websocket.MethodDesc{
		{Ops: CmdSetWalletReq, MethodName: "SetWallet", Handler: _Gateway_SetWallet_Handler},
		{Ops: CmdPlayGameReq, MethodName: "PlayGame", Handler: _Gateway_PlayGame_Handler},
		{Ops: CmdQuitGameReq, MethodName: "QuitGame", Handler: _Gateway_QuitGame_Handler},
		{Ops: CmdChatReq, MethodName: "Chat", Handler: _Gateway_Chat_Handler},
		{Ops: CmdClickDeckReq, MethodName: "ClickDeck", Handler: _Gateway_ClickDeck_Handler},
		{Ops: CmdClickTableReq, MethodName: "ClickTable", Handler: _Gateway_ClickTable_Handler},
		{Ops: CmdLogoutReq, MethodName: "Logout", Handler: _Gateway_Logout_Handler},
	},
}

// RegisterGatewayWebsocketServer registers the gateway service.
func RegisterGatewayWebsocketServer(s *websocket.Server, srv GatewayWebsocketServer, onOpen, onClose func(session *websocket.Session)) {
	s.RegisterService(&GatewayServiceDesc, srv, onOpen, onClose)
}
