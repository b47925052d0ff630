package socket

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/internal/core/stun"
	"github.com/dep2p/go-dice/pkg/types"
)

// ============================================================================
//                              数据
// ============================================================================

// Send 向 id 发送应用数据，路由表中没有时先查找
func (s *Socket) Send(ctx context.Context, id types.DiceAddress, payload []byte) error {
	if !s.opened() {
		return ErrNotOpen
	}
	if len(payload) > message.MaxPayload {
		return ErrPayloadTooLarge
	}
	n, err := s.Lookup(ctx, id)
	if err != nil {
		return err
	}
	return s.SendNode(ctx, n, payload)
}

// SendNode 向已知记录的节点发送应用数据
func (s *Socket) SendNode(ctx context.Context, n *record.Node, payload []byte) error {
	if !s.opened() {
		return ErrNotOpen
	}
	if len(payload) > message.MaxPayload {
		return ErrPayloadTooLarge
	}
	return s.route(ctx, n, message.PutData{Payload: payload})
}

// ============================================================================
//                              探测
// ============================================================================

// Ping 经路由探测节点存活，返回往返时间
func (s *Socket) Ping(ctx context.Context, n *record.Node) (time.Duration, error) {
	if !s.opened() {
		return 0, ErrNotOpen
	}
	start := s.clock.Now()
	body := message.Ping{TransactionID: types.NewTransactionID()}
	a := Assertions{Tags: []message.Tag{message.TagPingResponse}, From: n.DiceAddress()}
	if _, err := s.request(ctx, n, body, a); err != nil {
		return 0, err
	}
	return s.clock.Since(start), nil
}

// PingAddress 直接 ping 一个地址，返回应答方的记录
func (s *Socket) PingAddress(ctx context.Context, addr types.NetworkAddress) (*record.Node, error) {
	if !s.opened() {
		return nil, ErrNotOpen
	}
	body := message.Ping{TransactionID: types.NewTransactionID()}
	in, err := s.requestAddr(ctx, addr, body, Assertions{Tags: []message.Tag{message.TagPingResponse}})
	if err != nil {
		return nil, err
	}
	return in.Msg.Node, nil
}

// reflect 请求 addr 报告观察到的本端地址
func (s *Socket) reflect(ctx context.Context, addr types.NetworkAddress) (types.NetworkAddress, *record.Node, error) {
	body := message.Reflect{TransactionID: types.NewTransactionID()}
	in, err := s.requestAddr(ctx, addr, body, Assertions{Tags: []message.Tag{message.TagReflectResponse}})
	if err != nil {
		return types.NetworkAddress{}, nil, err
	}
	resp, ok := in.Msg.Body.(message.ReflectResponse)
	if !ok || !resp.Address.IsValid() {
		return types.NetworkAddress{}, nil, fmt.Errorf("socket: reflect %s: %w", addr, ErrNoReflector)
	}
	return resp.Address, in.Msg.Node, nil
}

// stunProbe 通过同一个 UDP 套接字向 STUN 服务器发送 Binding 请求
func (s *Socket) stunProbe(ctx context.Context, server types.NetworkAddress) (types.NetworkAddress, error) {
	id, req, err := stun.NewBindingRequest()
	if err != nil {
		return types.NetworkAddress{}, err
	}
	ch := make(chan types.NetworkAddress, 1)
	s.pendingMu.Lock()
	s.stunPending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.stunPending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.transport.Send(ctx, req, server); err != nil {
		return types.NetworkAddress{}, err
	}
	s.sent.Set(server.String(), struct{}{})

	timer := s.clock.Timer(s.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case addr := <-ch:
		return addr, nil
	case <-timer.C:
		return types.NetworkAddress{}, &CorrelationError{Kind: CorrelationTimeout}
	case <-ctx.Done():
		return types.NetworkAddress{}, &CorrelationError{Kind: CorrelationAborted, Cause: ctx.Err()}
	case <-s.done():
		return types.NetworkAddress{}, &CorrelationError{Kind: CorrelationClosed}
	}
}
