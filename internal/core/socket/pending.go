package socket

import (
	"context"
	"time"

	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/pkg/types"
)

// Inbound 一条已验证的入站消息
type Inbound struct {
	Msg *message.Message

	// Remote 数据报的直接来源；经中继时为中继地址
	Remote types.NetworkAddress

	// Relayed 是否从 relay 消息中解出
	Relayed bool
}

// From 发送方身份
func (in Inbound) From() types.DiceAddress {
	return in.Msg.Node.DiceAddress()
}

// Assertions 应答必须满足的条件
//
// 通用 response 消息不受 Tags 约束，但只接受失败码：中继以它报告转发失败，
// 成功只能由带标签的应答证明。失败应答须来自 From，或直接来自请求发往的地址 Via。
type Assertions struct {
	// Tags 可接受的应答标签，空表示任意
	Tags []message.Tag

	// From 非零时应答必须来自该身份
	From types.DiceAddress

	// Via 请求实际发往的地址；requestAddr 与中继路由会自动填写
	Via types.NetworkAddress
}

func (a Assertions) match(in Inbound) bool {
	if r, ok := in.Msg.Body.(message.Response); ok {
		return !r.Code.OK() && a.failureFrom(in)
	}
	if len(a.Tags) > 0 {
		ok := false
		for _, t := range a.Tags {
			if t == in.Msg.Body.Tag() {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return a.From.IsZero() || a.From == in.From()
}

// failureFrom 失败应答是否来自可信的一方
func (a Assertions) failureFrom(in Inbound) bool {
	if !a.From.IsZero() && a.From == in.From() {
		return true
	}
	if a.Via.IsValid() {
		return !in.Relayed && in.Remote == a.Via
	}
	return a.From.IsZero()
}

type pendingRequest struct {
	id     types.TransactionID
	assert Assertions
	ch     chan Inbound
}

// register 注册一次性等待；同一 TransactionID 同时只允许一个
func (s *Socket) register(id types.TransactionID, a Assertions) (*pendingRequest, error) {
	key := id.Hex()
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if _, ok := s.pending[key]; ok {
		return nil, ErrDuplicateTransaction
	}
	p := &pendingRequest{id: id, assert: a, ch: make(chan Inbound, 1)}
	s.pending[key] = p
	s.metrics.SetPending(len(s.pending))
	return p, nil
}

// setVia 记录请求实际经过的第一跳
func (s *Socket) setVia(p *pendingRequest, via types.NetworkAddress) {
	s.pendingMu.Lock()
	p.assert.Via = via
	s.pendingMu.Unlock()
}

func (s *Socket) unregister(p *pendingRequest) {
	key := p.id.Hex()
	s.pendingMu.Lock()
	if cur, ok := s.pending[key]; ok && cur == p {
		delete(s.pending, key)
	}
	s.metrics.SetPending(len(s.pending))
	s.pendingMu.Unlock()
}

// resolve 把应答交给匹配的等待者；不匹配断言的应答被忽略，等待继续
//
// 本端发起的交换完成后才记住对端的来源地址。
func (s *Socket) resolve(in Inbound) bool {
	id, ok := message.TransactionIDOf(in.Msg.Body)
	if !ok {
		return false
	}
	key := id.Hex()

	s.pendingMu.Lock()
	p, ok := s.pending[key]
	if !ok || !p.assert.match(in) {
		s.pendingMu.Unlock()
		return false
	}
	delete(s.pending, key)
	s.metrics.SetPending(len(s.pending))
	s.pendingMu.Unlock()

	if !in.Relayed {
		s.contacts.Set(in.From().Hex(), in.Remote)
	}
	p.ch <- in
	return true
}

// wait 等待应答；超时、ctx 取消、引擎关闭时返回 *CorrelationError，退出时总会注销
func (s *Socket) wait(ctx context.Context, p *pendingRequest, timeout time.Duration) (Inbound, error) {
	defer s.unregister(p)
	if timeout <= 0 {
		timeout = s.cfg.RequestTimeout
	}
	timer := s.clock.Timer(timeout)
	defer timer.Stop()

	done := s.done()
	select {
	case in := <-p.ch:
		if r, ok := in.Msg.Body.(message.Response); ok && !r.Code.OK() {
			return in, &ResponseError{Code: r.Code, From: in.From()}
		}
		return in, nil
	case <-timer.C:
		return Inbound{}, &CorrelationError{Kind: CorrelationTimeout, TransactionID: p.id}
	case <-ctx.Done():
		return Inbound{}, &CorrelationError{Kind: CorrelationAborted, TransactionID: p.id, Cause: ctx.Err()}
	case <-done:
		return Inbound{}, &CorrelationError{Kind: CorrelationClosed, TransactionID: p.id}
	}
}

// done 引擎关闭时关闭的通道
func (s *Socket) done() <-chan struct{} {
	return s.ctx.Done()
}

// AwaitResponse 注册并等待 id 的应答，timeout 为 0 时使用默认超时
func (s *Socket) AwaitResponse(ctx context.Context, id types.TransactionID, a Assertions, timeout time.Duration) (Inbound, error) {
	p, err := s.register(id, a)
	if err != nil {
		return Inbound{}, err
	}
	return s.wait(ctx, p, timeout)
}

// PendingCount 挂起的等待数
func (s *Socket) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// HasPending 是否有等待 id 的请求
func (s *Socket) HasPending(id types.TransactionID) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	_, ok := s.pending[id.Hex()]
	return ok
}

// request 注册等待后经路由发送请求
func (s *Socket) request(ctx context.Context, target *record.Node, body message.Body, a Assertions) (Inbound, error) {
	id, _ := message.TransactionIDOf(body)
	p, err := s.register(id, a)
	if err != nil {
		return Inbound{}, err
	}
	onRelay := func(via types.NetworkAddress) { s.setVia(p, via) }
	if err := s.routeWith(ctx, target, body, onRelay); err != nil {
		s.unregister(p)
		return Inbound{}, err
	}
	return s.wait(ctx, p, 0)
}

// requestAddr 注册等待后直接发往地址
func (s *Socket) requestAddr(ctx context.Context, to types.NetworkAddress, body message.Body, a Assertions) (Inbound, error) {
	id, _ := message.TransactionIDOf(body)
	if !a.Via.IsValid() {
		a.Via = to
	}
	p, err := s.register(id, a)
	if err != nil {
		return Inbound{}, err
	}
	if err := s.sendTo(ctx, to, body); err != nil {
		s.unregister(p)
		return Inbound{}, err
	}
	return s.wait(ctx, p, 0)
}
