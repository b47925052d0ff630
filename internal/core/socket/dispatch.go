package socket

import (
	"context"
	"errors"

	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/eventbus"
	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/internal/core/metrics"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/internal/core/stun"
	"github.com/dep2p/go-dice/internal/core/transport"
	"github.com/dep2p/go-dice/pkg/types"
)

// handlePacket 入站数据报入口
//
// 格式错误或签名无效的数据报被静默丢弃，不向对端回任何错误。
func (s *Socket) handlePacket(p transport.Packet) {
	if stun.IsMessage(p.Data) {
		s.handleSTUN(p)
		return
	}
	if !message.IsMessage(p.Data) {
		s.drop(metrics.DropMalformed, p.From, nil)
		return
	}
	msg, err := message.Decode(p.Data)
	if err != nil {
		reason := metrics.DropMalformed
		if errors.Is(err, message.ErrInvalidSignature) {
			reason = metrics.DropSignature
		}
		s.drop(reason, p.From, err)
		return
	}
	s.handleMessage(Inbound{Msg: msg, Remote: p.From})
}

func (s *Socket) drop(reason string, from types.NetworkAddress, err error) {
	s.metrics.Dropped(reason)
	log.Debug("dropped datagram", "reason", reason, "from", from, "err", err)
}

// handleMessage 按消息体标签分发
func (s *Socket) handleMessage(in Inbound) {
	sender := in.Msg.Node
	from := sender.DiceAddress()
	if from.IsZero() || from == s.DiceAddress() {
		s.drop(metrics.DropUnexpected, in.Remote, nil)
		return
	}
	s.metrics.MessageReceived(in.Msg.Body.Tag().String(), len(in.Msg.Bytes()))

	s.ingest(sender)
	// 签名信封可被重放，来源地址只在与发送方记录一致时可信
	if !in.Relayed && !s.forwarded(in.Msg.Body) && publishes(sender, in.Remote) {
		s.contacts.Set(from.Hex(), in.Remote)
	}

	ctx := s.ctx
	switch body := in.Msg.Body.(type) {
	case message.Noop:
	case message.Ping:
		s.reply(ctx, in, message.PingResponse{TransactionID: body.TransactionID})
	case message.Reflect:
		if in.Relayed {
			s.reply(ctx, in, message.Response{TransactionID: body.TransactionID, Code: message.CodeBadRequest})
			return
		}
		s.reply(ctx, in, message.ReflectResponse{TransactionID: body.TransactionID, Address: in.Remote})
	case message.Punch:
		if body.Target != s.DiceAddress() {
			s.forwardTraversal(ctx, in, body.TransactionID, body.Target, body.Source.Family())
			return
		}
		s.answerTraversal(ctx, body.Source, message.PunchResponse{TransactionID: body.TransactionID})
	case message.Reveal:
		if body.Target != s.DiceAddress() {
			s.forwardTraversal(ctx, in, body.TransactionID, body.Target, body.Source.Family())
			return
		}
		s.answerTraversal(ctx, body.Source, message.RevealResponse{TransactionID: body.TransactionID})
	case message.ListNodes:
		s.handleListNodes(ctx, in, body)
	case message.PutData:
		s.emitters.data.Emit(eventbus.EvtData{
			From:    sender,
			Remote:  in.Remote,
			Payload: body.Payload,
			Relayed: in.Relayed,
		})
	case message.Relay:
		s.handleRelay(ctx, in, body)
	case message.ListNodesResponse:
		for _, n := range body.Nodes {
			s.ingest(n)
		}
		s.resolveOrDrop(in)
	case message.PingResponse, message.ReflectResponse, message.PunchResponse,
		message.RevealResponse, message.Response:
		s.resolveOrDrop(in)
	}
}

// forwarded 数据报是否由中继原样转来：此时来源地址是中继而非签名者
func (s *Socket) forwarded(b message.Body) bool {
	self := s.DiceAddress()
	switch body := b.(type) {
	case message.Relay:
		return body.Target == self
	case message.Punch:
		return body.Target == self
	case message.Reveal:
		return body.Target == self
	}
	return false
}

func (s *Socket) resolveOrDrop(in Inbound) {
	if !s.resolve(in) {
		s.drop(metrics.DropUnexpected, in.Remote, nil)
	}
}

// publishes n 的记录中是否有端点地址为 a
func publishes(n *record.Node, a types.NetworkAddress) bool {
	for _, e := range n.Endpoints() {
		if e.Address() == a {
			return true
		}
	}
	return false
}

// ingest 把记录并入路由表：已有则按序更新，否则尝试加入
func (s *Socket) ingest(n *record.Node) {
	id := n.DiceAddress()
	if id.IsZero() || id == s.DiceAddress() {
		return
	}
	if !s.allowed(n) {
		return
	}
	for _, e := range n.Endpoints() {
		if d, ok := e.(endpoint.Direct); ok {
			s.addresses.Set(d.Addr.String(), d.Addr)
		}
	}
	if s.table.Has(id) {
		s.table.Update(n)
		return
	}
	s.table.Add(n)
}

// allowed 记录至少有一个端点通过白名单；没有端点的禁用记录总是允许，以便移除旧条目
func (s *Socket) allowed(n *record.Node) bool {
	eps := n.Endpoints()
	if len(eps) == 0 {
		return true
	}
	for _, e := range eps {
		if s.cfg.Filter.Allows(e) {
			return true
		}
	}
	return false
}

// reply 回应请求：直接到达的回到来源地址，经中继到达的按路由回给发送方
//
// 路由可能需要先打洞或 reveal 并等待应答，因此不能占用读循环。
func (s *Socket) reply(ctx context.Context, in Inbound, body message.Body) {
	if !in.Relayed {
		if err := s.sendTo(ctx, in.Remote, body); err != nil {
			log.Debug("reply failed", "to", in.From().ShortString(), "tag", body.Tag(), "err", err)
		}
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.route(ctx, in.Msg.Node, body); err != nil {
			log.Debug("routed reply failed", "to", in.From().ShortString(), "tag", body.Tag(), "err", err)
		}
	}()
}

// answerTraversal 目标直接向请求方地址应答，同时打开本端 NAT 映射
func (s *Socket) answerTraversal(ctx context.Context, to types.NetworkAddress, body message.Body) {
	if !to.IsValid() {
		return
	}
	if err := s.sendTo(ctx, to, body); err != nil {
		log.Debug("traversal answer failed", "to", to, "tag", body.Tag(), "err", err)
	}
}

// forwardTraversal 作为中继把 punch/reveal 原样转给目标
func (s *Socket) forwardTraversal(ctx context.Context, in Inbound, id types.TransactionID, target types.DiceAddress, family types.IPFamily) {
	if in.Relayed {
		s.drop(metrics.DropUnexpected, in.Remote, nil)
		return
	}
	if !s.limiter.allow(in.From()) {
		s.metrics.Dropped(metrics.DropRateLimited)
		s.reply(ctx, in, message.Response{TransactionID: id, Code: message.CodeRateLimited})
		return
	}
	n, ok := s.table.Get(target)
	if !ok {
		s.metrics.Relayed(false)
		s.reply(ctx, in, message.Response{TransactionID: id, Code: message.CodeNotFound})
		return
	}
	to, ok := s.forwardAddress(n, family)
	if !ok {
		s.metrics.Relayed(false)
		s.reply(ctx, in, message.Response{TransactionID: id, Code: message.CodeNotFound})
		return
	}
	if err := s.sendRaw(ctx, to, in.Msg.Bytes(), in.Msg.Body.Tag()); err != nil {
		s.metrics.Relayed(false)
		log.Debug("forward failed", "target", target.ShortString(), "err", err)
		return
	}
	s.metrics.Relayed(true)
}

// forwardAddress 中继转发时使用的目标地址：优先最近收到其消息的来源地址
func (s *Socket) forwardAddress(n *record.Node, family types.IPFamily) (types.NetworkAddress, bool) {
	if a, ok := s.contacts.Get(n.DiceAddress().Hex()); ok {
		return a, true
	}
	if e, ok := n.EndpointFor(family); ok {
		return e.Address(), true
	}
	for _, e := range n.Endpoints() {
		if containsFamily(s.families(), endpoint.Family(e)) {
			return e.Address(), true
		}
	}
	return types.NetworkAddress{}, false
}

func (s *Socket) handleListNodes(ctx context.Context, in Inbound, body message.ListNodes) {
	limit := s.cfg.LookupResultSize
	if body.Limit > 0 && int(body.Limit) < limit {
		limit = int(body.Limit)
	}
	if limit > message.MaxListNodes {
		limit = message.MaxListNodes
	}

	var nodes []*record.Node
	for _, n := range s.table.ListClosestTo(body.Target, limit+1) {
		if n.DiceAddress() == in.From() {
			continue
		}
		nodes = append(nodes, n)
		if len(nodes) == limit {
			break
		}
	}

	resp := message.ListNodesResponse{TransactionID: body.TransactionID, Nodes: nodes}
	// 记录较多时可能超过单条消息上限，逐个减少直到能编码
	for {
		data, err := s.encode(resp)
		if err == nil {
			s.replyRaw(ctx, in, data, resp)
			return
		}
		if !errors.Is(err, message.ErrTooLarge) || len(resp.Nodes) == 0 {
			log.Debug("listNodes reply failed", "err", err)
			return
		}
		resp.Nodes = resp.Nodes[:len(resp.Nodes)-1]
	}
}

func (s *Socket) replyRaw(ctx context.Context, in Inbound, data []byte, body message.Body) {
	if in.Relayed {
		s.reply(ctx, in, body)
		return
	}
	if err := s.sendRaw(ctx, in.Remote, data, body.Tag()); err != nil {
		log.Debug("reply failed", "to", in.From().ShortString(), "tag", body.Tag(), "err", err)
	}
}

// handleRelay 目标是自己时解出内层消息处理，否则作为中继转发
func (s *Socket) handleRelay(ctx context.Context, in Inbound, body message.Relay) {
	if in.Relayed {
		s.drop(metrics.DropUnexpected, in.Remote, nil)
		return
	}

	if body.Target == s.DiceAddress() {
		inner, err := message.Decode(body.Message)
		if err != nil {
			s.drop(metrics.DropMalformed, in.Remote, err)
			return
		}
		if _, nested := inner.Body.(message.Relay); nested {
			s.drop(metrics.DropUnexpected, in.Remote, nil)
			return
		}
		s.handleMessage(Inbound{Msg: inner, Remote: in.Remote, Relayed: true})
		return
	}

	innerID, hasID := innerTransactionID(body.Message)
	if !s.limiter.allow(in.From()) {
		s.metrics.Dropped(metrics.DropRateLimited)
		if hasID {
			s.reply(ctx, in, message.Response{TransactionID: innerID, Code: message.CodeRateLimited})
		}
		return
	}
	n, ok := s.table.Get(body.Target)
	var to types.NetworkAddress
	if ok {
		to, ok = s.forwardAddress(n, in.Remote.Family())
	}
	if !ok {
		s.metrics.Relayed(false)
		if hasID {
			s.reply(ctx, in, message.Response{TransactionID: innerID, Code: message.CodeNotFound})
		}
		return
	}
	if err := s.sendRaw(ctx, to, in.Msg.Bytes(), message.TagRelay); err != nil {
		s.metrics.Relayed(false)
		log.Debug("relay forward failed", "target", body.Target.ShortString(), "err", err)
		return
	}
	s.metrics.Relayed(true)
}

// innerTransactionID 内层请求的 TransactionID，用于向发送方报告转发失败
func innerTransactionID(b []byte) (types.TransactionID, bool) {
	inner, err := message.Decode(b)
	if err != nil || message.IsResponse(inner.Body) {
		return types.TransactionID{}, false
	}
	return message.TransactionIDOf(inner.Body)
}

// handleSTUN 只处理本端发出的 Binding 请求的应答
func (s *Socket) handleSTUN(p transport.Packet) {
	id, addr, err := stun.ParseBindingResponse(p.Data)
	if err != nil {
		s.drop(metrics.DropMalformed, p.From, err)
		return
	}
	s.pendingMu.Lock()
	ch, ok := s.stunPending[id]
	if ok {
		delete(s.stunPending, id)
	}
	s.pendingMu.Unlock()
	if !ok {
		s.drop(metrics.DropUnexpected, p.From, nil)
		return
	}
	ch <- addr
}
