package socket

import (
	"context"
	"errors"

	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/pkg/types"
)

// ============================================================================
//                              路由
// ============================================================================

// route 按两端端点规划穿透方式并发送 body
//
// 最近直接收到过目标消息时直接回发到该来源地址，NAT 映射此时必然打开。
func (s *Socket) route(ctx context.Context, target *record.Node, body message.Body) error {
	return s.routeWith(ctx, target, body, nil)
}

// routeWith 同 route；经中继发送时先以中继地址调用 onRelay
func (s *Socket) routeWith(ctx context.Context, target *record.Node, body message.Body, onRelay func(types.NetworkAddress)) error {
	id := target.DiceAddress()
	if id == s.DiceAddress() {
		return &TraversalError{Op: "route", Target: id, Err: ErrNoArc}
	}
	data, err := s.encode(body)
	if err != nil {
		return err
	}
	tag := body.Tag()

	if a, ok := s.contacts.Get(id.Hex()); ok {
		return s.sendRaw(ctx, a, data, tag)
	}
	if len(target.Endpoints()) == 0 {
		return &TraversalError{Op: "route", Target: id, Err: ErrNoArc}
	}

	arc, ok := endpoint.FindArc(s.planningEndpoints(), target.Endpoints(), s.cfg.Filter)
	if !ok {
		return s.relay(ctx, target, nil, data, onRelay)
	}

	action := endpoint.Plan(arc.Source, arc.Target)
	log.Debug("route", "target", id.ShortString(), "action", action, "source", arc.Source, "to", arc.Target)
	switch action {
	case endpoint.ActionDirect:
		return s.sendRaw(ctx, arc.Target.Address(), data, tag)
	case endpoint.ActionPunch:
		if err := s.punch(ctx, arc, id); err != nil {
			return &TraversalError{Op: "punch", Target: id, Err: err}
		}
		return s.sendRaw(ctx, arc.Target.Address(), data, tag)
	case endpoint.ActionReveal:
		addr, err := s.reveal(ctx, arc, id)
		if err != nil {
			return &TraversalError{Op: "reveal", Target: id, Err: err}
		}
		return s.sendRaw(ctx, addr, data, tag)
	default:
		return s.relay(ctx, target, arc.Target, data, onRelay)
	}
}

func punchKey(source types.NetworkAddress, target types.DiceAddress) string {
	return source.String() + "/" + target.Hex()
}

func revealKey(target types.DiceAddress, family types.IPFamily) string {
	return target.Hex() + "/" + family.String()
}

// punch 经目标的中继请求目标向本端地址回发 punchResponse
//
// 成功后按 (source, target) 记入 punches，TTL 内不再重复。
func (s *Socket) punch(ctx context.Context, arc endpoint.Arc, target types.DiceAddress) error {
	key := punchKey(arc.Source.Address(), target)
	if s.punches.Has(key) {
		return nil
	}
	relay, ok := endpoint.RelayOf(arc.Target)
	if !ok {
		return ErrNoRelay
	}

	if s.cfg.PunchPriming {
		// 先打开本端 NAT 到目标地址的出站映射
		if err := s.sendTo(ctx, arc.Target.Address(), message.Noop{}); err != nil {
			log.Debug("punch priming failed", "target", target.ShortString(), "err", err)
		}
	}

	body := message.Punch{
		TransactionID: types.NewTransactionID(),
		Target:        target,
		Source:        arc.Source.Address(),
	}
	a := Assertions{Tags: []message.Tag{message.TagPunchResponse}, From: target}
	if _, err := s.requestAddr(ctx, relay, body, a); err != nil {
		return err
	}
	s.punches.Set(key, struct{}{})
	return nil
}

// reveal 经目标的中继请求对称 NAT 目标向本端发 revealResponse，其来源地址即目标为本端分配的地址
func (s *Socket) reveal(ctx context.Context, arc endpoint.Arc, target types.DiceAddress) (types.NetworkAddress, error) {
	key := revealKey(target, endpoint.Family(arc.Target))
	if a, ok := s.reveals.Get(key); ok {
		return a, nil
	}
	relay, ok := endpoint.RelayOf(arc.Target)
	if !ok {
		return types.NetworkAddress{}, ErrNoRelay
	}

	body := message.Reveal{
		TransactionID: types.NewTransactionID(),
		Target:        target,
		Source:        arc.Source.Address(),
	}
	a := Assertions{Tags: []message.Tag{message.TagRevealResponse}, From: target}
	in, err := s.requestAddr(ctx, relay, body, a)
	if err != nil {
		return types.NetworkAddress{}, err
	}
	s.reveals.Set(key, in.Remote)
	return in.Remote, nil
}

// relay 把已签名的 data 包进 relay 消息，经第三方 Direct 节点转发
func (s *Socket) relay(ctx context.Context, target *record.Node, te endpoint.Endpoint, data []byte, onRelay func(types.NetworkAddress)) error {
	id := target.DiceAddress()
	via, ok := s.relayAddress(target, te)
	if !ok {
		return &TraversalError{Op: "relay", Target: id, Err: ErrNoRelay}
	}
	wrapped, err := s.encode(message.Relay{Target: id, Message: data})
	if errors.Is(err, message.ErrTooLarge) {
		return &TraversalError{Op: "relay", Target: id, Err: ErrPayloadTooLarge}
	}
	if err != nil {
		return err
	}
	if onRelay != nil {
		onRelay(via)
	}
	log.Debug("relaying", "target", id.ShortString(), "via", via)
	return s.sendRaw(ctx, via, wrapped, message.TagRelay)
}

// relayAddress 选择转发节点地址
//
// 优先使用目标端点自带的中继；否则在路由表中找一个本端能直达、且与目标有共同地址族的 Direct 节点。
func (s *Socket) relayAddress(target *record.Node, te endpoint.Endpoint) (types.NetworkAddress, bool) {
	families := s.families()
	if te != nil {
		if r, ok := endpoint.RelayOf(te); ok && containsFamily(families, r.Family()) {
			return r, true
		}
	}
	for _, e := range target.Endpoints() {
		if r, ok := endpoint.RelayOf(e); ok && containsFamily(families, r.Family()) {
			return r, true
		}
	}

	var targetFamilies []types.IPFamily
	for _, e := range target.Endpoints() {
		targetFamilies = append(targetFamilies, endpoint.Family(e))
	}
	it := s.table.IterateFromBucket(s.table.Depth(target.DiceAddress()))
	for {
		n, ok := it.Next()
		if !ok {
			break
		}
		if n.DiceAddress() == target.DiceAddress() {
			continue
		}
		if via, ok := directBridge(n, families, targetFamilies); ok {
			return via, true
		}
	}
	return types.NetworkAddress{}, false
}

// directBridge n 是否同时有本端可达的 Direct 端点和目标地址族的 Direct 端点
func directBridge(n *record.Node, ours, theirs []types.IPFamily) (types.NetworkAddress, bool) {
	var via types.NetworkAddress
	reachable, bridges := false, false
	for _, e := range n.Endpoints() {
		d, ok := e.(endpoint.Direct)
		if !ok {
			continue
		}
		f := d.Addr.Family()
		if !reachable && containsFamily(ours, f) {
			via, reachable = d.Addr, true
		}
		if containsFamily(theirs, f) {
			bridges = true
		}
	}
	return via, reachable && bridges
}
