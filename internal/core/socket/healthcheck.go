package socket

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/pkg/types"
)

// ============================================================================
//                              节点健康检查
// ============================================================================

// HealthcheckNode 重新测量已发布端点的外部地址
//
// 测量结果与记录不一致、或连续失败达到阈值时完整重新引导；
// 重新引导失败才通过 error 事件报告。上一轮未结束时直接跳过。
func (s *Socket) HealthcheckNode(ctx context.Context) error {
	if !s.opened() {
		return ErrNotOpen
	}
	if !s.nodeCheck.CompareAndSwap(false, true) {
		return nil
	}
	defer s.nodeCheck.Store(false)

	err := s.checkNode(ctx)
	s.metrics.Healthcheck("node", err == nil)
	if err == nil {
		s.nodeFailures.Store(0)
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, ErrClosed) {
		return err
	}

	failures := s.nodeFailures.Add(1)
	if !errors.Is(err, ErrCapabilityChanged) && int(failures) < s.cfg.FailureThreshold {
		log.Debug("node healthcheck failed", "failures", failures, "err", err)
		return err
	}

	log.Info("re-bootstrapping", "reason", err)
	s.nodeFailures.Store(0)
	if berr := s.Bootstrap(ctx); berr != nil {
		log.Warn("re-bootstrap failed", "err", berr)
		s.emitError("bootstrap", berr)
		return berr
	}
	return nil
}

// checkNode 对每个已发布端点反射一次并比较地址
func (s *Socket) checkNode(ctx context.Context) error {
	local := s.Node()
	if local.IsDisabled() || len(local.Endpoints()) == 0 {
		return fmt.Errorf("%w: not bootstrapped", ErrCapabilityChanged)
	}
	mapped := s.mappedAddr()
	for _, e := range local.Endpoints() {
		reflector, ok := endpoint.RelayOf(e)
		if !ok {
			reflector, ok = s.reflectorFor(endpoint.Family(e))
			if !ok {
				continue
			}
		}
		observed, _, err := s.reflect(ctx, reflector)
		if err != nil {
			return err
		}
		if _, direct := e.(endpoint.Direct); direct && e.Address() == mapped {
			// 映射地址不会出现在反射结果中
			continue
		}
		if observed != e.Address() {
			return fmt.Errorf("%w: %s observed as %s", ErrCapabilityChanged, e, observed)
		}
	}
	return nil
}

// reflectorFor 最近的指定地址族 Direct 节点地址，没有时使用引导节点
func (s *Socket) reflectorFor(f types.IPFamily) (types.NetworkAddress, bool) {
	for _, n := range s.directNodes(f, types.DiceAddress{}) {
		if a, ok := n.DirectAddress(f); ok {
			return a, true
		}
	}
	for _, a := range s.cfg.BootstrapPeers {
		if a.Family() == f {
			return a, true
		}
	}
	return types.NetworkAddress{}, false
}

// ============================================================================
//                              覆盖网络健康检查
// ============================================================================

// HealthcheckOverlay ping 最近未联系过的表项，失败者移出路由表；表空时重新引导
func (s *Socket) HealthcheckOverlay(ctx context.Context) error {
	if !s.opened() {
		return ErrNotOpen
	}
	if !s.overlayCheck.CompareAndSwap(false, true) {
		return nil
	}
	defer s.overlayCheck.Store(false)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.HealthcheckConcurrency)
	for _, n := range s.table.Nodes() {
		id := n.DiceAddress()
		if s.contacts.Has(id.Hex()) {
			continue
		}
		g.Go(func() error {
			_, err := s.Ping(gctx, n)
			if err != nil && (gctx.Err() != nil || errors.Is(err, ErrClosed) || errors.Is(err, ErrAborted)) {
				return nil
			}
			s.metrics.Healthcheck("overlay", err == nil)
			if err == nil {
				return nil
			}
			if s.table.Remove(id) {
				s.metrics.Evicted()
				log.Info("evicted unresponsive node", "peer", id.ShortString(), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.table.Size() > 0 || ctx.Err() != nil {
		return nil
	}
	log.Info("routing table empty, re-bootstrapping")
	if err := s.Bootstrap(ctx); err != nil {
		log.Warn("re-bootstrap failed", "err", err)
		s.emitError("bootstrap", err)
		return err
	}
	return nil
}
