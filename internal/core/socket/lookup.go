package socket

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/internal/core/table"
	"github.com/dep2p/go-dice/pkg/types"
)

// ============================================================================
//                              查找
// ============================================================================

// Lookup 返回 id 当前已知的最佳记录，路由表中没有时执行迭代查找
func (s *Socket) Lookup(ctx context.Context, id types.DiceAddress) (*record.Node, error) {
	if n, ok := s.table.Get(id); ok {
		return n, nil
	}
	if !s.opened() {
		return nil, ErrNotOpen
	}
	l, err := s.lookup(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if l.found == nil {
		return nil, &TraversalError{Op: "lookup", Target: id, Err: ErrNodeNotFound}
	}
	return l.found, nil
}

// FindClosest 迭代查找距 id 最近的节点
func (s *Socket) FindClosest(ctx context.Context, id types.DiceAddress) ([]*record.Node, error) {
	if !s.opened() {
		return nil, ErrNotOpen
	}
	l, err := s.lookup(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return l.closest(), nil
}

// lookupState 一次查找的共享状态，由并发的查找链读写
type lookupState struct {
	s      *Socket
	target types.DiceAddress
	exact  bool
	size   int

	mu         sync.Mutex
	candidates []*record.Node
	seen       map[types.DiceAddress]struct{}
	queried    map[types.DiceAddress]struct{}
	found      *record.Node
}

func (s *Socket) lookup(ctx context.Context, target types.DiceAddress, exact bool) (*lookupState, error) {
	seeds := s.table.ListClosestTo(target, s.cfg.LookupResultSize)
	if len(seeds) == 0 {
		return nil, ErrNoPeers
	}

	l := &lookupState{
		s:       s,
		target:  target,
		exact:   exact,
		size:    s.cfg.LookupResultSize,
		seen:    make(map[types.DiceAddress]struct{}),
		queried: make(map[types.DiceAddress]struct{}),
	}
	l.merge(seeds)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.LookupConcurrency; i++ {
		g.Go(func() error {
			l.chain(gctx, cancel)
			return nil
		})
	}
	_ = g.Wait()

	log.Debug("lookup finished", "target", target.ShortString(), "found", l.found != nil, "candidates", len(l.candidates), "queried", len(l.queried))
	return l, nil
}

// chain 反复询问最近的未询问节点，直到最近候选不再改善
func (l *lookupState) chain(ctx context.Context, found context.CancelFunc) {
	for ctx.Err() == nil {
		n, best, ok := l.next()
		if !ok {
			return
		}
		nodes, err := l.s.listNodes(ctx, n, l.target)
		if err != nil {
			log.Debug("lookup query failed", "peer", n.DiceAddress().ShortString(), "err", err)
			continue
		}
		l.merge(append(nodes, n))
		if l.done() {
			found()
			return
		}
		if l.nearest() == best {
			return
		}
	}
}

// next 取出最近的未询问候选，并返回当前最近候选的身份
func (l *lookupState) next() (*record.Node, types.DiceAddress, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var best types.DiceAddress
	if len(l.candidates) > 0 {
		best = l.candidates[0].DiceAddress()
	}
	for _, n := range l.candidates {
		id := n.DiceAddress()
		if _, ok := l.queried[id]; ok {
			continue
		}
		l.queried[id] = struct{}{}
		return n, best, true
	}
	return nil, best, false
}

// merge 合并新候选：按身份去重，按距离排序，保留前 size 个
func (l *lookupState) merge(nodes []*record.Node) {
	l.mu.Lock()
	defer l.mu.Unlock()
	self := l.s.DiceAddress()
	for _, n := range nodes {
		id := n.DiceAddress()
		if id == self || !n.Routable() || !l.s.allowed(n) {
			continue
		}
		if id == l.target {
			if l.found == nil || record.IsNewerThan(n, l.found) {
				l.found = n
			}
		}
		if _, ok := l.seen[id]; ok {
			continue
		}
		l.seen[id] = struct{}{}
		l.candidates = append(l.candidates, n)
	}
	table.SortByDistance(l.candidates, l.target)
	if len(l.candidates) > l.size {
		l.candidates = l.candidates[:l.size]
	}
}

func (l *lookupState) done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exact && l.found != nil
}

func (l *lookupState) nearest() types.DiceAddress {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.candidates) == 0 {
		return types.DiceAddress{}
	}
	return l.candidates[0].DiceAddress()
}

func (l *lookupState) closest() []*record.Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*record.Node(nil), l.candidates...)
}

// listNodes 向 n 请求距 target 最近的记录
func (s *Socket) listNodes(ctx context.Context, n *record.Node, target types.DiceAddress) ([]*record.Node, error) {
	body := message.ListNodes{
		TransactionID: types.NewTransactionID(),
		Target:        target,
		Limit:         uint64(s.cfg.LookupResultSize),
	}
	a := Assertions{Tags: []message.Tag{message.TagListNodesResponse}, From: n.DiceAddress()}
	in, err := s.request(ctx, n, body, a)
	if err != nil {
		return nil, err
	}
	resp, _ := in.Msg.Body.(message.ListNodesResponse)
	return resp.Nodes, nil
}
