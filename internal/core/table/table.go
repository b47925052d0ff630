package table

import (
	"sort"
	"sync"

	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/internal/util/logger"
	"github.com/dep2p/go-dice/pkg/types"
)

var log = logger.Logger("table")

// DefaultBucketSize 默认桶宽 k
const DefaultBucketSize = 20

// Config 路由表配置
type Config struct {
	// BucketSize 桶宽 k
	BucketSize int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{BucketSize: DefaultBucketSize}
}

// Listener 路由表变更的观察者
//
// 回调在锁外按注册顺序同步调用。
type Listener interface {
	NodeAdded(n *record.Node)
	NodeRemoved(n *record.Node)
	NodeUpdated(old, n *record.Node)
}

// Table 覆盖网络路由表，并发安全
type Table struct {
	local      types.DiceAddress
	bucketSize int

	mu      sync.RWMutex
	buckets [KeyBits]bucket
	depth   map[types.DiceAddress]int

	listenerMu sync.RWMutex
	listeners  []Listener
}

// New 创建以 local 为原点的路由表
func New(local types.DiceAddress, cfg Config) *Table {
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = DefaultBucketSize
	}
	return &Table{
		local:      local,
		bucketSize: cfg.BucketSize,
		depth:      make(map[types.DiceAddress]int),
	}
}

// Local 本地身份
func (t *Table) Local() types.DiceAddress {
	return t.local
}

// BucketSize 桶宽
func (t *Table) BucketSize() int {
	return t.bucketSize
}

// AddListener 注册观察者
func (t *Table) AddListener(l Listener) {
	t.listenerMu.Lock()
	t.listeners = append(t.listeners, l)
	t.listenerMu.Unlock()
}

// Depth 身份所在桶的深度（与本地身份的共同前缀位数）
func (t *Table) Depth(id types.DiceAddress) int {
	return CommonPrefixLen(t.local, id)
}

// Add 加入新节点
//
// 已存在、不可路由、是本地身份或桶满且评分不高于桶内最低分时返回 false。
// 桶满而新节点评分更高时淘汰评分最低的条目。
func (t *Table) Add(n *record.Node) bool {
	id := n.DiceAddress()
	if id.IsZero() || id == t.local || !n.Routable() {
		return false
	}

	t.mu.Lock()
	if _, ok := t.depth[id]; ok {
		t.mu.Unlock()
		return false
	}

	d := t.Depth(id)
	b := &t.buckets[d]
	var evicted *record.Node
	if len(b.nodes) >= t.bucketSize {
		low := b.lowest()
		if n.Score() <= b.nodes[low].Score() {
			t.mu.Unlock()
			return false
		}
		evicted = b.removeAt(low)
		delete(t.depth, evicted.DiceAddress())
	}
	b.insert(n)
	t.depth[id] = d
	t.mu.Unlock()

	if evicted != nil {
		log.Debug("evicted lower-scored node", "evicted", evicted.DiceAddress().ShortString(), "by", id.ShortString(), "depth", d)
		t.notify(func(l Listener) { l.NodeRemoved(evicted) })
	}
	t.notify(func(l Listener) { l.NodeAdded(n) })
	return true
}

// Update 用严格更新的记录替换已有记录
//
// 身份不在表中或记录不比已有记录新时返回 false，路由表不变。
// 新记录不可路由（已禁用或没有端点）时条目被移除，返回 true。
func (t *Table) Update(n *record.Node) bool {
	id := n.DiceAddress()

	t.mu.Lock()
	d, ok := t.depth[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	b := &t.buckets[d]
	i := b.indexOf(id)
	old := b.nodes[i]
	if !record.IsNewerThan(n, old) {
		t.mu.Unlock()
		return false
	}

	b.removeAt(i)
	if !n.Routable() {
		delete(t.depth, id)
		t.mu.Unlock()
		t.notify(func(l Listener) { l.NodeRemoved(old) })
		return true
	}
	b.insert(n)
	t.mu.Unlock()

	t.notify(func(l Listener) { l.NodeUpdated(old, n) })
	return true
}

// Remove 按身份移除
func (t *Table) Remove(id types.DiceAddress) bool {
	t.mu.Lock()
	d, ok := t.depth[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	b := &t.buckets[d]
	removed := b.removeAt(b.indexOf(id))
	delete(t.depth, id)
	t.mu.Unlock()

	t.notify(func(l Listener) { l.NodeRemoved(removed) })
	return true
}

// Get 按身份查找
func (t *Table) Get(id types.DiceAddress) (*record.Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.depth[id]
	if !ok {
		return nil, false
	}
	b := &t.buckets[d]
	return b.nodes[b.indexOf(id)], true
}

// Has 身份是否在表中
func (t *Table) Has(id types.DiceAddress) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.depth[id]
	return ok
}

// Size 条目总数
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.depth)
}

// Nodes 全部条目，按桶深度从近到远
func (t *Table) Nodes() []*record.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*record.Node, 0, len(t.depth))
	for d := KeyBits - 1; d >= 0; d-- {
		out = append(out, t.buckets[d].nodes...)
	}
	return out
}

// ListClosestTo 返回至多 count 个距 target 最近的条目
//
// 按 XOR 距离升序，距离相同时评分高者在前。
// 桶按距离分层收集：先是 target 所在深度的桶，再是所有更深的桶，
// 然后依次是更浅的桶；凑够 count 的那一层收完即可停止。
func (t *Table) ListClosestTo(target types.DiceAddress, count int) []*record.Node {
	if count <= 0 {
		return nil
	}

	t.mu.RLock()
	d := t.Depth(target)
	var out []*record.Node
	if d < KeyBits {
		out = append(out, t.buckets[d].nodes...)
	}
	if len(out) < count {
		for i := d + 1; i < KeyBits; i++ {
			out = append(out, t.buckets[i].nodes...)
		}
	}
	for i := d - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, t.buckets[i].nodes...)
	}
	out = append([]*record.Node(nil), out...)
	t.mu.RUnlock()

	SortByDistance(out, target)
	if len(out) > count {
		out = out[:count]
	}
	return out
}

// SortByDistance 按到 target 的距离升序排序，同距离评分高者在前
func SortByDistance(nodes []*record.Node, target types.DiceAddress) {
	sort.SliceStable(nodes, func(i, j int) bool {
		c := CompareDistance(nodes[i].DiceAddress(), nodes[j].DiceAddress(), target)
		if c != 0 {
			return c < 0
		}
		return nodes[i].Score() > nodes[j].Score()
	})
}

// IterateFromBucket 从指定深度的桶开始螺旋向外遍历
func (t *Table) IterateFromBucket(depth int) *Iterator {
	if depth < 0 {
		depth = 0
	}
	if depth >= KeyBits {
		depth = KeyBits - 1
	}
	return &Iterator{table: t, start: depth}
}

func (t *Table) bucketSnapshot(depth int) []*record.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buckets[depth].snapshot()
}

func (t *Table) notify(fn func(Listener)) {
	t.listenerMu.RLock()
	listeners := append([]Listener(nil), t.listeners...)
	t.listenerMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("table listener panicked", "panic", r)
				}
			}()
			fn(l)
		}()
	}
}
