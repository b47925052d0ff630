package table

import (
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/pkg/types"
)

// bucket 单个 k 桶，节点按评分降序，同分按加入先后
//
// 由 Table 的锁保护。
type bucket struct {
	nodes []*record.Node
}

func (b *bucket) indexOf(id types.DiceAddress) int {
	for i, n := range b.nodes {
		if n.DiceAddress() == id {
			return i
		}
	}
	return -1
}

// insert 放到同分节点之后
func (b *bucket) insert(n *record.Node) {
	score := n.Score()
	pos := len(b.nodes)
	for i, existing := range b.nodes {
		if existing.Score() < score {
			pos = i
			break
		}
	}
	b.nodes = append(b.nodes, nil)
	copy(b.nodes[pos+1:], b.nodes[pos:])
	b.nodes[pos] = n
}

func (b *bucket) removeAt(i int) *record.Node {
	n := b.nodes[i]
	b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
	return n
}

// lowest 评分最低的条目（同分时取最后加入的）
func (b *bucket) lowest() int {
	return len(b.nodes) - 1
}

func (b *bucket) snapshot() []*record.Node {
	return append([]*record.Node(nil), b.nodes...)
}
