package table

import "github.com/dep2p/go-dice/internal/core/record"

// Iterator 惰性、可重置的桶遍历器
//
// 访问顺序为 start, start+1, start-1, start+2, start-2 ...，越界的一侧跳过，
// 两侧都越界时结束。每个桶在第一次访问时取快照。
type Iterator struct {
	table *Table
	start int

	step    int
	current []*record.Node
	pos     int
}

// Next 返回下一个节点
func (it *Iterator) Next() (*record.Node, bool) {
	for it.pos >= len(it.current) {
		depth, ok := it.nextDepth()
		if !ok {
			return nil, false
		}
		it.current = it.table.bucketSnapshot(depth)
		it.pos = 0
	}
	n := it.current[it.pos]
	it.pos++
	return n, true
}

// Reset 回到起点重新遍历
func (it *Iterator) Reset() {
	it.step = 0
	it.current = nil
	it.pos = 0
}

// nextDepth 螺旋序列中下一个合法深度
func (it *Iterator) nextDepth() (int, bool) {
	for {
		// step: 0 -> +0, 1 -> +1, 2 -> -1, 3 -> +2, 4 -> -2 ...
		offset := (it.step + 1) / 2
		if it.step%2 == 0 {
			offset = -offset
		}
		it.step++

		depth := it.start + offset
		if depth >= 0 && depth < KeyBits {
			return depth, true
		}
		if it.start+abs(offset) >= KeyBits && it.start-abs(offset) < 0 {
			return 0, false
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
