package record

import (
	"bytes"

	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/keys"
)

// Patch 记录的部分更新，nil 字段保持原值
//
// Endpoints 为 nil 表示不变，传入空切片表示清空。
type Patch struct {
	Endpoints      []endpoint.Endpoint
	SequenceNumber *uint64
	Generation     *uint64
	IsDisabled     *bool
}

// Update 合并 patch 并重新签名
//
// 合并后的编码与原记录相同时直接返回原记录。
// 否则 sequenceNumber 加一，除非 patch 显式指定了 sequenceNumber 或 generation；
// 指定新 generation 而未指定 sequenceNumber 时序号归零。
func Update(n *Node, p Patch, k *keys.Keys) (*Node, error) {
	pub, err := n.PublicKey()
	if err != nil {
		return nil, err
	}
	if pub != k.PublicKey() {
		return nil, ErrIdentityMismatch
	}

	f := n.Fields()
	explicit := false
	if p.Endpoints != nil {
		f.Endpoints = p.Endpoints
	}
	if p.IsDisabled != nil {
		f.IsDisabled = *p.IsDisabled
	}
	if p.Generation != nil {
		if *p.Generation != f.Generation {
			f.SequenceNumber = 0
		}
		f.Generation = *p.Generation
		explicit = true
	}
	if p.SequenceNumber != nil {
		f.SequenceNumber = *p.SequenceNumber
		explicit = true
	}
	if err := validate(f); err != nil {
		return nil, err
	}

	if bytes.Equal(encodeBody(f), n.body) {
		return n, nil
	}
	if !explicit {
		f.SequenceNumber = n.fields.SequenceNumber + 1
	}
	return Create(f, k)
}

// Ptr 取地址的小工具，便于构造 Patch
func Ptr[T any](v T) *T {
	return &v
}
