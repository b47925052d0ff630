package record

import (
	"fmt"

	"github.com/dep2p/go-dice/internal/core/codec"
	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/keys"
)

// Decode 解析完整编码并验证签名
func Decode(b []byte) (*Node, error) {
	r := codec.NewReader(b)
	n := decode(r)
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := n.PublicKey(); err != nil {
		return nil, err
	}
	return n, nil
}

func decode(r *codec.Reader) *Node {
	start := r.Offset()

	var f Fields
	f.SequenceNumber = r.Uvarint()
	f.Generation = r.Uvarint()
	f.IsDisabled = r.Bool()
	count := r.Count(MaxEndpoints)
	for i := 0; i < count && r.Err() == nil; i++ {
		if e := endpoint.Decode(r); e != nil {
			f.Endpoints = append(f.Endpoints, e)
		}
	}
	if r.Err() != nil {
		return nil
	}
	bodyLen := r.Offset() - start

	var sig keys.RSignature
	sig.RecoveryBit = r.Byte()
	r.Fixed(sig.Signature[:])
	if r.Err() != nil {
		return nil
	}

	n := &Node{fields: f, rSignature: sig}
	n.body = encodeBody(f)
	if len(n.body) != bodyLen {
		r.Fail(fmt.Errorf("%w: non-canonical body", ErrMalformed))
		return nil
	}
	n.hash = keys.Sum(n.body)
	n.finish()
	return n
}
