package record

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/dep2p/go-dice/internal/core/codec"
	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/pkg/types"
)

// MaxEndpoints 一条记录最多携带的端点数
const MaxEndpoints = 8

// Fields 记录的可签名字段
type Fields struct {
	Endpoints      []endpoint.Endpoint
	SequenceNumber uint64
	Generation     uint64
	IsDisabled     bool
}

// Node 已签名的节点记录
//
// 派生数据（body、hash、bytes、checksum）在构造时一起算出；
// 公钥在第一次访问时从签名恢复并缓存。
type Node struct {
	fields     Fields
	rSignature keys.RSignature

	body     []byte
	hash     keys.Hash
	encoded  []byte
	checksum keys.Hash

	pubOnce sync.Once
	pub     keys.PublicKey
	address types.DiceAddress
	pubErr  error
}

// Create 对 fields 签名生成新记录
func Create(f Fields, k *keys.Keys) (*Node, error) {
	if err := validate(f); err != nil {
		return nil, err
	}

	n := &Node{fields: cloneFields(f)}
	n.body = encodeBody(n.fields)
	n.hash = keys.Sum(n.body)
	n.rSignature = k.SignRecoverable(n.hash)
	n.finish()

	// 签名者已知，无需恢复
	n.pubOnce.Do(func() {
		n.pub = k.PublicKey()
		n.address = k.DiceAddress()
	})
	return n, nil
}

func validate(f Fields) error {
	if len(f.Endpoints) > MaxEndpoints {
		return fmt.Errorf("%w: %d > %d", ErrTooManyEndpoints, len(f.Endpoints), MaxEndpoints)
	}
	for _, e := range f.Endpoints {
		if e == nil {
			return ErrNilEndpoint
		}
	}
	return nil
}

func cloneFields(f Fields) Fields {
	out := f
	out.Endpoints = append([]endpoint.Endpoint(nil), f.Endpoints...)
	return out
}

func encodeBody(f Fields) []byte {
	w := codec.NewWriter(16 + 48*len(f.Endpoints))
	w.Uvarint(f.SequenceNumber)
	w.Uvarint(f.Generation)
	w.Bool(f.IsDisabled)
	w.Uvarint(uint64(len(f.Endpoints)))
	for _, e := range f.Endpoints {
		e.Encode(w)
	}
	return w.Bytes()
}

// finish 在 body/hash/rSignature 就绪后计算完整编码与校验和
func (n *Node) finish() {
	w := codec.NewWriter(len(n.body) + 1 + keys.SignatureSize)
	w.Fixed(n.body)
	w.Byte(n.rSignature.RecoveryBit)
	w.Fixed(n.rSignature.Signature[:])
	n.encoded = w.Bytes()
	n.checksum = keys.Sum(n.encoded)
}

// ============================================================================
//                              访问器
// ============================================================================

// Fields 返回字段副本
func (n *Node) Fields() Fields { return cloneFields(n.fields) }

// Endpoints 返回端点列表副本
func (n *Node) Endpoints() []endpoint.Endpoint {
	return append([]endpoint.Endpoint(nil), n.fields.Endpoints...)
}

// SequenceNumber 代内序号
func (n *Node) SequenceNumber() uint64 { return n.fields.SequenceNumber }

// Generation 代号
func (n *Node) Generation() uint64 { return n.fields.Generation }

// IsDisabled 节点是否声明自己暂不可路由
func (n *Node) IsDisabled() bool { return n.fields.IsDisabled }

// RSignature 记录签名
func (n *Node) RSignature() keys.RSignature { return n.rSignature }

// Hash 签名覆盖的哈希
func (n *Node) Hash() keys.Hash { return n.hash }

// Checksum 完整编码的哈希
func (n *Node) Checksum() keys.Hash { return n.checksum }

// Bytes 完整编码（调用方不得修改）
func (n *Node) Bytes() []byte { return n.encoded }

// PublicKey 从签名恢复的公钥
func (n *Node) PublicKey() (keys.PublicKey, error) {
	n.recover()
	return n.pub, n.pubErr
}

// DiceAddress 记录身份；签名无效时为零值
func (n *Node) DiceAddress() types.DiceAddress {
	n.recover()
	return n.address
}

func (n *Node) recover() {
	n.pubOnce.Do(func() {
		pub, err := keys.RecoverPublicKey(n.rSignature, n.hash)
		if err != nil {
			n.pubErr = ErrInvalidSignature
			return
		}
		n.pub = pub
		n.address = pub.DiceAddress()
	})
}

// NATType 第一个端点的 NAT 类别，没有端点时为 Unknown
func (n *Node) NATType() types.NATType {
	if len(n.fields.Endpoints) == 0 {
		return types.NATTypeUnknown
	}
	return n.fields.Endpoints[0].NATType()
}

// Score 端点中的最高评分
func (n *Node) Score() int {
	return endpoint.BestScore(n.fields.Endpoints)
}

// EndpointFor 指定地址族的第一个端点
func (n *Node) EndpointFor(family types.IPFamily) (endpoint.Endpoint, bool) {
	for _, e := range n.fields.Endpoints {
		if endpoint.Family(e) == family {
			return e, true
		}
	}
	return nil, false
}

// DirectAddress 指定地址族的第一个 Direct 端点地址
func (n *Node) DirectAddress(family types.IPFamily) (types.NetworkAddress, bool) {
	for _, e := range n.fields.Endpoints {
		if d, ok := e.(endpoint.Direct); ok && d.Addr.Family() == family {
			return d.Addr, true
		}
	}
	return types.NetworkAddress{}, false
}

// Routable 是否可以进入路由表
func (n *Node) Routable() bool {
	return !n.fields.IsDisabled && len(n.fields.Endpoints) > 0
}

func (n *Node) String() string {
	return fmt.Sprintf("node(%s %s gen=%d seq=%d eps=%d)",
		n.DiceAddress().ShortString(), n.NATType(), n.fields.Generation, n.fields.SequenceNumber, len(n.fields.Endpoints))
}

// ============================================================================
//                              排序
// ============================================================================

// IsNewerThan a 是否比 b 新
//
// 先比 generation，再比 sequenceNumber，都相同时比较校验和，
// 因此对内容不同的两条记录恰有一个方向成立。
func IsNewerThan(a, b *Node) bool {
	if a.fields.Generation != b.fields.Generation {
		return a.fields.Generation > b.fields.Generation
	}
	if a.fields.SequenceNumber != b.fields.SequenceNumber {
		return a.fields.SequenceNumber > b.fields.SequenceNumber
	}
	return bytes.Compare(a.checksum[:], b.checksum[:]) > 0
}

// Equal 两条记录的编码是否完全相同
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.checksum == b.checksum
}
