package message

import (
	"bytes"
	"fmt"

	"github.com/dep2p/go-dice/internal/core/codec"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/core/record"
)

// Magic 协议消息前缀
var Magic = [4]byte{'D', 'I', 'C', 'E'}

// Version 信封版本
const Version = 1

// MaxSize 单个数据报的上限，即 IPv4 UDP 负载上限 65535-8-20
const MaxSize = 65507

// Message 解码后的信封
type Message struct {
	// Node 发送方的节点记录
	Node *record.Node

	// Body 消息体
	Body Body

	// Signature 覆盖 hash(node ∥ body) 的签名
	Signature keys.Signature

	raw []byte
}

// Bytes 信封的原始编码，用于原样转发
func (m *Message) Bytes() []byte {
	return m.raw
}

// Encode 构造并签名信封
func Encode(node *record.Node, body Body, k *keys.Keys) ([]byte, error) {
	bodyBytes := EncodeBody(body)
	sig := k.Sign(signingHash(node.Bytes(), bodyBytes))

	w := codec.NewWriter(len(Magic) + 1 + len(node.Bytes()) + 3 + len(bodyBytes) + keys.SignatureSize)
	w.Fixed(Magic[:])
	w.Byte(Version)
	w.Blob(node.Bytes())
	w.Fixed(bodyBytes)
	w.Fixed(sig[:])

	if w.Len() > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, w.Len())
	}
	return w.Bytes(), nil
}

// IsMessage 快速检查魔数前缀
func IsMessage(b []byte) bool {
	return len(b) >= len(Magic) && bytes.Equal(b[:len(Magic)], Magic[:])
}

// Decode 解析信封并验证两层签名
//
// 节点记录签名无效、信封签名与记录身份不符、编码错误时都返回错误，
// 调用方应静默丢弃。
func Decode(b []byte) (*Message, error) {
	if !IsMessage(b) {
		return nil, ErrBadMagic
	}
	if len(b) > MaxSize {
		return nil, ErrTooLarge
	}

	r := codec.NewReader(b[len(Magic):])
	if v := r.Byte(); r.Err() == nil && v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	nodeBytes := r.Blob(codec.DefaultMaxBlob)
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, r.Err())
	}

	bodyStart := r.Offset()
	body := decodeBody(r)
	bodyEnd := r.Offset()

	var sig keys.Signature
	r.Fixed(sig[:])
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	node, err := record.Decode(nodeBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: node: %v", ErrMalformed, err)
	}
	pub, err := node.PublicKey()
	if err != nil {
		return nil, ErrInvalidSignature
	}

	bodyBytes := b[len(Magic)+bodyStart : len(Magic)+bodyEnd]
	if !keys.Verify(sig, signingHash(nodeBytes, bodyBytes), pub) {
		return nil, ErrInvalidSignature
	}

	return &Message{Node: node, Body: body, Signature: sig, raw: b}, nil
}

func signingHash(node, body []byte) keys.Hash {
	return keys.Sum(node, body)
}

// Checksum 信封编码的哈希
func (m *Message) Checksum() keys.Hash {
	return keys.Sum(m.raw)
}
