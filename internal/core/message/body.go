package message

import (
	"fmt"

	"github.com/dep2p/go-dice/internal/core/codec"
	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/pkg/types"
)

// Tag 消息标签
type Tag uint8

const (
	TagNoop Tag = iota + 1
	TagPing
	TagPingResponse
	TagReflect
	TagReflectResponse
	TagPunch
	TagPunchResponse
	TagReveal
	TagRevealResponse
	TagListNodes
	TagListNodesResponse
	TagPutData
	TagRelay
	TagResponse
)

var tagNames = map[Tag]string{
	TagNoop:              "noop",
	TagPing:              "ping",
	TagPingResponse:      "pingResponse",
	TagReflect:           "reflect",
	TagReflectResponse:   "reflectResponse",
	TagPunch:             "punch",
	TagPunchResponse:     "punchResponse",
	TagReveal:            "reveal",
	TagRevealResponse:    "revealResponse",
	TagListNodes:         "listNodes",
	TagListNodesResponse: "listNodesResponse",
	TagPutData:           "putData",
	TagRelay:             "relay",
	TagResponse:          "response",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

const (
	// MaxListNodes listNodesResponse 最多携带的记录数
	MaxListNodes = 32

	// MaxPayload putData 负载上限；经中继包装后仍须小于 MaxSize
	MaxPayload = 60 * 1024
)

// Body 消息体
type Body interface {
	Tag() Tag
	encode(w *codec.Writer)
}

// ============================================================================
//                              消息体变体
// ============================================================================

// Noop 空消息，用于打开 NAT 出站映射
type Noop struct{}

// Ping 存活探测
type Ping struct {
	TransactionID types.TransactionID
}

// PingResponse ping 的应答
type PingResponse struct {
	TransactionID types.TransactionID
}

// Reflect 请求对端报告观察到的源地址
type Reflect struct {
	TransactionID types.TransactionID
}

// ReflectResponse 观察到的源地址
type ReflectResponse struct {
	TransactionID types.TransactionID
	Address       types.NetworkAddress
}

// Punch 打洞请求
//
// 发给目标的中继；中继原样转发给 Target，Target 直接向 Source 回 PunchResponse。
type Punch struct {
	TransactionID types.TransactionID
	Target        types.DiceAddress
	Source        types.NetworkAddress
}

// PunchResponse 打洞成功，由目标直接发给请求方
type PunchResponse struct {
	TransactionID types.TransactionID
}

// Reveal 请求对称 NAT 节点为请求方分配地址
//
// 发给目标的中继；中继转发给 Target，Target 直接向 Source 回 RevealResponse，
// 请求方看到的源地址即目标为它分配的地址。
type Reveal struct {
	TransactionID types.TransactionID
	Target        types.DiceAddress
	Source        types.NetworkAddress
}

// RevealResponse reveal 的应答
type RevealResponse struct {
	TransactionID types.TransactionID
}

// ListNodes Kademlia find-node
type ListNodes struct {
	TransactionID types.TransactionID
	Target        types.DiceAddress
	Limit         uint64
}

// ListNodesResponse 距 Target 最近的已知记录
type ListNodesResponse struct {
	TransactionID types.TransactionID
	Nodes         []*record.Node
}

// PutData 应用层数据
type PutData struct {
	Payload []byte
}

// Relay 请求中继把内层信封转发给 Target
type Relay struct {
	Target  types.DiceAddress
	Message []byte
}

// Response 通用状态应答
type Response struct {
	TransactionID types.TransactionID
	Code          Code
}

func (Noop) Tag() Tag              { return TagNoop }
func (Ping) Tag() Tag              { return TagPing }
func (PingResponse) Tag() Tag      { return TagPingResponse }
func (Reflect) Tag() Tag           { return TagReflect }
func (ReflectResponse) Tag() Tag   { return TagReflectResponse }
func (Punch) Tag() Tag             { return TagPunch }
func (PunchResponse) Tag() Tag     { return TagPunchResponse }
func (Reveal) Tag() Tag            { return TagReveal }
func (RevealResponse) Tag() Tag    { return TagRevealResponse }
func (ListNodes) Tag() Tag         { return TagListNodes }
func (ListNodesResponse) Tag() Tag { return TagListNodesResponse }
func (PutData) Tag() Tag           { return TagPutData }
func (Relay) Tag() Tag             { return TagRelay }
func (Response) Tag() Tag          { return TagResponse }

// TransactionIDOf 消息体携带的 TransactionID
func TransactionIDOf(b Body) (types.TransactionID, bool) {
	switch v := b.(type) {
	case Ping:
		return v.TransactionID, true
	case PingResponse:
		return v.TransactionID, true
	case Reflect:
		return v.TransactionID, true
	case ReflectResponse:
		return v.TransactionID, true
	case Punch:
		return v.TransactionID, true
	case PunchResponse:
		return v.TransactionID, true
	case Reveal:
		return v.TransactionID, true
	case RevealResponse:
		return v.TransactionID, true
	case ListNodes:
		return v.TransactionID, true
	case ListNodesResponse:
		return v.TransactionID, true
	case Response:
		return v.TransactionID, true
	case Noop, PutData, Relay:
		return types.TransactionID{}, false
	}
	return types.TransactionID{}, false
}

// IsResponse 是否为应答类消息
func IsResponse(b Body) bool {
	switch b.(type) {
	case PingResponse, ReflectResponse, PunchResponse, RevealResponse, ListNodesResponse, Response:
		return true
	}
	return false
}

// ============================================================================
//                              编码
// ============================================================================

func (Noop) encode(*codec.Writer) {}

func (b Ping) encode(w *codec.Writer)         { w.Fixed(b.TransactionID[:]) }
func (b PingResponse) encode(w *codec.Writer) { w.Fixed(b.TransactionID[:]) }
func (b Reflect) encode(w *codec.Writer)      { w.Fixed(b.TransactionID[:]) }

func (b ReflectResponse) encode(w *codec.Writer) {
	w.Fixed(b.TransactionID[:])
	endpoint.EncodeAddress(w, b.Address)
}

func (b Punch) encode(w *codec.Writer) {
	w.Fixed(b.TransactionID[:])
	w.Fixed(b.Target[:])
	endpoint.EncodeAddress(w, b.Source)
}

func (b PunchResponse) encode(w *codec.Writer) { w.Fixed(b.TransactionID[:]) }

func (b Reveal) encode(w *codec.Writer) {
	w.Fixed(b.TransactionID[:])
	w.Fixed(b.Target[:])
	endpoint.EncodeAddress(w, b.Source)
}

func (b RevealResponse) encode(w *codec.Writer) { w.Fixed(b.TransactionID[:]) }

func (b ListNodes) encode(w *codec.Writer) {
	w.Fixed(b.TransactionID[:])
	w.Fixed(b.Target[:])
	w.Uvarint(b.Limit)
}

func (b ListNodesResponse) encode(w *codec.Writer) {
	w.Fixed(b.TransactionID[:])
	w.Uvarint(uint64(len(b.Nodes)))
	for _, n := range b.Nodes {
		w.Blob(n.Bytes())
	}
}

func (b PutData) encode(w *codec.Writer) { w.Blob(b.Payload) }

func (b Relay) encode(w *codec.Writer) {
	w.Fixed(b.Target[:])
	w.Blob(b.Message)
}

func (b Response) encode(w *codec.Writer) {
	w.Fixed(b.TransactionID[:])
	w.Uvarint(uint64(b.Code))
}

// EncodeBody 标签 + 字段
func EncodeBody(b Body) []byte {
	w := codec.NewWriter(64)
	w.Uvarint(uint64(b.Tag()))
	b.encode(w)
	return w.Bytes()
}

// DecodeBody 解析消息体，要求没有剩余字节
func DecodeBody(data []byte) (Body, error) {
	r := codec.NewReader(data)
	b := decodeBody(r)
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeBody(r *codec.Reader) Body {
	tag := Tag(r.Uvarint())
	if r.Err() != nil {
		return nil
	}

	txid := func() types.TransactionID {
		var id types.TransactionID
		r.Fixed(id[:])
		return id
	}
	target := func() types.DiceAddress {
		var a types.DiceAddress
		r.Fixed(a[:])
		return a
	}

	switch tag {
	case TagNoop:
		return Noop{}
	case TagPing:
		return Ping{TransactionID: txid()}
	case TagPingResponse:
		return PingResponse{TransactionID: txid()}
	case TagReflect:
		return Reflect{TransactionID: txid()}
	case TagReflectResponse:
		id := txid()
		return ReflectResponse{TransactionID: id, Address: endpoint.DecodeAddress(r)}
	case TagPunch:
		id, t := txid(), target()
		return Punch{TransactionID: id, Target: t, Source: endpoint.DecodeAddress(r)}
	case TagPunchResponse:
		return PunchResponse{TransactionID: txid()}
	case TagReveal:
		id, t := txid(), target()
		return Reveal{TransactionID: id, Target: t, Source: endpoint.DecodeAddress(r)}
	case TagRevealResponse:
		return RevealResponse{TransactionID: txid()}
	case TagListNodes:
		id, t := txid(), target()
		return ListNodes{TransactionID: id, Target: t, Limit: r.Uvarint()}
	case TagListNodesResponse:
		resp := ListNodesResponse{TransactionID: txid()}
		count := r.Count(MaxListNodes)
		for i := 0; i < count && r.Err() == nil; i++ {
			raw := r.Blob(codec.DefaultMaxBlob)
			if r.Err() != nil {
				break
			}
			n, err := record.Decode(raw)
			if err != nil {
				r.Fail(err)
				break
			}
			resp.Nodes = append(resp.Nodes, n)
		}
		return resp
	case TagPutData:
		return PutData{Payload: r.Blob(MaxPayload)}
	case TagRelay:
		t := target()
		return Relay{Target: t, Message: r.Blob(MaxSize)}
	case TagResponse:
		id := txid()
		return Response{TransactionID: id, Code: Code(r.Uvarint())}
	default:
		r.Fail(fmt.Errorf("%w: %d", ErrUnknownTag, tag))
		return nil
	}
}
