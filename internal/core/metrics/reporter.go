package metrics

// 丢弃原因
const (
	DropMalformed   = "malformed"
	DropSignature   = "signature"
	DropUnexpected  = "unexpected"
	DropRateLimited = "rate_limited"
	DropDisabled    = "disabled"
	DropFiltered    = "filtered"
)

// Reporter 记录引擎指标
type Reporter interface {
	// MessageReceived 记录一条解码成功的入站消息
	MessageReceived(tag string, size int)

	// MessageSent 记录一条出站消息
	MessageSent(tag string, size int)

	// Dropped 记录一条被丢弃的入站数据报
	Dropped(reason string)

	// SetPending 当前挂起的关联请求数
	SetPending(n int)

	// SetTableSize 当前路由表大小
	SetTableSize(n int)

	// Healthcheck 记录一次健康检查；kind 为 node 或 overlay
	Healthcheck(kind string, ok bool)

	// Evicted 记录一次路由表驱逐
	Evicted()

	// Relayed 记录一次转发
	Relayed(ok bool)
}

// Nop 不做任何记录
type Nop struct{}

var _ Reporter = Nop{}

func (Nop) MessageReceived(string, int) {}
func (Nop) MessageSent(string, int)     {}
func (Nop) Dropped(string)              {}
func (Nop) SetPending(int)              {}
func (Nop) SetTableSize(int)            {}
func (Nop) Healthcheck(string, bool)    {}
func (Nop) Evicted()                    {}
func (Nop) Relayed(bool)                {}
