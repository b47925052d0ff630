package eventbus

// DefaultBufSize 订阅缓冲区默认大小
const DefaultBufSize = 16

type subscriptionSettings struct {
	buffer int
}

type emitterSettings struct {
	stateful bool
}

// SubscriptionOpt 订阅选项
type SubscriptionOpt func(*subscriptionSettings)

// EmitterOpt 发射器选项
type EmitterOpt func(*emitterSettings)

// BufSize 设置订阅缓冲区大小
func BufSize(n int) SubscriptionOpt {
	return func(s *subscriptionSettings) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// Stateful 发射器保留最后一个事件
func Stateful() EmitterOpt {
	return func(s *emitterSettings) {
		s.stateful = true
	}
}
