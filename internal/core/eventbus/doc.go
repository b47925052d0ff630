// Package eventbus 进程内类型化事件总线
//
// 引擎通过它发布生命周期与数据事件，调用方按事件类型订阅：
//
//	sub, _ := bus.Subscribe(new(eventbus.EvtData))
//	defer sub.Close()
//	for e := range sub.Out() {
//	    evt := e.(eventbus.EvtData)
//	    // ...
//	}
//
// 每个事件类型对应一个节点，节点持有订阅者列表与发射器引用计数。
// 订阅者缓冲区满时事件被丢弃，发射方从不阻塞。
// Stateful 发射器保留最后一个事件，新订阅者立即收到它。
// Bus.Close 关闭全部订阅，订阅者的 range 循环随之结束。
package eventbus
