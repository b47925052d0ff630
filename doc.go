// Package dice 提供穿透 NAT 的 UDP 覆盖网络节点
//
// 每个节点持有一把 secp256k1 密钥，以签名的节点记录公布自己的端点。
// 节点通过 Kademlia 路由表互相发现，并按双方的 NAT 类别选择直连、
// 经中继打洞、reveal 或纯中继来投递数据报。
//
// # 快速开始
//
//	peer, err := dice.Start(ctx,
//	    dice.WithBootstrapPeers("203.0.113.7:4000"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer peer.Close()
//
//	sub, _ := peer.SubscribeData()
//	defer sub.Close()
//
//	err = peer.Send(ctx, target, []byte("hello"))
//
// # 组装
//
// Peer 由 go.uber.org/fx 组装：密钥、generation 计数器、UDP 传输、
// Prometheus 指标与协议引擎各自作为 provider 注入，生命周期挂在
// fx.Lifecycle 上。WithFxOptions 可以追加自定义模块。
package dice
