// Package metrics 采集引擎指标
//
// Reporter 是引擎依赖的记录接口；Prometheus 实现把指标注册到调用方给出的
// prometheus.Registerer，未配置时使用 Nop。
//
// 指标（前缀 dice_）：
//   - messages_received_total / messages_sent_total{tag}
//   - bytes_received_total / bytes_sent_total
//   - dropped_total{reason}
//   - pending_requests
//   - table_size
//   - healthchecks_total{kind,result}
//   - evictions_total
//   - relayed_total{result}
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	r := metrics.NewPrometheus(reg)
//	r.MessageReceived("ping", 120)
//	http.Handle("/metrics", metrics.Handler(reg))
package metrics
