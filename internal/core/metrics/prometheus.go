package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dice"

// Prometheus 基于 client_golang 的 Reporter
type Prometheus struct {
	received      *prometheus.CounterVec
	sent          *prometheus.CounterVec
	bytesReceived prometheus.Counter
	bytesSent     prometheus.Counter
	dropped       *prometheus.CounterVec
	pending       prometheus.Gauge
	tableSize     prometheus.Gauge
	healthchecks  *prometheus.CounterVec
	evictions     prometheus.Counter
	relayed       *prometheus.CounterVec
}

var _ Reporter = (*Prometheus)(nil)

// NewPrometheus 创建并注册指标；同名指标已注册时复用已有的收集器
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_received_total",
			Help: "Decoded inbound messages by body tag.",
		}, []string{"tag"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total",
			Help: "Outbound messages by body tag.",
		}, []string{"tag"}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total",
			Help: "Bytes of decoded inbound messages.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total",
			Help: "Bytes of outbound messages.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dropped_total",
			Help: "Inbound datagrams dropped by reason.",
		}, []string{"reason"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending_requests",
			Help: "Requests awaiting a correlated response.",
		}),
		tableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "table_size",
			Help: "Nodes in the overlay routing table.",
		}),
		healthchecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "healthchecks_total",
			Help: "Healthcheck runs by kind and result.",
		}, []string{"kind", "result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "evictions_total",
			Help: "Nodes evicted by the overlay healthcheck.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "relayed_total",
			Help: "Relay, punch and reveal forwards by result.",
		}, []string{"result"}),
	}
	if reg == nil {
		return p
	}

	p.received = register(reg, p.received)
	p.sent = register(reg, p.sent)
	p.bytesReceived = register(reg, p.bytesReceived)
	p.bytesSent = register(reg, p.bytesSent)
	p.dropped = register(reg, p.dropped)
	p.pending = register(reg, p.pending)
	p.tableSize = register(reg, p.tableSize)
	p.healthchecks = register(reg, p.healthchecks)
	p.evictions = register(reg, p.evictions)
	p.relayed = register(reg, p.relayed)
	return p
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		log.Warn("注册指标失败", "err", err)
	}
	return c
}

func (p *Prometheus) MessageReceived(tag string, size int) {
	p.received.WithLabelValues(tag).Inc()
	p.bytesReceived.Add(float64(size))
}

func (p *Prometheus) MessageSent(tag string, size int) {
	p.sent.WithLabelValues(tag).Inc()
	p.bytesSent.Add(float64(size))
}

func (p *Prometheus) Dropped(reason string) {
	p.dropped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) SetPending(n int) {
	p.pending.Set(float64(n))
}

func (p *Prometheus) SetTableSize(n int) {
	p.tableSize.Set(float64(n))
}

func (p *Prometheus) Healthcheck(kind string, ok bool) {
	p.healthchecks.WithLabelValues(kind, result(ok)).Inc()
}

func (p *Prometheus) Evicted() {
	p.evictions.Inc()
}

func (p *Prometheus) Relayed(ok bool) {
	p.relayed.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}

// Handler 暴露 reg 中指标的 HTTP handler
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
