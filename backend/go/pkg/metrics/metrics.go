// Package metrics 定义服务暴露的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "conductor"

// Metrics 汇总所有指标。方法在接收者为 nil 时什么也不做，调用方无需判断是否启用。
type Metrics struct {
	askRequests           *prometheus.CounterVec
	askDuration           prometheus.Histogram
	capabilityInvocations *prometheus.CounterVec
	databaseOperations    *prometheus.CounterVec
}

// New 创建并注册指标。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		askRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ask_requests_total",
			Help:      "Number of /ask requests by status.",
		}, []string{"status"}),
		askDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_duration_seconds",
			Help:      "Latency of /ask requests.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		capabilityInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_invocations_total",
			Help:      "Number of capability invocations by capability and outcome.",
		}, []string{"capability", "outcome"}),
		databaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Number of database agent operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.askRequests, m.askDuration, m.capabilityInvocations, m.databaseOperations)
	return m
}

// ObserveAsk 记录一次 /ask 请求。
func (m *Metrics) ObserveAsk(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.askRequests.WithLabelValues(status).Inc()
	m.askDuration.Observe(d.Seconds())
}

// CapabilityInvoked 记录一次能力调用。outcome 为 "ok"、错误码或 "error"。
func (m *Metrics) CapabilityInvoked(capability, outcome string) {
	if m == nil {
		return
	}
	m.capabilityInvocations.WithLabelValues(capability, outcome).Inc()
}

// DatabaseOperation 记录一次数据库 Agent 操作。
func (m *Metrics) DatabaseOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.databaseOperations.WithLabelValues(operation, outcome).Inc()
}

// Outcome 把调用结果折叠成指标标签。
func Outcome(success bool, code string, err error) string {
	switch {
	case err != nil:
		return "error"
	case success:
		return "ok"
	case code != "":
		return code
	default:
		return "failed"
	}
}
