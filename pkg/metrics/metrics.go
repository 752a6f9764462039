package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Agent 调用延迟（毫秒）
	AgentCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_call_latency_ms",
			Help:    "Classifier service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// 任务创建计数
	TaskCreatedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_created_count",
			Help: "Total number of tasks created",
		},
		[]string{"source"}, // source: manual, assistant
	)

	BroadcastPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_published_count",
			Help: "Broadcast events published, by event name",
		},
		[]string{"event"},
	)

	BroadcastDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_count",
			Help: "Broadcast events dropped because a subscriber buffer was full",
		},
		[]string{"event"},
	)

	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected_clients",
			Help: "Currently connected websocket clients",
		},
	)

	SelfHealCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_self_heal_count",
			Help: "Completed projects downgraded to active because tasks were reopened",
		},
		[]string{"result"}, // result: persisted, failed
	)
)

// RecordAgentCallLatency 记录 Agent 调用延迟
func RecordAgentCallLatency(endpoint, status string, duration time.Duration) {
	AgentCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func IncrementSlowQuery(operation string) {
	DBSlowQueryCount.WithLabelValues(operation).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementTaskCreated(source string) {
	TaskCreatedCount.WithLabelValues(source).Inc()
}

func IncrementBroadcast(event string) {
	BroadcastPublished.WithLabelValues(event).Inc()
}

func IncrementBroadcastDropped(event string) {
	BroadcastDropped.WithLabelValues(event).Inc()
}

func IncrementSelfHeal(result string) {
	SelfHealCount.WithLabelValues(result).Inc()
}
