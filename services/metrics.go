package services

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	provisionStepTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provision_step_total",
			Help: "Provisioning pipeline step outcomes",
		},
		[]string{"step", "outcome"},
	)

	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_request_total",
			Help: "Total control panel API requests",
		},
		[]string{"endpoint"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panel_request_duration_seconds",
			Help:    "Duration of control panel API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	errorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_request_errors_total",
			Help: "Control panel API requests answered with an error status",
		},
		[]string{"endpoint"},
	)

	totalRequests int64
	totalErrors   int64
)

func init() {
	prometheus.MustRegister(provisionStepTotal)
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(errorCount)
}

// RecordStep 记录一次安装/卸载步骤的结果
func RecordStep(step, outcome string) {
	provisionStepTotal.WithLabelValues(step, outcome).Inc()
}

// IncrementRequestCount 增加请求计数
func IncrementRequestCount(endpoint string) {
	requestCount.WithLabelValues(endpoint).Inc()
	atomic.AddInt64(&totalRequests, 1)
}

// RecordRequestDuration 记录请求处理时间
func RecordRequestDuration(endpoint string, seconds float64) {
	requestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// IncrementErrorCount 增加错误请求计数
func IncrementErrorCount(endpoint string) {
	errorCount.WithLabelValues(endpoint).Inc()
	atomic.AddInt64(&totalErrors, 1)
}

// GetTotalRequestCount 就绪探针用的总请求数
func GetTotalRequestCount() int64 {
	return atomic.LoadInt64(&totalRequests)
}

// GetTotalErrorCount 就绪探针用的错误请求数
func GetTotalErrorCount() int64 {
	return atomic.LoadInt64(&totalErrors)
}
