// Package metrics 提供 Prometheus helper，包含行情服务常用 counter/histogram 模板
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/metalprice/pkg/logger"
)

// Metrics 指标集合；nil 接收者上的 Record* 方法均为空操作
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 外部行情源请求计数（metal, result）
	SourceFetchTotal *prometheus.CounterVec
	// 外部行情源请求耗时
	SourceFetchDuration *prometheus.HistogramVec

	// 快照刷新计数（result）
	RefreshTotal *prometheus.CounterVec
	// 缓存命中
	CacheHitsTotal prometheus.Counter
	// 刷新失败后的降级（stale, empty）
	FallbackTotal *prometheus.CounterVec
	// 持久化/镜像/事件失败（target）
	PersistenceFailuresTotal *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bullion",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bullion",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		SourceFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bullion",
			Subsystem: serviceName,
			Name:      "source_fetch_total",
			Help:      "Direct price source fetches by metal and result",
		}, []string{"metal", "result"}),
		SourceFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bullion",
			Subsystem: serviceName,
			Name:      "source_fetch_duration_seconds",
			Help:      "Direct price source fetch duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"metal"}),

		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bullion",
			Subsystem: serviceName,
			Name:      "snapshot_refresh_total",
			Help:      "Snapshot refresh attempts by result",
		}, []string{"result"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bullion",
			Subsystem: serviceName,
			Name:      "snapshot_cache_hits_total",
			Help:      "Snapshot reads served from a fresh cache",
		}),
		FallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bullion",
			Subsystem: serviceName,
			Name:      "snapshot_fallback_total",
			Help:      "Failed refreshes answered with stale or empty data",
		}, []string{"kind"}),
		PersistenceFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bullion",
			Subsystem: serviceName,
			Name:      "persistence_failures_total",
			Help:      "Best-effort persistence failures by target",
		}, []string{"target"}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SourceFetchTotal,
		m.SourceFetchDuration,
		m.RefreshTotal,
		m.CacheHitsTotal,
		m.FallbackTotal,
		m.PersistenceFailuresTotal,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFetch 记录一次外部行情源请求
func (m *Metrics) RecordFetch(metal string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.SourceFetchTotal.WithLabelValues(metal, result(ok)).Inc()
	m.SourceFetchDuration.WithLabelValues(metal).Observe(duration.Seconds())
}

// RecordRefresh 记录一次快照刷新
func (m *Metrics) RecordRefresh(ok bool) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result(ok)).Inc()
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// RecordFallback 记录降级类型
func (m *Metrics) RecordFallback(kind string) {
	if m == nil {
		return
	}
	m.FallbackTotal.WithLabelValues(kind).Inc()
}

// RecordPersistenceFailure 记录持久化失败
func (m *Metrics) RecordPersistenceFailure(target string) {
	if m == nil {
		return
	}
	m.PersistenceFailuresTotal.WithLabelValues(target).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// StartHTTPServer 启动 Prometheus HTTP 服务器，返回的 server 用于优雅关闭
func StartHTTPServer(port int, path string, gatherer prometheus.Gatherer) *http.Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return server
}
