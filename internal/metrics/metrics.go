// Package metrics 汇总服务的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics 持有各项采集器，使用独立的 Registry 便于测试
type Metrics struct {
	Registry *prometheus.Registry

	doseEvents   *prometheus.CounterVec
	fits         *prometheus.CounterVec
	fitDuration  prometheus.Histogram
	cacheLookups *prometheus.CounterVec
	cachedModels prometheus.Gauge
	loginBlocked prometheus.Counter
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		doseEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medipredict",
			Name:      "dose_events_logged_total",
			Help:      "Dose events appended to the log, by status.",
		}, []string{"status"}),
		fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medipredict",
			Name:      "estimator_fits_total",
			Help:      "Risk estimator fit attempts, by outcome.",
		}, []string{"outcome"}),
		fitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medipredict",
			Name:      "estimator_fit_duration_seconds",
			Help:      "Time spent fitting the risk estimator.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medipredict",
			Name:      "estimator_cache_lookups_total",
			Help:      "Fitted estimator cache lookups, by result.",
		}, []string{"result"}),
		cachedModels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "medipredict",
			Name:      "estimator_cache_entries",
			Help:      "Fitted estimators currently held in the cache.",
		}),
		loginBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medipredict",
			Name:      "login_rate_limited_total",
			Help:      "Login attempts rejected by the rate limiter.",
		}),
	}

	m.Registry.MustRegister(
		m.doseEvents,
		m.fits,
		m.fitDuration,
		m.cacheLookups,
		m.cachedModels,
		m.loginBlocked,
		collectors.NewGoCollector(),
	)
	return m
}

// RecordDoseEvent 统计一次追加
func (m *Metrics) RecordDoseEvent(status string) {
	if m == nil {
		return
	}
	m.doseEvents.WithLabelValues(status).Inc()
}

// RecordFit 统计一次训练，outcome 为 ok/insufficient_data/error
func (m *Metrics) RecordFit(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fits.WithLabelValues(outcome).Inc()
	m.fitDuration.Observe(d.Seconds())
}

// RecordCacheLookup 统计缓存命中情况
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetCachedModels 更新缓存条目数
func (m *Metrics) SetCachedModels(n int) {
	if m == nil {
		return
	}
	m.cachedModels.Set(float64(n))
}

// RecordLoginBlocked 统计被限流的登录请求
func (m *Metrics) RecordLoginBlocked() {
	if m == nil {
		return
	}
	m.loginBlocked.Inc()
}
