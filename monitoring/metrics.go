package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"churnai/churn"
)

const namespace = "churn"

// Metrics 服务的Prometheus指标
type Metrics struct {
	registry *prometheus.Registry

	Predictions    *prometheus.CounterVec
	Probability    prometheus.Histogram
	CacheHits      prometheus.Counter
	Reloads        *prometheus.CounterVec
	TrainingRuns   *prometheus.CounterVec
	TrainingROCAUC *prometheus.GaugeVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// NewMetrics 创建指标并注册到独立的registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by risk tier.",
		}, []string{"risk"}),
		Probability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probability",
			Help:      "Distribution of predicted churn probabilities.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_hits_total",
			Help:      "Predictions answered from the cache.",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Model reload attempts, by result.",
		}, []string{"result"}),
		TrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training runs, by result.",
		}, []string{"result"}),
		TrainingROCAUC: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_roc_auc",
			Help:      "Held-out ROC-AUC of each candidate in the latest run.",
		}, []string{"model"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Predictions,
		m.Probability,
		m.CacheHits,
		m.Reloads,
		m.TrainingRuns,
		m.TrainingROCAUC,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry 返回指标registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回/metrics处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordPrediction 记录一次预测
func (m *Metrics) RecordPrediction(p churn.Prediction, cached bool) {
	m.Predictions.WithLabelValues(p.Risk.String()).Inc()
	m.Probability.Observe(p.Probability)
	if cached {
		m.CacheHits.Inc()
	}
}

// RecordReload 记录模型重载结果
func (m *Metrics) RecordReload(err error) {
	m.Reloads.WithLabelValues(result(err)).Inc()
}

// RecordTraining 记录训练结果; scores为各候选模型的ROC-AUC
func (m *Metrics) RecordTraining(scores map[string]float64, err error) {
	m.TrainingRuns.WithLabelValues(result(err)).Inc()
	for model, auc := range scores {
		m.TrainingROCAUC.WithLabelValues(model).Set(auc)
	}
}

// ObserveHTTP 记录HTTP请求
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
