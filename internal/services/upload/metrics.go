package upload

import (
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/menu-storage/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer 上传服务的遥测
type Observer interface {
	RecordOperation(op string, provider storage.ProviderType, duration time.Duration, err error)
	RecordUploadBytes(provider storage.ProviderType, size int64)
	RecordFallback(from, to storage.ProviderType)
	RecordHealth(provider storage.ProviderType, available bool)
}

// PrometheusObserver 导出到 Prometheus
type PrometheusObserver struct {
	duration  *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	up        *prometheus.GaugeVec
}

var _ Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver 注册指标，重复注册时复用已有的 collector
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "menu_storage"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{}
	var err error
	if o.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of storage operations by provider.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "provider"})); err != nil {
		return nil, err
	}
	if o.errors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Failed storage operations by provider and error kind.",
	}, []string{"operation", "provider", "kind"})); err != nil {
		return nil, err
	}
	if o.bytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Bytes successfully written per provider.",
	}, []string{"provider"})); err != nil {
		return nil, err
	}
	if o.fallbacks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallback_uploads_total",
		Help:      "Uploads served by the fallback provider after the default failed.",
	}, []string{"from", "to"})); err != nil {
		return nil, err
	}
	if o.up, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_up",
		Help:      "Result of the last health probe (1 available, 0 unavailable).",
	}, []string{"provider"})); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register upload metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordOperation(op string, provider storage.ProviderType, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(op, string(provider)).Observe(duration.Seconds())
	if err != nil {
		o.errors.WithLabelValues(op, string(provider), string(storage.KindOf(err))).Inc()
	}
}

func (o *PrometheusObserver) RecordUploadBytes(provider storage.ProviderType, size int64) {
	if o == nil {
		return
	}
	o.bytes.WithLabelValues(string(provider)).Add(float64(size))
}

func (o *PrometheusObserver) RecordFallback(from, to storage.ProviderType) {
	if o == nil {
		return
	}
	o.fallbacks.WithLabelValues(string(from), string(to)).Inc()
}

func (o *PrometheusObserver) RecordHealth(provider storage.ProviderType, available bool) {
	if o == nil {
		return
	}
	v := 0.0
	if available {
		v = 1
	}
	o.up.WithLabelValues(string(provider)).Set(v)
}

type nopObserver struct{}

func (nopObserver) RecordOperation(string, storage.ProviderType, time.Duration, error) {}

func (nopObserver) RecordUploadBytes(storage.ProviderType, int64) {}

func (nopObserver) RecordFallback(storage.ProviderType, storage.ProviderType) {}

func (nopObserver) RecordHealth(storage.ProviderType, bool) {}
