package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for storage operations.
type Observer interface {
	RecordPresign(operation string, duration time.Duration, err error)
	RecordDelete(duration time.Duration, keys int, err error)
}

// PrometheusObserver exports storage metrics to Prometheus.
type PrometheusObserver struct {
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	deletedKeys prometheus.Counter
}

// NewPrometheusObserver registers presign/delete metrics on reg. Registering
// twice against the same registry reuses the existing collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "catalog_storage"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of storage operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	errs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Count of failed storage operations.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	deleted, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deleted_objects_total",
		Help:      "Objects removed from the bucket by reconciliation.",
	}))
	if err != nil {
		return nil, err
	}

	return &PrometheusObserver{duration: duration, errors: errs, deletedKeys: deleted}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register storage metric: %w", err)
	}
	return c, nil
}

// RecordPresign tracks one presign call ("put" or "get").
func (o *PrometheusObserver) RecordPresign(operation string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	op := "presign_" + operation
	o.duration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		o.errors.WithLabelValues(op).Inc()
	}
}

// RecordDelete tracks one batched delete.
func (o *PrometheusObserver) RecordDelete(duration time.Duration, keys int, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues("delete").Observe(duration.Seconds())
	if err != nil {
		o.errors.WithLabelValues("delete").Inc()
		return
	}
	o.deletedKeys.Add(float64(keys))
}

type nopObserver struct{}

func (nopObserver) RecordPresign(string, time.Duration, error) {}

func (nopObserver) RecordDelete(time.Duration, int, error) {}
