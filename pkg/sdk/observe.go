package faqbot

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation statuses reported in faqbot_sdk_operations_total.
const (
	statusOK           = "ok"
	statusNotFound     = "not_found"
	statusInvalidInput = "invalid_input"
	statusDegraded     = "degraded"
	statusError        = "error"
)

var errReplyDegraded = errors.New("reply degraded to an error message")

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	replies    *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by name and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "faqbot",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "sdk",
			Name:      "replies_total",
			Help:      "Replies produced by HandleMessage, by resolution tier.",
		}, []string{"tier"}),
	}
	for _, c := range []**prometheus.CounterVec{&m.operations, &m.replies} {
		if err := registerOrReuse(reg, c); err != nil {
			return nil, err
		}
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points it at the collector already
// registered under the same descriptor.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("faqbot: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("faqbot: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// statusOf maps an operation error onto its metric label.
func statusOf(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, ErrNotFound):
		return statusNotFound
	case errors.Is(err, ErrInvalidInput):
		return statusInvalidInput
	case errors.Is(err, errReplyDegraded):
		return statusDegraded
	default:
		return statusError
	}
}

// observer logs and counts SDK operations. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := statusOf(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	switch status {
	case statusOK, statusNotFound:
		o.logger.Debug("operation completed", "op", op, "status", status, "duration", dur)
	default:
		o.logger.Warn("operation failed", "op", op, "status", status, "duration", dur, "error", err)
	}
}

// reply counts a HandleMessage reply by tier.
func (o *observer) reply(tier string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.replies.WithLabelValues(tier).Inc()
}
