package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/tenantdesk"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Principal binding metrics
	BindingTotal                metric.Int64Counter
	BindingInconsistenciesTotal metric.Int64Counter

	// Repository operation metrics
	RepositoryOperationDuration metric.Float64Histogram
	RepositoryErrorsTotal       metric.Int64Counter

	// Login metrics
	LoginAttemptsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BindingTotal, _ = meter.Int64Counter(
		"tenantdesk.binding.total",
		metric.WithDescription("Total number of principal bindings applied to a connection"),
		metric.WithUnit("{binding}"),
	)

	m.BindingInconsistenciesTotal, _ = meter.Int64Counter(
		"tenantdesk.binding.inconsistencies.total",
		metric.WithDescription("Total number of bindings whose read back value did not match the principal"),
		metric.WithUnit("{binding}"),
	)

	m.RepositoryOperationDuration, _ = meter.Float64Histogram(
		"tenantdesk.repository.operation.duration",
		metric.WithDescription("Duration of scoped repository operations"),
		metric.WithUnit("ms"),
	)

	m.RepositoryErrorsTotal, _ = meter.Int64Counter(
		"tenantdesk.repository.errors.total",
		metric.WithDescription("Total number of scoped repository operations that returned an error"),
		metric.WithUnit("{error}"),
	)

	m.LoginAttemptsTotal, _ = meter.Int64Counter(
		"tenantdesk.login.attempts.total",
		metric.WithDescription("Total number of login attempts"),
		metric.WithUnit("{attempt}"),
	)

	return m
}

// RecordBinding counts one principal binding.
func (m *Metrics) RecordBinding(ctx context.Context, unrestricted bool) {
	m.BindingTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("unrestricted", unrestricted)))
}

// RecordBindingInconsistency counts one binding that failed verification.
func (m *Metrics) RecordBindingInconsistency(ctx context.Context, unrestricted bool) {
	m.BindingInconsistenciesTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("unrestricted", unrestricted)))
}

// RecordRepositoryOperation records the duration of one repository operation
// and counts it as an error when err is not nil.
func (m *Metrics) RecordRepositoryOperation(ctx context.Context, op string, unrestricted bool, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("unrestricted", unrestricted),
	)

	m.RepositoryOperationDuration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	if err != nil {
		m.RepositoryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordLogin counts one login attempt by outcome.
func (m *Metrics) RecordLogin(ctx context.Context, success bool) {
	m.LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
