package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecurityMetrics defines the interface for recording security-core metrics.
// Implementations track decision counts, violation counts, and operation latency
// across the security components (keystore, crypto, sanitizer, ratelimit, access,
// audit, threat).
type SecurityMetrics interface {
	// RecordDecision records a security decision with its outcome.
	// Component examples: "ratelimit", "access", "sanitizer"
	// Operation examples: "try_acquire", "authorize", "sanitize"
	// Outcome examples: "allow", "soft_warn", "deny", "permit", "violation"
	RecordDecision(ctx context.Context, component, operation, outcome string)

	// RecordViolation records a security violation by type and severity.
	RecordViolation(ctx context.Context, violationType, severity string)

	// RecordDuration records the duration of a security operation with its outcome.
	// Duration is recorded in seconds as a histogram for percentile calculations.
	RecordDuration(ctx context.Context, component, operation string, duration time.Duration, outcome string)
}

// securityMetrics implements SecurityMetrics using OpenTelemetry metrics.
type securityMetrics struct {
	decisionCounter  metric.Int64Counter
	violationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
}

// NewSecurityMetrics creates a new SecurityMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names.
// Returns error if meters cannot be initialized.
func NewSecurityMetrics(meterProvider metric.MeterProvider, namespace string) (SecurityMetrics, error) {
	meter := meterProvider.Meter(namespace)

	decisionCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_decisions_total", namespace),
		metric.WithDescription("Total number of security decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}

	violationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_violations_total", namespace),
		metric.WithDescription("Total number of security violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create violation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of security operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &securityMetrics{
		decisionCounter:  decisionCounter,
		violationCounter: violationCounter,
		durationHisto:    durationHisto,
	}, nil
}

// RecordDecision increments the decision counter with component, operation, and outcome labels.
func (s *securityMetrics) RecordDecision(ctx context.Context, component, operation, outcome string) {
	s.decisionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordViolation increments the violation counter with type and severity labels.
func (s *securityMetrics) RecordViolation(ctx context.Context, violationType, severity string) {
	s.violationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("type", violationType),
			attribute.String("severity", severity),
		),
	)
}

// RecordDuration records the operation duration in seconds with component, operation,
// and outcome labels.
func (s *securityMetrics) RecordDuration(
	ctx context.Context,
	component, operation string,
	duration time.Duration,
	outcome string,
) {
	s.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

// NoOpSecurityMetrics is a no-op implementation of SecurityMetrics for when metrics are disabled.
type NoOpSecurityMetrics struct{}

// NewNoOpSecurityMetrics creates a no-op SecurityMetrics implementation.
func NewNoOpSecurityMetrics() SecurityMetrics {
	return &NoOpSecurityMetrics{}
}

// RecordDecision does nothing when metrics are disabled.
func (n *NoOpSecurityMetrics) RecordDecision(ctx context.Context, component, operation, outcome string) {
	// No-op
}

// RecordViolation does nothing when metrics are disabled.
func (n *NoOpSecurityMetrics) RecordViolation(ctx context.Context, violationType, severity string) {
	// No-op
}

// RecordDuration does nothing when metrics are disabled.
func (n *NoOpSecurityMetrics) RecordDuration(
	ctx context.Context,
	component, operation string,
	duration time.Duration,
	outcome string,
) {
	// No-op
}
