package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds pipeline metrics. A nil *Metrics records nothing.
type Metrics struct {
	DocumentsProcessed  metric.Int64Counter
	StageDuration       metric.Float64Histogram
	LLMCalls            metric.Int64Counter
	TokensUsed          metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	DocumentsByStatus   metric.Int64Gauge
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("document-summarizer")

	documentsProcessed, err := meter.Int64Counter(
		"documents.processed.total",
		metric.WithDescription("Documents that finished a pipeline run, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"pipeline.stage.duration",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	llmCalls, err := meter.Int64Counter(
		"llm.calls.total",
		metric.WithDescription("LLM completion and embedding calls"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"llm.tokens.used",
		metric.WithDescription("Total LLM tokens used"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	documentsByStatus, err := meter.Int64Gauge(
		"documents.by_status",
		metric.WithDescription("Documents per processing status"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		DocumentsProcessed:  documentsProcessed,
		StageDuration:       stageDuration,
		LLMCalls:            llmCalls,
		TokensUsed:          tokensUsed,
		CircuitBreakerState: circuitBreakerState,
		DocumentsByStatus:   documentsByStatus,
	}, nil
}

// RecordDocument records a finished pipeline run
func (m *Metrics) RecordDocument(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.DocumentsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("document.status", status)))
}

// RecordStage records how long a pipeline stage took
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64, success bool) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("pipeline.stage", stage),
		attribute.Bool("pipeline.success", success),
	))
}

// RecordLLMCall records a model call and its token usage
func (m *Metrics) RecordLLMCall(ctx context.Context, provider, model, operation string, tokens int64, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
		attribute.String("llm.operation", operation),
		attribute.Bool("llm.success", success),
	)
	m.LLMCalls.Add(ctx, 1, attrs)
	if tokens > 0 {
		m.TokensUsed.Add(ctx, tokens, attrs)
	}
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}

// RecordStatusCounts publishes the current per-status document counts
func (m *Metrics) RecordStatusCounts(ctx context.Context, counts map[string]int64) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.DocumentsByStatus.Record(ctx, n, metric.WithAttributes(attribute.String("document.status", status)))
	}
}
