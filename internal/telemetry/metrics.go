package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome is the result label attached to every recorded operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

const (
	ToolCallOutcomeSuccess = OutcomeSuccess
	ToolCallOutcomeError   = OutcomeError
)

// CustomMetrics records darp-specific measurements.
// The no-op implementation is used when telemetry is disabled so callers never check.
type CustomMetrics interface {
	// RecordToolCall records one tool invocation dispatched to an upstream server.
	RecordToolCall(ctx context.Context, server, tool string, outcome Outcome, elapsed time.Duration)

	// RecordDiscovery records one tool discovery against a server url.
	RecordDiscovery(ctx context.Context, url string, outcome Outcome, toolCount int, elapsed time.Duration)

	// RecordProviderRequest records one request to the text-generation provider.
	RecordProviderRequest(ctx context.Context, provider, operation string, outcome Outcome, elapsed time.Duration)

	// RecordRoutingTurns records how many provider turns a routing call used.
	RecordRoutingTurns(ctx context.Context, turns int, outcome Outcome)
}

type noopCustomMetrics struct{}

func NewNoopCustomMetrics() CustomMetrics {
	return noopCustomMetrics{}
}

func (noopCustomMetrics) RecordToolCall(context.Context, string, string, Outcome, time.Duration) {}

func (noopCustomMetrics) RecordDiscovery(context.Context, string, Outcome, int, time.Duration) {}

func (noopCustomMetrics) RecordProviderRequest(context.Context, string, string, Outcome, time.Duration) {
}

func (noopCustomMetrics) RecordRoutingTurns(context.Context, int, Outcome) {}

type otelCustomMetrics struct {
	toolCalls        metric.Int64Counter
	toolCallLatency  metric.Float64Histogram
	discoveries      metric.Int64Counter
	discoveryLatency metric.Float64Histogram
	discoveredTools  metric.Int64Histogram
	providerRequests metric.Int64Counter
	providerLatency  metric.Float64Histogram
	routingTurns     metric.Int64Histogram
}

// NewOtelCustomMetrics creates the instruments on the given meter.
func NewOtelCustomMetrics(meter metric.Meter) (CustomMetrics, error) {
	var (
		m   otelCustomMetrics
		err error
	)
	if m.toolCalls, err = meter.Int64Counter(
		"darp_tool_calls_total",
		metric.WithDescription("Number of tool calls dispatched to upstream MCP servers"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool call counter: %w", err)
	}
	if m.toolCallLatency, err = meter.Float64Histogram(
		"darp_tool_call_duration_seconds",
		metric.WithDescription("Latency of tool calls dispatched to upstream MCP servers"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool call histogram: %w", err)
	}
	if m.discoveries, err = meter.Int64Counter(
		"darp_discoveries_total",
		metric.WithDescription("Number of tool discoveries against MCP servers"),
	); err != nil {
		return nil, fmt.Errorf("failed to create discovery counter: %w", err)
	}
	if m.discoveryLatency, err = meter.Float64Histogram(
		"darp_discovery_duration_seconds",
		metric.WithDescription("Latency of tool discoveries"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create discovery histogram: %w", err)
	}
	if m.discoveredTools, err = meter.Int64Histogram(
		"darp_discovered_tools",
		metric.WithDescription("Number of tools returned by a successful discovery"),
	); err != nil {
		return nil, fmt.Errorf("failed to create discovered tools histogram: %w", err)
	}
	if m.providerRequests, err = meter.Int64Counter(
		"darp_llm_requests_total",
		metric.WithDescription("Number of requests to the text-generation provider"),
	); err != nil {
		return nil, fmt.Errorf("failed to create provider request counter: %w", err)
	}
	if m.providerLatency, err = meter.Float64Histogram(
		"darp_llm_request_duration_seconds",
		metric.WithDescription("Latency of requests to the text-generation provider"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create provider request histogram: %w", err)
	}
	if m.routingTurns, err = meter.Int64Histogram(
		"darp_routing_turns",
		metric.WithDescription("Provider turns used by one routing call"),
	); err != nil {
		return nil, fmt.Errorf("failed to create routing turns histogram: %w", err)
	}
	return &m, nil
}

func (m *otelCustomMetrics) RecordToolCall(ctx context.Context, server, tool string, outcome Outcome, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("server", server),
		attribute.String("tool", tool),
		attribute.String("outcome", string(outcome)),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolCallLatency.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *otelCustomMetrics) RecordDiscovery(ctx context.Context, url string, outcome Outcome, toolCount int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("url", url),
		attribute.String("outcome", string(outcome)),
	)
	m.discoveries.Add(ctx, 1, attrs)
	m.discoveryLatency.Record(ctx, elapsed.Seconds(), attrs)
	if outcome == OutcomeSuccess {
		m.discoveredTools.Record(ctx, int64(toolCount), metric.WithAttributes(attribute.String("url", url)))
	}
}

func (m *otelCustomMetrics) RecordProviderRequest(ctx context.Context, provider, operation string, outcome Outcome, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.String("outcome", string(outcome)),
	)
	m.providerRequests.Add(ctx, 1, attrs)
	m.providerLatency.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *otelCustomMetrics) RecordRoutingTurns(ctx context.Context, turns int, outcome Outcome) {
	m.routingTurns.Record(ctx, int64(turns), metric.WithAttributes(attribute.String("outcome", string(outcome))))
}
