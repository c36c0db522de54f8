// Package llm is the narrow contract darp uses to talk to a text-generation provider,
// with adapters for OpenAI-compatible and Anthropic APIs.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/darp-registry/darp/internal/config"
	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/telemetry"
	"github.com/darp-registry/darp/pkg/types"
	"go.uber.org/zap"
)

// ToolDeclaration advertises one callable tool to the model.
// Name must already be safe for the provider (letters, digits, '_' and '-').
type ToolDeclaration struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Request is a single completion request.
type Request struct {
	// Operation labels the request in logs and metrics (eg- "search", "route").
	Operation string

	// Model overrides the provider's default model when set.
	Model string

	// System is sent as a cacheable instruction where the provider supports it.
	System string

	Messages  []types.Message
	Tools     []ToolDeclaration
	MaxTokens int
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is either free text, a list of tool calls, or both.
type Response struct {
	Content    string
	ToolCalls  []types.ToolCall
	StopReason string
	Usage      Usage
}

// Provider completes a conversation.
// Implementations classify every failure as an *errs.ProviderError and never retry.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Options holds what every adapter needs besides its SDK client.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Logger       *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// NewFromSettings builds the provider selected in settings.
// httpClient is shared by every request and carries the proxy and timeout.
func NewFromSettings(s *config.Settings, httpClient *http.Client, logger *zap.Logger) (Provider, error) {
	opts := Options{
		DefaultModel: s.LLMModel,
		MaxTokens:    s.LLMMaxTokens,
		Logger:       logger,
	}
	switch s.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAIFromAPIKey(s.OpenAIAPIKey, s.OpenAIAPIBase, httpClient, opts)
	case config.ProviderAnthropic:
		return NewAnthropicFromAPIKey(s.AnthropicAPIKey, s.AnthropicAPIBase, httpClient, opts)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", s.LLMProvider)
	}
}

// instrumented records a metric for every request of the wrapped provider.
type instrumented struct {
	Provider
	metrics telemetry.CustomMetrics
}

// WithMetrics wraps p so that every Complete call is recorded.
func WithMetrics(p Provider, m telemetry.CustomMetrics) Provider {
	if m == nil {
		return p
	}
	return &instrumented{Provider: p, metrics: m}
}

func (i *instrumented) Complete(ctx context.Context, req *Request) (*Response, error) {
	started := time.Now()
	resp, err := i.Provider.Complete(ctx, req)
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeError
	}
	i.metrics.RecordProviderRequest(ctx, i.Provider.Name(), req.Operation, outcome, time.Since(started))
	return resp, err
}

// logProviderError logs the provider diagnostics carried by err, if any.
func logProviderError(logger *zap.Logger, provider string, req *Request, err error) {
	var pe *errs.ProviderError
	if !errors.As(err, &pe) {
		logger.Error("llm request failed", zap.String("provider", provider), zap.Error(err))
		return
	}
	logger.Error("llm request failed",
		zap.String("provider", provider),
		zap.String("operation", req.Operation),
		zap.String("kind", string(pe.Kind)),
		zap.Int("status_code", pe.StatusCode),
		zap.String("code", pe.Code),
		zap.String("body", pe.Body),
		zap.Error(pe.Err),
	)
}

// kindForStatus maps an HTTP status from the provider to an error kind.
func kindForStatus(status int) errs.ProviderErrorKind {
	switch {
	case status >= 500:
		return errs.ProviderErrUpstream
	case status >= 400:
		return errs.ProviderErrRequest
	default:
		return errs.ProviderErrGeneral
	}
}

// isTimeout reports whether err comes from an expired deadline, either the caller's or the http client's.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func validateRequest(req *Request) error {
	if req == nil || len(req.Messages) == 0 {
		return &errs.ProviderError{Kind: errs.ProviderErrRequest, Err: errors.New("messages are required")}
	}
	for i, m := range req.Messages {
		if err := m.Validate(); err != nil {
			return &errs.ProviderError{Kind: errs.ProviderErrRequest, Err: fmt.Errorf("message %d: %w", i, err)}
		}
	}
	return nil
}
