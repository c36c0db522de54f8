// Package router fulfils a free-text request by letting the model call the tools of the whole catalog
// until it answers without requesting more.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/llm"
	"github.com/darp-registry/darp/internal/model"
	"github.com/darp-registry/darp/internal/service/mcp"
	"github.com/darp-registry/darp/internal/telemetry"
	"github.com/darp-registry/darp/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxTurns    = 10
	DefaultConcurrency = 4
)

const routerSystemPrompt = `You fulfil the user's request using the tools of the registered MCP servers.
Each tool name starts with the name of the server that owns it.
Call tools when they help, you may call several at once. When you have what you need,
answer the user directly without calling any more tools.`

// Catalog provides the servers whose tools are offered to the model.
type Catalog interface {
	Snapshot(ctx context.Context) ([]model.Server, error)
}

// Dispatcher invokes a tool on an upstream server.
type Dispatcher interface {
	InvokeTool(ctx context.Context, target mcp.Target, toolName string, args map[string]any) (*types.ToolInvokeResult, error)
}

// Config holds the configuration parameters for initializing the Engine.
type Config struct {
	Provider   llm.Provider
	Catalog    Catalog
	Dispatcher Dispatcher
	Logger     *zap.Logger
	Metrics    telemetry.CustomMetrics

	// MaxTurns bounds the number of provider calls of one routing request.
	MaxTurns int
	// Concurrency bounds the tool calls of one turn running at the same time.
	Concurrency int
}

// Engine runs the model / tool-dispatch loop.
type Engine struct {
	provider    llm.Provider
	catalog     Catalog
	dispatcher  Dispatcher
	logger      *zap.Logger
	metrics     telemetry.CustomMetrics
	maxTurns    int
	concurrency int
}

func NewEngine(c *Config) (*Engine, error) {
	if c.Provider == nil {
		return nil, errors.New("llm provider is required")
	}
	if c.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if c.Dispatcher == nil {
		return nil, errors.New("tool dispatcher is required")
	}
	e := &Engine{
		provider:    c.Provider,
		catalog:     c.Catalog,
		dispatcher:  c.Dispatcher,
		logger:      c.Logger,
		metrics:     c.Metrics,
		maxTurns:    c.MaxTurns,
		concurrency: c.Concurrency,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.metrics == nil {
		e.metrics = telemetry.NewNoopCustomMetrics()
	}
	if e.maxTurns <= 0 {
		e.maxTurns = DefaultMaxTurns
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultConcurrency
	}
	return e, nil
}

// Route runs the conversation for request and returns the full transcript,
// starting with the user message and ending with the model's final answer.
// Failed tool calls are recorded in the transcript. Provider failures abort the request,
// and running out of turns returns an *errs.TurnLimitError carrying the partial transcript.
func (e *Engine) Route(ctx context.Context, request string) ([]types.Message, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, errs.InvalidInput("request is required")
	}

	servers, err := e.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	tools := buildToolTable(servers)

	transcript := []types.Message{types.UserMessage(request)}
	for turn := 1; turn <= e.maxTurns; turn++ {
		resp, err := e.provider.Complete(ctx, &llm.Request{
			Operation: "route",
			System:    routerSystemPrompt,
			Messages:  transcript,
			Tools:     tools.decls,
		})
		if err != nil {
			e.metrics.RecordRoutingTurns(ctx, turn, telemetry.OutcomeError)
			return nil, fmt.Errorf("routing turn %d: %w", turn, err)
		}

		transcript = append(transcript, types.AssistantMessage(resp.Content, resp.ToolCalls))
		if len(resp.ToolCalls) == 0 {
			e.metrics.RecordRoutingTurns(ctx, turn, telemetry.OutcomeSuccess)
			return transcript, nil
		}

		results, err := e.dispatch(ctx, tools, resp.ToolCalls)
		if err != nil {
			e.metrics.RecordRoutingTurns(ctx, turn, telemetry.OutcomeError)
			return nil, err
		}
		transcript = append(transcript, results...)
	}

	e.logger.Error("routing exceeded the maximum number of turns",
		zap.Int("max_turns", e.maxTurns),
		zap.Int("messages", len(transcript)),
		zap.String("request", request),
	)
	e.metrics.RecordRoutingTurns(ctx, e.maxTurns, telemetry.OutcomeError)
	return nil, &errs.TurnLimitError{MaxTurns: e.maxTurns, Transcript: transcript}
}

// dispatch runs the tool calls of one turn and returns their results in the order they were requested.
// Only cancellation of ctx is an error, every other failure becomes an error result.
func (e *Engine) dispatch(ctx context.Context, tools *toolTable, calls []types.ToolCall) ([]types.Message, error) {
	results := make([]types.Message, len(calls))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.invoke(ctx, tools, call)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("routing cancelled while calling tools: %w", err)
	}
	return results, nil
}

func (e *Engine) invoke(ctx context.Context, tools *toolTable, call types.ToolCall) types.Message {
	fail := func(msg string) types.Message {
		return types.ToolResultMessage(call.ID, call.Name, msg, true)
	}

	route, ok := tools.lookup(call.Name)
	if !ok {
		e.logger.Warn("model requested an unknown tool", zap.String("tool", call.Name))
		return fail(fmt.Sprintf("unknown tool %q", call.Name))
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		e.logger.Warn("model sent invalid tool arguments",
			zap.String("tool", call.Name),
			zap.ByteString("arguments", call.Arguments),
			zap.Error(err),
		)
		return fail(fmt.Sprintf("invalid arguments for tool %q: %v", call.Name, err))
	}

	res, err := e.dispatcher.InvokeTool(ctx, route.target, route.tool, args)
	if err != nil {
		return fail(err.Error())
	}
	return types.ToolResultMessage(call.ID, call.Name, res.Text(), res.IsError)
}

// decodeArguments reads the model's arguments, which must be a JSON object or empty.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return args, nil
}
