package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/google/uuid"
)

// MessagesClient captures the subset of the Anthropic SDK client used by the adapter.
// It is satisfied by *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Anthropic implements Provider on top of the Claude Messages API.
type Anthropic struct {
	msg  MessagesClient
	opts Options
}

// NewAnthropic builds an adapter around an existing messages client.
func NewAnthropic(msg MessagesClient, opts Options) (*Anthropic, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		return nil, errors.New("max tokens must be positive")
	}
	return &Anthropic{msg: msg, opts: opts}, nil
}

// NewAnthropicFromAPIKey constructs the adapter on top of the given http client.
// SDK retries are disabled, retrying is left to the caller.
func NewAnthropicFromAPIKey(apiKey, baseURL string, httpClient *http.Client, opts Options) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(httpClient))
	}
	ac := sdk.NewClient(reqOpts...)
	return NewAnthropic(&ac.Messages, opts)
}

func (c *Anthropic) Name() string { return "anthropic" }

// Complete issues a non-streaming Messages.New request.
func (c *Anthropic) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}

	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		perr := classifyAnthropicError(err)
		logProviderError(c.opts.logger(), c.Name(), req, perr)
		return nil, perr
	}

	resp, err := translateAnthropicResponse(msg)
	if err != nil {
		logProviderError(c.opts.logger(), c.Name(), req, err)
		return nil, err
	}
	return resp, nil
}

func (c *Anthropic) prepareRequest(req *Request) (*sdk.MessageNewParams, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.opts.DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.opts.MaxTokens
	}

	msgs, err := encodeAnthropicMessages(req.Messages)
	if err != nil {
		return nil, &errs.ProviderError{Kind: errs.ProviderErrRequest, Err: err}
	}
	tools, err := encodeAnthropicTools(req.Tools)
	if err != nil {
		return nil, &errs.ProviderError{Kind: errs.ProviderErrRequest, Err: err}
	}

	params := &sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Model:     sdk.Model(modelID),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{
			Text:         req.System,
			CacheControl: sdk.NewCacheControlEphemeralParam(),
		}}
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	return params, nil
}

// encodeAnthropicMessages converts the transcript into Claude messages.
// Consecutive tool results are grouped into a single user message, as the API requires.
func encodeAnthropicMessages(msgs []types.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	var results []sdk.ContentBlockParamUnion

	flushResults := func() {
		if len(results) > 0 {
			out = append(out, sdk.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case types.RoleTool:
			results = append(results, sdk.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
		case types.RoleUser:
			flushResults()
			if m.Content == "" {
				continue
			}
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case types.RoleAssistant:
			flushResults()
			blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				input := call.Arguments
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, sdk.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	flushResults()

	if len(out) == 0 {
		return nil, errors.New("at least one user or assistant message is required")
	}
	return out, nil
}

func encodeAnthropicTools(defs []ToolDeclaration) ([]sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	tools := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := anthropicInputSchema(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", def.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil && def.Description != "" {
			u.OfTool.Description = sdk.String(def.Description)
		}
		tools = append(tools, u)
	}
	return tools, nil
}

// anthropicInputSchema passes the upstream schema through as extra fields.
// The "type" key is set by the SDK itself.
func anthropicInputSchema(raw json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	delete(m, "type")
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateAnthropicResponse(msg *sdk.Message) (*Response, error) {
	if msg == nil {
		return nil, &errs.ProviderError{Kind: errs.ProviderErrMalformed, Err: errors.New("response message is nil")}
	}
	resp := &Response{
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			if resp.Content != "" {
				resp.Content += "\n"
			}
			resp.Content += block.Text
		case "tool_use":
			if block.Name == "" {
				return nil, &errs.ProviderError{Kind: errs.ProviderErrMalformed, Err: errors.New("tool_use block without a name")}
			}
			args := block.Input
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			id := block.ID
			if id == "" {
				id = "toolu_" + uuid.NewString()
			}
			resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{ID: id, Name: block.Name, Arguments: args})
		}
	}
	return resp, nil
}

func classifyAnthropicError(err error) *errs.ProviderError {
	if isTimeout(err) {
		return &errs.ProviderError{Kind: errs.ProviderErrTimeout, Err: err}
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &errs.ProviderError{
			Kind:       kindForStatus(apiErr.StatusCode),
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.RawJSON(),
			Err:        err,
		}
	}
	return &errs.ProviderError{Kind: errs.ProviderErrGeneral, Err: err}
}
