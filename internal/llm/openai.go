package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// ChatClient captures the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// OpenAI implements Provider via the Chat Completions API of OpenAI or any compatible server.
type OpenAI struct {
	chat ChatClient
	opts Options
}

// NewOpenAI builds an adapter around an existing chat client.
func NewOpenAI(chat ChatClient, opts Options) (*OpenAI, error) {
	if chat == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model is required")
	}
	return &OpenAI{chat: chat, opts: opts}, nil
}

// NewOpenAIFromAPIKey constructs the adapter on top of the given http client.
// baseURL overrides the API endpoint for OpenAI-compatible servers.
func NewOpenAIFromAPIKey(apiKey, baseURL string, httpClient *http.Client, opts Options) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return NewOpenAI(openai.NewClientWithConfig(cfg), opts)
}

func (c *OpenAI) Name() string { return "openai" }

// Complete sends one chat completion request.
func (c *OpenAI) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.opts.DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.opts.MaxTokens
	}

	request := openai.ChatCompletionRequest{
		Model:     modelID,
		Messages:  encodeOpenAIMessages(req.System, req.Messages),
		MaxTokens: maxTokens,
		Tools:     encodeOpenAITools(req.Tools),
	}

	response, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		perr := classifyOpenAIError(err)
		logProviderError(c.opts.logger(), c.Name(), req, perr)
		return nil, perr
	}

	resp, err := translateOpenAIResponse(response)
	if err != nil {
		logProviderError(c.opts.logger(), c.Name(), req, err)
		return nil, err
	}
	return resp, nil
}

func encodeOpenAIMessages(system string, msgs []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case types.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case types.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, call := range m.ToolCalls {
				args := string(call.Arguments)
				if args == "" {
					args = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: args,
					},
				})
			}
			out = append(out, msg)
		case types.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func encodeOpenAITools(defs []ToolDeclaration) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		params := def.InputSchema
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object"}`)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func translateOpenAIResponse(resp openai.ChatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, &errs.ProviderError{Kind: errs.ProviderErrMalformed, Err: errors.New("response has no choices")}
	}
	choice := resp.Choices[0]
	out := &Response{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		if call.Function.Name == "" {
			return nil, &errs.ProviderError{Kind: errs.ProviderErrMalformed, Err: errors.New("tool call without a name")}
		}
		args := json.RawMessage(call.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		id := call.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{ID: id, Name: call.Function.Name, Arguments: args})
	}
	return out, nil
}

func classifyOpenAIError(err error) *errs.ProviderError {
	if isTimeout(err) {
		return &errs.ProviderError{Kind: errs.ProviderErrTimeout, Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := &errs.ProviderError{
			Kind:       kindForStatus(apiErr.HTTPStatusCode),
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
			Err:        err,
		}
		if apiErr.Code != nil {
			pe.Code = fmt.Sprint(apiErr.Code)
		}
		return pe
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &errs.ProviderError{
			Kind:       kindForStatus(reqErr.HTTPStatusCode),
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}
	return &errs.ProviderError{Kind: errs.ProviderErrGeneral, Err: err}
}
