package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestAnthropicCompleteEncodesTranscript(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "2+3 is 5"}},
		StopReason: sdk.StopReasonEndTurn,
		Usage:      sdk.Usage{InputTokens: 20, OutputTokens: 4},
	}}
	c, err := NewAnthropic(stub, Options{DefaultModel: "claude-3-5-haiku-latest", MaxTokens: 512})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &Request{
		System: "route requests",
		Messages: []types.Message{
			types.UserMessage("add and multiply"),
			types.AssistantMessage("calling both", []types.ToolCall{
				{ID: "t1", Name: "calc__add", Arguments: json.RawMessage(`{"a":2,"b":3}`)},
				{ID: "t2", Name: "calc__mul", Arguments: json.RawMessage(`{"a":2,"b":3}`)},
			}),
			types.ToolResultMessage("t1", "calc__add", "5", false),
			types.ToolResultMessage("t2", "calc__mul", "server unreachable", true),
		},
		Tools: []ToolDeclaration{{
			Name:        "calc__add",
			Description: "adds",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"}},"required":["a"]}`),
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "2+3 is 5", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 20, resp.Usage.InputTokens)

	p := stub.lastParams
	assert.Equal(t, int64(512), p.MaxTokens)
	assert.Equal(t, sdk.Model("claude-3-5-haiku-latest"), p.Model)
	require.Len(t, p.System, 1)
	assert.Equal(t, "route requests", p.System[0].Text)

	// user, assistant, grouped tool results
	require.Len(t, p.Messages, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, p.Messages[2].Role)
	assert.Len(t, p.Messages[2].Content, 2)
	assert.Len(t, p.Messages[1].Content, 3)

	require.Len(t, p.Tools, 1)
	require.NotNil(t, p.Tools[0].OfTool)
	assert.Equal(t, "calc__add", p.Tools[0].OfTool.Name)
	assert.Contains(t, p.Tools[0].OfTool.InputSchema.ExtraFields, "properties")
}

func TestAnthropicCompleteToolUse(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "let me add"},
			{Type: "tool_use", ID: "toolu_1", Name: "calc__add", Input: json.RawMessage(`{"a":2,"b":3}`)},
		},
		StopReason: sdk.StopReasonToolUse,
	}}
	c, err := NewAnthropic(stub, Options{DefaultModel: "m", MaxTokens: 64})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &Request{Messages: []types.Message{types.UserMessage("add 2 and 3")}})
	require.NoError(t, err)

	assert.Equal(t, "let me add", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "calc__add", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"a":2,"b":3}`, string(resp.ToolCalls[0].Arguments))
}

func TestAnthropicErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ProviderErrorKind
	}{
		{"server error", &sdk.Error{StatusCode: 529}, errs.ProviderErrUpstream},
		{"bad request", &sdk.Error{StatusCode: 400}, errs.ProviderErrRequest},
		{"deadline", context.DeadlineExceeded, errs.ProviderErrTimeout},
		{"transport", errors.New("connection reset"), errs.ProviderErrGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewAnthropic(&stubMessagesClient{err: tt.err}, Options{DefaultModel: "m", MaxTokens: 64})
			require.NoError(t, err)

			_, err = c.Complete(context.Background(), &Request{Messages: []types.Message{types.UserMessage("hi")}})
			var pe *errs.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
		})
	}
}

func TestNewAnthropicRequiresMaxTokens(t *testing.T) {
	_, err := NewAnthropic(&stubMessagesClient{}, Options{DefaultModel: "m"})
	assert.Error(t, err)
}
