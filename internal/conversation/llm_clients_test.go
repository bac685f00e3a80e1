package conversation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

type fakeChatClient struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAILLMClient_ToolCalls(t *testing.T) {
	fake := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   "call_1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      FunctionScheduleCallback,
						Arguments: `{"preferred_time":"noon"}`,
					},
				}},
			},
			FinishReason: openai.FinishReasonToolCalls,
		}},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	client := NewOpenAILLMClient(fake)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:       "gpt-4o-mini",
		System:      []string{"be helpful"},
		Messages:    []ChatMessage{{Role: ChatRoleAssistant, Content: "Hello!"}, {Role: ChatRoleUser, Content: "call me at noon"}},
		Tools:       Tools(),
		MaxTokens:   500,
		Temperature: 0.7,
	})
	require.NoError(t, err)

	require.Len(t, fake.req.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.req.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, fake.req.Messages[2].Role)
	require.Len(t, fake.req.Tools, 4)
	assert.Equal(t, FunctionCollectPharmacyInfo, fake.req.Tools[0].Function.Name)
	assert.Equal(t, "auto", fake.req.ToolChoice)

	assert.Empty(t, resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, ToolCall{ID: "call_1", Name: FunctionScheduleCallback, Arguments: `{"preferred_time":"noon"}`}, resp.ToolCalls[0])
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)
	assert.Equal(t, "tool_calls", resp.StopReason)
}

func TestOpenAILLMClient_Errors(t *testing.T) {
	client := NewOpenAILLMClient(&fakeChatClient{})
	_, err := client.Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}})
	require.Error(t, err, "model is required")

	_, err = client.Complete(context.Background(), LLMRequest{Model: "m", Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}})
	require.Error(t, err, "no choices")

	client = NewOpenAILLMClient(&fakeChatClient{err: errBoom})
	_, err = client.Complete(context.Background(), LLMRequest{Model: "m"})
	require.ErrorIs(t, err, errBoom)
}

type fakeConverseAPI struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverseAPI) Converse(ctx context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, f.err
}

func TestBedrockLLMClient_ToolUse(t *testing.T) {
	fake := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role: brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: "Let me note that."},
				&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String("tooluse_1"),
					Name:      aws.String(FunctionCollectPharmacyInfo),
					Input:     document.NewLazyDocument(map[string]any{"pharmacy_name": "Corner Rx"}),
				}},
			},
		}},
		StopReason: brtypes.StopReasonToolUse,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(20),
			OutputTokens: aws.Int32(8),
			TotalTokens:  aws.Int32(28),
		},
	}}
	client := NewBedrockLLMClient(fake)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:       "anthropic.claude-3-haiku",
		System:      []string{"sys"},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: "We're Corner Rx"}},
		Tools:       Tools(),
		MaxTokens:   100,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	require.NotNil(t, fake.input.ToolConfig)
	require.Len(t, fake.input.ToolConfig.Tools, 4)
	spec, ok := fake.input.ToolConfig.Tools[1].(*brtypes.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, FunctionScheduleCallback, aws.ToString(spec.Value.Name))
	require.Len(t, fake.input.System, 1)

	assert.Equal(t, "Let me note that.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tooluse_1", resp.ToolCalls[0].ID)
	assert.Equal(t, FunctionCollectPharmacyInfo, resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"pharmacy_name":"Corner Rx"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, "tool_use", resp.StopReason)
	assert.Equal(t, int32(28), resp.Usage.TotalTokens)
}

func TestBedrockLLMClient_NoToolsOmitsConfig(t *testing.T) {
	fake := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: " Welcome back! "}},
		}},
	}}
	resp, err := NewBedrockLLMClient(fake).Complete(context.Background(), LLMRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Nil(t, fake.input.ToolConfig)
	assert.Equal(t, "Welcome back!", resp.Text)
}

func TestBedrockExtractOutput_Empty(t *testing.T) {
	_, err := bedrockExtractOutput(&bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "  "}},
		}},
	})
	require.Error(t, err)
}

func TestGeminiTools(t *testing.T) {
	tools := geminiTools(Tools())
	require.Len(t, tools, 1)
	decls := tools[0].FunctionDeclarations
	require.Len(t, decls, 4)

	collect := decls[0]
	assert.Equal(t, genai.TypeObject, collect.Parameters.Type)
	assert.Equal(t, genai.TypeNumber, collect.Parameters.Properties["estimated_rx_volume"].Type)

	email := decls[2]
	assert.Equal(t, genai.TypeBoolean, email.Parameters.Properties["include_pricing"].Type)
	assert.Equal(t, []string{"email"}, email.Parameters.Required)

	tier := decls[3].Parameters.Properties["volume_tier"]
	assert.Equal(t, []string{"HIGH", "MEDIUM", "LOW", "UNKNOWN"}, tier.Enum)
}

func TestGeminiHistory(t *testing.T) {
	history, last, err := geminiHistory([]ChatMessage{
		{Role: ChatRoleSystem, Content: "ignored"},
		{Role: ChatRoleAssistant, Content: "Hello!"},
		{Role: ChatRoleUser, Content: "  "},
		{Role: ChatRoleUser, Content: "Who is this?"},
	})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "model", history[0].Role)
	assert.Equal(t, "Who is this?", last)

	_, _, err = geminiHistory([]ChatMessage{{Role: ChatRoleSystem, Content: "only"}})
	require.Error(t, err)
}

func TestGeminiExtractOutput(t *testing.T) {
	resp, err := geminiExtractOutput(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("Noted. "),
				genai.FunctionCall{Name: FunctionHighlightRxBenefits, Args: map[string]any{"volume_tier": "LOW"}},
				genai.FunctionCall{Name: FunctionSendFollowupEmail, Args: map[string]any{"email": "a@b.co"}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 4, TotalTokenCount: 7},
	})
	require.NoError(t, err)

	assert.Equal(t, "Noted.", resp.Text)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "gemini-call-1", resp.ToolCalls[0].ID)
	assert.Equal(t, "gemini-call-2", resp.ToolCalls[1].ID)
	assert.JSONEq(t, `{"volume_tier":"LOW"}`, resp.ToolCalls[0].Arguments)
	assert.NotEmpty(t, resp.StopReason)
	assert.Equal(t, int32(7), resp.Usage.TotalTokens)

	_, err = geminiExtractOutput(&genai.GenerateContentResponse{})
	require.Error(t, err)
}

type stubLLM struct {
	reqs []LLMRequest
	resp LLMResponse
	err  error
}

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.reqs = append(s.reqs, req)
	if _, ok := ctx.Deadline(); !ok {
		return LLMResponse{}, context.DeadlineExceeded
	}
	return s.resp, s.err
}

type latencies map[string]int

func (l latencies) ObserveLLMLatency(operation string, seconds float64) { l[operation]++ }

func TestLLMAssistant_Reply(t *testing.T) {
	llm := &stubLLM{resp: LLMResponse{Text: "Hi!", ToolCalls: []ToolCall{toolCall(FunctionHighlightRxBenefits, `{"volume_tier":"HIGH"}`)}}}
	obs := latencies{}
	a := NewLLMAssistant(llm, "gpt-4o-mini", logging.Discard(), WithLatencyRecorder(obs), WithMaxTokens(256))

	p := testPharmacy()
	reply, err := a.Reply(context.Background(), TurnRequest{
		History: []Message{
			{Role: RoleAssistant, Content: "Hello"},
			{Role: RoleSystem, Content: "internal note"},
			{Role: RoleUser, Content: "Hi"},
		},
		UserText: "Tell me about pricing",
		Pharmacy: &p,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", reply.Content)
	require.Len(t, reply.ToolCalls, 1)

	require.Len(t, llm.reqs, 1)
	req := llm.reqs[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, int32(256), req.MaxTokens)
	assert.Len(t, req.Tools, 4)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, ChatMessage{Role: ChatRoleUser, Content: "Tell me about pricing"}, req.Messages[2])
	assert.Contains(t, req.System[0], "- Name: Main Street Pharmacy")
	assert.Equal(t, 1, obs["reply"])
}

func TestLLMAssistant_ReplyFailureIsUpstream(t *testing.T) {
	a := NewLLMAssistant(&stubLLM{err: errBoom}, "m", logging.Discard())
	_, err := a.Reply(context.Background(), TurnRequest{UserText: "hi", IsNewLead: true})
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestLLMAssistant_Continuation(t *testing.T) {
	llm := &stubLLM{resp: LLMResponse{Text: "Welcome back!"}}
	a := NewLLMAssistant(llm, "m", logging.Discard())

	history := make([]Message, 0, 10)
	for i := 0; i < 10; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleAssistant
		}
		history = append(history, Message{Role: role, Content: string(rune('a' + i))})
	}
	out, err := a.Continuation(context.Background(), history, nil, StateDiscussingServices)
	require.NoError(t, err)
	assert.Equal(t, "Welcome back!", out)

	req := llm.reqs[0]
	assert.Len(t, req.Messages, 6)
	assert.Equal(t, "e", req.Messages[0].Content)
	assert.Equal(t, int32(150), req.MaxTokens)
	assert.Empty(t, req.Tools)
	assert.Contains(t, req.System[0], "Match the conversation stage: DISCUSSING_SERVICES")
	assert.Contains(t, req.System[0], "New lead conversation")
}

func TestFallbackLLMClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary := &stubLLM{err: errBoom}
	fallback := &stubLLM{resp: LLMResponse{Text: "from fallback"}}
	client := NewFallbackLLMClient(primary, fallback, logging.Discard())

	dctx, dcancel := context.WithTimeout(ctx, 5*time.Second)
	defer dcancel()
	resp, err := client.Complete(dctx, LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text)

	cancel()
	_, err = client.Complete(dctx, LLMRequest{})
	require.Error(t, err)
	assert.Len(t, fallback.reqs, 1, "cancelled context skips the fallback")
}

func TestFallbackWithPinnedModels(t *testing.T) {
	primary := &stubLLM{err: errBoom}
	fallback := &stubLLM{resp: LLMResponse{Text: "ok"}}
	client := NewFallbackLLMClient(PinModel(primary, "gpt-4o-mini"), PinModel(fallback, "gemini-2.5-flash"), logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Complete(ctx, LLMRequest{Model: "ignored"})
	require.NoError(t, err)
	require.Len(t, primary.reqs, 1)
	require.Len(t, fallback.reqs, 1)
	assert.Equal(t, "gpt-4o-mini", primary.reqs[0].Model)
	assert.Equal(t, "gemini-2.5-flash", fallback.reqs[0].Model)
}

func TestToolSchemaIsValidJSON(t *testing.T) {
	for _, tool := range Tools() {
		_, err := json.Marshal(tool.JSONSchema())
		require.NoError(t, err, tool.Name)
	}
}
