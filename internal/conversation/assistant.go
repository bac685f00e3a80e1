package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// TurnRequest is everything the model sees for one user turn. History holds
// the messages persisted before UserText.
type TurnRequest struct {
	History   []Message
	UserText  string
	Pharmacy  *pharmacy.Pharmacy
	IsNewLead bool
}

// TurnReply is the model's answer: free text plus proposed function calls.
type TurnReply struct {
	Content   string
	ToolCalls []ToolCall
}

// Assistant is the LLM capability used by the orchestrator.
type Assistant interface {
	Reply(ctx context.Context, req TurnRequest) (*TurnReply, error)
	Greeting(ctx context.Context, p *pharmacy.Pharmacy) (string, error)
	Continuation(ctx context.Context, history []Message, p *pharmacy.Pharmacy, state State) (string, error)
}

// LatencyRecorder observes LLM call durations.
type LatencyRecorder interface {
	ObserveLLMLatency(operation string, seconds float64)
}

const (
	defaultAssistantTimeout  = 30 * time.Second
	defaultReplyMaxTokens    = 500
	continuationMaxTokens    = 150
	continuationHistoryLimit = 6
	defaultTemperature       = 0.7
)

// AssistantOption customizes an LLMAssistant.
type AssistantOption func(*LLMAssistant)

// WithTimeout bounds every LLM call.
func WithTimeout(d time.Duration) AssistantOption {
	return func(a *LLMAssistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMaxTokens caps the reply length of a turn.
func WithMaxTokens(n int32) AssistantOption {
	return func(a *LLMAssistant) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) AssistantOption {
	return func(a *LLMAssistant) {
		a.temperature = t
	}
}

// WithLatencyRecorder reports call durations to m.
func WithLatencyRecorder(m LatencyRecorder) AssistantOption {
	return func(a *LLMAssistant) {
		a.metrics = m
	}
}

// LLMAssistant implements Assistant over any LLMClient provider.
type LLMAssistant struct {
	client      LLMClient
	model       string
	maxTokens   int32
	temperature float32
	timeout     time.Duration
	metrics     LatencyRecorder
	logger      *logging.Logger
}

// NewLLMAssistant wires the capability to a provider client.
func NewLLMAssistant(client LLMClient, model string, logger *logging.Logger, opts ...AssistantOption) *LLMAssistant {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &LLMAssistant{
		client:      client,
		model:       model,
		maxTokens:   defaultReplyMaxTokens,
		temperature: defaultTemperature,
		timeout:     defaultAssistantTimeout,
		logger:      logger.Component("assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LLMAssistant) Reply(ctx context.Context, req TurnRequest) (*TurnReply, error) {
	messages := historyMessages(req.History)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: req.UserText})

	resp, err := a.complete(ctx, "reply", LLMRequest{
		Model:       a.model,
		System:      []string{SystemPrompt(req.Pharmacy, req.IsNewLead)},
		Messages:    messages,
		Tools:       Tools(),
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	a.logger.Debug("turn completed",
		"tool_calls", len(resp.ToolCalls),
		"stop_reason", resp.StopReason,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return &TurnReply{Content: resp.Text, ToolCalls: resp.ToolCalls}, nil
}

// Greeting is rendered from a template; it does not call the model.
func (a *LLMAssistant) Greeting(ctx context.Context, p *pharmacy.Pharmacy) (string, error) {
	return GreetingFor(p), nil
}

// Continuation summarizes the tail of a conversation for a returning caller.
func (a *LLMAssistant) Continuation(ctx context.Context, history []Message, p *pharmacy.Pharmacy, state State) (string, error) {
	if len(history) > continuationHistoryLimit {
		history = history[len(history)-continuationHistoryLimit:]
	}
	messages := historyMessages(history)
	if len(messages) == 0 {
		return emptyResumeFallback, nil
	}
	resp, err := a.complete(ctx, "continuation", LLMRequest{
		Model:       a.model,
		System:      []string{continuationPrompt(p, state)},
		Messages:    messages,
		MaxTokens:   continuationMaxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return emptyResumeFallback, nil
	}
	return resp.Text, nil
}

func (a *LLMAssistant) complete(ctx context.Context, operation string, req LLMRequest) (LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.Complete(ctx, req)
	if a.metrics != nil {
		a.metrics.ObserveLLMLatency(operation, time.Since(start).Seconds())
	}
	if err != nil {
		a.logger.Warn("llm call failed", "operation", operation, "error", err)
		return LLMResponse{}, err
	}
	return resp, nil
}

// historyMessages drops SYSTEM messages and maps roles for the providers.
func historyMessages(history []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			out = append(out, ChatMessage{Role: ChatRoleUser, Content: m.Content})
		case RoleAssistant:
			out = append(out, ChatMessage{Role: ChatRoleAssistant, Content: m.Content})
		}
	}
	return out
}
