package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// ToolCall is a function invocation proposed by the model. Arguments is the
// raw JSON object text as the provider returned it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	MaxTokens   int32
	Temperature float32
}

type LLMResponse struct {
	Text       string
	ToolCalls  []ToolCall
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// PinnedModelClient sends every request with a fixed model id. It keeps a
// fallback provider from receiving the primary provider's model name.
type PinnedModelClient struct {
	next  LLMClient
	model string
}

// PinModel wraps client so its requests always use model.
func PinModel(client LLMClient, model string) *PinnedModelClient {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &PinnedModelClient{next: client, model: model}
}

func (c *PinnedModelClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	req.Model = c.model
	return c.next.Complete(ctx, req)
}
