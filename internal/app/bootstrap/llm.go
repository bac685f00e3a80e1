package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	openai "github.com/sashabaranov/go-openai"

	appconfig "github.com/wolfman30/pharmesol-assistant/internal/config"
	"github.com/wolfman30/pharmesol-assistant/internal/conversation"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// LLM bundles the provider client chosen by configuration. Close releases
// provider resources (the Gemini client holds a connection).
type LLM struct {
	Client  conversation.LLMClient
	Model   string
	closers []func() error
}

func (l *LLM) Close() {
	for _, c := range l.closers {
		_ = c()
	}
}

// BuildLLM wires the primary provider and, when LLM_FALLBACK_PROVIDER is set,
// a fallback. Each provider is pinned to its own model id.
func BuildLLM(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	out := &LLM{}
	primary, model, closer, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		out.closers = append(out.closers, closer)
	}
	out.Model = model
	out.Client = primary

	fallbackName := cfg.LLMFallbackProvider
	if fallbackName == "" || fallbackName == cfg.LLMProvider {
		logger.Info("llm provider configured", "provider", cfg.LLMProvider, "model", model)
		return out, nil
	}

	fallback, fallbackModel, closer, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("bootstrap: fallback provider: %w", err)
	}
	if closer != nil {
		out.closers = append(out.closers, closer)
	}
	out.Client = conversation.NewFallbackLLMClient(primary, fallback, logger.Component("llm-fallback"))
	logger.Info("llm provider configured",
		"provider", cfg.LLMProvider,
		"model", model,
		"fallback_provider", fallbackName,
		"fallback_model", fallbackModel,
	)
	return out, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg aws.Config) (conversation.LLMClient, string, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, "", nil, fmt.Errorf("bootstrap: OPENAI_API_KEY is required for the openai provider")
		}
		client := conversation.NewOpenAILLMClient(openai.NewClient(cfg.OpenAIAPIKey))
		return conversation.PinModel(client, cfg.OpenAIModel), cfg.OpenAIModel, nil, nil
	case ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, "", nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		client := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		return conversation.PinModel(client, cfg.BedrockModelID), cfg.BedrockModelID, nil, nil
	case ProviderGemini:
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", nil, fmt.Errorf("bootstrap: %w", err)
		}
		return conversation.PinModel(client, cfg.GeminiModel), cfg.GeminiModel, client.Close, nil
	default:
		return nil, "", nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}
