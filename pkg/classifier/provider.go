package classifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/config"
)

// InferProvider guesses the API family of a model identifier when the
// provider is not configured explicitly.
func InferProvider(model string) string {
	m := strings.TrimSpace(strings.ToLower(model))
	if m == "" {
		return "none"
	}

	if idx := strings.Index(m, "/"); idx > 0 {
		switch m[:idx] {
		case "openrouter", "anthropic", "openai", "google", "deepseek", "meta-llama", "mistralai", "qwen":
			return "openrouter"
		}
	}

	switch {
	case strings.Contains(m, "claude"):
		return "anthropic"
	case strings.Contains(m, "gpt") || strings.Contains(m, "o3") || strings.Contains(m, "o4"):
		return "openai"
	default:
		return "openrouter"
	}
}

type providerSpec struct {
	provider string
	model    string
	apiKey   string
	apiBase  string
}

// New builds the configured classifier, wrapping it in a Failover when a
// fallback provider or model is set.
func New(cfg config.ClassifierConfig) (Classifier, error) {
	primary, err := build(cfg, providerSpec{
		provider: cfg.Provider,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		apiBase:  cfg.APIBase,
	})
	if err != nil {
		return nil, err
	}
	if cfg.FallbackModel == "" && cfg.FallbackProvider == "" {
		return primary, nil
	}
	apiKey := cfg.FallbackAPIKey
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	fallback, err := build(cfg, providerSpec{
		provider: cfg.FallbackProvider,
		model:    cfg.FallbackModel,
		apiKey:   apiKey,
		apiBase:  cfg.FallbackAPIBase,
	})
	if err != nil {
		return nil, fmt.Errorf("fallback classifier: %w", err)
	}
	return NewFailover(primary, fallback, time.Duration(cfg.HoldMinutes)*time.Minute), nil
}

func build(cfg config.ClassifierConfig, spec providerSpec) (Classifier, error) {
	provider := strings.ToLower(strings.TrimSpace(spec.provider))
	if provider == "" {
		provider = InferProvider(spec.model)
	}
	if provider == "none" {
		return Disabled{}, nil
	}
	if spec.apiKey == "" {
		return nil, fmt.Errorf("%s classifier: api key is required", provider)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	switch provider {
	case "openai", "openrouter":
		base := spec.apiBase
		if base == "" && provider == "openrouter" {
			base = "https://openrouter.ai/api/v1"
		}
		return NewOpenAI(OpenAIOptions{
			APIKey:      spec.apiKey,
			BaseURL:     base,
			Model:       spec.model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		}), nil
	case "anthropic":
		return NewAnthropic(AnthropicOptions{
			APIKey:    spec.apiKey,
			BaseURL:   spec.apiBase,
			Model:     spec.model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", spec.provider)
	}
}
