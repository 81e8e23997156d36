package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/logger"
)

type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// OpenAIClassifier talks to any OpenAI-compatible chat completions endpoint,
// OpenRouter included.
type OpenAIClassifier struct {
	client openai.Client
	opts   OpenAIOptions
}

func NewOpenAI(opts OpenAIOptions) *OpenAIClassifier {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	return &OpenAIClassifier{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, product, details string) (catalog.Category, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(Prompt(product, details)),
		},
		Temperature: openai.Float(c.opts.Temperature),
		MaxTokens:   openai.Int(int64(c.opts.MaxTokens)),
	})
	if err != nil {
		return catalog.Unknown, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return catalog.Unknown, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	raw := resp.Choices[0].Message.Content
	category := ParseCategory(raw)
	logger.DebugCF("classifier", "Product categorized", map[string]interface{}{
		"product":  product,
		"raw":      raw,
		"category": string(category),
		"model":    c.opts.Model,
	})
	return category, nil
}
