package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/logger"
)

type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

type AnthropicClassifier struct {
	client anthropic.Client
	opts   AnthropicOptions
}

func NewAnthropic(opts AnthropicOptions) *AnthropicClassifier {
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
	if opts.Model == "" {
		opts.Model = "claude-3-5-haiku-latest"
	}
	return &AnthropicClassifier{
		client: anthropic.NewClient(reqOpts...),
		opts:   opts,
	}
}

func (c *AnthropicClassifier) Classify(ctx context.Context, product, details string) (catalog.Category, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.opts.Model),
		MaxTokens: int64(c.opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(product, details))),
		},
	})
	if err != nil {
		return catalog.Unknown, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	category := ParseCategory(sb.String())
	logger.DebugCF("classifier", "Product categorized", map[string]interface{}{
		"product":  product,
		"raw":      sb.String(),
		"category": string(category),
		"model":    c.opts.Model,
	})
	return category, nil
}
