package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/example/errbook/internal/config"
	"github.com/example/errbook/pkg/models"
)

// Claude grades answers through the Anthropic messages API
type Claude struct {
	client anthropic.Client
	model  string
}

// NewClaude creates a new Claude grader
func NewClaude(cfg config.GraderConfig) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(2),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Claude{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Grade asks the model for a verdict on learnerAnswer
func (c *Claude) Grade(ctx context.Context, sourceSentence, learnerAnswer string) (*models.GradingResult, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(sourceSentence, learnerAnswer))),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &GraderError{Transient: isTransientStatus(apiErr.StatusCode), Err: err}
		}
		return nil, wrapCallError(ctx, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return parseGradingResult(text.String())
}
