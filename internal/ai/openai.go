package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/errbook/internal/config"
	"github.com/example/errbook/pkg/models"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI represents a client for the OpenAI chat completions API
type OpenAI struct {
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewOpenAI creates a new OpenAI grader
func NewOpenAI(cfg config.GraderConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	apiURL := cfg.BaseURL
	if apiURL == "" {
		apiURL = defaultOpenAIURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAI{
		apiKey:      cfg.APIKey,
		apiURL:      apiURL,
		model:       model,
		maxTokens:   800,
		temperature: 0.2,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Message represents a message in the chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatRequest represents a request to the chat completions API
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatResponse represents a response from the chat completions API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Grade asks the model for a verdict on learnerAnswer
func (c *OpenAI) Grade(ctx context.Context, sourceSentence, learnerAnswer string) (*models.GradingResult, error) {
	request := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(sourceSentence, learnerAnswer)},
		},
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return nil, &GraderError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(requestData))
	if err != nil {
		return nil, &GraderError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapCallError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapCallError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &GraderError{
			Transient: isTransientStatus(resp.StatusCode),
			Err:       fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &GraderError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if response.Error != nil {
		return nil, &GraderError{Err: fmt.Errorf("API error: %s", response.Error.Message)}
	}
	if len(response.Choices) == 0 {
		return nil, &GraderError{Err: fmt.Errorf("no response choices returned")}
	}

	return parseGradingResult(strings.TrimSpace(response.Choices[0].Message.Content))
}
