package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/example/errbook/internal/config"
	"github.com/example/errbook/pkg/models"
)

// Grader judges a learner's answer and lists the mistakes in it
type Grader interface {
	Grade(ctx context.Context, sourceSentence, learnerAnswer string) (*models.GradingResult, error)
}

// GraderError wraps every failure of a grader call.
// Transient errors (timeout, rate limit, unavailable) may be retried by the
// caller; the others (malformed response, rejected request) may not.
type GraderError struct {
	Transient bool
	Err       error
}

func (e *GraderError) Error() string {
	if e.Transient {
		return "grader temporarily unavailable: " + e.Err.Error()
	}
	return "grader failed: " + e.Err.Error()
}

func (e *GraderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a grader failure worth retrying
func IsTransient(err error) bool {
	var ge *GraderError
	return errors.As(err, &ge) && ge.Transient
}

// New creates the grader selected by cfg.Provider
func New(cfg config.GraderConfig) (Grader, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		g, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ProviderClaude:
		g, err := NewClaude(cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "":
		return nil, fmt.Errorf("no grader configured: set OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}
	return nil, fmt.Errorf("unknown grader provider %q", cfg.Provider)
}

const systemPrompt = `You are an English teacher grading a learner's translation.
Compare the learner's answer with the source sentence and list every mistake.
Classify each mistake into exactly one category:
- systematic: a grammar rule the learner does not know (tense, agreement, articles, word order)
- isolated: a one-off item to memorize (collocation, spelling, preposition with a specific word)
- enhancement: the answer is acceptable but a more natural phrasing exists
- other: anything else
Reply with JSON only, no prose, in this shape:
{"is_correct": bool, "error_analyses": [{"category": "...", "subtype": "short label", "key_point": "rule name", "explanation": "...", "original_phrase": "learner's words", "correction": "corrected words"}]}
If the answer is fully correct, return an empty error_analyses list.`

func userPrompt(sourceSentence, learnerAnswer string) string {
	return fmt.Sprintf("Source sentence: %s\nLearner answer: %s", sourceSentence, learnerAnswer)
}

// parseGradingResult extracts the JSON verdict from a model reply.
// Replies wrapped in a markdown code fence are accepted.
func parseGradingResult(content string) (*models.GradingResult, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, &GraderError{Err: fmt.Errorf("no JSON object in reply: %q", truncate(content, 200))}
	}

	var result models.GradingResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return nil, &GraderError{Err: fmt.Errorf("malformed reply: %w", err)}
	}
	if result.ErrorAnalyses == nil {
		result.ErrorAnalyses = []models.ErrorAnalysis{}
	}
	return &result, nil
}

// wrapCallError classifies a transport-level failure
func wrapCallError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &GraderError{Transient: true, Err: ctx.Err()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GraderError{Transient: true, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GraderError{Transient: true, Err: err}
	}
	return &GraderError{Transient: true, Err: fmt.Errorf("failed to send request: %w", err)}
}

// isTransientStatus reports HTTP statuses worth retrying
func isTransientStatus(code int) bool {
	return code == 429 || code == 500 || code == 502 || code == 503 || code == 504 || code == 529
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
