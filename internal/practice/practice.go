package practice

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/errbook/internal/knowledge"
	"github.com/example/errbook/pkg/models"
)

// ErrNothingDue is returned when the practice queue is empty
var ErrNothingDue = errors.New("nothing to practice")

// Reviewer is the part of the knowledge service practice needs
type Reviewer interface {
	DueQueue(ctx context.Context, limit int) ([]models.PracticeQueueEntry, error)
	RecordReview(ctx context.Context, id int64, answer knowledge.ReviewAnswer) (*models.KnowledgePoint, error)
}

// QuestionType represents different types of questions
type QuestionType string

const (
	// TextInput asks the learner to type the corrected phrase
	TextInput QuestionType = "text_input"
	// MultipleChoice offers the correction among other phrases
	MultipleChoice QuestionType = "multiple_choice"
)

// Question is a single practice question built from a knowledge point
type Question struct {
	PointID      int64
	Type         QuestionType
	Reason       models.QueueReason
	Prompt       string
	Hint         string
	Options      []string // multiple choice only
	CorrectIndex int      // index of the correction in Options
	Expected     string
}

// Result is the checked answer to a question
type Result struct {
	Correct  bool
	Expected string
	Point    *models.KnowledgePoint
}

// Module builds practice questions from the due queue and records answers
type Module struct {
	reviewer Reviewer

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

// NewModule creates a practice module
func NewModule(reviewer Reviewer) *Module {
	return &Module{
		reviewer: reviewer,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextQuestion builds a question for the head of the practice queue. The
// rest of the queue, up to limit entries, supplies the distractors of a
// multiple choice question.
func (m *Module) NextQuestion(ctx context.Context, limit int, questionType QuestionType) (*Question, error) {
	if limit < 1 {
		limit = 1
	}
	queue, err := m.reviewer.DueQueue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load practice queue: %w", err)
	}
	if len(queue) == 0 || queue[0].Point == nil {
		return nil, ErrNothingDue
	}

	head := queue[0]
	kp := head.Point
	q := &Question{
		PointID:  kp.ID,
		Type:     questionType,
		Reason:   head.Reason,
		Prompt:   fmt.Sprintf("Correct this: %q", kp.OriginalPhrase),
		Hint:     kp.Explanation,
		Expected: kp.Correction,
	}
	if kp.Explanation == "" {
		q.Hint = kp.KeyPoint
	}

	if questionType == MultipleChoice {
		q.Options, q.CorrectIndex = m.options(kp, queue[1:], 3)
		q.Prompt = fmt.Sprintf("Which is correct instead of %q?", kp.OriginalPhrase)
	}
	return q, nil
}

// options puts the correction among up to n wrong phrases and shuffles them.
// The learner's own mistake is always one of the wrong phrases.
func (m *Module) options(kp *models.KnowledgePoint, others []models.PracticeQueueEntry, n int) ([]string, int) {
	wrong := []string{kp.OriginalPhrase}
	seen := map[string]bool{
		strings.ToLower(kp.Correction):     true,
		strings.ToLower(kp.OriginalPhrase): true,
	}
	for _, e := range others {
		if len(wrong) >= n || e.Point == nil {
			break
		}
		c := e.Point.Correction
		if seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		wrong = append(wrong, c)
	}

	all := append(wrong, kp.Correction)
	correct := len(all) - 1
	m.mu.Lock()
	m.rnd.Shuffle(len(all), func(i, j int) {
		if i == correct {
			correct = j
		} else if j == correct {
			correct = i
		}
		all[i], all[j] = all[j], all[i]
	})
	m.mu.Unlock()
	return all, correct
}

// Check grades answer and records the attempt on the point. Multiple choice
// answers may be given as the 1-based option number.
func (m *Module) Check(ctx context.Context, q *Question, answer string) (*Result, error) {
	given := answer
	if q.Type == MultipleChoice {
		if n, err := strconv.Atoi(strings.TrimSpace(answer)); err == nil && n >= 1 && n <= len(q.Options) {
			given = q.Options[n-1]
		}
	}
	correct := Matches(given, q.Expected)

	kp, err := m.reviewer.RecordReview(ctx, q.PointID, knowledge.ReviewAnswer{
		Prompt:        q.Prompt,
		Answer:        given,
		CorrectAnswer: q.Expected,
		IsCorrect:     correct,
	})
	if err != nil {
		return nil, fmt.Errorf("record review of point %d: %w", q.PointID, err)
	}
	return &Result{Correct: correct, Expected: q.Expected, Point: kp}, nil
}

// Matches compares an answer with the expected phrase, ignoring case,
// surrounding quotes, trailing punctuation and extra whitespace
func Matches(answer, expected string) bool {
	return canonical(answer) == canonical(expected)
}

func canonical(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	s = strings.Trim(s, `"'«»“”`)
	return strings.TrimRight(s, ".!?")
}
