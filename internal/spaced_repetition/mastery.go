package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/errbook/pkg/models"
)

// OutcomeKind is what happened to a knowledge point
type OutcomeKind int

const (
	// KindNewMistake is a first-time error, or a known error made again in a new sentence
	KindNewMistake OutcomeKind = iota
	// KindRepeatedMistake is a practice attempt on an existing point
	KindRepeatedMistake
)

// Outcome is the input of MasteryEngine.Apply
type Outcome struct {
	Kind         OutcomeKind
	IsCorrectNow bool
}

// NewMistake returns the outcome for a freshly created or merged error
func NewMistake() Outcome {
	return Outcome{Kind: KindNewMistake}
}

// RepeatedMistake returns the outcome of a practice attempt
func RepeatedMistake(isCorrectNow bool) Outcome {
	return Outcome{Kind: KindRepeatedMistake, IsCorrectNow: isCorrectNow}
}

// MasteryEngine moves mastery and schedules the next review.
// The review interval grows exponentially with mastery:
// MinInterval at mastery 0, MaxInterval at mastery 1.
type MasteryEngine struct {
	// Mastery a point starts from (and falls back to when merged)
	InitialMastery map[models.Category]float64
	// Gain on a correct answer
	Increment map[models.Category]float64
	// Loss on a wrong answer
	Decrement map[models.Category]float64
	// Delay before the first review of a new mistake
	InitialInterval time.Duration
	// Delay after a wrong practice answer
	ResetInterval time.Duration
	MinInterval   time.Duration
	MaxInterval   time.Duration
}

// NewMasteryEngine creates a new engine with default settings.
// Systematic points start lowest and move fastest; isolated points move slowest.
func NewMasteryEngine() *MasteryEngine {
	return &MasteryEngine{
		InitialMastery: map[models.Category]float64{
			models.CategorySystematic:  0.1,
			models.CategoryIsolated:    0.2,
			models.CategoryEnhancement: 0.3,
			models.CategoryOther:       0.2,
		},
		Increment: map[models.Category]float64{
			models.CategorySystematic:  0.25,
			models.CategoryIsolated:    0.10,
			models.CategoryEnhancement: 0.15,
			models.CategoryOther:       0.15,
		},
		Decrement: map[models.Category]float64{
			models.CategorySystematic:  0.20,
			models.CategoryIsolated:    0.10,
			models.CategoryEnhancement: 0.15,
			models.CategoryOther:       0.15,
		},
		InitialInterval: 24 * time.Hour,
		ResetInterval:   4 * time.Hour,
		MinInterval:     24 * time.Hour,
		MaxInterval:     60 * 24 * time.Hour,
	}
}

// Initial returns the starting mastery of a category
func (e *MasteryEngine) Initial(c models.Category) float64 {
	if v, ok := e.InitialMastery[c]; ok {
		return v
	}
	return e.InitialMastery[models.CategoryOther]
}

// Apply returns kp updated with outcome at now. kp itself is not modified.
func (e *MasteryEngine) Apply(kp models.KnowledgePoint, outcome Outcome, now time.Time) models.KnowledgePoint {
	var next time.Time

	switch {
	case outcome.Kind == KindNewMistake:
		kp.MistakeCount++
		kp.MasteryLevel = math.Min(kp.MasteryLevel, e.Initial(kp.Category))
		if kp.MistakeCount == 1 {
			kp.MasteryLevel = e.Initial(kp.Category)
		}
		next = now.Add(e.InitialInterval)

	case outcome.IsCorrectNow:
		kp.CorrectCount++
		kp.MasteryLevel += e.step(e.Increment, kp.Category)
		next = now.Add(e.Interval(clamp(kp.MasteryLevel)))

	default:
		kp.MistakeCount++
		kp.MasteryLevel -= e.step(e.Decrement, kp.Category)
		next = now.Add(e.ResetInterval)
	}

	kp.MasteryLevel = clamp(kp.MasteryLevel)
	kp.LastSeen = now
	kp.NextReview = &next
	return kp
}

// Interval returns the review delay for a mastery level
func (e *MasteryEngine) Interval(mastery float64) time.Duration {
	mastery = clamp(mastery)
	ratio := float64(e.MaxInterval) / float64(e.MinInterval)
	return time.Duration(float64(e.MinInterval) * math.Pow(ratio, mastery))
}

func (e *MasteryEngine) step(table map[models.Category]float64, c models.Category) float64 {
	if v, ok := table[c]; ok {
		return v
	}
	return table[models.CategoryOther]
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
