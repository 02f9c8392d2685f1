package spaced_repetition

import (
	"testing"
	"time"

	"github.com/example/errbook/pkg/models"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestMasteryScenario(t *testing.T) {
	e := NewMasteryEngine()
	kp := models.KnowledgePoint{Category: models.CategoryIsolated, MasteryLevel: 0.0, LastSeen: t0}

	now := t0
	prevMastery := kp.MasteryLevel
	var prevNext time.Time
	for i := 0; i < 3; i++ {
		now = now.Add(time.Hour)
		kp = e.Apply(kp, RepeatedMistake(true), now)
		if kp.MasteryLevel <= prevMastery {
			t.Fatalf("step %d: mastery %v did not increase from %v", i, kp.MasteryLevel, prevMastery)
		}
		if !kp.NextReview.After(prevNext) {
			t.Fatalf("step %d: next review %v did not increase from %v", i, kp.NextReview, prevNext)
		}
		prevMastery, prevNext = kp.MasteryLevel, *kp.NextReview
	}
	if kp.CorrectCount != 3 {
		t.Errorf("correct count = %d, want 3", kp.CorrectCount)
	}

	now = now.Add(time.Hour)
	kp = e.Apply(kp, RepeatedMistake(false), now)
	if kp.MasteryLevel >= prevMastery {
		t.Errorf("mastery %v did not decrease from %v", kp.MasteryLevel, prevMastery)
	}
	if !kp.NextReview.Before(prevNext) {
		t.Errorf("next review %v not reset below %v", kp.NextReview, prevNext)
	}
	if kp.MistakeCount != 1 {
		t.Errorf("mistake count = %d, want 1", kp.MistakeCount)
	}
}

func TestMistakeNeverLengthensInterval(t *testing.T) {
	e := NewMasteryEngine()
	for _, c := range models.Categories {
		for _, m := range []float64{0, 0.1, 0.5, 0.9, 1} {
			kp := models.KnowledgePoint{Category: c, MasteryLevel: m, LastSeen: t0}
			right := e.Apply(kp, RepeatedMistake(true), t0)
			wrong := e.Apply(kp, RepeatedMistake(false), t0)
			if wrong.NextReview.After(*right.NextReview) {
				t.Errorf("%s at %v: wrong answer scheduled %v after correct %v", c, m, wrong.NextReview, right.NextReview)
			}
		}
	}
}

func TestMasteryStaysInRange(t *testing.T) {
	e := NewMasteryEngine()
	kp := models.KnowledgePoint{Category: models.CategorySystematic, MasteryLevel: 0.95}
	kp = e.Apply(kp, RepeatedMistake(true), t0)
	if kp.MasteryLevel != 1 {
		t.Errorf("mastery = %v, want clamped to 1", kp.MasteryLevel)
	}

	kp = models.KnowledgePoint{Category: models.CategorySystematic, MasteryLevel: 0.05}
	kp = e.Apply(kp, RepeatedMistake(false), t0)
	if kp.MasteryLevel != 0 {
		t.Errorf("mastery = %v, want clamped to 0", kp.MasteryLevel)
	}
	if kp.MistakeCount != 1 || kp.CorrectCount != 0 {
		t.Errorf("counts = %d/%d", kp.MistakeCount, kp.CorrectCount)
	}
}

func TestNewMistake(t *testing.T) {
	e := NewMasteryEngine()

	fresh := e.Apply(models.KnowledgePoint{Category: models.CategorySystematic}, NewMistake(), t0)
	if fresh.MistakeCount != 1 || fresh.MasteryLevel != e.Initial(models.CategorySystematic) {
		t.Errorf("fresh point = %+v", fresh)
	}
	if !fresh.NextReview.Equal(t0.Add(e.InitialInterval)) || !fresh.LastSeen.Equal(t0) {
		t.Errorf("fresh schedule: last_seen=%v next=%v", fresh.LastSeen, fresh.NextReview)
	}

	if e.Initial(models.CategorySystematic) >= e.Initial(models.CategoryIsolated) {
		t.Error("systematic should start below isolated")
	}

	learned := models.KnowledgePoint{Category: models.CategoryIsolated, MasteryLevel: 0.8, MistakeCount: 1, CorrectCount: 5}
	merged := e.Apply(learned, NewMistake(), t0)
	if merged.MistakeCount != 2 || merged.CorrectCount != 5 {
		t.Errorf("merged counts = %d/%d", merged.MistakeCount, merged.CorrectCount)
	}
	if merged.MasteryLevel != e.Initial(models.CategoryIsolated) {
		t.Errorf("merged mastery = %v, want %v", merged.MasteryLevel, e.Initial(models.CategoryIsolated))
	}

	weak := models.KnowledgePoint{Category: models.CategoryIsolated, MasteryLevel: 0.05, MistakeCount: 3}
	if got := e.Apply(weak, NewMistake(), t0).MasteryLevel; got != 0.05 {
		t.Errorf("merge raised mastery to %v", got)
	}
}

func TestIntervalGrowsWithMastery(t *testing.T) {
	e := NewMasteryEngine()
	if e.Interval(0) != e.MinInterval {
		t.Errorf("Interval(0) = %v, want %v", e.Interval(0), e.MinInterval)
	}
	if d := e.Interval(1) - e.MaxInterval; d > time.Second || d < -time.Second {
		t.Errorf("Interval(1) = %v, want %v", e.Interval(1), e.MaxInterval)
	}
	prev := time.Duration(0)
	for m := 0.0; m <= 1.0; m += 0.1 {
		d := e.Interval(m)
		if d <= prev {
			t.Fatalf("Interval(%v) = %v, not above %v", m, d, prev)
		}
		prev = d
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	e := NewMasteryEngine()
	next := t0
	kp := models.KnowledgePoint{Category: models.CategoryOther, MasteryLevel: 0.5, NextReview: &next}
	_ = e.Apply(kp, RepeatedMistake(true), t0.Add(time.Hour))
	if kp.MasteryLevel != 0.5 || kp.CorrectCount != 0 || !kp.NextReview.Equal(t0) {
		t.Errorf("input modified: %+v", kp)
	}
}
