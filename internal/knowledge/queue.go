package knowledge

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// Priority weights of the practice queue
const (
	categoryWeightFactor = 0.3
	weaknessFactor       = 0.5
	overdueFactor        = 0.2
	// overdue time at which the overdue term saturates
	overdueHorizon = 7 * 24 * time.Hour
	// a backfilled point seen this recently is tagged recent_error
	recentErrorWindow = 24 * time.Hour
)

// ReviewScheduler computes the practice queue. It keeps no state.
type ReviewScheduler struct {
	store *database.Store
}

// DueCandidates returns up to limit entries: due points first, then the
// weakest not-yet-due points when fewer than limit are due.
func (s ReviewScheduler) DueCandidates(ctx context.Context, q sqlx.ExtContext, now time.Time, limit int) ([]models.PracticeQueueEntry, error) {
	entries := []models.PracticeQueueEntry{}
	if limit <= 0 {
		return entries, nil
	}

	due, err := s.store.Points.ListDue(ctx, q, now)
	if err != nil {
		return nil, err
	}
	for i := range due {
		kp := &due[i]
		entries = append(entries, models.PracticeQueueEntry{
			KnowledgePointID: kp.ID,
			Priority:         Priority(kp, now),
			ScheduledFor:     *kp.NextReview,
			Reason:           models.ReasonDueReview,
			Point:            kp,
		})
	}
	sortEntries(entries)
	if len(entries) >= limit {
		return entries[:limit], nil
	}

	rest, err := s.store.Points.ListNotDueByMastery(ctx, q, now, limit-len(entries))
	if err != nil {
		return nil, err
	}
	backfill := make([]models.PracticeQueueEntry, 0, len(rest))
	for i := range rest {
		kp := &rest[i]
		reason := models.ReasonLowMastery
		if now.Sub(kp.LastSeen) < recentErrorWindow && kp.MistakeCount > kp.CorrectCount {
			reason = models.ReasonRecentError
		}
		backfill = append(backfill, models.PracticeQueueEntry{
			KnowledgePointID: kp.ID,
			Priority:         Priority(kp, now),
			ScheduledFor:     now,
			Reason:           reason,
			Point:            kp,
		})
	}
	sortEntries(backfill)
	return append(entries, backfill...), nil
}

// Priority scores a point for practice: a weighted sum of its category
// weight, its weakness (1 - mastery) and how long it is overdue.
func Priority(kp *models.KnowledgePoint, now time.Time) float64 {
	overdue := 0.0
	if kp.NextReview != nil && now.After(*kp.NextReview) {
		overdue = math.Min(float64(now.Sub(*kp.NextReview))/float64(overdueHorizon), 1)
	}
	return categoryWeightFactor*kp.Category.Weight() +
		weaknessFactor*(1-kp.MasteryLevel) +
		overdueFactor*overdue
}

// sortEntries orders by priority, then longest-neglected first, then ID
func sortEntries(entries []models.PracticeQueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Point.LastSeen.Equal(b.Point.LastSeen) {
			return a.Point.LastSeen.Before(b.Point.LastSeen)
		}
		return a.KnowledgePointID < b.KnowledgePointID
	})
}
