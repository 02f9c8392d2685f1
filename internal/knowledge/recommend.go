package knowledge

import (
	"context"
	"sort"
	"time"

	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const (
	lowMasteryThreshold = 0.3
	mistakeWindow       = 7 * 24 * time.Hour
	upcomingWindow      = 24 * time.Hour
	maxFocusAreas       = 3
)

// RecommendationAggregator summarizes where the learner should focus
type RecommendationAggregator struct {
	store *database.Store
}

// Recommend runs its independent reads concurrently
func (a RecommendationAggregator) Recommend(ctx context.Context, q sqlx.ExtContext, now time.Time) (*models.Recommendation, error) {
	var (
		lowMastery int
		avg        float64
		upcoming   int
		freq       map[models.Category]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lowMastery, err = a.store.Stats.CountLowMastery(gctx, q, lowMasteryThreshold)
		return err
	})
	g.Go(func() error {
		var err error
		avg, err = a.store.Stats.AverageMastery(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		upcoming, err = a.store.Stats.CountDueBefore(gctx, q, now.Add(upcomingWindow))
		return err
	})
	g.Go(func() error {
		var err error
		freq, err = a.store.Stats.MistakeFrequencySince(gctx, q, now.Add(-mistakeWindow))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.Recommendation{
		FocusAreas:          focusAreas(freq),
		SuggestedDifficulty: suggestedDifficulty(avg),
		NextReviewCount:     upcoming,
		LowMasteryCount:     lowMastery,
	}, nil
}

// focusAreas ranks categories by mistake frequency times category weight
func focusAreas(freq map[models.Category]int) []models.Category {
	areas := []models.Category{}
	for _, c := range models.Categories {
		if freq[c] > 0 {
			areas = append(areas, c)
		}
	}
	score := func(c models.Category) float64 { return float64(freq[c]) * c.Weight() }
	sort.SliceStable(areas, func(i, j int) bool {
		return score(areas[i]) > score(areas[j])
	})
	if len(areas) > maxFocusAreas {
		areas = areas[:maxFocusAreas]
	}
	return areas
}

// suggestedDifficulty maps average mastery onto 1..5
func suggestedDifficulty(avg float64) int {
	return min(max(1+int(avg*4), 1), 5)
}
