package knowledge

import (
	"context"
	"errors"

	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// Resolution is the outcome of duplicate resolution: merge into Existing,
// or create a new point when Existing is nil
type Resolution struct {
	Existing *models.KnowledgePoint
}

// IsMerge reports whether the candidate matches an active point
func (r Resolution) IsMerge() bool {
	return r.Existing != nil
}

// DuplicateResolver matches candidates against active points by semantic key
type DuplicateResolver struct {
	store *database.Store
}

// Resolve looks up the active point holding key
func (r DuplicateResolver) Resolve(ctx context.Context, q sqlx.ExtContext, key models.SemanticKey) (Resolution, error) {
	kp, err := r.store.Points.FindActiveByKey(ctx, q, key)
	if errors.Is(err, database.ErrNotFound) {
		return Resolution{}, nil
	}
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Existing: kp}, nil
}
