package knowledge

import (
	"context"
	"time"

	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// VersionRecorder writes a point and its version row together. Callers
// pass the transaction so neither write can land without the other.
type VersionRecorder struct {
	store *database.Store
}

// Create inserts kp as version 1
func (r VersionRecorder) Create(ctx context.Context, q sqlx.ExtContext, kp *models.KnowledgePoint, now time.Time) error {
	kp.VersionNumber = 1
	if err := r.store.Points.Insert(ctx, q, kp); err != nil {
		return err
	}
	return r.store.Versions.Snapshot(ctx, q, kp, models.ChangeCreate, now)
}

// Update stores kp as the next version of the row it was read from.
// kp.VersionNumber must still hold the version that was read.
func (r VersionRecorder) Update(ctx context.Context, q sqlx.ExtContext, kp *models.KnowledgePoint, change models.ChangeType, now time.Time) error {
	expected := kp.VersionNumber
	kp.VersionNumber = expected + 1
	if err := r.store.Points.Update(ctx, q, kp, expected); err != nil {
		kp.VersionNumber = expected
		return err
	}
	return r.store.Versions.Snapshot(ctx, q, kp, change, now)
}
