package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/internal/logger"
	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// purgeChunk bounds a single DELETE so a large purge stays cancellable
const purgeChunk = 50

// LifecycleManager soft-deletes, restores and purges knowledge points
type LifecycleManager struct {
	store    *database.Store
	versions VersionRecorder
	retry    retrier
	now      func() time.Time
	log      *logger.Logger
}

// SoftDelete hides a point from active listings and the practice queue.
// Deleting a deleted point is a no-op.
func (m *LifecycleManager) SoftDelete(ctx context.Context, id int64, reason string) (*models.KnowledgePoint, error) {
	var result *models.KnowledgePoint
	err := m.retry.do(ctx, "delete", func() error {
		return m.store.InTx(ctx, func(tx *sqlx.Tx) error {
			kp, err := getPoint(ctx, m.store, tx, id)
			if err != nil {
				return err
			}
			if kp.IsDeleted {
				result = kp
				return nil
			}

			now := m.now()
			kp.IsDeleted = true
			kp.DeletedAt = &now
			kp.DeletedReason = reason
			if err := m.versions.Update(ctx, tx, kp, models.ChangeDelete, now); err != nil {
				return err
			}
			result = kp
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("knowledge point deleted", "id", id, "reason", reason)
	return result, nil
}

// Restore makes a soft-deleted point active again. It fails with
// ErrDuplicate when another active point took its key meanwhile.
func (m *LifecycleManager) Restore(ctx context.Context, id int64) (*models.KnowledgePoint, error) {
	var result *models.KnowledgePoint
	err := m.retry.do(ctx, "restore", func() error {
		return m.store.InTx(ctx, func(tx *sqlx.Tx) error {
			kp, err := getPoint(ctx, m.store, tx, id)
			if err != nil {
				return err
			}
			if !kp.IsDeleted {
				result = kp
				return nil
			}

			if err := ensureKeyFree(ctx, m.store, tx, kp.Key(), kp.ID); err != nil {
				return err
			}

			kp.IsDeleted = false
			kp.DeletedAt = nil
			kp.DeletedReason = ""
			err = m.versions.Update(ctx, tx, kp, models.ChangeRestore, m.now())
			if errors.Is(err, database.ErrDuplicateKey) {
				return ErrDuplicate
			}
			if err != nil {
				return err
			}
			result = kp
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("knowledge point restored", "id", id)
	return result, nil
}

// PurgeOld permanently removes up to maxBatch points soft-deleted more than
// olderThanDays ago. Active points are never touched.
func (m *LifecycleManager) PurgeOld(ctx context.Context, olderThanDays, maxBatch int) (int64, error) {
	if olderThanDays < 0 {
		return 0, &ValidationError{Field: "older_than_days", Reason: "must not be negative"}
	}
	if maxBatch < 1 {
		return 0, &ValidationError{Field: "max_batch", Reason: "must be at least 1"}
	}

	cutoff := m.now().AddDate(0, 0, -olderThanDays)
	var purged int64
	for purged < int64(maxBatch) {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		chunk := min(int64(purgeChunk), int64(maxBatch)-purged)

		var n int64
		err := m.store.InTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			n, err = m.store.Points.PurgeDeleted(ctx, tx, cutoff, int(chunk))
			return err
		})
		if err != nil {
			return purged, err
		}
		purged += n
		if n < chunk {
			break
		}
	}

	m.log.Info("purged deleted knowledge points", "count", purged, "older_than_days", olderThanDays)
	return purged, nil
}

// getPoint reads a point and maps a missing row to ErrNotFound
func getPoint(ctx context.Context, store *database.Store, q sqlx.ExtContext, id int64) (*models.KnowledgePoint, error) {
	kp, err := store.Points.GetByID(ctx, q, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return kp, err
}

// ensureKeyFree fails with ErrDuplicate when an active point other than
// self holds key
func ensureKeyFree(ctx context.Context, store *database.Store, q sqlx.ExtContext, key models.SemanticKey, self int64) error {
	holder, err := store.Points.FindActiveByKey(ctx, q, key)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if holder.ID != self {
		return ErrDuplicate
	}
	return nil
}
