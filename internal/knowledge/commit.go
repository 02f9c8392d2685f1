package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/example/errbook/internal/spaced_repetition"
	"github.com/example/errbook/pkg/models"
	"github.com/jmoiron/sqlx"
)

// OutcomeStatus is the per-candidate result of a confirmation
type OutcomeStatus string

const (
	StatusCommitted     OutcomeStatus = "committed"
	StatusMerged        OutcomeStatus = "merged"
	StatusQuotaRejected OutcomeStatus = "quota_rejected"
	StatusInvalid       OutcomeStatus = "invalid"
	StatusFailed        OutcomeStatus = "failed"
)

// CandidateOutcome reports what happened to one candidate
type CandidateOutcome struct {
	CandidateID int           `json:"candidate_id"`
	Status      OutcomeStatus `json:"status"`
	PointID     int64         `json:"point_id,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Err         error         `json:"-"`
}

// CommitResult lists one outcome per candidate, in input order
type CommitResult struct {
	Outcomes []CandidateOutcome `json:"outcomes"`
}

// CommittedIDs returns the points created or merged into
func (r *CommitResult) CommittedIDs() []int64 {
	var ids []int64
	for _, o := range r.Outcomes {
		if o.Status == StatusCommitted || o.Status == StatusMerged {
			ids = append(ids, o.PointID)
		}
	}
	return ids
}

// Rejected returns the outcomes that did not reach the store
func (r *CommitResult) Rejected() []CandidateOutcome {
	var out []CandidateOutcome
	for _, o := range r.Outcomes {
		if o.Status != StatusCommitted && o.Status != StatusMerged {
			out = append(out, o)
		}
	}
	return out
}

// Count returns how many outcomes have status
func (r *CommitResult) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// CommitCandidates runs each candidate through the commit pipeline in order.
// One candidate failing never affects the others.
func (s *Service) CommitCandidates(ctx context.Context, candidates []models.PendingCandidate) *CommitResult {
	result := &CommitResult{Outcomes: make([]CandidateOutcome, 0, len(candidates))}
	for _, c := range candidates {
		result.Outcomes = append(result.Outcomes, s.commitCandidate(ctx, c))
	}
	return result
}

// commitCandidate resolves duplicates, takes quota for new throttled points,
// applies the mastery change and records the version in one transaction.
func (s *Service) commitCandidate(ctx context.Context, c models.PendingCandidate) CandidateOutcome {
	out := CandidateOutcome{CandidateID: c.ID}

	if !c.Category.Valid() {
		out.Status, out.Reason = StatusInvalid, "unknown category "+string(c.Category)
		return out
	}
	if c.KeyPoint == "" {
		c.KeyPoint = c.Subtype
	}
	if verr := validateFields(c.Subtype, c.OriginalPhrase, c.Correction); verr != nil {
		out.Status, out.Reason, out.Err = StatusInvalid, verr.Error(), verr
		return out
	}

	err := s.retry.do(ctx, "confirm", func() error {
		return s.store.InTx(ctx, func(tx *sqlx.Tx) error {
			now := s.now()
			res, err := s.resolver.Resolve(ctx, tx, c.Key())
			if err != nil {
				return err
			}
			if res.IsMerge() {
				id, err := s.merge(ctx, tx, res.Existing, c, now)
				out.Status, out.PointID = StatusMerged, id
				return err
			}

			admitted, err := s.quota.TryAdmit(ctx, tx, c.Category, now)
			if err != nil {
				return err
			}
			if !admitted {
				return ErrQuotaExceeded
			}
			id, err := s.create(ctx, tx, c, now)
			out.Status, out.PointID = StatusCommitted, id
			return err
		})
	})

	switch {
	case err == nil:
		s.log.Info("candidate committed", "status", out.Status, "point", out.PointID, "category", c.Category)
	case errors.Is(err, ErrQuotaExceeded):
		out.Status, out.PointID, out.Reason, out.Err = StatusQuotaRejected, 0, err.Error(), err
		s.log.Info("candidate over daily limit", "category", c.Category, "key_point", c.KeyPoint)
	default:
		out.Status, out.PointID, out.Reason, out.Err = StatusFailed, 0, err.Error(), err
		s.log.Error("failed to commit candidate", "key_point", c.KeyPoint, "error", err)
	}
	return out
}

// merge records a known mistake made again in a new sentence
func (s *Service) merge(ctx context.Context, tx *sqlx.Tx, existing *models.KnowledgePoint, c models.PendingCandidate, now time.Time) (int64, error) {
	kp := s.engine.Apply(*existing, spaced_repetition.NewMistake(), now)
	if err := s.versions.Update(ctx, tx, &kp, models.ChangeMerge, now); err != nil {
		return 0, err
	}
	err := s.store.Examples.Insert(ctx, tx, &models.ReviewExample{
		KnowledgePointID: kp.ID,
		Prompt:           c.SourceSentence,
		Answer:           c.LearnerAnswer,
		CorrectAnswer:    c.Correction,
		IsCorrect:        false,
		CreatedAt:        now,
	})
	return kp.ID, err
}

// create inserts a new point with its original error
func (s *Service) create(ctx context.Context, tx *sqlx.Tx, c models.PendingCandidate, now time.Time) (int64, error) {
	kp := models.KnowledgePoint{
		ExternalID:     newExternalID(),
		Category:       c.Category,
		Subtype:        c.Subtype,
		KeyPoint:       c.KeyPoint,
		Explanation:    c.Explanation,
		OriginalPhrase: c.OriginalPhrase,
		Correction:     c.Correction,
		CreatedAt:      now,
		LastSeen:       now,
	}
	kp = s.engine.Apply(kp, spaced_repetition.NewMistake(), now)
	if err := s.versions.Create(ctx, tx, &kp, now); err != nil {
		return 0, err
	}
	err := s.store.Examples.InsertOriginal(ctx, tx, &models.OriginalError{
		KnowledgePointID: kp.ID,
		SourceSentence:   c.SourceSentence,
		LearnerAnswer:    c.LearnerAnswer,
		Correction:       c.Correction,
		CreatedAt:        now,
	})
	return kp.ID, err
}

// ImportItem is one already-confirmed mistake from a bulk import
type ImportItem struct {
	Analysis       models.ErrorAnalysis
	SourceSentence string
	LearnerAnswer  string
}

// Import validates items and commits the valid ones through the normal
// pipeline: duplicates merge and the daily limit applies. Outcomes carry the
// 1-based item position as CandidateID.
func (s *Service) Import(ctx context.Context, items []ImportItem) *CommitResult {
	result := &CommitResult{Outcomes: make([]CandidateOutcome, 0, len(items))}
	for i, item := range items {
		c, verr := s.builder.FromAnalysis(item.Analysis, item.SourceSentence, item.LearnerAnswer)
		if verr != nil {
			result.Outcomes = append(result.Outcomes, CandidateOutcome{
				CandidateID: i + 1,
				Status:      StatusInvalid,
				Reason:      verr.Error(),
				Err:         verr,
			})
			continue
		}
		c.ID = i + 1
		result.Outcomes = append(result.Outcomes, s.commitCandidate(ctx, c))
	}
	return result
}
