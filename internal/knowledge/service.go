package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/errbook/internal/ai"
	"github.com/example/errbook/internal/config"
	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/internal/logger"
	"github.com/example/errbook/internal/spaced_repetition"
	"github.com/example/errbook/pkg/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Filter narrows ListActive
type Filter = database.PointFilter

// Options configures a Service
type Options struct {
	Location           *time.Location
	DailyLimit         int
	LimitEnabled       bool
	PendingTimeout     time.Duration
	PurgeRetentionDays int
	PurgeMaxBatch      int
	CommitMaxRetries   int
	GraderTimeout      time.Duration
	// Now overrides the clock, for tests. Its readings are converted to UTC.
	Now func() time.Time
}

// OptionsFromConfig maps the loaded configuration onto service options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Location:           cfg.Timezone,
		DailyLimit:         cfg.Knowledge.DailyLimit,
		LimitEnabled:       cfg.Knowledge.LimitEnabled,
		PendingTimeout:     cfg.Knowledge.PendingTimeout,
		PurgeRetentionDays: cfg.Knowledge.PurgeRetentionDays,
		PurgeMaxBatch:      cfg.Knowledge.PurgeMaxBatch,
		CommitMaxRetries:   cfg.Knowledge.CommitMaxRetries,
		GraderTimeout:      cfg.Grader.Timeout,
	}
}

// Service is the knowledge point tracker: it turns grader verdicts into
// confirmed, deduplicated, versioned points and answers what to practice.
type Service struct {
	store  *database.Store
	grader ai.Grader
	opts   Options
	log    *logger.Logger
	now    func() time.Time

	engine      *spaced_repetition.MasteryEngine
	builder     CandidateBuilder
	gate        *PendingGate
	resolver    DuplicateResolver
	quota       *QuotaGuard
	versions    VersionRecorder
	lifecycle   *LifecycleManager
	scheduler   ReviewScheduler
	recommender RecommendationAggregator
	retry       retrier
}

// NewService wires the knowledge components around store
func NewService(store *database.Store, grader ai.Grader, opts Options, log *logger.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = 10 * time.Minute
	}
	if opts.CommitMaxRetries < 1 {
		opts.CommitMaxRetries = 5
	}
	if log == nil {
		log = logger.Nop()
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	now := func() time.Time { return clock().UTC().Truncate(time.Microsecond) }

	s := &Service{
		store:       store,
		grader:      grader,
		opts:        opts,
		log:         log.With("component", "knowledge"),
		now:         now,
		engine:      spaced_repetition.NewMasteryEngine(),
		gate:        NewPendingGate(opts.PendingTimeout),
		resolver:    DuplicateResolver{store: store},
		versions:    VersionRecorder{store: store},
		scheduler:   ReviewScheduler{store: store},
		recommender: RecommendationAggregator{store: store},
		retry:       retrier{maxTries: uint(opts.CommitMaxRetries), log: log},
	}
	s.quota = &QuotaGuard{
		store: store,
		loc:   opts.Location,
		defaults: models.DailyLimitSettings{
			Limit:   opts.DailyLimit,
			Enabled: opts.LimitEnabled,
		},
	}
	s.lifecycle = &LifecycleManager{
		store:    store,
		versions: s.versions,
		retry:    s.retry,
		now:      now,
		log:      s.log,
	}
	return s
}

// Gate exposes the pending gate, for the background sweep
func (s *Service) Gate() *PendingGate {
	return s.gate
}

// Now returns the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

// Submission is the result of grading one answer
type Submission struct {
	IsCorrect    bool
	PendingToken string // empty when nothing is pending
	Candidates   []models.PendingCandidate
	Rejected     []ValidationError
}

// SubmitGrading grades an answer and holds the resulting candidates for
// confirmation. Nothing is held when grading fails.
func (s *Service) SubmitGrading(ctx context.Context, sourceSentence, learnerAnswer string) (*Submission, error) {
	if s.grader == nil {
		return nil, &ai.GraderError{Err: errors.New("no grader configured")}
	}

	gctx := ctx
	if s.opts.GraderTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, s.opts.GraderTimeout)
		defer cancel()
	}

	result, err := s.grader.Grade(gctx, sourceSentence, learnerAnswer)
	if err != nil {
		var ge *ai.GraderError
		if !errors.As(err, &ge) {
			err = &ai.GraderError{Transient: gctx.Err() != nil, Err: err}
		}
		s.log.Warn("grading failed", "error", err, "transient", ai.IsTransient(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	built := s.builder.Build(result, sourceSentence, learnerAnswer)
	sub := &Submission{IsCorrect: result.IsCorrect, Rejected: built.Rejected}
	for _, r := range built.Rejected {
		s.log.Info("dropped malformed analysis", "field", r.Field, "reason", r.Reason)
	}
	if len(built.Candidates) > 0 {
		sub.PendingToken, sub.Candidates = s.gate.Hold(built.Candidates, s.now())
	}
	return sub, nil
}

// PendingCandidates returns what is still held under token
func (s *Service) PendingCandidates(token string) ([]models.PendingCandidate, error) {
	return s.gate.Get(token, s.now())
}

// ConfirmPending commits the selected candidates (all of them for an empty
// selection). Quota-rejected and failed candidates go back to the gate.
func (s *Service) ConfirmPending(ctx context.Context, token string, candidateIDs []int) (*CommitResult, error) {
	claimed, missing, err := s.gate.Claim(token, candidateIDs, s.now())
	if err != nil {
		return nil, err
	}

	result := s.CommitCandidates(ctx, claimed)
	for _, id := range missing {
		result.Outcomes = append(result.Outcomes, CandidateOutcome{
			CandidateID: id,
			Status:      StatusInvalid,
			Reason:      "candidate is not pending",
		})
	}

	var keep []models.PendingCandidate
	for i, o := range result.Outcomes {
		if o.Status == StatusQuotaRejected || o.Status == StatusFailed {
			keep = append(keep, claimed[i])
		}
	}
	s.gate.Return(keep, s.now())
	return result, nil
}

// DiscardPending drops the selected candidates (all of them for an empty selection)
func (s *Service) DiscardPending(token string, candidateIDs []int) (int, error) {
	return s.gate.Discard(token, candidateIDs, s.now())
}

// ListActive returns active points matching filter
func (s *Service) ListActive(ctx context.Context, filter Filter) ([]models.KnowledgePoint, error) {
	return s.store.Points.ListActive(ctx, s.store.DB(), filter)
}

// ListDeleted returns soft-deleted points
func (s *Service) ListDeleted(ctx context.Context) ([]models.KnowledgePoint, error) {
	return s.store.Points.ListDeleted(ctx, s.store.DB())
}

// PointDetails is a point with its original error
type PointDetails struct {
	Point    *models.KnowledgePoint
	Original *models.OriginalError // nil for points without one
}

// GetPoint returns a point, active or deleted
func (s *Service) GetPoint(ctx context.Context, id int64) (*PointDetails, error) {
	kp, err := getPoint(ctx, s.store, s.store.DB(), id)
	if err != nil {
		return nil, err
	}
	details := &PointDetails{Point: kp}
	original, err := s.store.Examples.GetOriginal(ctx, s.store.DB(), id)
	switch {
	case err == nil:
		details.Original = original
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}
	return details, nil
}

// Versions returns the version history of a point
func (s *Service) Versions(ctx context.Context, id int64) ([]models.KnowledgePointVersion, error) {
	if _, err := getPoint(ctx, s.store, s.store.DB(), id); err != nil {
		return nil, err
	}
	return s.store.Versions.List(ctx, s.store.DB(), id)
}

// Examples returns the review attempts of a point
func (s *Service) Examples(ctx context.Context, id int64) ([]models.ReviewExample, error) {
	if _, err := getPoint(ctx, s.store, s.store.DB(), id); err != nil {
		return nil, err
	}
	return s.store.Examples.List(ctx, s.store.DB(), id)
}

// EditFields lists the fields to change; nil fields are kept
type EditFields struct {
	Category       *models.Category
	Subtype        *string
	KeyPoint       *string
	Explanation    *string
	OriginalPhrase *string
	Correction     *string
}

// EditPoint changes the descriptive fields of an active point
func (s *Service) EditPoint(ctx context.Context, id int64, fields EditFields) (*models.KnowledgePoint, error) {
	var result *models.KnowledgePoint
	err := s.retry.do(ctx, "edit", func() error {
		return s.store.InTx(ctx, func(tx *sqlx.Tx) error {
			kp, err := getPoint(ctx, s.store, tx, id)
			if err != nil {
				return err
			}
			if kp.IsDeleted {
				return ErrPointDeleted
			}
			if err := applyEdit(kp, fields); err != nil {
				return err
			}
			if err := ensureKeyFree(ctx, s.store, tx, kp.Key(), kp.ID); err != nil {
				return err
			}

			err = s.versions.Update(ctx, tx, kp, models.ChangeEdit, s.now())
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
	s.log.Info("knowledge point edited", "id", id, "version", result.VersionNumber)
	return result, nil
}

func applyEdit(kp *models.KnowledgePoint, f EditFields) error {
	if f.Category != nil {
		if !f.Category.Valid() {
			return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", *f.Category)}
		}
		kp.Category = *f.Category
	}
	if f.Subtype != nil {
		kp.Subtype = normalize(*f.Subtype)
	}
	if f.KeyPoint != nil {
		kp.KeyPoint = normalize(*f.KeyPoint)
	}
	if f.Explanation != nil {
		kp.Explanation = *f.Explanation
	}
	if f.OriginalPhrase != nil {
		kp.OriginalPhrase = normalize(*f.OriginalPhrase)
	}
	if f.Correction != nil {
		kp.Correction = normalize(*f.Correction)
	}
	if kp.KeyPoint == "" {
		return &ValidationError{Field: "key_point", Reason: "must not be empty"}
	}
	if verr := validateFields(kp.Subtype, kp.OriginalPhrase, kp.Correction); verr != nil {
		return verr
	}
	return nil
}

// DeletePoint soft-deletes a point
func (s *Service) DeletePoint(ctx context.Context, id int64, reason string) (*models.KnowledgePoint, error) {
	return s.lifecycle.SoftDelete(ctx, id, reason)
}

// RestorePoint reverses DeletePoint
func (s *Service) RestorePoint(ctx context.Context, id int64) (*models.KnowledgePoint, error) {
	return s.lifecycle.Restore(ctx, id)
}

// PurgeDefault selects the configured retention or batch size in PurgeOld
const PurgeDefault = -1

// PurgeOld permanently removes old soft-deleted points. Either argument may
// be PurgeDefault. Zero days purges every soft-deleted point.
func (s *Service) PurgeOld(ctx context.Context, olderThanDays, maxBatch int) (int64, error) {
	if olderThanDays == PurgeDefault {
		olderThanDays = s.opts.PurgeRetentionDays
	}
	if maxBatch == PurgeDefault {
		maxBatch = s.opts.PurgeMaxBatch
	}
	return s.lifecycle.PurgeOld(ctx, olderThanDays, maxBatch)
}

// DueQueue returns the practice queue
func (s *Service) DueQueue(ctx context.Context, limit int) ([]models.PracticeQueueEntry, error) {
	return s.scheduler.DueCandidates(ctx, s.store.DB(), s.now(), limit)
}

// DueCount counts points due now
func (s *Service) DueCount(ctx context.Context) (int, error) {
	return s.store.Stats.CountDueBefore(ctx, s.store.DB(), s.now())
}

// DailyLimitStatus reports today's quota usage
func (s *Service) DailyLimitStatus(ctx context.Context) (*models.DailyLimitStatus, error) {
	return s.quota.Status(ctx, s.store.DB(), s.now())
}

// SeedDailyLimit persists the configured limit on first start. Later
// config changes do not override what an admin set with SetDailyLimitConfig.
func (s *Service) SeedDailyLimit(ctx context.Context) error {
	return s.quota.Seed(ctx, s.store.DB(), s.now())
}

// SetDailyLimitConfig changes the daily limit settings
func (s *Service) SetDailyLimitConfig(ctx context.Context, limit int, enabled bool) error {
	if err := s.quota.SetConfig(ctx, s.store.DB(), limit, enabled, s.now()); err != nil {
		return err
	}
	s.log.Info("daily limit changed", "limit", limit, "enabled", enabled)
	return nil
}

// Recommendations summarizes where the learner should focus
func (s *Service) Recommendations(ctx context.Context) (*models.Recommendation, error) {
	return s.recommender.Recommend(ctx, s.store.DB(), s.now())
}

// Statistics returns an overview of the store
func (s *Service) Statistics(ctx context.Context) (*models.Statistics, error) {
	return s.store.Stats.Overview(ctx, s.store.DB(), s.now())
}

// ReviewAnswer is one practice attempt
type ReviewAnswer struct {
	Prompt        string
	Answer        string
	CorrectAnswer string
	IsCorrect     bool
}

// RecordReview stores a practice attempt and moves the point's mastery
func (s *Service) RecordReview(ctx context.Context, id int64, answer ReviewAnswer) (*models.KnowledgePoint, error) {
	var result *models.KnowledgePoint
	err := s.retry.do(ctx, "review", func() error {
		return s.store.InTx(ctx, func(tx *sqlx.Tx) error {
			kp, err := getPoint(ctx, s.store, tx, id)
			if err != nil {
				return err
			}
			if kp.IsDeleted {
				return ErrPointDeleted
			}

			now := s.now()
			updated := s.engine.Apply(*kp, spaced_repetition.RepeatedMistake(answer.IsCorrect), now)
			if err := s.versions.Update(ctx, tx, &updated, models.ChangeReview, now); err != nil {
				return err
			}
			err = s.store.Examples.Insert(ctx, tx, &models.ReviewExample{
				KnowledgePointID: id,
				Prompt:           answer.Prompt,
				Answer:           answer.Answer,
				CorrectAnswer:    answer.CorrectAnswer,
				IsCorrect:        answer.IsCorrect,
				CreatedAt:        now,
			})
			if err != nil {
				return err
			}
			result = &updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("review recorded", "id", id, "correct", answer.IsCorrect, "mastery", result.MasteryLevel)
	return result, nil
}

func newExternalID() string {
	return uuid.NewString()
}
