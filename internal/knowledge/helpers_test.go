package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/internal/logger"
	"github.com/example/errbook/pkg/models"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGrader struct {
	result *models.GradingResult
	err    error
	block  bool
}

func (f *fakeGrader) Grade(ctx context.Context, sourceSentence, learnerAnswer string) (*models.GradingResult, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type testEnv struct {
	svc    *Service
	store  *database.Store
	clock  *testClock
	grader *fakeGrader
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := database.Connect(database.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := &testClock{now: t0}
	opts.Now = clock.Now
	if opts.DailyLimit == 0 {
		opts.DailyLimit = 5
	}
	if opts.PendingTimeout == 0 {
		opts.PendingTimeout = 10 * time.Minute
	}
	if opts.PurgeRetentionDays == 0 {
		opts.PurgeRetentionDays = 30
	}
	if opts.PurgeMaxBatch == 0 {
		opts.PurgeMaxBatch = 100
	}
	grader := &fakeGrader{}

	return &testEnv{
		svc:    NewService(store, grader, opts, logger.Nop()),
		store:  store,
		clock:  clock,
		grader: grader,
	}
}

func candidate(category models.Category, keyPoint, phrase, correction string) models.PendingCandidate {
	return models.PendingCandidate{
		Category:       category,
		Subtype:        keyPoint,
		KeyPoint:       keyPoint,
		Explanation:    "explanation of " + keyPoint,
		OriginalPhrase: phrase,
		Correction:     correction,
		SourceSentence: "source with " + phrase,
		LearnerAnswer:  "answer with " + phrase,
	}
}

// hold puts candidates in the gate as if a grading had produced them
func (e *testEnv) hold(candidates ...models.PendingCandidate) string {
	for i := range candidates {
		candidates[i].ID = i + 1
	}
	token, _ := e.svc.gate.Hold(candidates, e.clock.Now())
	return token
}

func (e *testEnv) confirm(t *testing.T, candidates ...models.PendingCandidate) *CommitResult {
	t.Helper()
	result, err := e.svc.ConfirmPending(context.Background(), e.hold(candidates...), nil)
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	return result
}

func (e *testEnv) activePoints(t *testing.T) []models.KnowledgePoint {
	t.Helper()
	points, err := e.svc.ListActive(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	return points
}

func assertVersionsGapFree(t *testing.T, svc *Service, id int64, want int) []models.KnowledgePointVersion {
	t.Helper()
	versions, err := svc.Versions(context.Background(), id)
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != want {
		t.Fatalf("point %d has %d versions, want %d", id, len(versions), want)
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Fatalf("versions[%d].VersionNumber = %d, want %d", i, v.VersionNumber, i+1)
		}
	}
	return versions
}
