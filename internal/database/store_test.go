package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/example/errbook/pkg/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Connect(DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newPoint(keyPoint, phrase, correction string) *models.KnowledgePoint {
	next := t0.Add(24 * time.Hour)
	return &models.KnowledgePoint{
		ExternalID:     uuid.NewString(),
		Category:       models.CategoryIsolated,
		Subtype:        "collocation",
		KeyPoint:       keyPoint,
		Explanation:    "explanation",
		OriginalPhrase: phrase,
		Correction:     correction,
		MasteryLevel:   0.2,
		MistakeCount:   1,
		CreatedAt:      t0,
		LastSeen:       t0,
		NextReview:     &next,
		VersionNumber:  1,
	}
}

func insertPoint(t *testing.T, s *Store, kp *models.KnowledgePoint) {
	t.Helper()
	if err := s.Points.Insert(context.Background(), s.DB(), kp); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kp := newPoint("make a decision", "do a decision", "make a decision")
	insertPoint(t, s, kp)
	if kp.ID == 0 {
		t.Fatal("expected ID to be set")
	}

	got, err := s.Points.GetByID(ctx, s.DB(), kp.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.KeyPoint != kp.KeyPoint || got.Category != models.CategoryIsolated {
		t.Errorf("got %+v", got)
	}
	if got.NextReview == nil || !got.NextReview.Equal(*kp.NextReview) {
		t.Errorf("next_review = %v, want %v", got.NextReview, kp.NextReview)
	}

	byKey, err := s.Points.FindActiveByKey(ctx, s.DB(), kp.Key())
	if err != nil {
		t.Fatalf("FindActiveByKey: %v", err)
	}
	if byKey.ID != kp.ID {
		t.Errorf("FindActiveByKey returned %d, want %d", byKey.ID, kp.ID)
	}

	if _, err := s.Points.GetByID(ctx, s.DB(), kp.ID+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID unknown: got %v, want ErrNotFound", err)
	}
}

func TestSemanticKeyUniqueAmongActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := newPoint("rule", "a", "b")
	insertPoint(t, s, first)

	err := s.Points.Insert(ctx, s.DB(), newPoint("rule", "a", "b"))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("second insert: got %v, want ErrDuplicateKey", err)
	}

	deletedAt := t0
	first.IsDeleted = true
	first.DeletedAt = &deletedAt
	first.VersionNumber = 2
	if err := s.Points.Update(ctx, s.DB(), first, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// the key is free again once the holder is soft-deleted
	insertPoint(t, s, newPoint("rule", "a", "b"))
}

func TestUpdateStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kp := newPoint("rule", "a", "b")
	insertPoint(t, s, kp)

	kp.MasteryLevel = 0.5
	kp.VersionNumber = 2
	if err := s.Points.Update(ctx, s.DB(), kp, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}

	kp.MasteryLevel = 0.7
	kp.VersionNumber = 2
	if err := s.Points.Update(ctx, s.DB(), kp, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale Update: got %v, want ErrVersionConflict", err)
	}

	got, _ := s.Points.GetByID(ctx, s.DB(), kp.ID)
	if got.MasteryLevel != 0.5 {
		t.Errorf("mastery = %v, want 0.5", got.MasteryLevel)
	}
}

func TestListDueAndNotDue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := newPoint("due", "a", "b")
	past := t0.Add(-time.Hour)
	due.LastSeen = t0.Add(-2 * time.Hour)
	due.NextReview = &past
	insertPoint(t, s, due)

	later := newPoint("later", "a", "b")
	later.MasteryLevel = 0.1
	insertPoint(t, s, later)

	points, err := s.Points.ListDue(ctx, s.DB(), t0)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(points) != 1 || points[0].ID != due.ID {
		t.Fatalf("ListDue = %+v, want only %d", points, due.ID)
	}

	rest, err := s.Points.ListNotDueByMastery(ctx, s.DB(), t0, 10)
	if err != nil {
		t.Fatalf("ListNotDueByMastery: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != later.ID {
		t.Fatalf("ListNotDueByMastery = %+v, want only %d", rest, later.ID)
	}
}

func TestTimeComparisonsIgnoreZone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	honolulu := time.FixedZone("HST", -10*60*60)

	due := newPoint("due", "a", "b")
	past := t0.Add(-time.Hour)
	due.NextReview = &past
	insertPoint(t, s, due)

	gone := newPoint("gone", "c", "d")
	insertPoint(t, s, gone)
	deletedAt := t0.Add(-2 * time.Hour)
	gone.IsDeleted = true
	gone.DeletedAt = &deletedAt
	gone.VersionNumber = 2
	if err := s.Points.Update(ctx, s.DB(), gone, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}

	now := t0.In(honolulu)
	points, err := s.Points.ListDue(ctx, s.DB(), now)
	if err != nil || len(points) != 1 || points[0].ID != due.ID {
		t.Fatalf("ListDue = %+v, %v", points, err)
	}
	count, err := s.Stats.CountDueBefore(ctx, s.DB(), now)
	if err != nil || count != 1 {
		t.Fatalf("CountDueBefore = %d, %v", count, err)
	}
	purged, err := s.Points.PurgeDeleted(ctx, s.DB(), t0.Add(-time.Hour).In(honolulu), 10)
	if err != nil || purged != 1 {
		t.Fatalf("PurgeDeleted = %d, %v", purged, err)
	}
}

func TestListActiveFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newPoint("article before noun", "a apple", "an apple")
	a.Category = models.CategorySystematic
	a.MasteryLevel = 0.6
	insertPoint(t, s, a)
	insertPoint(t, s, newPoint("make vs do", "do a decision", "make a decision"))

	all, err := s.Points.ListActive(ctx, s.DB(), PointFilter{})
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(all) != 2 || all[0].MasteryLevel > all[1].MasteryLevel {
		t.Fatalf("ListActive = %+v, want 2 points weakest first", all)
	}

	systematic, _ := s.Points.ListActive(ctx, s.DB(), PointFilter{Category: models.CategorySystematic})
	if len(systematic) != 1 || systematic[0].ID != a.ID {
		t.Errorf("category filter = %+v", systematic)
	}

	found, _ := s.Points.ListActive(ctx, s.DB(), PointFilter{Search: "decision"})
	if len(found) != 1 || found[0].KeyPoint != "make vs do" {
		t.Errorf("search filter = %+v", found)
	}
}

func TestVersionsSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kp := newPoint("rule", "a", "b")
	insertPoint(t, s, kp)
	if err := s.Versions.Snapshot(ctx, s.DB(), kp, models.ChangeCreate, t0); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	kp.VersionNumber = 2
	kp.MasteryLevel = 0.35
	if err := s.Versions.Snapshot(ctx, s.DB(), kp, models.ChangeReview, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if err := s.Versions.Snapshot(ctx, s.DB(), kp, models.ChangeReview, t0); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("repeated version: got %v, want ErrDuplicateKey", err)
	}

	versions, err := s.Versions.List(ctx, s.DB(), kp.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Errorf("versions[%d].VersionNumber = %d", i, v.VersionNumber)
		}
	}
	if versions[1].ChangeType != models.ChangeReview || versions[1].MasteryLevel != 0.35 {
		t.Errorf("versions[1] = %+v", versions[1])
	}
}

func TestDailyCounterTryIncrement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := "2025-03-10"

	for i := 0; i < 2; i++ {
		ok, err := s.Counters.TryIncrement(ctx, s.DB(), day, models.CategoryIsolated, 2, t0)
		if err != nil || !ok {
			t.Fatalf("increment %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := s.Counters.TryIncrement(ctx, s.DB(), day, models.CategoryIsolated, 2, t0)
	if err != nil || ok {
		t.Fatalf("increment past limit: ok=%v err=%v", ok, err)
	}

	// unlimited keeps counting
	ok, err = s.Counters.TryIncrement(ctx, s.DB(), day, models.CategoryIsolated, 0, t0)
	if err != nil || !ok {
		t.Fatalf("unlimited increment: ok=%v err=%v", ok, err)
	}

	// another category and another day have their own counters
	if ok, _ := s.Counters.TryIncrement(ctx, s.DB(), day, models.CategoryEnhancement, 2, t0); !ok {
		t.Error("enhancement should have its own counter")
	}
	if ok, _ := s.Counters.TryIncrement(ctx, s.DB(), "2025-03-11", models.CategoryIsolated, 2, t0); !ok {
		t.Error("next day should have its own counter")
	}

	usage, err := s.Counters.UsageForDay(ctx, s.DB(), day)
	if err != nil {
		t.Fatalf("UsageForDay: %v", err)
	}
	if usage[models.CategoryIsolated] != 3 || usage[models.CategoryEnhancement] != 1 {
		t.Errorf("usage = %v", usage)
	}
}

func TestSettingsSeedAndSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Settings.Get(ctx, s.DB()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before seed: got %v, want ErrNotFound", err)
	}

	if err := s.Settings.Seed(ctx, s.DB(), models.DailyLimitSettings{Limit: 15, Enabled: true, UpdatedAt: t0}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := s.Settings.Seed(ctx, s.DB(), models.DailyLimitSettings{Limit: 30, Enabled: false, UpdatedAt: t0}); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	got, err := s.Settings.Get(ctx, s.DB())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Limit != 15 || !got.Enabled {
		t.Errorf("seed overwrote settings: %+v", got)
	}

	if err := s.Settings.Save(ctx, s.DB(), models.DailyLimitSettings{Limit: 5, Enabled: false, UpdatedAt: t0}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ = s.Settings.Get(ctx, s.DB())
	if got.Limit != 5 || got.Enabled {
		t.Errorf("after Save: %+v", got)
	}

	if err := s.Settings.Save(ctx, s.DB(), models.DailyLimitSettings{Limit: 51, UpdatedAt: t0}); err == nil {
		t.Error("limit above 50 should violate the check constraint")
	}
}

func TestPurgeDeletedCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := newPoint("old", "a", "b")
	insertPoint(t, s, old)
	recent := newPoint("recent", "a", "b")
	insertPoint(t, s, recent)
	active := newPoint("active", "a", "b")
	insertPoint(t, s, active)

	softDelete := func(kp *models.KnowledgePoint, at time.Time) {
		kp.IsDeleted = true
		kp.DeletedAt = &at
		kp.VersionNumber = 2
		if err := s.Points.Update(ctx, s.DB(), kp, 1); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	softDelete(old, t0.Add(-40*24*time.Hour))
	softDelete(recent, t0.Add(-time.Hour))

	ex := &models.ReviewExample{KnowledgePointID: old.ID, Answer: "x", CreatedAt: t0}
	if err := s.Examples.Insert(ctx, s.DB(), ex); err != nil {
		t.Fatalf("Insert example: %v", err)
	}

	n, err := s.Points.PurgeDeleted(ctx, s.DB(), t0.Add(-30*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("PurgeDeleted: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}

	if _, err := s.Points.GetByID(ctx, s.DB(), old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old point still present: %v", err)
	}
	examples, _ := s.Examples.List(ctx, s.DB(), old.ID)
	if len(examples) != 0 {
		t.Errorf("examples not cascaded: %+v", examples)
	}
	for _, id := range []int64{recent.ID, active.ID} {
		if _, err := s.Points.GetByID(ctx, s.DB(), id); err != nil {
			t.Errorf("point %d should survive purge: %v", id, err)
		}
	}
}

func TestPurgeDeletedRespectsBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		kp := newPoint(fmt.Sprintf("rule %d", i), "a", "b")
		deletedAt := t0.Add(-60 * 24 * time.Hour)
		kp.IsDeleted = true
		kp.DeletedAt = &deletedAt
		insertPoint(t, s, kp)
	}

	n, err := s.Points.PurgeDeleted(ctx, s.DB(), t0, 3)
	if err != nil || n != 3 {
		t.Fatalf("first purge: n=%d err=%v", n, err)
	}
	n, err = s.Points.PurgeDeleted(ctx, s.DB(), t0, 3)
	if err != nil || n != 2 {
		t.Fatalf("second purge: n=%d err=%v", n, err)
	}
}

func TestOriginalErrorIsOnePerPoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kp := newPoint("rule", "a", "b")
	insertPoint(t, s, kp)

	oe := &models.OriginalError{KnowledgePointID: kp.ID, SourceSentence: "src", LearnerAnswer: "ans", Correction: "b", CreatedAt: t0}
	if err := s.Examples.InsertOriginal(ctx, s.DB(), oe); err != nil {
		t.Fatalf("InsertOriginal: %v", err)
	}
	again := *oe
	if err := s.Examples.InsertOriginal(ctx, s.DB(), &again); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("second original: got %v, want ErrDuplicateKey", err)
	}

	got, err := s.Examples.GetOriginal(ctx, s.DB(), kp.ID)
	if err != nil {
		t.Fatalf("GetOriginal: %v", err)
	}
	if got.SourceSentence != "src" || got.LearnerAnswer != "ans" {
		t.Errorf("got %+v", got)
	}
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newPoint("a", "a", "b")
	a.Category = models.CategorySystematic
	a.MasteryLevel = 0.1
	insertPoint(t, s, a)
	b := newPoint("b", "a", "b")
	b.MasteryLevel = 0.5
	insertPoint(t, s, b)

	s.Examples.InsertOriginal(ctx, s.DB(), &models.OriginalError{KnowledgePointID: a.ID, CreatedAt: t0})
	s.Examples.InsertOriginal(ctx, s.DB(), &models.OriginalError{KnowledgePointID: b.ID, CreatedAt: t0.Add(-30 * 24 * time.Hour)})
	s.Examples.Insert(ctx, s.DB(), &models.ReviewExample{KnowledgePointID: a.ID, IsCorrect: false, CreatedAt: t0})
	s.Examples.Insert(ctx, s.DB(), &models.ReviewExample{KnowledgePointID: b.ID, IsCorrect: true, CreatedAt: t0})

	freq, err := s.Stats.MistakeFrequencySince(ctx, s.DB(), t0.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("MistakeFrequencySince: %v", err)
	}
	if freq[models.CategorySystematic] != 2 || freq[models.CategoryIsolated] != 0 {
		t.Errorf("freq = %v", freq)
	}

	low, err := s.Stats.CountLowMastery(ctx, s.DB(), 0.3)
	if err != nil || low != 1 {
		t.Errorf("CountLowMastery = %d, %v", low, err)
	}

	overview, err := s.Stats.Overview(ctx, s.DB(), t0.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if overview.ActivePoints != 2 || overview.DueNow != 2 || overview.ByCategory[models.CategorySystematic] != 1 {
		t.Errorf("overview = %+v", overview)
	}
	if overview.AverageMastery < 0.29 || overview.AverageMastery > 0.31 {
		t.Errorf("average mastery = %v, want 0.3", overview.AverageMastery)
	}
}

func TestInTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.Points.Insert(ctx, tx, newPoint("rule", "a", "b")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx: got %v, want boom", err)
	}

	points, _ := s.Points.ListActive(ctx, s.DB(), PointFilter{})
	if len(points) != 0 {
		t.Errorf("rolled back insert is visible: %+v", points)
	}
}

func TestDriverFor(t *testing.T) {
	for kind, want := range map[string]string{"sqlite": DriverSQLite, "": DriverSQLite, "Postgres": DriverPostgres} {
		if got, err := DriverFor(kind); err != nil || got != want {
			t.Errorf("DriverFor(%q) = %q, %v", kind, got, err)
		}
	}
	if _, err := DriverFor("mysql"); err == nil {
		t.Error("mysql accepted")
	}
}
