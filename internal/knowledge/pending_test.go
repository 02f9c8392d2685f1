package knowledge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/errbook/pkg/models"
)

func threeCandidates() []models.PendingCandidate {
	return []models.PendingCandidate{
		{ID: 1, Category: models.CategoryIsolated, Subtype: "a", OriginalPhrase: "a", Correction: "b"},
		{ID: 2, Category: models.CategorySystematic, Subtype: "b", OriginalPhrase: "a", Correction: "b"},
		{ID: 3, Category: models.CategoryOther, Subtype: "c", OriginalPhrase: "a", Correction: "b"},
	}
}

func TestPendingGateClaim(t *testing.T) {
	g := NewPendingGate(time.Minute)
	token, held := g.Hold(threeCandidates(), t0)

	if len(token) != 8 {
		t.Errorf("token = %q", token)
	}
	for _, c := range held {
		if c.Token != token || !c.ExpiresAt.Equal(t0.Add(time.Minute)) {
			t.Errorf("candidate not stamped: %+v", c)
		}
	}

	claimed, missing, err := g.Claim(token, []int{2, 7}, t0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != 2 {
		t.Errorf("claimed = %+v", claimed)
	}
	if len(missing) != 1 || missing[0] != 7 {
		t.Errorf("missing = %v", missing)
	}

	// a claimed candidate cannot be claimed twice
	claimed, missing, _ = g.Claim(token, []int{2}, t0)
	if len(claimed) != 0 || len(missing) != 1 {
		t.Errorf("second claim: claimed=%+v missing=%v", claimed, missing)
	}

	rest, err := g.Get(token, t0)
	if err != nil || len(rest) != 2 || rest[0].ID != 1 || rest[1].ID != 3 {
		t.Fatalf("Get = %+v, %v", rest, err)
	}

	claimed, _, _ = g.Claim(token, nil, t0)
	if len(claimed) != 2 {
		t.Errorf("claim all = %+v", claimed)
	}
	if _, err := g.Get(token, t0); !errors.Is(err, ErrPendingNotFound) {
		t.Errorf("emptied token still present: %v", err)
	}
}

func TestPendingGateExpiry(t *testing.T) {
	g := NewPendingGate(time.Minute)
	token, _ := g.Hold(threeCandidates(), t0)
	other, _ := g.Hold(threeCandidates()[:1], t0.Add(30*time.Second))

	if _, _, err := g.Claim(token, nil, t0.Add(time.Minute)); !errors.Is(err, ErrPendingNotFound) {
		t.Errorf("expired claim: got %v, want ErrPendingNotFound", err)
	}

	if n := g.Sweep(t0.Add(time.Minute)); n != 0 {
		t.Errorf("Sweep evicted %d, the expired entry was already dropped by Claim", n)
	}
	if n := g.Sweep(t0.Add(2 * time.Minute)); n != 1 {
		t.Errorf("Sweep evicted %d, want 1", n)
	}
	if _, err := g.Get(other, t0.Add(2*time.Minute)); !errors.Is(err, ErrPendingNotFound) {
		t.Errorf("swept token still present: %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("Len = %d after sweep", g.Len())
	}
}

func TestPendingGateReturn(t *testing.T) {
	g := NewPendingGate(time.Minute)
	token, _ := g.Hold(threeCandidates(), t0)

	claimed, _, _ := g.Claim(token, nil, t0)
	g.Return(claimed[:1], t0.Add(50*time.Second))

	held, err := g.Get(token, t0.Add(100*time.Second))
	if err != nil {
		t.Fatalf("returned candidate not held: %v", err)
	}
	if len(held) != 1 || held[0].ID != 1 {
		t.Errorf("held = %+v", held)
	}
}

func TestPendingGateDiscard(t *testing.T) {
	g := NewPendingGate(time.Minute)
	token, _ := g.Hold(threeCandidates(), t0)

	n, err := g.Discard(token, []int{1, 3}, t0)
	if err != nil || n != 2 {
		t.Fatalf("Discard = %d, %v", n, err)
	}
	if g.Len() != 1 {
		t.Errorf("Len = %d, want 1", g.Len())
	}
	if _, err := g.Discard("nope", nil, t0); !errors.Is(err, ErrPendingNotFound) {
		t.Errorf("unknown token: %v", err)
	}
}

func TestPendingGateConcurrentClaims(t *testing.T) {
	g := NewPendingGate(time.Minute)
	token, _ := g.Hold(threeCandidates(), t0)

	var (
		mu    sync.Mutex
		total int
		wg    sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, _, _ := g.Claim(token, nil, t0)
			mu.Lock()
			total += len(claimed)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 3 {
		t.Errorf("claimed %d candidates in total, want 3", total)
	}
}
