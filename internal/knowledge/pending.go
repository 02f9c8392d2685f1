package knowledge

import (
	"sort"
	"sync"
	"time"

	"github.com/example/errbook/pkg/models"
	"github.com/google/uuid"
)

type pendingEntry struct {
	candidates map[int]models.PendingCandidate
	expiresAt  time.Time
}

// PendingGate holds candidates until the learner confirms or discards them.
// Entries expire after the timeout and are removed by Sweep.
type PendingGate struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
	timeout time.Duration
}

// NewPendingGate creates a gate whose entries live for timeout
func NewPendingGate(timeout time.Duration) *PendingGate {
	return &PendingGate{
		pending: make(map[string]*pendingEntry),
		timeout: timeout,
	}
}

// Hold stores candidates under a new token and stamps them with it
func (g *PendingGate) Hold(candidates []models.PendingCandidate, now time.Time) (string, []models.PendingCandidate) {
	token := uuid.New().String()[:8]
	expires := now.Add(g.timeout)

	entry := &pendingEntry{
		candidates: make(map[int]models.PendingCandidate, len(candidates)),
		expiresAt:  expires,
	}
	held := make([]models.PendingCandidate, len(candidates))
	for i, c := range candidates {
		c.Token = token
		c.CreatedAt = now
		c.ExpiresAt = expires
		entry.candidates[c.ID] = c
		held[i] = c
	}

	g.mu.Lock()
	g.pending[token] = entry
	g.mu.Unlock()

	return token, held
}

// Get returns the candidates still held under token, in ID order
func (g *PendingGate) Get(token string, now time.Time) ([]models.PendingCandidate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, err := g.entry(token, now)
	if err != nil {
		return nil, err
	}
	return sorted(entry.candidates, nil), nil
}

// Claim removes and returns the selected candidates. An empty selection
// claims all of them. IDs that are not held are returned in missing.
func (g *PendingGate) Claim(token string, ids []int, now time.Time) (claimed []models.PendingCandidate, missing []int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, err := g.entry(token, now)
	if err != nil {
		return nil, nil, err
	}

	claimed, missing = take(entry, ids)
	if len(entry.candidates) == 0 {
		delete(g.pending, token)
	}
	return claimed, missing, nil
}

// Return puts candidates that could not be committed back under their token
// with a fresh timeout.
func (g *PendingGate) Return(candidates []models.PendingCandidate, now time.Time) {
	if len(candidates) == 0 {
		return
	}
	expires := now.Add(g.timeout)

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, c := range candidates {
		entry, ok := g.pending[c.Token]
		if !ok {
			entry = &pendingEntry{candidates: make(map[int]models.PendingCandidate)}
			g.pending[c.Token] = entry
		}
		c.ExpiresAt = expires
		entry.candidates[c.ID] = c
		entry.expiresAt = expires
	}
}

// Discard drops the selected candidates (all of them for an empty selection)
func (g *PendingGate) Discard(token string, ids []int, now time.Time) (int, error) {
	claimed, _, err := g.Claim(token, ids, now)
	return len(claimed), err
}

// Sweep removes expired entries and returns how many candidates were evicted
func (g *PendingGate) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	evicted := 0
	for token, entry := range g.pending {
		if !now.Before(entry.expiresAt) {
			evicted += len(entry.candidates)
			delete(g.pending, token)
		}
	}
	return evicted
}

// Len returns the number of candidates currently held
func (g *PendingGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, entry := range g.pending {
		n += len(entry.candidates)
	}
	return n
}

// entry must be called with g.mu held. Expired entries are treated as absent.
func (g *PendingGate) entry(token string, now time.Time) (*pendingEntry, error) {
	entry, ok := g.pending[token]
	if !ok {
		return nil, ErrPendingNotFound
	}
	if !now.Before(entry.expiresAt) {
		delete(g.pending, token)
		return nil, ErrPendingNotFound
	}
	return entry, nil
}

func take(entry *pendingEntry, ids []int) (taken []models.PendingCandidate, missing []int) {
	if len(ids) == 0 {
		taken = sorted(entry.candidates, nil)
		entry.candidates = make(map[int]models.PendingCandidate)
		return taken, nil
	}
	for _, id := range ids {
		c, ok := entry.candidates[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		taken = append(taken, c)
		delete(entry.candidates, id)
	}
	return taken, missing
}

func sorted(m map[int]models.PendingCandidate, dst []models.PendingCandidate) []models.PendingCandidate {
	for _, c := range m {
		dst = append(dst, c)
	}
	sort.Slice(dst, func(i, j int) bool { return dst[i].ID < dst[j].ID })
	return dst
}
