package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// windowLen is the sliding window for request and token accounting.
	windowLen = 60 * time.Second
	// sweepEvery is the period of the background eviction pass.
	sweepEvery = 5 * time.Minute
	// staleAfter is how old a window's newest entry must be before the
	// sweep evicts the whole window.
	staleAfter = time.Hour
)

// Limits is the static per-model quota configuration, loaded at startup.
type Limits struct {
	RequestsPerMinute int
	TokensPerMinute   int
	RequestsPerDay    int
}

// Clock abstraction so the windows are testable with a fixed time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type tokenEntry struct {
	at    time.Time
	count int
}

// window holds the sliding request/token logs and the daily counter for one
// model. All fields are guarded by the owning Store's mutex.
type window struct {
	requests     []time.Time
	tokens       []tokenEntry
	daily        int
	dailyResetAt time.Time
}

func (w *window) prune(now time.Time) {
	cut := now.Add(-windowLen)
	i := 0
	for i < len(w.requests) && !w.requests[i].After(cut) {
		i++
	}
	w.requests = w.requests[i:]

	j := 0
	for j < len(w.tokens) && !w.tokens[j].at.After(cut) {
		j++
	}
	w.tokens = w.tokens[j:]
}

// rollDaily resets the daily counter when the UTC midnight boundary has
// passed, advancing the reset point to the next one.
func (w *window) rollDaily(now time.Time) {
	if now.Before(w.dailyResetAt) {
		return
	}
	w.daily = 0
	w.dailyResetAt = nextUTCMidnight(now)
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// Store keeps one sliding window per model name. Windows are created lazily
// on first reference and evicted by the periodic sweep once stale.
//
// The mutex protects map and slice integrity only. An admissibility check and
// the matching Record* call are two separate critical sections: two bursts can
// both pass a check before either records, briefly over-admitting past the
// nominal quota. That tolerance is deliberate (availability over strict quota
// precision); do not fold check and record into one locked section without
// revisiting the admission behavior.
type Store struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   Clock
}

func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{windows: make(map[string]*window), clock: clock}
}

// getOrCreate must be called with the mutex held.
func (s *Store) getOrCreate(model string) *window {
	w, ok := s.windows[model]
	if !ok {
		w = &window{dailyResetAt: nextUTCMidnight(s.clock.Now())}
		s.windows[model] = w
	}
	return w
}

// RecordRequest appends the current instant to the model's request log and
// bumps its daily counter.
func (s *Store) RecordRequest(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	w := s.getOrCreate(model)
	w.rollDaily(now)
	w.requests = append(w.requests, now)
	w.daily++
}

// RecordTokens appends a token usage entry for the model.
func (s *Store) RecordTokens(model string, count int) {
	if count <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getOrCreate(model)
	w.tokens = append(w.tokens, tokenEntry{at: s.clock.Now(), count: count})
}

// Sweep drops entries older than an hour and deletes windows left empty.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cut := s.clock.Now().Add(-staleAfter)
	for model, w := range s.windows {
		last := time.Time{}
		if n := len(w.requests); n > 0 {
			last = w.requests[n-1]
		}
		if n := len(w.tokens); n > 0 && w.tokens[n-1].at.After(last) {
			last = w.tokens[n-1].at
		}
		if last.Before(cut) || last.IsZero() {
			delete(s.windows, model)
		}
	}
}

// RunSweeper blocks, sweeping every five minutes until the context is done.
// Run it on its own goroutine; it never touches request-serving paths.
func (s *Store) RunSweeper(ctx context.Context, logger *zap.Logger) {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := s.size()
			s.Sweep()
			if after := s.size(); after < before {
				logger.Debug("rate window sweep",
					zap.Int("evicted", before-after),
					zap.Int("remaining", after),
				)
			}
		}
	}
}

func (s *Store) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
