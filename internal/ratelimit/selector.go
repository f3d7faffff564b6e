package ratelimit

import (
	"fmt"
	"strings"
)

// Candidate is one model in the priority-ordered list, cheapest first.
type Candidate struct {
	Name   string
	Limits Limits
}

// ErrRateLimited is returned by Pick when every candidate is at capacity.
type ErrRateLimited struct {
	ExhaustedModels []string
	RetryAfter      int
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("all models rate limited (%s), retry after %ds",
		strings.Join(e.ExhaustedModels, ", "), e.RetryAfter)
}

// Selector picks the first admissible model from a fixed candidate list and
// reserves capacity for it in the same call.
type Selector struct {
	store      *Store
	candidates []Candidate
}

func NewSelector(store *Store, candidates []Candidate) *Selector {
	return &Selector{store: store, candidates: candidates}
}

// Pick walks the candidates in priority order and returns the first one that
// is admissible for the estimated token cost, immediately recording the
// request and the estimate as a reservation. When none is admissible it
// returns *ErrRateLimited carrying the full exhausted list and the smallest
// retry-after across candidates.
func (s *Selector) Pick(estimatedTokens int) (string, error) {
	for _, c := range s.candidates {
		if s.store.Admissible(c.Name, estimatedTokens, c.Limits) {
			s.store.RecordRequest(c.Name)
			s.store.RecordTokens(c.Name, estimatedTokens)
			return c.Name, nil
		}
	}

	exhausted := make([]string, 0, len(s.candidates))
	retry := 60
	for _, c := range s.candidates {
		exhausted = append(exhausted, c.Name)
		if r := s.store.SecondsUntilRetry(c.Name); r < retry {
			retry = r
		}
	}
	return "", &ErrRateLimited{ExhaustedModels: exhausted, RetryAfter: retry}
}

// RecordActualUsage corrects token accounting after the call. The reservation
// made at Pick time stays on the books; only usage beyond the estimate is
// added, so accounting is biased toward over-reservation, never under.
func (s *Selector) RecordActualUsage(model string, actual, estimated int) {
	if actual > estimated {
		s.store.RecordTokens(model, actual-estimated)
	}
}
