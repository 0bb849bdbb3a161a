package engine

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Aggregator collects HashResults from concurrently finishing workers.
// Results are keyed by path so arrival order does not matter; the first
// result for a path wins and later ones are counted and dropped.
type Aggregator struct {
	mu         sync.Mutex
	results    map[string]HashResult
	duplicates atomic.Int64
}

// NewAggregator creates an empty Aggregator sized for hint results.
func NewAggregator(hint int) *Aggregator {
	return &Aggregator{results: make(map[string]HashResult, hint)}
}

// Add records r. It reports false if a result for r.Path was already present.
func (a *Aggregator) Add(r HashResult) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.results[r.Path]; ok {
		a.duplicates.Add(1)
		return false
	}
	a.results[r.Path] = r
	return true
}

// Len returns the number of distinct paths recorded.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Duplicates returns how many results were dropped because their path was
// already recorded.
func (a *Aggregator) Duplicates() int64 {
	return a.duplicates.Load()
}

// Results returns a copy of the path → result mapping.
func (a *Aggregator) Results() map[string]HashResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]HashResult, len(a.results))
	for k, v := range a.results {
		out[k] = v
	}
	return out
}

// Failures returns the failed results sorted by path.
func (a *Aggregator) Failures() []HashResult {
	var out []HashResult
	for _, r := range a.Sorted() {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Sorted returns every result ordered by path.
func (a *Aggregator) Sorted() []HashResult {
	return SortResults(a.Results())
}

// SortResults flattens a result mapping into a slice ordered by path.
func SortResults(m map[string]HashResult) []HashResult {
	out := make([]HashResult, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
