package planning

import (
	"sort"
	"time"
)

// LatestIndex keeps the most recent record per item as records are scanned.
// Stores feed it rows in any order instead of sorting and filtering the
// whole collection.
type LatestIndex[T any] struct {
	key     func(T) ItemID
	at      func(T) time.Time
	records map[ItemID]T
}

func NewLatestIndex[T any](key func(T) ItemID, at func(T) time.Time) *LatestIndex[T] {
	return &LatestIndex[T]{key: key, at: at, records: make(map[ItemID]T)}
}

// Observe keeps r if it is newer than what is held for its item. On equal
// timestamps the later-observed record wins, matching insertion order.
func (l *LatestIndex[T]) Observe(r T) {
	k := l.key(r)
	if cur, ok := l.records[k]; ok && l.at(r).Before(l.at(cur)) {
		return
	}
	l.records[k] = r
}

func (l *LatestIndex[T]) Get(id ItemID) (T, bool) {
	r, ok := l.records[id]
	return r, ok
}

func (l *LatestIndex[T]) Len() int { return len(l.records) }

// Values returns the held records in no particular order.
func (l *LatestIndex[T]) Values() []T {
	out := make([]T, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	return out
}

// NewRecommendationIndex indexes recommendations by ItemID and GeneratedAt.
func NewRecommendationIndex() *LatestIndex[Recommendation] {
	return NewLatestIndex(
		func(r Recommendation) ItemID { return r.ItemID },
		func(r Recommendation) time.Time { return r.GeneratedAt },
	)
}

// NewForecastIndex indexes forecast results by ItemID and GeneratedAt.
func NewForecastIndex() *LatestIndex[ForecastResult] {
	return NewLatestIndex(
		func(f ForecastResult) ItemID { return f.ItemID },
		func(f ForecastResult) time.Time { return f.GeneratedAt },
	)
}

// LatestRecommendations reduces recs to one per item and sorts them by
// priority (CRITICAL first), then newest first, then ItemID.
func LatestRecommendations(recs []Recommendation) []Recommendation {
	idx := NewRecommendationIndex()
	for _, r := range recs {
		idx.Observe(r)
	}
	out := idx.Values()
	SortByPriority(out)
	return out
}

// SortByPriority orders recommendations CRITICAL < HIGH < MEDIUM < LOW, ties
// broken by GeneratedAt descending, then ItemID.
func SortByPriority(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := recs[i].Priority.Rank(), recs[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		if !recs[i].GeneratedAt.Equal(recs[j].GeneratedAt) {
			return recs[i].GeneratedAt.After(recs[j].GeneratedAt)
		}
		return recs[i].ItemID < recs[j].ItemID
	})
}
