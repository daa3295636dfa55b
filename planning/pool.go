package planning

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ItemFailure records why one item was skipped by a batch run.
type ItemFailure struct {
	ItemID ItemID
	Err    error
}

func (f ItemFailure) Error() string { return string(f.ItemID) + ": " + f.Err.Error() }

type itemOutcome[T any] struct {
	item  ItemID
	value T
	err   error
	ran   bool
}

// forEachItem runs fn for every item with at most workers in flight.
// Outcomes keep the order of items. Items not yet started when ctx is done
// are left with ran == false. fn errors never stop the other items.
func forEachItem[T any](ctx context.Context, items []ItemPolicy, workers int, fn func(context.Context, ItemPolicy) (T, error)) []itemOutcome[T] {
	if workers < 1 {
		workers = 1
	}
	out := make([]itemOutcome[T], len(items))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		i, item := i, item
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			v, err := fn(ctx, item)
			out[i] = itemOutcome[T]{item: item.ItemID, value: v, err: err, ran: true}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func componentLogger(l *zerolog.Logger, component string) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return l.With().Str("component", component).Logger()
}
