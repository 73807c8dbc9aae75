package poller

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Shuffler reorders a collection in place. *rand.Rand from math/rand/v2
// satisfies it, which lets tests pin the order with a fixed seed.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// RunPool calls fn for every item with at most limit calls in flight and
// returns once all of them have completed. Items are shuffled first when
// shuffler is non-nil; items itself is not reordered. RunPool does not retry.
//
// Items not yet started when ctx is cancelled are skipped.
func RunPool[T any](ctx context.Context, items []T, limit int, shuffler Shuffler, fn func(context.Context, T)) {
	if len(items) == 0 {
		return
	}
	if limit < 1 {
		limit = 1
	}

	order := make([]T, len(items))
	copy(order, items)
	if shuffler != nil {
		shuffler.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for _, item := range order {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Go(func() {
			defer sem.Release(1)
			fn(ctx, item)
		})
	}
	wg.Wait()
}
