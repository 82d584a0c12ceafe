package admin

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchConcurrency is the number of parallel workers used for bulk metadata reads.
const DefaultFetchConcurrency = 8

// FetchParallel splits the inputs into at most concurrency groups of ⌈n/concurrency⌉
// elements, runs fetch on every group in its own goroutine, and merges the results.
// It waits for all groups to finish. The first failing group cancels the context of
// the others, and its error is returned without any partial results.
func FetchParallel[I any, K comparable, V any](
	ctx context.Context,
	inputs []I,
	concurrency int,
	fetch func(ctx context.Context, group []I) (map[K]V, error),
) (map[K]V, error) {
	results := map[K]V{}
	if len(inputs) == 0 {
		return results, nil
	}
	if concurrency < 1 {
		concurrency = DefaultFetchConcurrency
	}

	groupSize := (len(inputs) + concurrency - 1) / concurrency
	groups := [][]I{}
	for start := 0; start < len(inputs); start += groupSize {
		end := start + groupSize
		if end > len(inputs) {
			end = len(inputs)
		}
		groups = append(groups, inputs[start:end])
	}
	log.Debugf(
		"Fetching %d elements in %d groups of up to %d",
		len(inputs),
		len(groups),
		groupSize,
	)

	workers, workersCtx := errgroup.WithContext(ctx)
	workers.SetLimit(concurrency)

	groupResults := make([]map[K]V, len(groups))
	for g, elements := range groups {
		workers.Go(func() error {
			fetched, err := fetch(workersCtx, elements)
			if err != nil {
				return err
			}
			groupResults[g] = fetched
			return nil
		})
	}

	if err := workers.Wait(); err != nil {
		return nil, err
	}

	for _, fetched := range groupResults {
		for key, value := range fetched {
			results[key] = value
		}
	}
	return results, nil
}
