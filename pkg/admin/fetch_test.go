package admin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchParallelGroups(t *testing.T) {
	type testCase struct {
		description    string
		inputs         int
		concurrency    int
		expectedGroups int
	}

	testCases := []testCase{
		{
			description:    "empty input",
			inputs:         0,
			concurrency:    8,
			expectedGroups: 0,
		},
		{
			description:    "fewer inputs than workers",
			inputs:         3,
			concurrency:    8,
			expectedGroups: 3,
		},
		{
			description:    "uneven split",
			inputs:         20,
			concurrency:    8,
			expectedGroups: 7,
		},
		{
			description:    "even split",
			inputs:         16,
			concurrency:    8,
			expectedGroups: 8,
		},
		{
			description:    "default concurrency",
			inputs:         100,
			concurrency:    0,
			expectedGroups: 8,
		},
	}

	for _, testCase := range testCases {
		inputs := []int{}
		for i := 0; i < testCase.inputs; i++ {
			inputs = append(inputs, i)
		}

		var lock sync.Mutex
		groups := 0

		results, err := FetchParallel(
			context.Background(),
			inputs,
			testCase.concurrency,
			func(ctx context.Context, group []int) (map[int]int, error) {
				lock.Lock()
				groups++
				lock.Unlock()

				groupResults := map[int]int{}
				for _, input := range group {
					groupResults[input] = input * 2
				}
				return groupResults, nil
			},
		)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expectedGroups, groups, testCase.description)
		assert.Equal(t, testCase.inputs, len(results), testCase.description)
		for i := 0; i < testCase.inputs; i++ {
			assert.Equal(t, i*2, results[i], testCase.description)
		}
	}
}

func TestFetchParallelError(t *testing.T) {
	fetchErr := errors.New("fetch failed")

	results, err := FetchParallel(
		context.Background(),
		[]string{"a", "b", "c", "d"},
		2,
		func(ctx context.Context, group []string) (map[string]bool, error) {
			for _, input := range group {
				if input == "c" {
					return nil, fetchErr
				}
			}
			groupResults := map[string]bool{}
			for _, input := range group {
				groupResults[input] = true
			}
			return groupResults, nil
		},
	)
	assert.ErrorIs(t, err, fetchErr)
	assert.Nil(t, results)
}

func TestFetchParallelCancelsOtherGroups(t *testing.T) {
	fetchErr := errors.New("fetch failed")

	results, err := FetchParallel(
		context.Background(),
		[]string{"a", "b", "c", "d"},
		2,
		func(ctx context.Context, group []string) (map[string]bool, error) {
			if group[0] == "c" {
				return nil, fetchErr
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	)
	assert.ErrorIs(t, err, fetchErr)
	assert.Nil(t, results)
}
