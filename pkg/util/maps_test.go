package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []int{1, 3, 7}, SortedKeys(map[int]int{7: 0, 1: 5, 3: 2}))
	assert.Equal(t, []int{}, SortedKeys(map[int]int{}))
}

func TestSortedKeysByValue(t *testing.T) {
	counts := map[int]int{
		4: 2,
		1: 3,
		2: 2,
		3: 0,
	}

	assert.Equal(t, []int{3, 2, 4, 1}, SortedKeysByValue(counts, true, SortedKeys))
	assert.Equal(t, []int{1, 2, 4, 3}, SortedKeysByValue(counts, false, SortedKeys))

	// Equal values keep the key order
	ties := map[int]int{5: 2, 1: 0, 3: 0, 2: 7}
	assert.Equal(t, []int{1, 3, 5, 2}, SortedKeysByValue(ties, true, SortedKeys))
	assert.Equal(t, []int{2, 5, 1, 3}, SortedKeysByValue(ties, false, SortedKeys))
}

func TestSortedStrings(t *testing.T) {
	assert.Equal(
		t,
		[]string{"a", "b", "c"},
		SortedStrings(map[string]bool{"c": true, "a": false, "b": true}),
	)
}
