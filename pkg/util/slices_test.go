package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceHelpers(t *testing.T) {
	assert.True(t, SameElements([]int{1, 2, 3}, []int{3, 1, 2}))
	assert.False(t, SameElements([]int{1, 2, 2}, []int{1, 1, 2}))

	assert.True(t, ContainsInt([]int{4, 5}, 5))
	assert.False(t, ContainsInt(nil, 5))

	assert.Equal(t, []int{3, 1}, SubtractInts([]int{3, 2, 1}, []int{2}))
	assert.Equal(t, []int{}, SubtractInts([]int{2}, []int{2}))
	assert.Equal(t, []int{2, 1}, IntersectInts([]int{3, 2, 1}, []int{1, 2}))

	assert.True(t, HasDuplicates([]int{1, 2, 1}))
	assert.False(t, HasDuplicates([]int{1, 2, 3}))
}
