package util

import (
	"reflect"
)

// CopyInts copies a slice of ints.
func CopyInts(input []int) []int {
	results := make([]int, len(input))
	copy(results, input)
	return results
}

// SameElements determines whether two int slices have the
// same elements (in any order).
func SameElements(slice1 []int, slice2 []int) bool {
	if len(slice1) != len(slice2) {
		return false
	}

	slice1Counts := map[int]int{}
	for _, s := range slice1 {
		slice1Counts[s]++
	}

	slice2Counts := map[int]int{}
	for _, s := range slice2 {
		slice2Counts[s]++
	}

	return reflect.DeepEqual(slice1Counts, slice2Counts)
}

// ContainsInt returns whether the argument value is in the slice.
func ContainsInt(slice []int, value int) bool {
	for _, element := range slice {
		if element == value {
			return true
		}
	}
	return false
}

// SubtractInts returns the elements of slice1 that aren't in slice2, keeping the order
// of slice1.
func SubtractInts(slice1 []int, slice2 []int) []int {
	results := []int{}
	for _, element := range slice1 {
		if !ContainsInt(slice2, element) {
			results = append(results, element)
		}
	}
	return results
}

// IntersectInts returns the elements of slice1 that are also in slice2, keeping the order
// of slice1.
func IntersectInts(slice1 []int, slice2 []int) []int {
	results := []int{}
	for _, element := range slice1 {
		if ContainsInt(slice2, element) {
			results = append(results, element)
		}
	}
	return results
}

// HasDuplicates returns whether any value appears more than once in the slice.
func HasDuplicates(slice []int) bool {
	seen := map[int]struct{}{}
	for _, element := range slice {
		if _, ok := seen[element]; ok {
			return true
		}
		seen[element] = struct{}{}
	}
	return false
}
