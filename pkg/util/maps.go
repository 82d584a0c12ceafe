package util

import (
	"sort"
)

// KeySorter is a type for a function that sorts integer keys based on their values in a map.
type KeySorter func(map[int]int) []int

// SortedKeys returns the keys of the argument in ascending order.
func SortedKeys(input map[int]int) []int {
	keys := []int{}

	for key := range input {
		keys = append(keys, key)
	}

	sort.Ints(keys)
	return keys
}

// SortedKeysByValue returns the keys in a map, sorted by the map values. Keys with equal
// values keep the order produced by the argument keySorter.
func SortedKeysByValue(input map[int]int, asc bool, keySorter KeySorter) []int {
	// First, sort the keys
	keys := keySorter(input)

	// Then, sort by value
	if asc {
		sort.SliceStable(
			keys, func(a, b int) bool {
				return input[keys[a]] < input[keys[b]]
			},
		)
	} else {
		sort.SliceStable(
			keys, func(a, b int) bool {
				return input[keys[a]] > input[keys[b]]
			},
		)
	}

	return keys
}

// SortedStrings returns the keys of a string-keyed map in ascending order.
func SortedStrings[V any](input map[string]V) []string {
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
