package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrettyDuration(t *testing.T) {
	testCases := map[time.Duration]string{
		0:                              "0ms",
		750 * time.Millisecond:         "750ms",
		5 * time.Second:                "5s",
		3*time.Minute + 59*time.Second: "239s",
		45 * time.Minute:               "45m",
		3*time.Hour + 20*time.Minute:   "3h",
	}

	for duration, expected := range testCases {
		assert.Equal(t, expected, PrettyDuration(duration), "duration %v", duration)
	}
}

func TestPrettyCount(t *testing.T) {
	type testCase struct {
		count    int64
		expected string
	}

	testCases := []testCase{
		{count: 0, expected: "0"},
		{count: 9999, expected: "9999"},
		{count: 12345, expected: "12.3K"},
		{count: 2500000, expected: "2.5M"},
		{count: 3100000000, expected: "3.1B"},
	}

	for _, testCaseObj := range testCases {
		assert.Equal(t, testCaseObj.expected, PrettyCount(testCaseObj.count))
	}
}
