package cli

import (
	"testing"

	"github.com/c-bata/go-prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsYes(t *testing.T) {
	type testCase struct {
		response string
		expected bool
	}

	testCases := []testCase{
		{response: "yes", expected: true},
		{response: " Y\n", expected: true},
		{response: "YES", expected: true},
		{response: "no", expected: false},
		{response: "", expected: false},
		{response: "yess", expected: false},
	}

	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, isYes(testCase.response), testCase.response)
	}
}

func TestConfirmSkip(t *testing.T) {
	ok, err := Confirm("Continue?", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAnswerCompleter(t *testing.T) {
	buf := prompt.NewBuffer()
	buf.InsertText("y", false, true)

	suggestions := answerCompleter(*buf.Document())
	require.Equal(t, 1, len(suggestions))
	assert.Equal(t, "yes", suggestions[0].Text)
}
