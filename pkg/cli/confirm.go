package cli

import (
	"fmt"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/segmentio/ktl/pkg/util"
	log "github.com/sirupsen/logrus"
)

var answerSuggestions = []prompt.Suggest{
	{
		Text:        "yes",
		Description: "Continue",
	},
	{
		Text:        "no",
		Description: "Stop here",
	},
}

// Confirm asks the user a yes/no question. Outside of a terminal the answer is read from
// a plain line of stdin.
func Confirm(question string, skip bool) (bool, error) {
	if skip {
		fmt.Printf("%s (yes/no) ", question)
		log.Infof("Automatically answering yes because skip is set to true")
		return true, nil
	}

	var response string
	if util.InTerminal() && util.InteractiveInput() {
		response = prompt.Input(
			fmt.Sprintf("%s (yes/no) ", question),
			answerCompleter,
		)
	} else {
		fmt.Printf("%s (yes/no) ", question)
		if _, err := fmt.Scanln(&response); err != nil {
			log.Warnf("Got error reading response, not continuing: %+v", err)
			return false, err
		}
	}

	if !isYes(response) {
		log.Infof("Not continuing")
		return false, nil
	}
	return true, nil
}

func answerCompleter(doc prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(answerSuggestions, doc.GetWordBeforeCursor(), true)
}

func isYes(response string) bool {
	switch strings.TrimSpace(strings.ToLower(response)) {
	case "yes", "y":
		return true
	default:
		return false
	}
}
