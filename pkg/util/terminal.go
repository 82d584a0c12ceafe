package util

import (
	"os"

	"golang.org/x/crypto/ssh/terminal"
)

// InTerminal reports whether stdout is attached to a terminal.
func InTerminal() bool {
	return isTerminal(os.Stdout)
}

// InteractiveInput reports whether stdin is attached to a terminal, i.e. whether
// an interactive prompt can be shown to the operator.
func InteractiveInput() bool {
	return isTerminal(os.Stdin)
}

func isTerminal(f *os.File) bool {
	return f != nil && terminal.IsTerminal(int(f.Fd()))
}
