package reassign

import (
	"fmt"
	"path"
	"time"
)

// Kind namespaces the progress and overflow state of a reassignment command.
type Kind string

const (
	KindMigrate      Kind = "migrate"
	KindShuffle      Kind = "shuffle"
	KindDecommission Kind = "decommission"
)

const (
	// DefaultStateRoot is the store path under which progress and overflow are kept.
	DefaultStateRoot = "/ktl"

	// DefaultMaxPayloadBytes is the largest reassignment payload written in one store
	// write.
	DefaultMaxPayloadBytes = 1024 * 1024

	// DefaultDelay is the pause between the completion of one chunk and the submission
	// of the next.
	DefaultDelay = 5 * time.Second
)

var allKinds = []Kind{KindMigrate, KindShuffle, KindDecommission}

// ParseKind returns the Kind with the argument name.
func ParseKind(name string) (Kind, error) {
	for _, kind := range allKinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", fmt.Errorf(
		"Unrecognized reassignment kind %q; choices are %s, %s, and %s",
		name,
		KindMigrate,
		KindShuffle,
		KindDecommission,
	)
}

// ProgressPath returns the parent of the progress nodes of the argument kind. Child 0
// holds the chunk on the reassignment path and the following children hold the chunks
// that were queued behind it.
func ProgressPath(stateRoot string, kind Kind) string {
	return path.Join(stateRoot, "reassign", string(kind))
}

// OverflowPath returns the parent of the overflow nodes of the argument kind, one child
// per queued chunk, consumed in index order.
func OverflowPath(stateRoot string, kind Kind) string {
	return path.Join(stateRoot, "overflow", string(kind))
}

// LockPath returns the submission lock of the argument kind under lockRoot.
func LockPath(lockRoot string, kind Kind) string {
	return path.Join(lockRoot, string(kind))
}
