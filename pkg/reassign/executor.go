package reassign

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
	"github.com/segmentio/ktl/pkg/zk"
	log "github.com/sirupsen/logrus"
)

// ErrReassignmentInProgress is returned when the reassignment path is already occupied.
var ErrReassignmentInProgress = errors.New("Reassignment already in progress")

// ExecutorConfig holds the settings of an Executor.
type ExecutorConfig struct {
	Kind Kind

	// StateRoot is the absolute store path of the progress and overflow nodes.
	StateRoot string

	// Limit caps the number of partitions per chunk. It's ignored if <= 0.
	Limit int

	// MaxPayloadBytes caps the size of each chunk's payload.
	MaxPayloadBytes int

	// MultiStep first mirrors partitions that swap brokers onto old and new replicas,
	// and queues the final replica lists behind them.
	MultiStep bool

	LogAssignments bool
}

// Submission describes one write to the reassignment path.
type Submission struct {
	// Immediate is the chunk written to the reassignment path.
	Immediate Chunk

	// Followups hold the final replica lists of partitions that were mirrored.
	Followups []Chunk

	// Overflow is the full queue written behind the immediate chunk.
	Overflow []Chunk
}

// Executor splits reassignments into chunks, submits the first one, and keeps the rest in
// the overflow queue of its kind.
type Executor struct {
	adminClient admin.Client
	store       zk.Client
	config      ExecutorConfig
}

// NewExecutor returns a new Executor instance.
func NewExecutor(
	adminClient admin.Client,
	store zk.Client,
	config ExecutorConfig,
) (*Executor, error) {
	if _, err := ParseKind(string(config.Kind)); err != nil {
		return nil, err
	}
	if config.StateRoot == "" {
		config.StateRoot = DefaultStateRoot
	}
	if !strings.HasPrefix(config.StateRoot, "/") {
		return nil, fmt.Errorf("State root %s must be an absolute path", config.StateRoot)
	}
	if config.MaxPayloadBytes == 0 {
		config.MaxPayloadBytes = DefaultMaxPayloadBytes
	}

	return &Executor{
		adminClient: adminClient,
		store:       store,
		config:      config,
	}, nil
}

// Kind returns the kind of reassignment run by this executor.
func (e *Executor) Kind() Kind {
	return e.config.Kind
}

// InProgress returns whether the reassignment path lists any partitions.
func (e *Executor) InProgress(ctx context.Context) (bool, error) {
	reassignment, err := e.adminClient.GetReassignment(ctx)
	if err != nil {
		return false, err
	}
	return len(reassignment.Partitions) > 0, nil
}

// HasOverflow returns whether chunks are queued for this kind.
func (e *Executor) HasOverflow(ctx context.Context) (bool, error) {
	children, err := zk.SortedChildren(ctx, e.store, e.overflowPath())
	if err != nil {
		return false, err
	}
	return len(children) > 0, nil
}

// LoadOverflow returns the queued chunks of this kind in submission order.
func (e *Executor) LoadOverflow(ctx context.Context) ([]Chunk, error) {
	return e.loadChunks(ctx, e.overflowPath())
}

// LoadProgress returns the chunk most recently written to the reassignment path followed
// by the chunks that were queued behind it at the time.
func (e *Executor) LoadProgress(ctx context.Context) ([]Chunk, error) {
	return e.loadChunks(ctx, e.progressPath())
}

// Execute splits the argument entries and submits the first chunk.
func (e *Executor) Execute(ctx context.Context, entries []admin.PartitionReplicas) error {
	if len(entries) == 0 {
		return nil
	}

	if e.config.Limit > 0 && e.config.Limit < len(entries) {
		log.Infof(
			"Reassigning %d of %d partitions per chunk",
			e.config.Limit,
			len(entries),
		)
	} else {
		log.Infof("Reassigning %d partitions", len(entries))
	}

	chunks, err := SplitChunks(entries, e.config.Limit, e.config.MaxPayloadBytes)
	if err != nil {
		return err
	}

	_, err = e.Submit(ctx, chunks)
	return err
}

// Resume submits the head of a previously queued overflow.
func (e *Executor) Resume(ctx context.Context, chunks []Chunk) error {
	_, err := e.Submit(ctx, chunks)
	return err
}

// Submit writes the head of the argument queue to the reassignment path and replaces the
// overflow and progress state of this kind with the rest of the queue.
func (e *Executor) Submit(ctx context.Context, queue []Chunk) (Submission, error) {
	if len(queue) == 0 {
		return Submission{}, errors.New("Cannot submit an empty queue")
	}

	// Checked before the stale state is removed so that a rejected submission doesn't
	// drop the overflow of the one in flight.
	inProgress, err := e.InProgress(ctx)
	if err != nil {
		return Submission{}, err
	}
	if inProgress {
		return Submission{}, ErrReassignmentInProgress
	}

	head := queue[0]
	followups := []Chunk{}

	if e.config.MultiStep {
		var followup Chunk

		head, followup, err = e.expand(ctx, head)
		if err != nil {
			return Submission{}, err
		}
		if len(followup) > 0 {
			followups = append(followups, followup)
		}
	} else if e.config.LogAssignments {
		for _, entry := range head {
			log.Debugf(
				"Assigning %s,%d to %s",
				entry.Topic,
				entry.Partition,
				joinInts(entry.Replicas),
			)
		}
	}

	heads, err := SplitChunks(head, 0, e.config.MaxPayloadBytes)
	if err != nil {
		return Submission{}, err
	}

	submission := Submission{
		Immediate: heads[0],
		Followups: followups,
		Overflow:  []Chunk{},
	}
	submission.Overflow = append(submission.Overflow, heads[1:]...)
	submission.Overflow = append(submission.Overflow, followups...)
	submission.Overflow = append(submission.Overflow, queue[1:]...)

	if err := e.write(ctx, submission, queue); err != nil {
		return submission, err
	}
	return submission, nil
}

// ClearProgress removes the progress state of this kind.
func (e *Executor) ClearProgress(ctx context.Context) error {
	return zk.DeleteRecursive(ctx, e.store, e.progressPath())
}

// expand splits the argument chunk into the replica lists to submit now and the final
// replica lists to submit once the first ones complete. Partitions that both gain and
// lose brokers keep their current replicas and gain the new ones in the first step.
func (e *Executor) expand(ctx context.Context, chunk Chunk) (Chunk, Chunk, error) {
	current, err := e.adminClient.GetReplicaAssignments(ctx, chunk.Topics())
	if err != nil {
		return nil, nil, err
	}

	immediate := Chunk{}
	followup := Chunk{}

	for _, entry := range chunk {
		currentReplicas, ok := current[entry.TopicPartition()]
		added := util.SubtractInts(entry.Replicas, currentReplicas)
		removed := util.SubtractInts(currentReplicas, entry.Replicas)

		if !ok || len(added) == 0 || len(removed) == 0 {
			if e.config.LogAssignments {
				log.Debugf(
					"Assigning %s,%d to %s",
					entry.Topic,
					entry.Partition,
					joinInts(entry.Replicas),
				)
			}
			immediate = append(immediate, entry)
			continue
		}

		mirrored := append(util.CopyInts(currentReplicas), added...)
		if e.config.LogAssignments {
			log.Debugf(
				"Mirroring %s,%d to %s for eventual transition to %s",
				entry.Topic,
				entry.Partition,
				joinInts(mirrored),
				joinInts(entry.Replicas),
			)
		}

		immediate = append(
			immediate,
			admin.PartitionReplicas{
				Topic:     entry.Topic,
				Partition: entry.Partition,
				Replicas:  mirrored,
			},
		)
		followup = append(followup, entry)
	}

	return immediate, followup, nil
}

// write replaces the state of this kind with the argument submission. Stale state is
// removed first, then the reassignment path is created, and only then are the overflow
// and progress nodes written. If the reassignment path was taken in the meantime, the
// argument queue is put back in the overflow so that it can be resumed.
func (e *Executor) write(ctx context.Context, submission Submission, queue []Chunk) error {
	if err := zk.DeleteRecursive(ctx, e.store, e.overflowPath()); err != nil {
		return fmt.Errorf("Error deleting previous overflow: %w", err)
	}
	if err := zk.DeleteRecursive(ctx, e.store, e.progressPath()); err != nil {
		return fmt.Errorf("Error deleting previous progress: %w", err)
	}

	log.Infof(
		"Submitting %d partitions, %d chunks queued behind them",
		len(submission.Immediate),
		len(submission.Overflow),
	)

	err := e.adminClient.AssignPartitions(
		ctx,
		admin.NewReassignment(submission.Immediate),
	)
	if errors.Is(err, zk.ErrNodeExists) {
		log.Warnf(
			"Reassignment path was created by someone else, keeping %d chunks in the overflow",
			len(queue),
		)
		if err := e.writeChunks(ctx, e.overflowPath(), queue); err != nil {
			return fmt.Errorf("Error restoring overflow: %w", err)
		}
		return ErrReassignmentInProgress
	} else if err != nil {
		return err
	}

	if err := e.writeChunks(ctx, e.overflowPath(), submission.Overflow); err != nil {
		return fmt.Errorf("Error writing overflow: %w", err)
	}

	progress := append([]Chunk{submission.Immediate}, submission.Overflow...)
	if err := e.writeChunks(ctx, e.progressPath(), progress); err != nil {
		return fmt.Errorf("Error writing progress: %w", err)
	}

	return nil
}

func (e *Executor) writeChunks(ctx context.Context, parent string, chunks []Chunk) error {
	for c, chunk := range chunks {
		data, err := chunk.Marshal()
		if err != nil {
			return err
		}
		if err := zk.CreateAll(
			ctx,
			e.store,
			path.Join(parent, fmt.Sprintf("%d", c)),
			data,
		); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) loadChunks(ctx context.Context, parent string) ([]Chunk, error) {
	children, err := zk.SortedChildren(ctx, e.store, parent)
	if err != nil {
		return nil, err
	}

	chunks := []Chunk{}
	for _, child := range children {
		data, _, err := e.store.Get(ctx, path.Join(parent, child))
		if errors.Is(err, zk.ErrNoNode) {
			continue
		} else if err != nil {
			return nil, err
		}

		chunk, err := ParseChunk(data)
		if err != nil {
			return nil, fmt.Errorf("Error parsing %s/%s: %w", parent, child, err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

func (e *Executor) overflowPath() string {
	return OverflowPath(e.config.StateRoot, e.config.Kind)
}

func (e *Executor) progressPath() string {
	return ProgressPath(e.config.StateRoot, e.config.Kind)
}

func joinInts(values []int) string {
	strs := make([]string, 0, len(values))
	for _, value := range values {
		strs = append(strs, fmt.Sprintf("%d", value))
	}
	return strings.Join(strs, ",")
}
