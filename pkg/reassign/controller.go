package reassign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
	"github.com/segmentio/ktl/pkg/zk"
	log "github.com/sirupsen/logrus"
)

// State is a step in the life of a ContinuousReassigner.
type State int

const (
	StateIdle State = iota
	StateSubmitted
	StateWatchingForCompletion
	StateCompletionDetected
	StateCancelled
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitted:
		return "submitted"
	case StateWatchingForCompletion:
		return "watching-for-completion"
	case StateCompletionDetected:
		return "completion-detected"
	case StateCancelled:
		return "cancelled"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Reassigner is the interface shared by the one-shot Executor and the
// ContinuousReassigner.
type Reassigner interface {
	InProgress(ctx context.Context) (bool, error)
	HasOverflow(ctx context.Context) (bool, error)
	LoadOverflow(ctx context.Context) ([]Chunk, error)
	Execute(ctx context.Context, entries []admin.PartitionReplicas) error
	Resume(ctx context.Context, chunks []Chunk) error
}

var (
	_ Reassigner = (*Executor)(nil)
	_ Reassigner = (*ContinuousReassigner)(nil)
)

// ContinuousReassigner submits a reassignment and then keeps submitting its overflow,
// one chunk each time the controller removes the reassignment path, until the queue is
// empty or the context is cancelled.
type ContinuousReassigner struct {
	executor    *Executor
	adminClient admin.Client
	delay       time.Duration

	sync.Mutex
	state State
}

// NewContinuousReassigner returns a new ContinuousReassigner instance. The delay is
// waited between the completion of a chunk and the submission of the next one.
func NewContinuousReassigner(
	adminClient admin.Client,
	executor *Executor,
	delay time.Duration,
) *ContinuousReassigner {
	return &ContinuousReassigner{
		executor:    executor,
		adminClient: adminClient,
		delay:       delay,
		state:       StateIdle,
	}
}

// State returns the current state.
func (c *ContinuousReassigner) State() State {
	c.Lock()
	defer c.Unlock()
	return c.state
}

// setState moves to the argument state unless a terminal state was already reached.
func (c *ContinuousReassigner) setState(state State) {
	c.Lock()
	defer c.Unlock()
	if c.state == StateCancelled || c.state == StateDone {
		return
	}
	log.Debugf("Reassigner state: %s -> %s", c.state, state)
	c.state = state
}

// InProgress returns whether the reassignment path lists any partitions.
func (c *ContinuousReassigner) InProgress(ctx context.Context) (bool, error) {
	return c.executor.InProgress(ctx)
}

// HasOverflow returns whether chunks are queued for this kind.
func (c *ContinuousReassigner) HasOverflow(ctx context.Context) (bool, error) {
	return c.executor.HasOverflow(ctx)
}

// LoadOverflow returns the queued chunks of this kind in submission order.
func (c *ContinuousReassigner) LoadOverflow(ctx context.Context) ([]Chunk, error) {
	return c.executor.LoadOverflow(ctx)
}

// Execute submits the argument entries and blocks until every chunk has been reassigned.
// If a reassignment is already in progress, or entries is empty, it only watches the
// current reassignment and drains the overflow queue.
func (c *ContinuousReassigner) Execute(
	ctx context.Context,
	entries []admin.PartitionReplicas,
) error {
	var submit func(ctx context.Context) error
	if len(entries) > 0 {
		submit = func(ctx context.Context) error {
			return c.executor.Execute(ctx, entries)
		}
	}
	return c.run(ctx, submit)
}

// Resume submits the argument queued chunks and blocks until every chunk has been
// reassigned.
func (c *ContinuousReassigner) Resume(ctx context.Context, chunks []Chunk) error {
	var submit func(ctx context.Context) error
	if len(chunks) > 0 {
		submit = func(ctx context.Context) error {
			_, err := c.executor.Submit(ctx, chunks)
			return err
		}
	}
	return c.run(ctx, submit)
}

func (c *ContinuousReassigner) run(
	ctx context.Context,
	submit func(ctx context.Context) error,
) error {
	c.Lock()
	c.state = StateIdle
	c.Unlock()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	// The watch is registered before anything is submitted so that no completion is
	// missed.
	events, err := c.adminClient.WatchReassignment(watchCtx)
	if err != nil {
		return err
	}

	inProgress, err := c.executor.InProgress(ctx)
	if err != nil {
		return err
	}
	if inProgress {
		log.Info("Reassignment already in progress, watching for changes...")
		submit = nil
	} else if submit == nil {
		log.Info("No reassignment in progress and nothing to submit")
		c.setState(StateDone)
		return nil
	}

	// Store writes run on a context that survives an interrupt so that a submission is
	// never left half written.
	storeCtx := context.WithoutCancel(watchCtx)

	done := make(chan error, 1)
	go func() {
		done <- c.process(watchCtx, storeCtx, events, submit)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		log.Info("Exiting due to interrupt; remaining chunks stay queued")
		c.setState(StateCancelled)
		return nil
	}
}

func (c *ContinuousReassigner) process(
	ctx context.Context,
	storeCtx context.Context,
	events <-chan zk.DataEvent,
	submit func(ctx context.Context) error,
) error {
	if submit != nil {
		if err := submit(storeCtx); err != nil {
			return err
		}
		c.setState(StateSubmitted)
	}
	c.setState(StateWatchingForCompletion)

	for {
		var event zk.DataEvent
		var ok bool

		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok = <-events:
			if !ok {
				return errors.New("Reassignment watch closed")
			}
		}

		switch event.Type {
		case zk.DataChanged:
			logRemaining(event.Data)
		case zk.DataError:
			return fmt.Errorf("Error watching reassignment: %w", event.Err)
		case zk.DataDeleted:
			finished, err := c.handleDeleted(ctx, storeCtx)
			if err != nil || finished {
				return err
			}
		}
	}
}

// handleDeleted reacts to the removal of the reassignment path. It returns true once the
// overflow queue is empty.
func (c *ContinuousReassigner) handleDeleted(
	ctx context.Context,
	storeCtx context.Context,
) (bool, error) {
	inProgress, err := c.executor.InProgress(storeCtx)
	if err != nil {
		return false, err
	}
	if inProgress {
		log.Debug("Reassignment path was recreated, still watching")
		return false, nil
	}
	c.setState(StateCompletionDetected)

	chunks, err := c.executor.LoadOverflow(storeCtx)
	if err != nil {
		return false, err
	}
	if len(chunks) == 0 {
		if err := c.executor.ClearProgress(storeCtx); err != nil {
			return false, err
		}
		log.Info("Reassignment finished, no chunks left in the overflow")
		c.setState(StateDone)
		return true, nil
	}

	log.Infof(
		"Waiting %s before next assignment, %d partitions in %d chunks left",
		util.PrettyDuration(c.delay),
		CountPartitions(chunks),
		len(chunks),
	)
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(c.delay):
	}

	if _, err := c.executor.Submit(storeCtx, chunks); err != nil {
		return false, err
	}
	c.setState(StateSubmitted)
	c.setState(StateWatchingForCompletion)

	return false, nil
}

func logRemaining(data []byte) {
	reassignment, err := admin.ParseReassignment(data)
	if err != nil {
		log.Errorf("Bad reassignment data: %q", string(data))
		return
	}

	if len(reassignment.Partitions) > 5 {
		log.Debugf("%d partitions left to reassign", len(reassignment.Partitions))
		return
	}

	partitions := []string{}
	for _, entry := range reassignment.Partitions {
		partitions = append(partitions, entry.TopicPartition().String())
	}
	log.Debugf(
		"%d partitions left to reassign (%s)",
		len(reassignment.Partitions),
		strings.Join(partitions, ", "),
	)
}
