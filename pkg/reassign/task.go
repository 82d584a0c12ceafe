package reassign

import (
	"context"
	"fmt"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/plan"
	log "github.com/sirupsen/logrus"
)

// Confirmer asks the user a yes/no question.
type Confirmer func(prompt string) (bool, error)

// TaskConfig holds the settings of a Task.
type TaskConfig struct {
	Kind Kind

	// DryRun prints the plan without writing anything.
	DryRun bool

	// Wait attaches to a reassignment that's already in progress instead of exiting.
	Wait bool

	// LockPath, if set, is held for the duration of the submission.
	LockPath string
}

// Task decides what to submit for a reassignment command: nothing if a reassignment is
// in flight, the queued overflow if the user wants to resume it, or a newly generated
// plan.
type Task struct {
	adminClient admin.Client
	reassigner  Reassigner
	planner     plan.Planner
	config      TaskConfig
	confirm     Confirmer
	printer     func(f string, a ...interface{})
}

// NewTask returns a new Task instance.
func NewTask(
	adminClient admin.Client,
	reassigner Reassigner,
	planner plan.Planner,
	config TaskConfig,
	confirm Confirmer,
	printer func(f string, a ...interface{}),
) *Task {
	return &Task{
		adminClient: adminClient,
		reassigner:  reassigner,
		planner:     planner,
		config:      config,
		confirm:     confirm,
		printer:     printer,
	}
}

// Run runs the task.
func (t *Task) Run(ctx context.Context) error {
	if t.config.LockPath != "" && !t.config.DryRun {
		log.Debugf("Acquiring lock %s", t.config.LockPath)
		lock, err := t.adminClient.AcquireLock(ctx, t.config.LockPath)
		if err != nil {
			return fmt.Errorf("Error acquiring lock %s: %w", t.config.LockPath, err)
		}
		defer lock.Unlock()
	}

	inProgress, err := t.reassigner.InProgress(ctx)
	if err != nil {
		return err
	}
	if inProgress {
		if !t.config.Wait || t.config.DryRun {
			t.printer("Reassignment already in progress, exiting")
			return nil
		}
		t.printer("Reassignment already in progress, waiting for it and its overflow")
		return t.reassigner.Execute(ctx, nil)
	}

	if !t.config.DryRun {
		chunks, err := t.overflowToResume(ctx)
		if err != nil {
			return err
		}
		if len(chunks) > 0 {
			t.printer(
				"Reassigning %d partitions from %d queued chunks",
				CountPartitions(chunks),
				len(chunks),
			)
			return t.reassigner.Resume(ctx, chunks)
		}
	}

	t.printer("Generating a new reassignment plan")
	desired, err := t.planner.Generate(ctx)
	if err != nil {
		return err
	}
	if len(desired) == 0 {
		t.printer("Empty reassignment, ignoring")
		return nil
	}
	if err := desired.Check(); err != nil {
		return err
	}

	if t.config.DryRun {
		return t.printPlan(ctx, desired)
	}

	t.printer("Reassigning %d partitions", len(desired))
	return t.reassigner.Execute(ctx, desired.ToPartitionReplicas())
}

func (t *Task) overflowToResume(ctx context.Context) ([]Chunk, error) {
	hasOverflow, err := t.reassigner.HasOverflow(ctx)
	if err != nil || !hasOverflow {
		return nil, err
	}

	ok, err := t.confirm("Overflow from previous reassignment found, use?")
	if err != nil || !ok {
		return nil, err
	}

	t.printer("Loading overflow data")
	return t.reassigner.LoadOverflow(ctx)
}

func (t *Task) printPlan(ctx context.Context, desired admin.Assignment) error {
	current, err := t.adminClient.GetReplicaAssignments(ctx, desired.Topics())
	if err != nil {
		return err
	}
	brokers, err := t.adminClient.GetBrokers(ctx, nil)
	if err != nil {
		return err
	}

	t.printer(
		"Dry run, would reassign %d partitions:\n%s",
		len(desired),
		admin.FormatAssignmentDiffs(current, desired, brokers),
	)
	return nil
}
