package cli

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/briandowns/spinner"
	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/load"
	"github.com/segmentio/ktl/pkg/plan"
	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/segmentio/ktl/pkg/zk"
	log "github.com/sirupsen/logrus"
)

const (
	spinnerCharSet  = 36
	spinnerDuration = 200 * time.Millisecond
)

// CLIRunner runs the commands of the ktl binary against one cluster.
type CLIRunner struct {
	adminClient admin.Client
	store       zk.Client
	printer     func(f string, a ...interface{})
	spinnerObj  *spinner.Spinner
}

// NewCLIRunner returns a new CLIRunner instance. The store holds the progress and overflow
// state of reassignments; it's usually the zk client under adminClient.
func NewCLIRunner(
	adminClient admin.Client,
	store zk.Client,
	printer func(f string, a ...interface{}),
	showSpinner bool,
) *CLIRunner {
	var spinnerObj *spinner.Spinner

	if showSpinner {
		spinnerObj = spinner.New(
			spinner.CharSets[spinnerCharSet],
			spinnerDuration,
			spinner.WithWriter(os.Stderr),
			spinner.WithHiddenCursor(true),
		)
		spinnerObj.Prefix = "Loading: "
	}

	return &CLIRunner{
		adminClient: adminClient,
		store:       store,
		printer:     printer,
		spinnerObj:  spinnerObj,
	}
}

// GetBrokers prints the brokers of the cluster.
func (c *CLIRunner) GetBrokers(ctx context.Context) error {
	c.startSpinner()

	brokers, err := c.adminClient.GetBrokers(ctx, nil)
	c.stopSpinner()
	if err != nil {
		return err
	}

	c.printer("Brokers:\n%s", admin.FormatBrokers(brokers))
	return nil
}

// GetStats prints how leaders and replicas are spread over the brokers.
func (c *CLIRunner) GetStats(ctx context.Context) error {
	c.startSpinner()

	stats, err := admin.GetClusterStats(ctx, c.adminClient)
	c.stopSpinner()
	if err != nil {
		return err
	}

	c.printer("Cluster stats:\n%s", admin.FormatClusterStats(stats))
	return nil
}

// ReassignConfig holds the settings of a reassignment command.
type ReassignConfig struct {
	Executor reassign.ExecutorConfig

	// Delay is waited between chunks when Wait is set.
	Delay time.Duration

	DryRun bool

	// Wait keeps submitting the overflow until the whole plan is reassigned.
	Wait bool

	// LockRoot, if set, is the zk path under which submissions of each kind are locked.
	LockRoot string

	// SkipConfirm answers yes to every question.
	SkipConfirm bool
}

// Reassign generates a plan with the argument planner and submits it, unless a
// reassignment is in progress or the user resumes a queued one instead.
func (c *CLIRunner) Reassign(
	ctx context.Context,
	planner plan.Planner,
	config ReassignConfig,
) error {
	executor, err := reassign.NewExecutor(c.adminClient, c.store, config.Executor)
	if err != nil {
		return err
	}

	var reassigner reassign.Reassigner = executor
	if config.Wait {
		reassigner = reassign.NewContinuousReassigner(c.adminClient, executor, config.Delay)
	}

	var lockPath string
	if config.LockRoot != "" {
		lockPath = reassign.LockPath(config.LockRoot, executor.Kind())
	}

	task := reassign.NewTask(
		c.adminClient,
		reassigner,
		planner,
		reassign.TaskConfig{
			Kind:     executor.Kind(),
			DryRun:   config.DryRun,
			Wait:     config.Wait,
			LockPath: lockPath,
		},
		func(prompt string) (bool, error) {
			c.stopSpinner()
			return Confirm(prompt, config.SkipConfirm)
		},
		c.printer,
	)

	if err := task.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		log.Info("Interrupted, exiting; queued chunks can be resumed with the same command")
	}
	return nil
}

// ReassignmentProgress prints how far the reassignment of the argument kind has come.
func (c *CLIRunner) ReassignmentProgress(
	ctx context.Context,
	executorConfig reassign.ExecutorConfig,
	verbose bool,
) error {
	executor, err := reassign.NewExecutor(c.adminClient, c.store, executorConfig)
	if err != nil {
		return err
	}

	c.startSpinner()
	report, err := reassign.NewProgressReporter(c.adminClient, executor).Report(ctx)
	c.stopSpinner()
	if err != nil {
		return err
	}

	c.printer("%s", reassign.FormatProgress(report, verbose))
	return nil
}

// PreferredReplica triggers a preferred replica election for every partition of the
// topics matching the argument filter.
func (c *CLIRunner) PreferredReplica(ctx context.Context, filter string) error {
	filterRegexp, err := regexp.Compile(filter)
	if err != nil {
		return fmt.Errorf("Invalid topic filter %q: %w", filter, err)
	}

	c.startSpinner()
	topics, err := c.adminClient.GetTopicNames(ctx)
	if err != nil {
		c.stopSpinner()
		return err
	}

	matching := []string{}
	for _, topic := range topics {
		if filterRegexp.MatchString(topic) {
			matching = append(matching, topic)
		}
	}

	assignment, err := c.adminClient.GetReplicaAssignments(ctx, matching)
	c.stopSpinner()
	if err != nil {
		return err
	}

	partitions := assignment.TopicPartitions()
	if len(partitions) == 0 {
		c.printer("No topics matched %s", filter)
		return nil
	}

	c.printer("Performing preferred replica leader election on %d partitions", len(partitions))
	return c.adminClient.RunLeaderElection(ctx, partitions)
}

// CalculateLoad prints the projected load of each placement strategy.
func (c *CLIRunner) CalculateLoad(ctx context.Context, config load.CalculatorConfig) error {
	var counter load.MessageCounter
	if connector := c.adminClient.GetConnector(); connector != nil {
		counter = load.NewOffsetsClient(connector.KafkaClient, admin.DefaultFetchConcurrency)
	} else {
		log.Warn("No broker connection, message loads will be reported as zero")
	}

	calculator, err := load.NewCalculator(c.adminClient, counter, config)
	if err != nil {
		return err
	}

	c.startSpinner()
	projections, err := calculator.Calculate(ctx)
	c.stopSpinner()
	if err != nil {
		return err
	}

	c.printer("%s", load.FormatProjections(projections))
	return nil
}

// CreateTopic places the partitions of a new topic with the argument planner and creates
// it through the broker API.
func (c *CLIRunner) CreateTopic(
	ctx context.Context,
	topicPlan *plan.TopicPlan,
	dryRun bool,
	skipConfirm bool,
) error {
	c.startSpinner()
	assignment, err := topicPlan.Generate(ctx)
	c.stopSpinner()
	if err != nil {
		return err
	}

	topicConfig := topicPlan.KafkaTopicConfig(assignment)
	c.printer(
		"Placement of topic %s:\n%s",
		topicConfig.Topic,
		reassign.FormatAssignmentsTable(assignment.ToPartitionReplicas()),
	)
	if dryRun {
		return nil
	}

	ok, err := Confirm(fmt.Sprintf("Create topic %s?", topicConfig.Topic), skipConfirm)
	if err != nil || !ok {
		return err
	}

	if err := c.adminClient.CreateTopic(ctx, topicConfig); err != nil {
		return err
	}
	c.printer("Created topic %s", topicConfig.Topic)
	return nil
}

func (c *CLIRunner) startSpinner() {
	if c.spinnerObj != nil {
		c.spinnerObj.Start()
	}
}

func (c *CLIRunner) stopSpinner() {
	if c.spinnerObj != nil && c.spinnerObj.Active() {
		c.spinnerObj.Stop()
	}
}
