package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/load"
	"github.com/segmentio/ktl/pkg/plan"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/segmentio/ktl/pkg/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outputBuffer struct {
	lines []string
}

func (o *outputBuffer) printer(f string, a ...interface{}) {
	o.lines = append(o.lines, fmt.Sprintf(f, a...))
}

func (o *outputBuffer) String() string {
	return strings.Join(o.lines, "\n")
}

func testRunner(t *testing.T) (*CLIRunner, *zk.MemoryClient, *outputBuffer) {
	adminClient, zkClient := admin.NewTestClient(
		t,
		admin.TestCluster{
			Brokers: admin.TestBrokers(3, 0),
			Assignment: admin.Assignment{
				{Topic: "events", Partition: 0}: {1, 2},
				{Topic: "events", Partition: 1}: {1, 2},
				{Topic: "logs", Partition: 0}: {2, 3},
			},
		},
	)
	output := &outputBuffer{}
	return NewCLIRunner(adminClient, zkClient, output.printer, false), zkClient, output
}

func TestCLIRunnerBrokersAndStats(t *testing.T) {
	ctx := context.Background()
	runner, _, output := testRunner(t)

	require.NoError(t, runner.GetBrokers(ctx))
	require.NoError(t, runner.GetStats(ctx))
	assert.Contains(t, output.String(), "Brokers:")
	assert.Contains(t, output.String(), "2 topics, 3 partitions, 3 brokers")
}

func TestCLIRunnerReassignDryRun(t *testing.T) {
	ctx := context.Background()
	runner, zkClient, output := testRunner(t)

	shufflePlan, err := plan.NewShufflePlan(
		runner.adminClient,
		&strategies.DefaultStrategy{},
		plan.ShuffleConfig{Filter: "^events$"},
	)
	require.NoError(t, err)

	err = runner.Reassign(
		ctx,
		shufflePlan,
		ReassignConfig{
			Executor: reassign.ExecutorConfig{Kind: reassign.KindShuffle},
			DryRun:   true,
		},
	)
	require.NoError(t, err)
	assert.Contains(t, output.String(), "Dry run, would reassign 1 partitions")

	exists, _, err := zkClient.Exists(ctx, "/admin/reassign_partitions")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCLIRunnerReassignAndProgress(t *testing.T) {
	ctx := context.Background()
	runner, zkClient, output := testRunner(t)

	shufflePlan, err := plan.NewShufflePlan(
		runner.adminClient,
		&strategies.DefaultStrategy{},
		plan.ShuffleConfig{},
	)
	require.NoError(t, err)

	executorConfig := reassign.ExecutorConfig{Kind: reassign.KindShuffle}
	err = runner.Reassign(
		ctx,
		shufflePlan,
		ReassignConfig{
			Executor: executorConfig,
			LockRoot: "/ktl/locks",
		},
	)
	require.NoError(t, err)

	exists, _, err := zkClient.Exists(ctx, "/admin/reassign_partitions")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, runner.ReassignmentProgress(ctx, executorConfig, true))
	assert.Contains(t, output.String(), "remaining partitions to reassign")

	// A second submission exits without touching the reassignment in flight.
	err = runner.Reassign(ctx, shufflePlan, ReassignConfig{Executor: executorConfig})
	require.NoError(t, err)
	assert.Contains(t, output.String(), "Reassignment already in progress, exiting")
}

func TestCLIRunnerPreferredReplica(t *testing.T) {
	ctx := context.Background()
	runner, zkClient, output := testRunner(t)

	require.NoError(t, runner.PreferredReplica(ctx, "^nothing$"))
	assert.Contains(t, output.String(), "No topics matched")

	require.NoError(t, runner.PreferredReplica(ctx, "^ev"))
	assert.Contains(t, output.String(), "leader election on 2 partitions")

	exists, _, err := zkClient.Exists(ctx, "/admin/preferred_replica_election")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, runner.PreferredReplica(ctx, "("))
}

func TestCLIRunnerCalculateLoad(t *testing.T) {
	ctx := context.Background()
	runner, _, output := testRunner(t)

	err := runner.CalculateLoad(
		ctx,
		load.CalculatorConfig{Strategies: []string{strategies.RendezvousName}},
	)
	require.NoError(t, err)
	assert.Contains(t, output.String(), load.CurrentName)
	assert.Contains(t, output.String(), strategies.RendezvousName)
}

func TestCLIRunnerCreateTopicDryRun(t *testing.T) {
	ctx := context.Background()
	runner, _, output := testRunner(t)

	topicPlan, err := plan.NewTopicPlan(
		runner.adminClient,
		&strategies.RendezvousStrategy{},
		plan.TopicConfig{Topic: "metrics", Partitions: 3, ReplicationFactor: 2},
	)
	require.NoError(t, err)

	require.NoError(t, runner.CreateTopic(ctx, topicPlan, true, false))
	assert.Contains(t, output.String(), "Placement of topic metrics")
	assert.Contains(t, output.String(), "metrics")
}
