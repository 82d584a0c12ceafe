package reassign

import (
	"context"
	"testing"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutorValidation(t *testing.T) {
	adminClient, store := admin.NewTestClient(t, testCluster("topic", 1))

	_, err := NewExecutor(adminClient, store, ExecutorConfig{Kind: "balance"})
	assert.Error(t, err)

	_, err = NewExecutor(
		adminClient,
		store,
		ExecutorConfig{Kind: KindShuffle, StateRoot: "relative"},
	)
	assert.Error(t, err)
}

func TestExecutorExecute(t *testing.T) {
	ctx := context.Background()
	adminClient, store := admin.NewTestClient(t, testCluster("topic", 5))
	executor := testExecutor(t, adminClient, store, ExecutorConfig{Limit: 2})

	inProgress, err := executor.InProgress(ctx)
	require.NoError(t, err)
	assert.False(t, inProgress)

	hasOverflow, err := executor.HasOverflow(ctx)
	require.NoError(t, err)
	assert.False(t, hasOverflow)

	// Stale overflow from an older run
	zk.CreateNode(t, store, "/ktl/overflow/shuffle/7", Chunk{})

	entries := testEntries("topic", 5, 2, 3)
	require.NoError(t, executor.Execute(ctx, entries))

	reassignment, err := adminClient.GetReassignment(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries[0:2], reassignment.Partitions)

	inProgress, err = executor.InProgress(ctx)
	require.NoError(t, err)
	assert.True(t, inProgress)

	hasOverflow, err = executor.HasOverflow(ctx)
	require.NoError(t, err)
	assert.True(t, hasOverflow)

	overflow, err := executor.LoadOverflow(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Chunk{entries[2:4], entries[4:5]}, overflow)
	assert.Equal(
		t,
		[]string{
			"/ktl/overflow/shuffle/0",
			"/ktl/overflow/shuffle/1",
		},
		store.Paths("/ktl/overflow/shuffle/"),
	)

	progress, err := executor.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Chunk{entries[0:2], entries[2:4], entries[4:5]}, progress)

	err = executor.Execute(ctx, entries)
	assert.ErrorIs(t, err, ErrReassignmentInProgress)

	require.NoError(t, executor.ClearProgress(ctx))
	progress, err = executor.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Empty(t, progress)
}

func TestExecutorSubmitQueue(t *testing.T) {
	ctx := context.Background()
	adminClient, store := admin.NewTestClient(t, testCluster("topic", 3))
	executor := testExecutor(t, adminClient, store, ExecutorConfig{Kind: KindMigrate})

	entries := testEntries("topic", 3, 2, 3)
	submission, err := executor.Submit(
		ctx,
		[]Chunk{entries[0:1], entries[1:2], entries[2:3]},
	)
	require.NoError(t, err)
	assert.Equal(t, Chunk(entries[0:1]), submission.Immediate)
	assert.Empty(t, submission.Followups)
	assert.Equal(t, []Chunk{entries[1:2], entries[2:3]}, submission.Overflow)

	_, err = executor.Submit(ctx, nil)
	assert.Error(t, err)

	// Other kinds are untouched
	shuffleExecutor := testExecutor(t, adminClient, store, ExecutorConfig{})
	hasOverflow, err := shuffleExecutor.HasOverflow(ctx)
	require.NoError(t, err)
	assert.False(t, hasOverflow)
}

func TestExecutorMultiStep(t *testing.T) {
	ctx := context.Background()
	adminClient, store := admin.NewTestClient(t, testCluster("topic", 4))
	executor := testExecutor(
		t,
		adminClient,
		store,
		ExecutorConfig{
			Kind:           KindMigrate,
			MultiStep:      true,
			LogAssignments: true,
		},
	)

	entries := []admin.PartitionReplicas{
		// Broker swap
		{Topic: "topic", Partition: 0, Replicas: []int{3, 2}},
		// Reorder
		{Topic: "topic", Partition: 1, Replicas: []int{2, 1}},
		// Expansion
		{Topic: "topic", Partition: 2, Replicas: []int{1, 2, 3}},
		// Shrink
		{Topic: "topic", Partition: 3, Replicas: []int{2}},
	}

	submission, err := executor.Submit(ctx, []Chunk{entries})
	require.NoError(t, err)

	assert.Equal(
		t,
		Chunk{
			{Topic: "topic", Partition: 0, Replicas: []int{1, 2, 3}},
			{Topic: "topic", Partition: 1, Replicas: []int{2, 1}},
			{Topic: "topic", Partition: 2, Replicas: []int{1, 2, 3}},
			{Topic: "topic", Partition: 3, Replicas: []int{2}},
		},
		submission.Immediate,
	)
	assert.Equal(t, []Chunk{entries[0:1]}, submission.Followups)
	assert.Equal(t, []Chunk{entries[0:1]}, submission.Overflow)

	reassignment, err := adminClient.GetReassignment(ctx)
	require.NoError(t, err)
	assert.Equal(t, []admin.PartitionReplicas(submission.Immediate), reassignment.Partitions)

	overflow, err := executor.LoadOverflow(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Chunk{entries[0:1]}, overflow)
}

func TestExecutorMultiStepResplits(t *testing.T) {
	ctx := context.Background()
	adminClient, store := admin.NewTestClient(t, testCluster("topic", 4))

	entries := testEntries("topic", 4, 3, 4)
	size, err := Chunk(entries).Size()
	require.NoError(t, err)

	// The original chunk fits, the mirrored one doesn't
	executor := testExecutor(
		t,
		adminClient,
		store,
		ExecutorConfig{
			Kind:            KindMigrate,
			MultiStep:       true,
			MaxPayloadBytes: size,
		},
	)

	submission, err := executor.Submit(ctx, []Chunk{entries})
	require.NoError(t, err)
	assert.Equal(t, 2, len(submission.Immediate))
	require.Equal(t, 2, len(submission.Overflow))
	assert.Equal(
		t,
		Chunk{
			{Topic: "topic", Partition: 2, Replicas: []int{1, 2, 3, 4}},
			{Topic: "topic", Partition: 3, Replicas: []int{1, 2, 3, 4}},
		},
		submission.Overflow[0],
	)
	assert.Equal(t, Chunk(entries), submission.Overflow[1])
}

// racingClient creates the reassignment path right before the executor does, as another
// tool would between the in-progress check and the write.
type racingClient struct {
	admin.Client
	store zk.Client
}

func (c *racingClient) AssignPartitions(
	ctx context.Context,
	reassignment admin.Reassignment,
) error {
	if err := c.store.Create(ctx, testReassignmentPath, []byte("{}"), false); err != nil {
		return err
	}
	return c.Client.AssignPartitions(ctx, reassignment)
}

func TestExecutorSubmitKeepsQueueWhenPathTaken(t *testing.T) {
	ctx := context.Background()
	adminClient, store := admin.NewTestClient(t, testCluster("topic", 3))
	executor := testExecutor(
		t,
		&racingClient{Client: adminClient, store: store},
		store,
		ExecutorConfig{},
	)

	entries := testEntries("topic", 3, 2, 3)
	queue := []Chunk{entries[0:1], entries[1:2], entries[2:3]}
	zk.CreateNode(t, store, "/ktl/overflow/shuffle/0", queue[1])
	zk.CreateNode(t, store, "/ktl/overflow/shuffle/1", queue[2])

	_, err := executor.Submit(ctx, queue)
	assert.ErrorIs(t, err, ErrReassignmentInProgress)

	overflow, err := executor.LoadOverflow(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue, overflow)
}
