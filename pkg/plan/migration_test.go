package plan

import (
	"context"
	"testing"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationCluster() admin.TestCluster {
	return admin.TestCluster{
		Brokers: admin.TestBrokers(4, 2),
		Assignment: admin.Assignment{
			{Topic: "a", Partition: 0}: {1, 2},
			{Topic: "a", Partition: 1}: {2, 3},
			{Topic: "a", Partition: 2}: {3, 1},
			{Topic: "b", Partition: 0}: {2, 1},
		},
	}
}

func TestMigrationPlanValidation(t *testing.T) {
	ctx := context.Background()
	client, _ := admin.NewTestClient(t, migrationCluster())

	_, err := NewMigrationPlan(ctx, client, []int{0, 1}, []int{1, 2}, MigrationConfig{})
	assert.ErrorIs(t, err, ErrOverlappingBrokerLists)

	_, err = NewMigrationPlan(ctx, client, []int{0}, []int{1, 2}, MigrationConfig{})
	assert.ErrorIs(t, err, ErrUnequalBrokerLists)

	_, err = NewMigrationPlan(ctx, client, []int{1, 1}, []int{3, 4}, MigrationConfig{})
	assert.ErrorIs(t, err, ErrOverlappingBrokerLists)

	_, err = NewMigrationPlan(ctx, client, []int{}, []int{}, MigrationConfig{})
	assert.Error(t, err)

	// Brokers 1 and 3 are in zone1, 2 and 4 in zone2
	_, err = NewMigrationPlan(ctx, client, []int{1}, []int{3}, MigrationConfig{RackAware: true})
	assert.NoError(t, err)

	_, err = NewMigrationPlan(ctx, client, []int{1}, []int{4}, MigrationConfig{RackAware: true})
	assert.ErrorIs(t, err, ErrRackMismatch)

	_, err = NewMigrationPlan(ctx, client, []int{1}, []int{4}, MigrationConfig{})
	assert.NoError(t, err)
}

func TestMigrationPlanGenerate(t *testing.T) {
	ctx := context.Background()
	client, _ := admin.NewTestClient(t, migrationCluster())

	migrationPlan, err := NewMigrationPlan(ctx, client, []int{1}, []int{4}, MigrationConfig{})
	require.NoError(t, err)

	result, err := migrationPlan.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(
		t,
		admin.Assignment{
			{Topic: "a", Partition: 0}: {4, 2},
			{Topic: "a", Partition: 2}: {3, 4},
			{Topic: "b", Partition: 0}: {2, 4},
		},
		result,
	)

	migrationPlan, err = NewMigrationPlan(
		ctx,
		client,
		[]int{1, 2},
		[]int{4, 5},
		MigrationConfig{},
	)
	require.NoError(t, err)

	result, err = migrationPlan.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(
		t,
		admin.Assignment{
			{Topic: "a", Partition: 0}: {4, 5},
			{Topic: "a", Partition: 1}: {5, 3},
			{Topic: "a", Partition: 2}: {3, 4},
			{Topic: "b", Partition: 0}: {5, 4},
		},
		result,
	)
}

func TestMigrationPlanTargetAlreadyReplica(t *testing.T) {
	ctx := context.Background()
	client, _ := admin.NewTestClient(t, migrationCluster())

	migrationPlan, err := NewMigrationPlan(ctx, client, []int{1}, []int{2}, MigrationConfig{})
	require.NoError(t, err)

	_, err = migrationPlan.Generate(ctx)
	assert.ErrorIs(t, err, admin.ErrDuplicateReplicas)
}
