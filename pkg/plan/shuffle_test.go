package plan

import (
	"context"
	"testing"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/segmentio/ktl/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shuffleCluster() admin.TestCluster {
	return admin.TestCluster{
		Brokers: admin.TestBrokers(3, 0),
		Assignment: admin.Assignment{
			{Topic: "a", Partition: 0}: {1, 2},
			{Topic: "a", Partition: 1}: {1, 2},
			{Topic: "a", Partition: 2}: {1, 2},
			{Topic: "b", Partition: 0}: {1, 2},
			{Topic: "b", Partition: 1}: {1, 2},
		},
	}
}

func TestShufflePlanGenerate(t *testing.T) {
	ctx := context.Background()
	client, _ := admin.NewTestClient(t, shuffleCluster())

	type testCase struct {
		description string
		config      ShuffleConfig
		expected    admin.Assignment
		expectedErr bool
	}

	testCases := []testCase{
		{
			description: "Changed partitions only",
			config: ShuffleConfig{
				Filter: "^a$",
			},
			expected: admin.Assignment{
				{Topic: "a", Partition: 1}: {2, 3},
				{Topic: "a", Partition: 2}: {3, 1},
			},
		},
		{
			description: "Include all",
			config: ShuffleConfig{
				Filter:     "^a$",
				IncludeAll: true,
			},
			expected: admin.Assignment{
				{Topic: "a", Partition: 0}: {1, 2},
				{Topic: "a", Partition: 1}: {2, 3},
				{Topic: "a", Partition: 2}: {3, 1},
			},
		},
		{
			description: "Topic index follows the filtered topics",
			config: ShuffleConfig{
				Filter: "^b",
			},
			expected: admin.Assignment{
				{Topic: "b", Partition: 1}: {2, 3},
			},
		},
		{
			description: "Blacklist",
			config: ShuffleConfig{
				Filter:    "^a$",
				Blacklist: []int{3},
			},
			expected: admin.Assignment{
				{Topic: "a", Partition: 1}: {2, 1},
			},
		},
		{
			description: "Replication factor override",
			config: ShuffleConfig{
				Filter:            "^a$",
				ReplicationFactor: 3,
			},
			expected: admin.Assignment{
				{Topic: "a", Partition: 0}: {1, 2, 3},
				{Topic: "a", Partition: 1}: {2, 3, 1},
				{Topic: "a", Partition: 2}: {3, 1, 2},
			},
		},
		{
			description: "Unknown broker",
			config: ShuffleConfig{
				Brokers: []int{1, 5},
			},
			expectedErr: true,
		},
		{
			description: "Everything blacklisted",
			config: ShuffleConfig{
				Brokers:   []int{1},
				Blacklist: []int{1},
			},
			expectedErr: true,
		},
		{
			description: "Replication factor above broker count",
			config: ShuffleConfig{
				ReplicationFactor: 4,
			},
			expectedErr: true,
		},
	}

	for _, testCase := range testCases {
		shufflePlan, err := NewShufflePlan(client, &strategies.DefaultStrategy{}, testCase.config)
		require.NoError(t, err, testCase.description)

		result, err := shufflePlan.Generate(ctx)
		if testCase.expectedErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expected, result, testCase.description)
	}
}

func TestShufflePlanBadFilter(t *testing.T) {
	client, _ := admin.NewTestClient(t, shuffleCluster())

	_, err := NewShufflePlan(client, &strategies.DefaultStrategy{}, ShuffleConfig{Filter: "("})
	assert.Error(t, err)
}

func TestShufflePlanCurrentAssignment(t *testing.T) {
	ctx := context.Background()
	client, _ := admin.NewTestClient(t, shuffleCluster())

	projection := admin.Assignment{
		{Topic: "x", Partition: 0}: {1, 2},
		{Topic: "x", Partition: 1}: {1, 3},
	}

	shufflePlan, err := NewShufflePlan(
		client,
		&strategies.DefaultStrategy{},
		ShuffleConfig{
			CurrentAssignment: projection,
			IncludeAll:        true,
		},
	)
	require.NoError(t, err)

	result, err := shufflePlan.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(
		t,
		admin.Assignment{
			{Topic: "x", Partition: 0}: {1, 2},
			{Topic: "x", Partition: 1}: {2, 3},
		},
		result,
	)
}

func TestShufflePlanRendezvousBlacklist(t *testing.T) {
	ctx := context.Background()

	assignment := admin.Assignment{}
	for partition := 0; partition < 32; partition++ {
		assignment[admin.TopicPartition{Topic: "events", Partition: partition}] =
			strategies.RankBrokers("events", partition, []int{1, 2, 3, 4, 5})[:3]
	}
	client, _ := admin.NewTestClient(
		t,
		admin.TestCluster{
			Brokers:    admin.TestBrokers(5, 0),
			Assignment: assignment,
		},
	)

	shufflePlan, err := NewShufflePlan(
		client,
		&strategies.RendezvousStrategy{},
		ShuffleConfig{
			Blacklist: []int{4},
		},
	)
	require.NoError(t, err)

	result, err := shufflePlan.Generate(ctx)
	require.NoError(t, err)
	require.NoError(t, result.Check())

	for tp, replicas := range assignment {
		newReplicas, moved := result[tp]
		assert.Equal(t, util.ContainsInt(replicas, 4), moved, tp.String())
		if moved {
			assert.False(t, util.ContainsInt(newReplicas, 4))
			assert.Equal(t, 2, len(util.IntersectInts(newReplicas, replicas)))
		}
	}
}
