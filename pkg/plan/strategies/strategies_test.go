package strategies

import (
	"fmt"
	"testing"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromName(t *testing.T) {
	for _, name := range []string{
		"",
		DefaultName,
		RendezvousName,
		RackAwareName,
		MinimalMovementName,
		"Rack-Aware",
	} {
		strategy, err := FromName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, strategy, name)
	}

	strategy, err := FromName("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, strategy.Name())

	_, err = FromName(BoundedLoadName)
	assert.ErrorIs(t, err, ErrBoundedLoadUnsupported)

	_, err = FromName("not-a-strategy")
	assert.Error(t, err)
}

func TestDefaultStrategy(t *testing.T) {
	testCases := []strategyTestCase{
		{
			description:       "Round robin from first broker",
			partitions:        5,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(4, 0),
			expected: [][]int{
				{1, 2},
				{2, 3},
				{3, 4},
				{4, 1},
				{1, 3},
			},
		},
		{
			description:       "Start rotated by topic index",
			topicIndex:        1,
			partitions:        4,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(4, 0),
			expected: [][]int{
				{2, 4},
				{3, 1},
				{4, 2},
				{1, 3},
			},
		},
		{
			description:       "Replication factor 3",
			partitions:        4,
			replicationFactor: 3,
			brokers:           admin.TestBrokers(4, 0),
			expected: [][]int{
				{1, 2, 3},
				{2, 3, 4},
				{3, 4, 1},
				{4, 1, 2},
			},
		},
		{
			description:       "Current assignment is ignored",
			partitions:        2,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(3, 0),
			curr: [][]int{
				{3, 1},
				{3, 2},
			},
			expected: [][]int{
				{1, 2},
				{2, 3},
			},
		},
		{
			description:       "Balanced leaders and replicas",
			partitions:        12,
			replicationFactor: 3,
			brokers:           admin.TestBrokers(6, 0),
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				assert.Equal(t, 0, evaluation.ReplicaSpread())
				assert.Equal(t, 0, evaluation.LeaderSpread())
			},
		},
		{
			description:       "Not enough brokers",
			partitions:        2,
			replicationFactor: 4,
			brokers:           admin.TestBrokers(3, 0),
			err:               new(*NotEnoughBrokersError),
		},
	}

	for _, testCase := range testCases {
		testCase.evaluate(t, &DefaultStrategy{})
	}
}

func TestRendezvousStrategy(t *testing.T) {
	testCases := []strategyTestCase{
		{
			description:       "Top ranked brokers",
			partitions:        20,
			replicationFactor: 3,
			brokers:           admin.TestBrokers(6, 0),
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				brokerIDs := []int{1, 2, 3, 4, 5, 6}
				for partition, replicas := range result {
					assert.Equal(
						t,
						RankBrokers("test-topic", partition, brokerIDs)[:3],
						replicas,
					)
				}
			},
		},
		{
			description:       "Not enough brokers",
			partitions:        2,
			replicationFactor: 3,
			brokers:           admin.TestBrokers(2, 0),
			err:               new(*NotEnoughBrokersError),
		},
	}

	for _, testCase := range testCases {
		testCase.evaluate(t, &RendezvousStrategy{})
	}
}

func TestRendezvousStableOnBrokerRemoval(t *testing.T) {
	strategy := &RendezvousStrategy{}
	brokers := admin.TestBrokers(8, 0)

	before, err := strategy.Assign(
		Request{
			Topic:             "stable-topic",
			Partitions:        64,
			ReplicationFactor: 3,
			Brokers:           brokers,
		},
	)
	require.NoError(t, err)

	removed := 5
	remaining := []admin.BrokerInfo{}
	for _, broker := range brokers {
		if broker.ID != removed {
			remaining = append(remaining, broker)
		}
	}

	after, err := strategy.Assign(
		Request{
			Topic:             "stable-topic",
			Partitions:        64,
			ReplicationFactor: 3,
			Brokers:           remaining,
		},
	)
	require.NoError(t, err)

	for partition := range before {
		if !util.ContainsInt(before[partition], removed) {
			assert.Equal(
				t,
				before[partition],
				after[partition],
				"partition %d should not move",
				partition,
			)
			continue
		}

		assert.False(t, util.ContainsInt(after[partition], removed))
		assert.Equal(
			t,
			1,
			len(util.SubtractInts(after[partition], before[partition])),
			"partition %d should move a single replica",
			partition,
		)
	}
}

func TestRendezvousHash(t *testing.T) {
	assert.Equal(t, RendezvousHash("topic", 1, 2), RendezvousHash("topic", 1, 2))
	assert.NotEqual(t, RendezvousHash("topic", 1, 2), RendezvousHash("topic", 2, 1))
	assert.NotEqual(t, RendezvousHash("topic", 1, 2), RendezvousHash("other", 1, 2))

	brokerIDs := []int{3, 1, 2}
	ranked := RankBrokers("topic", 0, brokerIDs)
	assert.ElementsMatch(t, []int{1, 2, 3}, ranked)
	assert.Equal(t, []int{3, 1, 2}, brokerIDs)
}

func TestRackAwareStrategy(t *testing.T) {
	rackOf := func(brokers []admin.BrokerInfo) map[int]string {
		return admin.BrokerRacks(brokers)
	}

	testCases := []strategyTestCase{
		{
			description:       "One replica per rack",
			partitions:        9,
			replicationFactor: 3,
			brokers:           admin.TestBrokers(9, 3),
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				assert.True(t, evaluation.RackIsolated)

				racks := rackOf(admin.TestBrokers(9, 3))
				for partition, replicas := range result {
					assert.Equal(
						t,
						fmt.Sprintf("zone%d", partition%3+1),
						racks[replicas[0]],
						"leader rack of partition %d",
						partition,
					)
				}
			},
		},
		{
			description:       "Replication factor below rack count",
			partitions:        6,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(6, 3),
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				assert.True(t, evaluation.RackIsolated)
			},
		},
		{
			description:       "Two racks with replication factor two",
			partitions:        4,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(6, 2),
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				assert.True(t, evaluation.RackIsolated)
			},
		},
		{
			description:       "More replicas than racks",
			partitions:        4,
			replicationFactor: 3,
			brokers:           admin.TestBrokers(6, 2),
			err:               new(*NotEnoughRacksError),
		},
		{
			description:       "Broker without rack",
			partitions:        4,
			replicationFactor: 2,
			brokers: []admin.BrokerInfo{
				{ID: 1, Rack: "zone1"},
				{ID: 2, Rack: "zone2"},
				{ID: 3},
			},
			err: new(*MissingRackError),
		},
	}

	for _, testCase := range testCases {
		testCase.evaluate(t, &RackAwareStrategy{})
	}
}

func TestRackAwareMissingRackBroker(t *testing.T) {
	_, err := (&RackAwareStrategy{}).Assign(
		Request{
			Topic:             "test-topic",
			Partitions:        1,
			ReplicationFactor: 1,
			Brokers: []admin.BrokerInfo{
				{ID: 1, Rack: "zone1"},
				{ID: 7},
			},
		},
	)

	var missingRackErr *MissingRackError
	require.ErrorAs(t, err, &missingRackErr)
	assert.Equal(t, 7, missingRackErr.BrokerID)
	assert.Contains(t, err.Error(), "Broker 7")
}

func TestMinimalMovementStrategy(t *testing.T) {
	balanced := [][]int{
		{1, 2, 3},
		{2, 3, 4},
		{3, 4, 5},
		{4, 5, 6},
		{5, 6, 1},
		{6, 1, 2},
	}

	testCases := []strategyTestCase{
		{
			description:       "Balanced assignment doesn't move",
			partitions:        6,
			replicationFactor: 3,
			brokers:           admin.TestBrokers(6, 3),
			curr:              balanced,
			expected:          balanced,
		},
		{
			description:       "Added broker",
			partitions:        6,
			replicationFactor: 3,
			brokers: append(
				admin.TestBrokers(6, 3),
				admin.BrokerInfo{ID: 7, Rack: "zone1"},
			),
			curr: balanced,
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				assert.True(t, evaluation.RackIsolated)
				// ceil(6 * 3 / 7)
				assert.LessOrEqual(t, CountMoves(balanced, result), 3)
				for _, count := range evaluation.ReplicasPerBroker {
					assert.LessOrEqual(t, count, 3)
				}
			},
		},
		{
			description:       "Removed broker",
			partitions:        6,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(5, 3),
			curr: [][]int{
				{1, 2},
				{2, 3},
				{3, 4},
				{4, 5},
				{5, 6},
				{6, 1},
			},
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				assert.True(t, evaluation.RackIsolated)
				assert.GreaterOrEqual(
					t,
					CountMoves(
						[][]int{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}, {6, 1}},
						result,
					),
					2,
				)
				for _, replicas := range result {
					assert.False(t, util.ContainsInt(replicas, 6))
				}
				// ceil(6 * 2 / 5)
				for _, count := range evaluation.ReplicasPerBroker {
					assert.LessOrEqual(t, count, 3)
				}
			},
		},
		{
			description:       "New topic without racks",
			partitions:        8,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(4, 0),
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				assert.Equal(t, 0, evaluation.ReplicaSpread())
				assert.LessOrEqual(t, evaluation.LeaderSpread(), 1)
			},
		},
		{
			description:       "Keeps current leader",
			partitions:        1,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(3, 0),
			curr: [][]int{
				{3, 1},
			},
			expected: [][]int{
				{3, 1},
			},
		},
		{
			description:       "Moves an earlier replica to stay under the cap",
			partitions:        3,
			replicationFactor: 2,
			brokers:           admin.TestBrokers(3, 0),
			curr: [][]int{
				{1, 2},
				{1, 2},
				{1, 3},
			},
			expected: [][]int{
				{1, 2},
				{2, 3},
				{3, 1},
			},
			checker: func(t *testing.T, result [][]int, evaluation Evaluation) {
				assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 2}, evaluation.ReplicasPerBroker)
			},
		},
		{
			description:       "Single broker rack over capacity",
			partitions:        4,
			replicationFactor: 2,
			brokers: []admin.BrokerInfo{
				{ID: 1, Rack: "zone1"},
				{ID: 2, Rack: "zone1"},
				{ID: 3, Rack: "zone1"},
				{ID: 4, Rack: "zone2"},
			},
			err: new(*CapacityError),
		},
		{
			description:       "More replicas than racks",
			partitions:        4,
			replicationFactor: 3,
			brokers:           admin.TestBrokers(4, 2),
			err:               new(*NotEnoughRacksError),
		},
		{
			description:       "Partial rack information",
			partitions:        4,
			replicationFactor: 2,
			brokers: []admin.BrokerInfo{
				{ID: 1, Rack: "zone1"},
				{ID: 2},
			},
			err: new(*MissingRackError),
		},
	}

	for _, testCase := range testCases {
		testCase.evaluate(t, &MinimalMovementStrategy{})
	}
}

func TestMinimalMovementCapacityError(t *testing.T) {
	_, err := (&MinimalMovementStrategy{}).Assign(
		Request{
			Topic:             "test-topic",
			Partitions:        4,
			ReplicationFactor: 2,
			Brokers: []admin.BrokerInfo{
				{ID: 1, Rack: "zone1"},
				{ID: 2, Rack: "zone1"},
				{ID: 3, Rack: "zone1"},
				{ID: 4, Rack: "zone2"},
			},
		},
	)

	var capacityErr *CapacityError
	require.ErrorAs(t, err, &capacityErr)
	assert.Equal(t, 2, capacityErr.Partition)
	assert.Equal(t, 2, capacityErr.Cap)
	assert.Equal(t, 2, capacityErr.Loads[4])
}

func TestEvaluate(t *testing.T) {
	brokers := admin.TestBrokers(3, 3)

	evaluation, err := Evaluate([][]int{{1, 2}, {2, 3}, {3, 1}}, brokers)
	require.NoError(t, err)
	assert.True(t, evaluation.RackIsolated)
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 2}, evaluation.ReplicasPerBroker)
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, evaluation.LeadersPerBroker)
	assert.Equal(t, 0, evaluation.ReplicaSpread())

	_, err = Evaluate([][]int{{1, 1}}, brokers)
	assert.ErrorIs(t, err, admin.ErrDuplicateReplicas)

	_, err = Evaluate([][]int{{1, 9}}, brokers)
	assert.Error(t, err)

	assert.Equal(t, 2, CountMoves([][]int{{1, 2}, {2, 3}}, [][]int{{1, 3}, {3, 1}}))
}
