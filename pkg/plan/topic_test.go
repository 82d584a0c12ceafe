package plan

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicPlanGenerate(t *testing.T) {
	ctx := context.Background()
	client, _ := admin.NewTestClient(t, shuffleCluster())

	_, err := NewTopicPlan(client, &strategies.DefaultStrategy{}, TopicConfig{Partitions: 1})
	assert.Error(t, err)
	_, err = NewTopicPlan(
		client,
		&strategies.DefaultStrategy{},
		TopicConfig{Topic: "c", ReplicationFactor: 1},
	)
	assert.Error(t, err)

	topicPlan, err := NewTopicPlan(
		client,
		&strategies.DefaultStrategy{},
		TopicConfig{
			Topic:             "c",
			Partitions:        4,
			ReplicationFactor: 2,
			ConfigEntries: map[string]string{
				"retention.ms":   "3600000",
				"cleanup.policy": "delete",
			},
		},
	)
	require.NoError(t, err)

	// c is the third topic, so leaders start at broker 3.
	desired, err := topicPlan.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(
		t,
		admin.Assignment{
			{Topic: "c", Partition: 0}: {3, 1},
			{Topic: "c", Partition: 1}: {1, 2},
			{Topic: "c", Partition: 2}: {2, 3},
			{Topic: "c", Partition: 3}: {3, 2},
		},
		desired,
	)

	assert.Equal(
		t,
		kafka.TopicConfig{
			Topic:             "c",
			NumPartitions:     -1,
			ReplicationFactor: -1,
			ReplicaAssignments: []kafka.ReplicaAssignment{
				{Partition: 0, Replicas: []int{3, 1}},
				{Partition: 1, Replicas: []int{1, 2}},
				{Partition: 2, Replicas: []int{2, 3}},
				{Partition: 3, Replicas: []int{3, 2}},
			},
			ConfigEntries: []kafka.ConfigEntry{
				{ConfigName: "cleanup.policy", ConfigValue: "delete"},
				{ConfigName: "retention.ms", ConfigValue: "3600000"},
			},
		},
		topicPlan.KafkaTopicConfig(desired),
	)
}

func TestTopicPlanExistingTopic(t *testing.T) {
	client, _ := admin.NewTestClient(t, shuffleCluster())

	topicPlan, err := NewTopicPlan(
		client,
		&strategies.DefaultStrategy{},
		TopicConfig{Topic: "a", Partitions: 1, ReplicationFactor: 1},
	)
	require.NoError(t, err)

	_, err = topicPlan.Generate(context.Background())
	assert.ErrorIs(t, err, ErrTopicExists)
}

func TestTopicPlanUnknownBroker(t *testing.T) {
	client, _ := admin.NewTestClient(t, shuffleCluster())

	topicPlan, err := NewTopicPlan(
		client,
		&strategies.DefaultStrategy{},
		TopicConfig{Topic: "c", Partitions: 1, ReplicationFactor: 1, Brokers: []int{7}},
	)
	require.NoError(t, err)

	_, err = topicPlan.Generate(context.Background())
	assert.Error(t, err)
}
