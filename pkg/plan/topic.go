package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/segmentio/ktl/pkg/util"
)

// ErrTopicExists is returned when planning the placement of a topic that already exists.
var ErrTopicExists = errors.New("Topic already exists")

// TopicConfig describes a topic to be created.
type TopicConfig struct {
	Topic             string
	Partitions        int
	ReplicationFactor int

	// Brokers restricts placement to these brokers. All brokers are used if empty.
	Brokers []int

	// ConfigEntries are topic-level settings, e.g. retention.ms.
	ConfigEntries map[string]string
}

// TopicPlan places the partitions of a new topic with a strategy.
type TopicPlan struct {
	client   admin.Client
	strategy strategies.PlacementStrategy
	config   TopicConfig
}

var _ Planner = (*TopicPlan)(nil)

// NewTopicPlan returns a new TopicPlan instance.
func NewTopicPlan(
	client admin.Client,
	strategy strategies.PlacementStrategy,
	config TopicConfig,
) (*TopicPlan, error) {
	if config.Topic == "" {
		return nil, errors.New("Topic name must be set")
	}
	if config.Partitions < 1 {
		return nil, errors.New("Partitions must be positive")
	}
	if config.ReplicationFactor < 1 {
		return nil, errors.New("Replication factor must be positive")
	}

	return &TopicPlan{
		client:   client,
		strategy: strategy,
		config:   config,
	}, nil
}

// Generate returns the replicas of every partition of the new topic. The topic's ordinal
// is its position among the existing topics.
func (p *TopicPlan) Generate(ctx context.Context) (admin.Assignment, error) {
	topics, err := p.client.GetTopicNames(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(topics, p.config.Topic) {
		return nil, fmt.Errorf("Cannot create %s: %w", p.config.Topic, ErrTopicExists)
	}
	topics = append(topics, p.config.Topic)
	sort.Strings(topics)
	topicIndex := sort.SearchStrings(topics, p.config.Topic)

	shufflePlan := &ShufflePlan{
		client:   p.client,
		strategy: p.strategy,
		config:   ShuffleConfig{Brokers: p.config.Brokers},
	}
	brokers, err := shufflePlan.candidates(ctx)
	if err != nil {
		return nil, err
	}

	replicas, err := p.strategy.Assign(
		strategies.Request{
			Topic:             p.config.Topic,
			Partitions:        p.config.Partitions,
			ReplicationFactor: p.config.ReplicationFactor,
			Brokers:           brokers,
			TopicIndex:        topicIndex,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("Error placing topic %s: %w", p.config.Topic, err)
	}

	desired := admin.Assignment{}
	for partition, partitionReplicas := range replicas {
		desired[admin.TopicPartition{Topic: p.config.Topic, Partition: partition}] =
			partitionReplicas
	}
	return desired, nil
}

// KafkaTopicConfig converts the argument placement into a topic creation request with
// explicit replica assignments.
func (p *TopicPlan) KafkaTopicConfig(assignment admin.Assignment) kafka.TopicConfig {
	topicConfig := kafka.TopicConfig{
		Topic:             p.config.Topic,
		NumPartitions:     -1,
		ReplicationFactor: -1,
	}

	for _, tp := range assignment.TopicPartitions() {
		topicConfig.ReplicaAssignments = append(
			topicConfig.ReplicaAssignments,
			kafka.ReplicaAssignment{
				Partition: tp.Partition,
				Replicas:  util.CopyInts(assignment[tp]),
			},
		)
	}

	for _, key := range util.SortedStrings(p.config.ConfigEntries) {
		topicConfig.ConfigEntries = append(
			topicConfig.ConfigEntries,
			kafka.ConfigEntry{
				ConfigName:  key,
				ConfigValue: p.config.ConfigEntries[key],
			},
		)
	}

	return topicConfig
}
