package plan

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/segmentio/ktl/pkg/util"
	log "github.com/sirupsen/logrus"
)

// ShuffleConfig controls which topics are shuffled and over which brokers.
type ShuffleConfig struct {
	// Filter is a regular expression for the topic names to include. An empty filter
	// matches everything.
	Filter string

	// Brokers restricts the candidates to these brokers. All brokers are candidates if
	// it's empty.
	Brokers []int

	// Blacklist removes brokers from the candidates.
	Blacklist []int

	// ReplicationFactor overrides the replication factor of every topic.
	ReplicationFactor int

	// IncludeAll keeps partitions whose replicas wouldn't change.
	IncludeAll bool

	// CurrentAssignment replaces the assignment read from the cluster.
	CurrentAssignment admin.Assignment

	LogPlan bool
}

// ShufflePlan redistributes the partitions of the matching topics over the candidate
// brokers with a placement strategy.
type ShufflePlan struct {
	client   admin.Client
	strategy strategies.PlacementStrategy
	filter   *regexp.Regexp
	config   ShuffleConfig
}

// NewShufflePlan returns a new ShufflePlan instance.
func NewShufflePlan(
	client admin.Client,
	strategy strategies.PlacementStrategy,
	config ShuffleConfig,
) (*ShufflePlan, error) {
	var filter *regexp.Regexp
	if config.Filter != "" {
		var err error
		filter, err = regexp.Compile(config.Filter)
		if err != nil {
			return nil, fmt.Errorf("Invalid topic filter %q: %w", config.Filter, err)
		}
	}
	if config.ReplicationFactor < 0 {
		return nil, errors.New("Replication factor cannot be negative")
	}

	return &ShufflePlan{
		client:   client,
		strategy: strategy,
		filter:   filter,
		config:   config,
	}, nil
}

// Generate returns the new replica lists of every partition that the strategy would move,
// or of every matching partition if IncludeAll is set.
func (s *ShufflePlan) Generate(ctx context.Context) (admin.Assignment, error) {
	brokers, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}

	current, partitionCounts, err := s.currentState(ctx)
	if err != nil {
		return nil, err
	}

	topics := util.SortedStrings(partitionCounts)
	desired := admin.Assignment{}

	for topicIndex, topic := range topics {
		numPartitions := partitionCounts[topic]

		currentReplicas := [][]int{}
		for partition := 0; partition < numPartitions; partition++ {
			currentReplicas = append(
				currentReplicas,
				current[admin.TopicPartition{Topic: topic, Partition: partition}],
			)
		}

		replicationFactor := s.config.ReplicationFactor
		if replicationFactor == 0 && numPartitions > 0 {
			replicationFactor = len(currentReplicas[0])
		}
		if replicationFactor == 0 {
			return nil, fmt.Errorf("Cannot determine replication factor of topic %s", topic)
		}

		replicas, err := s.strategy.Assign(
			strategies.Request{
				Topic:             topic,
				Partitions:        numPartitions,
				ReplicationFactor: replicationFactor,
				Brokers:           brokers,
				Current:           currentReplicas,
				TopicIndex:        topicIndex,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("Error placing topic %s: %w", topic, err)
		}

		for partition, newReplicas := range replicas {
			tp := admin.TopicPartition{Topic: topic, Partition: partition}
			diff := admin.AssignmentDiff{
				TopicPartition: tp,
				Old:            currentReplicas[partition],
				New:            newReplicas,
			}
			if !diff.Changed() && !s.config.IncludeAll {
				continue
			}
			if s.config.LogPlan && diff.Changed() {
				logPlanEntry(tp, diff.Old, diff.New)
			}
			desired[tp] = newReplicas
		}
	}

	log.Debugf(
		"Strategy %s places %d partitions of %d topics",
		s.strategy.Name(),
		len(desired),
		len(topics),
	)

	return desired, nil
}

func (s *ShufflePlan) candidates(ctx context.Context) ([]admin.BrokerInfo, error) {
	allBrokers, err := s.client.GetBrokers(ctx, nil)
	if err != nil {
		return nil, err
	}

	brokersByID := map[int]admin.BrokerInfo{}
	for _, broker := range allBrokers {
		brokersByID[broker.ID] = broker
	}

	ids := admin.BrokerIDs(allBrokers)
	if len(s.config.Brokers) > 0 {
		for _, id := range s.config.Brokers {
			if _, ok := brokersByID[id]; !ok {
				return nil, fmt.Errorf("Broker %d is not in the cluster", id)
			}
		}
		ids = util.CopyInts(s.config.Brokers)
	}
	ids = util.SubtractInts(ids, s.config.Blacklist)
	sort.Ints(ids)

	if len(ids) == 0 {
		return nil, errors.New("No candidate brokers left after applying the blacklist")
	}

	candidates := []admin.BrokerInfo{}
	for _, id := range ids {
		candidates = append(candidates, brokersByID[id])
	}
	return candidates, nil
}

func (s *ShufflePlan) currentState(
	ctx context.Context,
) (admin.Assignment, map[string]int, error) {
	if s.config.CurrentAssignment != nil {
		partitionCounts := map[string]int{}
		for tp := range s.config.CurrentAssignment {
			if s.filter != nil && !s.filter.MatchString(tp.Topic) {
				continue
			}
			if tp.Partition+1 > partitionCounts[tp.Topic] {
				partitionCounts[tp.Topic] = tp.Partition + 1
			}
		}
		return s.config.CurrentAssignment, partitionCounts, nil
	}

	topics, err := s.client.GetTopicNames(ctx)
	if err != nil {
		return nil, nil, err
	}
	topics = filterTopics(topics, s.filter)

	partitionCounts, err := s.client.GetPartitionCounts(ctx, topics)
	if err != nil {
		return nil, nil, err
	}
	current, err := s.client.GetReplicaAssignments(ctx, topics)
	if err != nil {
		return nil, nil, err
	}

	return current, partitionCounts, nil
}
