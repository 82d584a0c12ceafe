package strategies

import (
	"errors"
	"testing"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strategyTestCase struct {
	description       string
	topic             string
	topicIndex        int
	partitions        int
	replicationFactor int
	brokers           []admin.BrokerInfo
	curr              [][]int
	expected          [][]int
	checker           func(t *testing.T, result [][]int, evaluation Evaluation)
	err               interface{}
}

func (s strategyTestCase) evaluate(t *testing.T, strategy PlacementStrategy) {
	topic := s.topic
	if topic == "" {
		topic = "test-topic"
	}

	result, err := strategy.Assign(
		Request{
			Topic:             topic,
			Partitions:        s.partitions,
			ReplicationFactor: s.replicationFactor,
			Brokers:           s.brokers,
			Current:           s.curr,
			TopicIndex:        s.topicIndex,
		},
	)
	if s.err != nil {
		require.Error(t, err, s.description)
		if target, ok := s.err.(error); ok {
			assert.True(t, errors.Is(err, target), s.description)
		} else {
			assert.True(t, errors.As(err, s.err), s.description)
		}
		return
	}

	require.NoError(t, err, s.description)
	require.Equal(t, s.partitions, len(result), s.description)
	for _, replicas := range result {
		assert.Equal(t, s.replicationFactor, len(replicas), s.description)
	}

	evaluation, err := Evaluate(result, s.brokers)
	require.NoError(t, err, s.description)

	if s.expected != nil {
		assert.Equal(t, s.expected, result, s.description)
	}
	if s.checker != nil {
		s.checker(t, result, evaluation)
	}

	// Same input, same output
	again, err := strategy.Assign(
		Request{
			Topic:             topic,
			Partitions:        s.partitions,
			ReplicationFactor: s.replicationFactor,
			Brokers:           s.brokers,
			Current:           s.curr,
			TopicIndex:        s.topicIndex,
		},
	)
	require.NoError(t, err, s.description)
	assert.Equal(t, result, again, s.description)
}
