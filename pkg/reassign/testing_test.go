package reassign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/zk"
	"github.com/stretchr/testify/require"
)

const testReassignmentPath = "/admin/reassign_partitions"

func testCluster(topic string, partitions int) admin.TestCluster {
	assignment := admin.Assignment{}
	for partition := 0; partition < partitions; partition++ {
		assignment[admin.TopicPartition{Topic: topic, Partition: partition}] = []int{1, 2}
	}
	return admin.TestCluster{
		Brokers:    admin.TestBrokers(4, 0),
		Assignment: assignment,
	}
}

func testEntries(topic string, partitions int, replicas ...int) []admin.PartitionReplicas {
	entries := []admin.PartitionReplicas{}
	for partition := 0; partition < partitions; partition++ {
		entries = append(
			entries,
			admin.PartitionReplicas{Topic: topic, Partition: partition, Replicas: replicas},
		)
	}
	return entries
}

func testExecutor(
	t *testing.T,
	adminClient admin.Client,
	store zk.Client,
	config ExecutorConfig,
) *Executor {
	if config.Kind == "" {
		config.Kind = KindShuffle
	}
	executor, err := NewExecutor(adminClient, store, config)
	require.NoError(t, err)
	return executor
}

// controllerStub plays the cluster controller: it deletes the reassignment path each time
// it appears and records what was on it.
type controllerStub struct {
	store zk.Client

	sync.Mutex
	payloads []admin.Reassignment
}

func (s *controllerStub) run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		data, _, err := s.store.Get(ctx, testReassignmentPath)
		if errors.Is(err, zk.ErrNoNode) {
			continue
		} else if err != nil {
			panic(fmt.Sprintf("Unexpected error: %+v", err))
		}

		reassignment, err := admin.ParseReassignment(data)
		if err != nil {
			panic(fmt.Sprintf("Bad payload: %+v", err))
		}

		s.Lock()
		s.payloads = append(s.payloads, reassignment)
		s.Unlock()

		if err := s.store.Delete(ctx, testReassignmentPath, -1); err != nil &&
			!errors.Is(err, zk.ErrNoNode) {
			panic(fmt.Sprintf("Unexpected error: %+v", err))
		}
	}
}

func (s *controllerStub) reassigned() []admin.PartitionReplicas {
	s.Lock()
	defer s.Unlock()

	entries := []admin.PartitionReplicas{}
	for _, payload := range s.payloads {
		entries = append(entries, payload.Partitions...)
	}
	return entries
}
