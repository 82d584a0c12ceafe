package admin

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/ktl/pkg/zk"
)

// Client is an interface for reading cluster metadata and driving the cluster's admin
// paths (reassignments, preferred replica elections).
type Client interface {
	// GetClusterID gets the ID of the cluster.
	GetClusterID(ctx context.Context) (string, error)

	// GetBrokers gets information about the argument brokers, or about all brokers if
	// ids is empty.
	GetBrokers(ctx context.Context, ids []int) ([]BrokerInfo, error)

	// GetBrokerIDs get the IDs of all brokers in the cluster.
	GetBrokerIDs(ctx context.Context) ([]int, error)

	// GetTopicNames gets just the names of each topic in the cluster.
	GetTopicNames(ctx context.Context) ([]string, error)

	// GetPartitionCounts returns the number of partitions in each of the argument topics.
	GetPartitionCounts(ctx context.Context, topics []string) (map[string]int, error)

	// GetReplicaAssignments returns the current replica lists of every partition in the
	// argument topics.
	GetReplicaAssignments(ctx context.Context, topics []string) (Assignment, error)

	// GetLeaderAndISR returns the leader and in-sync replicas of each argument partition.
	GetLeaderAndISR(
		ctx context.Context,
		partitions []TopicPartition,
	) (map[TopicPartition]LeaderAndISR, error)

	// GetReassignment returns the partitions currently being reassigned. A missing
	// reassignment path is reported as an empty reassignment.
	GetReassignment(ctx context.Context) (Reassignment, error)

	// AssignPartitions writes the argument payload to the reassignment path, which starts
	// the reassignment on the controller.
	AssignPartitions(ctx context.Context, reassignment Reassignment) error

	// WatchReassignment streams changes to the reassignment path until the context is
	// done.
	WatchReassignment(ctx context.Context) (<-chan zk.DataEvent, error)

	// RunLeaderElection triggers a preferred replica election for the argument partitions.
	RunLeaderElection(ctx context.Context, partitions []TopicPartition) error

	// CreateTopic creates a topic in the cluster.
	CreateTopic(ctx context.Context, config kafka.TopicConfig) error

	// GetConnector gets the broker Connector for this cluster, if one is configured.
	GetConnector() *Connector

	// AcquireLock acquires a lock that prevents simultaneous submissions.
	AcquireLock(ctx context.Context, path string) (zk.Lock, error)

	// Close closes the client.
	Close() error
}
