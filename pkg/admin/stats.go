package admin

import (
	"context"
)

// ClusterStats summarizes how leadership and replicas are spread over the brokers.
type ClusterStats struct {
	Topics     int
	Partitions int
	Brokers    []BrokerInfo

	// Leaders is the number of partitions each broker currently leads.
	Leaders map[int]int

	// PreferredLeaders is the number of partitions for which each broker is the first
	// replica.
	PreferredLeaders map[int]int

	// Replicas is the number of partition replicas each broker hosts.
	Replicas map[int]int
}

// GetClusterStats reads the assignment and leader state of every partition in the cluster.
func GetClusterStats(ctx context.Context, client Client) (ClusterStats, error) {
	brokers, err := client.GetBrokers(ctx, nil)
	if err != nil {
		return ClusterStats{}, err
	}
	topics, err := client.GetTopicNames(ctx)
	if err != nil {
		return ClusterStats{}, err
	}
	assignment, err := client.GetReplicaAssignments(ctx, topics)
	if err != nil {
		return ClusterStats{}, err
	}
	states, err := client.GetLeaderAndISR(ctx, assignment.TopicPartitions())
	if err != nil {
		return ClusterStats{}, err
	}

	return ComputeClusterStats(brokers, assignment, states), nil
}

// ComputeClusterStats tallies the argument assignment and leader states.
func ComputeClusterStats(
	brokers []BrokerInfo,
	assignment Assignment,
	states map[TopicPartition]LeaderAndISR,
) ClusterStats {
	stats := ClusterStats{
		Topics:           len(assignment.Topics()),
		Partitions:       len(assignment),
		Brokers:          brokers,
		Leaders:          map[int]int{},
		PreferredLeaders: map[int]int{},
		Replicas:         map[int]int{},
	}

	for tp, replicas := range assignment {
		for r, replica := range replicas {
			stats.Replicas[replica]++
			if r == 0 {
				stats.PreferredLeaders[replica]++
			}
		}
		if state, ok := states[tp]; ok && state.Leader >= 0 {
			stats.Leaders[state.Leader]++
		}
	}

	return stats
}
