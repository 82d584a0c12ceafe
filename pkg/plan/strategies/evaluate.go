package strategies

import (
	"fmt"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
)

// Evaluation summarizes the spread of a topic's placement over the brokers.
type Evaluation struct {
	RackIsolated      bool
	ReplicasPerBroker map[int]int
	LeadersPerBroker  map[int]int
}

// Evaluate checks that the argument replica lists only use the argument brokers, without
// duplicates, and tallies replicas and leaders per broker.
func Evaluate(assignments [][]int, brokers []admin.BrokerInfo) (Evaluation, error) {
	brokerRacks := admin.BrokerRacks(brokers)

	evaluation := Evaluation{
		RackIsolated:      true,
		ReplicasPerBroker: map[int]int{},
		LeadersPerBroker:  map[int]int{},
	}
	for _, broker := range brokers {
		evaluation.ReplicasPerBroker[broker.ID] = 0
		evaluation.LeadersPerBroker[broker.ID] = 0
	}

	for partition, replicas := range assignments {
		if len(replicas) == 0 {
			return evaluation, fmt.Errorf("Partition %d has no replicas", partition)
		}
		if util.HasDuplicates(replicas) {
			return evaluation, fmt.Errorf(
				"Partition %d: %w: %v",
				partition,
				admin.ErrDuplicateReplicas,
				replicas,
			)
		}

		racks := map[string]struct{}{}
		for _, replica := range replicas {
			rack, ok := brokerRacks[replica]
			if !ok {
				return evaluation, fmt.Errorf(
					"Partition %d uses unknown broker %d",
					partition,
					replica,
				)
			}
			racks[rack] = struct{}{}
			evaluation.ReplicasPerBroker[replica]++
		}
		if len(racks) != len(replicas) {
			evaluation.RackIsolated = false
		}
		evaluation.LeadersPerBroker[replicas[0]]++
	}

	return evaluation, nil
}

// ReplicaSpread returns the difference between the most and least loaded brokers.
func (e Evaluation) ReplicaSpread() int {
	return spread(e.ReplicasPerBroker)
}

// LeaderSpread returns the difference between the brokers leading the most and the fewest
// partitions.
func (e Evaluation) LeaderSpread() int {
	return spread(e.LeadersPerBroker)
}

func spread(counts map[int]int) int {
	first := true
	var minCount, maxCount int

	for _, count := range counts {
		if first {
			minCount, maxCount = count, count
			first = false
			continue
		}
		if count < minCount {
			minCount = count
		}
		if count > maxCount {
			maxCount = count
		}
	}

	return maxCount - minCount
}

// CountMoves returns the number of replicas in desired that aren't already in current,
// partition by partition.
func CountMoves(current [][]int, desired [][]int) int {
	moves := 0
	for partition, replicas := range desired {
		var currentReplicas []int
		if partition < len(current) {
			currentReplicas = current[partition]
		}
		moves += len(util.SubtractInts(replicas, currentReplicas))
	}
	return moves
}
