package strategies

import (
	"fmt"
	"slices"
	"sort"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
)

// MinimalMovementStrategy keeps existing replicas wherever that doesn't break rack
// isolation or push a broker over ⌈partitions·rf/brokers⌉ replicas of the topic. Missing
// replicas go to the least-loaded broker of the next rack, and each partition's leader is
// the chosen replica that currently leads the fewest partitions of the topic.
type MinimalMovementStrategy struct{}

var _ PlacementStrategy = (*MinimalMovementStrategy)(nil)

// Name returns the strategy name.
func (s *MinimalMovementStrategy) Name() string {
	return MinimalMovementName
}

// Assign returns replica lists for every partition in the request.
func (s *MinimalMovementStrategy) Assign(request Request) ([][]int, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}

	brokersPerRack, racks, err := minimalMovementRacks(request.Brokers)
	if err != nil {
		return nil, err
	}
	if request.ReplicationFactor > len(racks) {
		return nil, &NotEnoughRacksError{
			Topic:             request.Topic,
			ReplicationFactor: request.ReplicationFactor,
			Racks:             len(racks),
		}
	}

	brokerRacks := map[int]string{}
	for rack, ids := range brokersPerRack {
		for _, id := range ids {
			brokerRacks[id] = rack
		}
	}

	numBrokers := len(request.Brokers)
	maxLoad := (request.Partitions*request.ReplicationFactor + numBrokers - 1) / numBrokers

	loads := map[int]int{}
	leaders := map[int]int{}
	for _, id := range sortedBrokerIDs(request.Brokers) {
		loads[id] = 0
		leaders[id] = 0
	}

	assignments := [][]int{}

	for partition := 0; partition < request.Partitions; partition++ {
		current := request.CurrentReplicas(partition)

		hosting := map[string]bool{}
		for _, replica := range current {
			if rack, ok := brokerRacks[replica]; ok {
				hosting[rack] = true
			}
		}

		order := rotate(racks, partition)
		sort.SliceStable(order, func(a, b int) bool {
			return hosting[order[a]] && !hosting[order[b]]
		})

		chosen := []int{}
		for _, rack := range order {
			if len(chosen) == request.ReplicationFactor {
				break
			}
			broker, ok := pickInRack(
				request.Topic,
				partition,
				brokersPerRack[rack],
				current,
				loads,
				maxLoad,
			)
			if ok {
				chosen = append(chosen, broker)
			}
		}

		for len(chosen) < request.ReplicationFactor {
			broker, ok := rebalanceForPartition(
				request.Topic,
				chosen,
				order,
				brokersPerRack,
				brokerRacks,
				assignments,
				loads,
				leaders,
				maxLoad,
			)
			if !ok {
				break
			}
			chosen = append(chosen, broker)
		}

		if len(chosen) < request.ReplicationFactor {
			loadsCopy := map[int]int{}
			for id, load := range loads {
				loadsCopy[id] = load
			}
			return nil, &CapacityError{
				Topic:             request.Topic,
				Partition:         partition,
				Partitions:        request.Partitions,
				ReplicationFactor: request.ReplicationFactor,
				Cap:               maxLoad,
				Loads:             loadsCopy,
				Candidates:        sortedBrokerIDs(request.Brokers),
			}
		}

		replicas := orderReplicas(chosen, current, leaders)
		for _, replica := range replicas {
			loads[replica]++
		}
		leaders[replicas[0]]++

		assignments = append(assignments, replicas)
	}

	return assignments, nil
}

// minimalMovementRacks groups brokers by rack. When no broker has a rack, every broker is
// treated as its own rack.
func minimalMovementRacks(brokers []admin.BrokerInfo) (map[string][]int, []string, error) {
	withRacks := 0
	for _, broker := range brokers {
		if broker.Rack != "" {
			withRacks++
		}
	}
	if withRacks > 0 {
		return racksOf(brokers)
	}

	brokersPerRack := map[string][]int{}
	for _, broker := range brokers {
		brokersPerRack[fmt.Sprintf("broker-%d", broker.ID)] = []int{broker.ID}
	}
	return brokersPerRack, util.SortedStrings(brokersPerRack), nil
}

// pickInRack returns a current replica in the rack if one is under maxLoad, otherwise the
// least-loaded broker under maxLoad. Load ties go to the better rendezvous rank.
func pickInRack(
	topic string,
	partition int,
	rackBrokers []int,
	current []int,
	loads map[int]int,
	maxLoad int,
) (int, bool) {
	for _, replica := range current {
		if util.ContainsInt(rackBrokers, replica) && loads[replica] < maxLoad {
			return replica, true
		}
	}

	best := -1
	for _, id := range RankBrokers(topic, partition, rackBrokers) {
		if loads[id] >= maxLoad {
			continue
		}
		if best == -1 || loads[id] < loads[best] {
			best = id
		}
	}
	return best, best != -1
}

// rebalanceForPartition frees a slot for the partition being placed when every broker
// in the racks it still needs is at maxLoad. It looks for an earlier partition holding
// one of those brokers and moves that replica to a broker under maxLoad that keeps the
// earlier partition rack isolated. The bookkeeping maps are updated in place and the
// freed broker is returned.
func rebalanceForPartition(
	topic string,
	chosen []int,
	order []string,
	brokersPerRack map[string][]int,
	brokerRacks map[int]string,
	assignments [][]int,
	loads map[int]int,
	leaders map[int]int,
	maxLoad int,
) (int, bool) {
	usedRacks := map[string]bool{}
	for _, replica := range chosen {
		usedRacks[brokerRacks[replica]] = true
	}

	effectiveLoad := func(id int) int {
		if util.ContainsInt(chosen, id) {
			return loads[id] + 1
		}
		return loads[id]
	}

	allBrokers := make([]int, 0, len(brokerRacks))
	for id := range brokerRacks {
		allBrokers = append(allBrokers, id)
	}
	sort.Ints(allBrokers)

	for _, rack := range order {
		if usedRacks[rack] {
			continue
		}
		for _, full := range brokersPerRack[rack] {
			if loads[full] < maxLoad {
				continue
			}

			for earlier := len(assignments) - 1; earlier >= 0; earlier-- {
				replicas := assignments[earlier]
				position := slices.Index(replicas, full)
				if position == -1 {
					continue
				}

				otherRacks := map[string]bool{}
				for _, replica := range replicas {
					if replica != full {
						otherRacks[brokerRacks[replica]] = true
					}
				}

				replacement := -1
				for _, id := range RankBrokers(topic, earlier, allBrokers) {
					if util.ContainsInt(replicas, id) || effectiveLoad(id) >= maxLoad {
						continue
					}
					if brokerRacks[id] != rack && otherRacks[brokerRacks[id]] {
						continue
					}
					if replacement == -1 || effectiveLoad(id) < effectiveLoad(replacement) {
						replacement = id
					}
				}
				if replacement == -1 {
					continue
				}

				replicas[position] = replacement
				loads[full]--
				loads[replacement]++
				if position == 0 {
					leaders[full]--
					leaders[replacement]++
				}
				return full, true
			}
		}
	}

	return -1, false
}

// orderReplicas puts the leader first and keeps the remaining replicas in their current
// relative order, with new replicas after them.
func orderReplicas(chosen []int, current []int, leaders map[int]int) []int {
	leader := chosen[0]
	for _, replica := range chosen[1:] {
		if leaders[replica] < leaders[leader] {
			leader = replica
		}
	}
	if len(current) > 0 &&
		util.ContainsInt(chosen, current[0]) &&
		leaders[current[0]] == leaders[leader] {
		leader = current[0]
	}

	positions := map[int]int{}
	for c, replica := range chosen {
		positions[replica] = len(current) + c
	}
	for c, replica := range current {
		if _, ok := positions[replica]; ok {
			positions[replica] = c
		}
	}

	followers := util.SubtractInts(chosen, []int{leader})
	sort.SliceStable(followers, func(a, b int) bool {
		return positions[followers[a]] < positions[followers[b]]
	})

	return append([]int{leader}, followers...)
}
