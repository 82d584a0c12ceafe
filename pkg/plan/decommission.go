package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
)

// InsufficientBrokersError is returned when removing a broker leaves fewer brokers than
// a partition has replicas.
type InsufficientBrokersError struct {
	TopicPartition admin.TopicPartition
	Remaining      int
	Required       int
}

func (e *InsufficientBrokersError) Error() string {
	return fmt.Sprintf("%d remaining brokers, %d replicas needed", e.Remaining, e.Required)
}

// DecommissionConfig holds the optional settings of a DecommissionPlan.
type DecommissionConfig struct {
	LogPlan bool
}

// DecommissionPlan replaces a broker in every replica list that contains it. Leader slots
// go to the brokers serving the fewest follower replicas and follower slots to the brokers
// leading the fewest partitions, counting the cluster's current leaders and ISRs.
type DecommissionPlan struct {
	client   admin.Client
	brokerID int
	config   DecommissionConfig
}

// NewDecommissionPlan returns a new DecommissionPlan instance.
func NewDecommissionPlan(
	client admin.Client,
	brokerID int,
	config DecommissionConfig,
) *DecommissionPlan {
	return &DecommissionPlan{
		client:   client,
		brokerID: brokerID,
		config:   config,
	}
}

type loadCounters struct {
	leaders  map[int]int
	replicas map[int]int
}

// Generate returns the new replica lists of every partition on the decommissioned broker.
func (d *DecommissionPlan) Generate(ctx context.Context) (admin.Assignment, error) {
	brokerIDs, err := d.client.GetBrokerIDs(ctx)
	if err != nil {
		return nil, err
	}
	remaining := util.SubtractInts(brokerIDs, []int{d.brokerID})
	sort.Ints(remaining)

	topics, err := d.client.GetTopicNames(ctx)
	if err != nil {
		return nil, err
	}
	current, err := d.client.GetReplicaAssignments(ctx, topics)
	if err != nil {
		return nil, err
	}

	partitions := current.TopicPartitions()
	states, err := d.client.GetLeaderAndISR(ctx, partitions)
	if err != nil {
		return nil, err
	}
	counters := seedCounters(states)

	desired := admin.Assignment{}

	for _, tp := range partitions {
		replicas := current[tp]
		index := indexOf(replicas, d.brokerID)
		if index == -1 {
			continue
		}
		if len(remaining) < len(replicas) {
			return nil, &InsufficientBrokersError{
				TopicPartition: tp,
				Remaining:      len(remaining),
				Required:       len(replicas),
			}
		}

		candidates := util.SubtractInts(remaining, replicas)
		newReplicas := util.CopyInts(replicas)
		newReplicas[index] = counters.elect(index, candidates)

		if d.config.LogPlan {
			logPlanEntry(tp, replicas, newReplicas)
		}
		desired[tp] = newReplicas
	}

	return desired, nil
}

// seedCounters counts each in-sync replica as a leader if it leads the partition and as a
// follower replica otherwise.
func seedCounters(states map[admin.TopicPartition]admin.LeaderAndISR) loadCounters {
	counters := loadCounters{
		leaders:  map[int]int{},
		replicas: map[int]int{},
	}

	for _, state := range states {
		for _, broker := range state.ISR {
			if broker == state.Leader {
				counters.leaders[broker]++
			} else {
				counters.replicas[broker]++
			}
		}
	}

	return counters
}

// elect picks the replacement for the replica at the argument index from the sorted
// candidates and updates the counters.
func (c loadCounters) elect(index int, candidates []int) int {
	counts := c.leaders
	if index == 0 {
		counts = c.replicas
	}

	candidateCounts := map[int]int{}
	for _, candidate := range candidates {
		candidateCounts[candidate] = counts[candidate]
	}
	best := util.SortedKeysByValue(candidateCounts, true, util.SortedKeys)[0]
	counts[best]++

	return best
}

func indexOf(replicas []int, broker int) int {
	for r, replica := range replicas {
		if replica == broker {
			return r
		}
	}
	return -1
}
