package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
)

var (
	// ErrUnequalBrokerLists is returned when the source and target lists differ in length.
	ErrUnequalBrokerLists = errors.New("Both broker lists must be of equal length")

	// ErrOverlappingBrokerLists is returned when a broker is in both lists, or twice in one.
	ErrOverlappingBrokerLists = errors.New("Broker lists must be mutually exclusive")

	// ErrRackMismatch is returned when rack awareness is on and the brokers at the same
	// position in the two lists are in different racks.
	ErrRackMismatch = errors.New("Broker lists must have the same rack setup")
)

// MigrationConfig holds the optional settings of a MigrationPlan.
type MigrationConfig struct {
	RackAware bool
	LogPlan   bool
}

// MigrationPlan moves every replica on a source broker to the target broker at the same
// position, keeping the replica's slot in each list.
type MigrationPlan struct {
	client admin.Client
	from   []int
	to     []int
	config MigrationConfig
}

// NewMigrationPlan validates the broker lists and returns a MigrationPlan.
func NewMigrationPlan(
	ctx context.Context,
	client admin.Client,
	from []int,
	to []int,
	config MigrationConfig,
) (*MigrationPlan, error) {
	if len(from) != len(to) {
		return nil, fmt.Errorf("%w. From: %v, To: %v", ErrUnequalBrokerLists, from, to)
	}
	if len(from) == 0 {
		return nil, errors.New("At least one broker must be migrated")
	}
	combined := append(util.CopyInts(from), to...)
	if util.HasDuplicates(combined) {
		return nil, fmt.Errorf("%w. From: %v, To: %v", ErrOverlappingBrokerLists, from, to)
	}

	if config.RackAware {
		brokers, err := client.GetBrokers(ctx, combined)
		if err != nil {
			return nil, err
		}
		racks := admin.BrokerRacks(brokers)

		for i := range from {
			if racks[from[i]] != racks[to[i]] {
				return nil, fmt.Errorf(
					"%w. Broker %d is in rack %q, broker %d is in rack %q",
					ErrRackMismatch,
					from[i],
					racks[from[i]],
					to[i],
					racks[to[i]],
				)
			}
		}
	}

	return &MigrationPlan{
		client: client,
		from:   util.CopyInts(from),
		to:     util.CopyInts(to),
		config: config,
	}, nil
}

// Generate returns the new replica lists of every partition with a replica on a source
// broker.
func (m *MigrationPlan) Generate(ctx context.Context) (admin.Assignment, error) {
	topics, err := m.client.GetTopicNames(ctx)
	if err != nil {
		return nil, err
	}
	current, err := m.client.GetReplicaAssignments(ctx, topics)
	if err != nil {
		return nil, err
	}

	desired := admin.Assignment{}

	for _, tp := range current.TopicPartitions() {
		replicas := current[tp]
		newReplicas := util.CopyInts(replicas)

		for i, fromBroker := range m.from {
			for r, replica := range newReplicas {
				if replica != fromBroker {
					continue
				}
				if util.ContainsInt(newReplicas, m.to[i]) {
					return nil, fmt.Errorf(
						"Cannot move %s from broker %d to %d, which already has a replica: %w",
						tp,
						fromBroker,
						m.to[i],
						admin.ErrDuplicateReplicas,
					)
				}
				newReplicas[r] = m.to[i]
			}
		}

		diff := admin.AssignmentDiff{TopicPartition: tp, Old: replicas, New: newReplicas}
		if !diff.Changed() {
			continue
		}
		if m.config.LogPlan {
			logPlanEntry(tp, replicas, newReplicas)
		}
		desired[tp] = newReplicas
	}

	return desired, nil
}
