package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/segmentio/ktl/pkg/admin"
)

const (
	DefaultName         = "default"
	RendezvousName      = "rendezvous"
	RackAwareName       = "rack-aware"
	MinimalMovementName = "minimal-movement"
	BoundedLoadName     = "bounded-load"
)

// Request holds everything a strategy needs to place the replicas of one topic.
type Request struct {
	Topic             string
	Partitions        int
	ReplicationFactor int

	// Brokers are the candidates for placement.
	Brokers []admin.BrokerInfo

	// Current holds the existing replica lists indexed by partition. It may be shorter
	// than Partitions (or nil) for partitions that don't exist yet.
	Current [][]int

	// TopicIndex is the position of the topic in the sorted list of topics being planned.
	TopicIndex int
}

// PlacementStrategy computes replica lists for every partition of a topic. Strategies are
// pure: they read nothing besides the request and produce the same output for the same
// input.
type PlacementStrategy interface {
	Name() string
	Assign(request Request) ([][]int, error)
}

// FromName returns the strategy with the argument name.
func FromName(name string) (PlacementStrategy, error) {
	switch strings.ToLower(name) {
	case "", DefaultName:
		return &DefaultStrategy{}, nil
	case RendezvousName:
		return &RendezvousStrategy{}, nil
	case RackAwareName:
		return &RackAwareStrategy{}, nil
	case MinimalMovementName:
		return &MinimalMovementStrategy{}, nil
	case BoundedLoadName:
		return nil, ErrBoundedLoadUnsupported
	default:
		return nil, fmt.Errorf(
			"Unrecognized placement strategy %q; choices are %s, %s, %s, and %s",
			name,
			DefaultName,
			RendezvousName,
			RackAwareName,
			MinimalMovementName,
		)
	}
}

// CurrentReplicas returns the current replicas of the argument partition, or nil if the
// partition has none.
func (r Request) CurrentReplicas(partition int) []int {
	if partition < len(r.Current) {
		return r.Current[partition]
	}
	return nil
}

func (r Request) validate() error {
	if r.ReplicationFactor < 1 {
		return fmt.Errorf("Replication factor for topic %s must be positive", r.Topic)
	}
	if r.ReplicationFactor > len(r.Brokers) {
		return &NotEnoughBrokersError{
			Topic:             r.Topic,
			ReplicationFactor: r.ReplicationFactor,
			Brokers:           len(r.Brokers),
		}
	}
	return nil
}

func sortedBrokerIDs(brokers []admin.BrokerInfo) []int {
	ids := admin.BrokerIDs(brokers)
	sort.Ints(ids)
	return ids
}

// racksOf groups broker IDs by rack. It fails if any broker is missing rack metadata.
func racksOf(brokers []admin.BrokerInfo) (map[string][]int, []string, error) {
	for _, broker := range brokers {
		if broker.Rack == "" {
			return nil, nil, &MissingRackError{BrokerID: broker.ID}
		}
	}

	brokersPerRack := admin.BrokersPerRack(brokers)
	for _, ids := range brokersPerRack {
		sort.Ints(ids)
	}
	return brokersPerRack, admin.DistinctRacks(brokers), nil
}

func rotate(racks []string, offset int) []string {
	if len(racks) == 0 {
		return racks
	}
	offset = offset % len(racks)
	rotated := append([]string{}, racks[offset:]...)
	return append(rotated, racks[:offset]...)
}
