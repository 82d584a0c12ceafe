package strategies

import (
	"errors"
	"fmt"
)

var (
	// ErrBoundedLoadUnsupported is returned when the bounded-load strategy is requested.
	ErrBoundedLoadUnsupported = errors.New("bounded-load placement is not implemented")
)

// NotEnoughBrokersError is returned when the replication factor exceeds the number of
// candidate brokers.
type NotEnoughBrokersError struct {
	Topic             string
	ReplicationFactor int
	Brokers           int
}

func (e *NotEnoughBrokersError) Error() string {
	return fmt.Sprintf(
		"Topic %s needs %d replicas but only %d brokers are available",
		e.Topic,
		e.ReplicationFactor,
		e.Brokers,
	)
}

// NotEnoughRacksError is returned by rack-aware strategies when the replication factor
// exceeds the number of racks.
type NotEnoughRacksError struct {
	Topic             string
	ReplicationFactor int
	Racks             int
}

func (e *NotEnoughRacksError) Error() string {
	return fmt.Sprintf(
		"Topic %s needs %d replicas but only %d racks are available",
		e.Topic,
		e.ReplicationFactor,
		e.Racks,
	)
}

// MissingRackError is returned by rack-aware strategies when a broker has no rack.
type MissingRackError struct {
	BrokerID int
}

func (e *MissingRackError) Error() string {
	return fmt.Sprintf(
		"Broker %d does not have rack information; disable rack awareness to plan without it",
		e.BrokerID,
	)
}

// CapacityError is returned by the minimal-movement strategy when no broker below the
// per-broker cap is left for a replica.
type CapacityError struct {
	Topic             string
	Partition         int
	Partitions        int
	ReplicationFactor int
	Cap               int
	Loads             map[int]int
	Candidates        []int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"Cannot place partition %d of topic %s (%d partitions, replication factor %d): "+
			"all candidates %v are at the cap of %d replicas or share a rack with another replica; "+
			"current loads: %v",
		e.Partition,
		e.Topic,
		e.Partitions,
		e.ReplicationFactor,
		e.Candidates,
		e.Cap,
		e.Loads,
	)
}
