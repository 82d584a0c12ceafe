package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/ktl/pkg/util"
)

// ReassignmentVersion is the version field written with every reassignment and election
// payload.
const ReassignmentVersion = 1

var (
	// ErrDuplicateReplicas is returned when a replica list contains the same broker twice.
	ErrDuplicateReplicas = errors.New("Replica list contains duplicate brokers")
)

// BrokerInfo represents the information stored about a broker in zookeeper.
type BrokerInfo struct {
	ID               int       `json:"id"`
	Endpoints        []string  `json:"endpoints"`
	Host             string    `json:"host"`
	Port             int32     `json:"port"`
	InstanceID       string    `json:"instanceID"`
	AvailabilityZone string    `json:"availabilityZone"`
	Rack             string    `json:"rack"`
	InstanceType     string    `json:"instanceType"`
	Version          int       `json:"version"`
	Timestamp        time.Time `json:"timestamp"`
}

// TopicPartition identifies a single partition in the cluster.
type TopicPartition struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
}

func (tp TopicPartition) String() string {
	return fmt.Sprintf("%s:%d", tp.Topic, tp.Partition)
}

// Less orders partitions by topic name and then by partition index.
func (tp TopicPartition) Less(other TopicPartition) bool {
	if tp.Topic != other.Topic {
		return tp.Topic < other.Topic
	}
	return tp.Partition < other.Partition
}

// SortTopicPartitions sorts the argument slice in place by topic, then partition.
func SortTopicPartitions(partitions []TopicPartition) {
	sort.Slice(partitions, func(a, b int) bool {
		return partitions[a].Less(partitions[b])
	})
}

// LeaderAndISR is the state the controller keeps for each partition.
type LeaderAndISR struct {
	Leader          int   `json:"leader"`
	ISR             []int `json:"isr"`
	LeaderEpoch     int   `json:"leader_epoch"`
	ControllerEpoch int   `json:"controller_epoch"`
	Version         int   `json:"version"`
}

// Assignment maps partitions to ordered replica lists. The first replica of each list is
// the preferred leader.
type Assignment map[TopicPartition][]int

// TopicPartitions returns the keys of the assignment sorted by topic, then partition.
func (a Assignment) TopicPartitions() []TopicPartition {
	partitions := make([]TopicPartition, 0, len(a))
	for tp := range a {
		partitions = append(partitions, tp)
	}
	SortTopicPartitions(partitions)
	return partitions
}

// Topics returns the distinct topic names in the assignment, sorted.
func (a Assignment) Topics() []string {
	topicsMap := map[string]struct{}{}
	for tp := range a {
		topicsMap[tp.Topic] = struct{}{}
	}
	return util.SortedStrings(topicsMap)
}

// Copy returns a deep copy of the assignment.
func (a Assignment) Copy() Assignment {
	copied := Assignment{}
	for tp, replicas := range a {
		copied[tp] = util.CopyInts(replicas)
	}
	return copied
}

// ToPartitionReplicas returns the assignment as an ordered list of reassignment entries.
func (a Assignment) ToPartitionReplicas() []PartitionReplicas {
	entries := []PartitionReplicas{}
	for _, tp := range a.TopicPartitions() {
		entries = append(
			entries,
			PartitionReplicas{
				Topic:     tp.Topic,
				Partition: tp.Partition,
				Replicas:  util.CopyInts(a[tp]),
			},
		)
	}
	return entries
}

// Check verifies that no replica list is empty or contains duplicates.
func (a Assignment) Check() error {
	for _, tp := range a.TopicPartitions() {
		replicas := a[tp]
		if len(replicas) == 0 {
			return fmt.Errorf("Partition %s has no replicas", tp)
		}
		if util.HasDuplicates(replicas) {
			return fmt.Errorf("Partition %s: %w: %+v", tp, ErrDuplicateReplicas, replicas)
		}
	}
	return nil
}

// PartitionReplicas is a single entry in a reassignment payload.
type PartitionReplicas struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Replicas  []int  `json:"replicas"`
}

// TopicPartition returns the partition identified by this entry.
func (p PartitionReplicas) TopicPartition() TopicPartition {
	return TopicPartition{Topic: p.Topic, Partition: p.Partition}
}

// ToAssignment converts a list of reassignment entries back into an Assignment. Later
// entries for the same partition override earlier ones.
func ToAssignment(entries []PartitionReplicas) Assignment {
	assignment := Assignment{}
	for _, entry := range entries {
		assignment[entry.TopicPartition()] = util.CopyInts(entry.Replicas)
	}
	return assignment
}

// Reassignment is the JSON document the controller reads from the reassignment path.
type Reassignment struct {
	Version    int                 `json:"version"`
	Partitions []PartitionReplicas `json:"partitions"`
}

// NewReassignment wraps the argument entries in a versioned payload.
func NewReassignment(entries []PartitionReplicas) Reassignment {
	if entries == nil {
		entries = []PartitionReplicas{}
	}
	return Reassignment{
		Version:    ReassignmentVersion,
		Partitions: entries,
	}
}

// Marshal returns the JSON encoding of the reassignment.
func (r Reassignment) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// ParseReassignment decodes a reassignment payload. Empty input decodes to an empty
// reassignment.
func ParseReassignment(data []byte) (Reassignment, error) {
	reassignment := NewReassignment(nil)
	if len(data) == 0 {
		return reassignment, nil
	}
	if err := json.Unmarshal(data, &reassignment); err != nil {
		return reassignment, fmt.Errorf("Error parsing reassignment: %w", err)
	}
	if reassignment.Partitions == nil {
		reassignment.Partitions = []PartitionReplicas{}
	}
	return reassignment, nil
}

type zkClusterID struct {
	Version string `json:"version"`
	ID      string `json:"id"`
}

type zkBrokerInfo struct {
	Endpoints    []string `json:"endpoints"`
	Host         string   `json:"host"`
	Port         int32    `json:"port"`
	Rack         string   `json:"rack"`
	TimestampStr string   `json:"timestamp"`
	Version      int      `json:"version"`
}

type zkTopicInfo struct {
	Version    int              `json:"version"`
	Partitions map[string][]int `json:"partitions"`
}

type zkElection struct {
	Version    int              `json:"version"`
	Partitions []TopicPartition `json:"partitions"`
}

// Addr returns the address of the current BrokerInfo.
func (b BrokerInfo) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// BrokerIDs returns a slice of the IDs of the argument brokers.
func BrokerIDs(brokers []BrokerInfo) []int {
	brokerIDs := []int{}

	for _, broker := range brokers {
		brokerIDs = append(brokerIDs, broker.ID)
	}

	return brokerIDs
}

// BrokerRacks returns a mapping of broker ID -> rack.
func BrokerRacks(brokers []BrokerInfo) map[int]string {
	brokerRacks := map[int]string{}

	for _, broker := range brokers {
		brokerRacks[broker.ID] = broker.Rack
	}

	return brokerRacks
}

// BrokersPerRack returns a mapping of rack -> broker IDs.
func BrokersPerRack(brokers []BrokerInfo) map[string][]int {
	brokersPerRack := map[string][]int{}

	for _, broker := range brokers {
		rack := broker.Rack
		brokersPerRack[rack] = append(
			brokersPerRack[rack],
			broker.ID,
		)
	}

	return brokersPerRack
}

// DistinctRacks returns a sorted slice of all the distinct racks in the cluster.
func DistinctRacks(brokers []BrokerInfo) []string {
	return util.SortedStrings(BrokersPerRack(brokers))
}

// AssignmentDiff represents the diff in a single partition reassignment.
type AssignmentDiff struct {
	TopicPartition
	Old []int
	New []int
}

// Changed returns whether the new replicas differ from the old ones in content or order.
func (d AssignmentDiff) Changed() bool {
	if len(d.Old) != len(d.New) {
		return true
	}
	for i := range d.Old {
		if d.Old[i] != d.New[i] {
			return true
		}
	}
	return false
}

// AssignmentDiffs returns the diffs implied by the argument current and
// desired assignments, restricted to the partitions in desired. Used for displaying diffs
// to the user.
func AssignmentDiffs(current Assignment, desired Assignment) []AssignmentDiff {
	results := []AssignmentDiff{}

	for _, tp := range desired.TopicPartitions() {
		results = append(
			results,
			AssignmentDiff{
				TopicPartition: tp,
				Old:            current[tp],
				New:            desired[tp],
			},
		)
	}

	return results
}
