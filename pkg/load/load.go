package load

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/plan"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/segmentio/ktl/pkg/util"
	log "github.com/sirupsen/logrus"
)

// CurrentName is the name of the projection of the current assignment.
const CurrentName = "current"

// DefaultStrategies are the strategies projected when none are configured.
var DefaultStrategies = []string{
	strategies.DefaultName,
	strategies.RendezvousName,
	strategies.RackAwareName,
	strategies.MinimalMovementName,
}

// BrokerLoad is the share of a projection served by one broker.
type BrokerLoad struct {
	BrokerID        int
	Rack            string
	Leaders         int
	Replicas        int
	LeaderMessages  int64
	ReplicaMessages int64
}

// RackLoad is the share of a projection served by one rack.
type RackLoad struct {
	Rack            string
	Leaders         int
	Replicas        int
	LeaderMessages  int64
	ReplicaMessages int64
}

// Projection describes the load on each broker and rack under an assignment, and how
// much it differs from the current assignment.
type Projection struct {
	Name       string
	Assignment admin.Assignment
	Brokers    []BrokerLoad
	Racks      []RackLoad

	// MovedPartitions is the number of partitions with at least one new replica.
	MovedPartitions int

	// MovedReplicas is the number of replicas placed on a broker that doesn't have them
	// yet.
	MovedReplicas int

	// MovedMessages is the number of messages copied by the moved replicas.
	MovedMessages int64

	// ReplicaSpread and LeaderSpread are the differences between the most and least
	// loaded brokers. RackIsolated is set when no partition has two replicas in a rack.
	ReplicaSpread int
	LeaderSpread  int
	RackIsolated  bool
}

// ComputeProjection tallies the argument projected assignment against the current one.
// Partitions missing from counts count as empty.
func ComputeProjection(
	name string,
	current admin.Assignment,
	projected admin.Assignment,
	brokers []admin.BrokerInfo,
	counts map[admin.TopicPartition]int64,
) Projection {
	brokerLoads := map[int]*BrokerLoad{}
	for _, broker := range brokers {
		brokerLoads[broker.ID] = &BrokerLoad{BrokerID: broker.ID, Rack: broker.Rack}
	}

	projection := Projection{
		Name:       name,
		Assignment: projected,
	}

	currentLists := [][]int{}
	projectedLists := [][]int{}

	for _, tp := range projected.TopicPartitions() {
		replicas := projected[tp]
		count := counts[tp]
		currentLists = append(currentLists, current[tp])
		projectedLists = append(projectedLists, replicas)

		for r, replica := range replicas {
			brokerLoad, ok := brokerLoads[replica]
			if !ok {
				brokerLoad = &BrokerLoad{BrokerID: replica}
				brokerLoads[replica] = brokerLoad
			}
			brokerLoad.Replicas++
			brokerLoad.ReplicaMessages += count
			if r == 0 {
				brokerLoad.Leaders++
				brokerLoad.LeaderMessages += count
			}
		}

		added := util.SubtractInts(replicas, current[tp])
		if len(added) > 0 {
			projection.MovedPartitions++
			projection.MovedMessages += int64(len(added)) * count
		}
	}
	projection.MovedReplicas = strategies.CountMoves(currentLists, projectedLists)

	evaluation, err := strategies.Evaluate(projectedLists, brokers)
	if err != nil {
		log.Warnf("Cannot evaluate the spread of %s: %+v", name, err)
	} else {
		projection.ReplicaSpread = evaluation.ReplicaSpread()
		projection.LeaderSpread = evaluation.LeaderSpread()
		projection.RackIsolated = evaluation.RackIsolated
	}

	rackLoads := map[string]*RackLoad{}
	for _, brokerLoad := range brokerLoads {
		projection.Brokers = append(projection.Brokers, *brokerLoad)

		rackLoad, ok := rackLoads[brokerLoad.Rack]
		if !ok {
			rackLoad = &RackLoad{Rack: brokerLoad.Rack}
			rackLoads[brokerLoad.Rack] = rackLoad
		}
		rackLoad.Leaders += brokerLoad.Leaders
		rackLoad.Replicas += brokerLoad.Replicas
		rackLoad.LeaderMessages += brokerLoad.LeaderMessages
		rackLoad.ReplicaMessages += brokerLoad.ReplicaMessages
	}
	sort.Slice(projection.Brokers, func(a, b int) bool {
		return projection.Brokers[a].BrokerID < projection.Brokers[b].BrokerID
	})

	for _, rack := range util.SortedStrings(rackLoads) {
		projection.Racks = append(projection.Racks, *rackLoads[rack])
	}

	return projection
}

// CalculatorConfig controls which topics and strategies are projected.
type CalculatorConfig struct {
	Filter     string
	Strategies []string

	// ReplicationFactor overrides the replication factor of every projected topic.
	ReplicationFactor int

	// ScaleDown adds a minimal-movement projection without the highest broker of each
	// rack.
	ScaleDown bool
}

// Calculator projects the load of the cluster under each placement strategy.
type Calculator struct {
	adminClient admin.Client
	counter     MessageCounter
	config      CalculatorConfig
}

// NewCalculator returns a new Calculator instance. The counter may be nil, in which case
// message loads are reported as zero.
func NewCalculator(
	adminClient admin.Client,
	counter MessageCounter,
	config CalculatorConfig,
) (*Calculator, error) {
	if config.Filter != "" {
		if _, err := regexp.Compile(config.Filter); err != nil {
			return nil, fmt.Errorf("Invalid topic filter %q: %w", config.Filter, err)
		}
	}
	if config.ReplicationFactor < 0 {
		return nil, errors.New("Replication factor cannot be negative")
	}
	if len(config.Strategies) == 0 {
		config.Strategies = DefaultStrategies
	}
	for _, name := range config.Strategies {
		if _, err := strategies.FromName(name); err != nil {
			return nil, err
		}
	}

	return &Calculator{
		adminClient: adminClient,
		counter:     counter,
		config:      config,
	}, nil
}

// Calculate returns the projection of the current assignment followed by one projection
// per strategy. Strategies that can't place the cluster are logged and skipped.
func (c *Calculator) Calculate(ctx context.Context) ([]Projection, error) {
	brokers, err := c.adminClient.GetBrokers(ctx, nil)
	if err != nil {
		return nil, err
	}

	current, err := c.currentAssignment(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[admin.TopicPartition]int64{}
	if c.counter != nil {
		counts, err = c.counter.MessageCounts(ctx, current.TopicPartitions())
		if err != nil {
			return nil, err
		}
	}

	projections := []Projection{
		ComputeProjection(CurrentName, current, current, brokers, counts),
	}

	var minimalMovement admin.Assignment

	for _, name := range c.config.Strategies {
		projected, err := c.project(ctx, name, plan.ShuffleConfig{})
		if err != nil {
			log.Warnf("Skipping %s projection: %+v", name, err)
			continue
		}
		if name == strategies.MinimalMovementName {
			minimalMovement = projected
		}
		projections = append(
			projections,
			ComputeProjection(name, current, projected, brokers, counts),
		)
	}

	if c.config.ScaleDown {
		projection, ok, err := c.scaleDown(ctx, current, minimalMovement, brokers, counts)
		if err != nil {
			return nil, err
		}
		if ok {
			projections = append(projections, projection)
		}
	}

	return projections, nil
}

// scaleDown projects a minimal-movement placement without the highest broker ID of each
// rack, starting from the minimal-movement projection when there is one.
func (c *Calculator) scaleDown(
	ctx context.Context,
	current admin.Assignment,
	start admin.Assignment,
	brokers []admin.BrokerInfo,
	counts map[admin.TopicPartition]int64,
) (Projection, bool, error) {
	blacklist := []int{}
	for _, ids := range admin.BrokersPerRack(brokers) {
		sort.Ints(ids)
		blacklist = append(blacklist, ids[len(ids)-1])
	}
	sort.Ints(blacklist)

	remaining := len(brokers) - len(blacklist)
	maxReplicas := c.config.ReplicationFactor
	for _, replicas := range current {
		if len(replicas) > maxReplicas {
			maxReplicas = len(replicas)
		}
	}
	if remaining < maxReplicas || remaining == 0 {
		log.Warnf(
			"Skipping scale-down projection: %d brokers would remain for %d replicas",
			remaining,
			maxReplicas,
		)
		return Projection{}, false, nil
	}

	if start == nil {
		start = current
	}
	projected, err := c.project(
		ctx,
		strategies.MinimalMovementName,
		plan.ShuffleConfig{
			Blacklist:         blacklist,
			CurrentAssignment: start,
		},
	)
	if err != nil {
		log.Warnf("Skipping scale-down projection: %+v", err)
		return Projection{}, false, nil
	}

	remainingBrokers := []admin.BrokerInfo{}
	for _, broker := range brokers {
		if !util.ContainsInt(blacklist, broker.ID) {
			remainingBrokers = append(remainingBrokers, broker)
		}
	}

	return ComputeProjection(
		fmt.Sprintf("%s without %v", strategies.MinimalMovementName, blacklist),
		current,
		projected,
		remainingBrokers,
		counts,
	), true, nil
}

func (c *Calculator) project(
	ctx context.Context,
	name string,
	config plan.ShuffleConfig,
) (admin.Assignment, error) {
	strategy, err := strategies.FromName(name)
	if err != nil {
		return nil, err
	}

	config.Filter = c.config.Filter
	config.ReplicationFactor = c.config.ReplicationFactor
	config.IncludeAll = true

	shufflePlan, err := plan.NewShufflePlan(c.adminClient, strategy, config)
	if err != nil {
		return nil, err
	}
	return shufflePlan.Generate(ctx)
}

func (c *Calculator) currentAssignment(ctx context.Context) (admin.Assignment, error) {
	topics, err := c.adminClient.GetTopicNames(ctx)
	if err != nil {
		return nil, err
	}

	if c.config.Filter != "" {
		filter := regexp.MustCompile(c.config.Filter)
		filtered := []string{}
		for _, topic := range topics {
			if filter.MatchString(topic) {
				filtered = append(filtered, topic)
			}
		}
		topics = filtered
	}

	return c.adminClient.GetReplicaAssignments(ctx, topics)
}
