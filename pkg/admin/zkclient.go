package admin

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/ktl/pkg/util"
	"github.com/segmentio/ktl/pkg/zk"
	log "github.com/sirupsen/logrus"
)

const (
	// Various paths in zookeeper
	assignmentPath = "/admin/reassign_partitions"
	electionPath   = "/admin/preferred_replica_election"
	brokersPath    = "/brokers/ids"
	topicsPath     = "/brokers/topics"
	clusterIDPath  = "/cluster/id"
)

var (
	// ErrTopicDoesNotExist is returned by admin functions when a topic that should exist
	// does not.
	ErrTopicDoesNotExist = errors.New("Topic does not exist")

	// ErrPartitionDoesNotExist is returned when a partition has no state node.
	ErrPartitionDoesNotExist = errors.New("Partition does not exist")

	// ErrElectionInProgress is returned when a preferred replica election is already pending.
	ErrElectionInProgress = errors.New("Preferred replica election already in progress")

	// ErrReadOnly is returned by write operations on a read-only client.
	ErrReadOnly = errors.New("Cannot write in read-only mode")
)

// ZKAdminClient is the Client implementation backed by the cluster's zookeeper. Reads of
// many topics or partitions are spread over FetchParallel; topic creation goes through the
// broker API.
type ZKAdminClient struct {
	zkClient         zk.Client
	zkPrefix         string
	fetchConcurrency int
	instanceLookup   *InstanceLookup
	connector        *Connector
	readOnly         bool
}

var _ Client = (*ZKAdminClient)(nil)

// ZKAdminClientConfig contains all of the parameters necessary to create a ZKAdminClient.
type ZKAdminClientConfig struct {
	ZKPrefix          string
	ExpectedClusterID string
	FetchConcurrency  int
	ReadOnly          bool

	// ConnectBrokers creates a broker Connector. If BootstrapAddrs is empty, the address
	// of the lowest broker ID registered in zookeeper is used.
	ConnectBrokers bool
	BootstrapAddrs []string
	Connector      ConnectorConfig

	// InstanceLookup, if set, annotates brokers with their EC2 instance details.
	InstanceLookup *InstanceLookup
}

// NewZKAdminClient creates and returns a new ZKAdminClient instance on top of the argument
// zk client.
func NewZKAdminClient(
	ctx context.Context,
	zkClient zk.Client,
	config ZKAdminClientConfig,
) (*ZKAdminClient, error) {
	zkPrefix := config.ZKPrefix

	// Normalize prefix
	if zkPrefix != "" {
		if !strings.HasPrefix(zkPrefix, "/") {
			zkPrefix = fmt.Sprintf("/%s", zkPrefix)
		}
		zkPrefix = strings.TrimSuffix(zkPrefix, "/")
	}

	fetchConcurrency := config.FetchConcurrency
	if fetchConcurrency <= 0 {
		fetchConcurrency = DefaultFetchConcurrency
	}

	client := &ZKAdminClient{
		zkClient:         zkClient,
		zkPrefix:         zkPrefix,
		fetchConcurrency: fetchConcurrency,
		instanceLookup:   config.InstanceLookup,
		readOnly:         config.ReadOnly,
	}

	if config.ExpectedClusterID != "" {
		log.Info("Checking cluster ID against version in cluster")
		clusterID, err := client.GetClusterID(ctx)
		if err != nil {
			return nil, err
		}
		if clusterID != config.ExpectedClusterID {
			return nil, fmt.Errorf(
				"ID in cluster (%s) does not match expected one (%s)",
				clusterID,
				config.ExpectedClusterID,
			)
		}
	}

	if config.ConnectBrokers {
		bootstrapAddrs := append([]string{}, config.BootstrapAddrs...)

		if len(bootstrapAddrs) == 0 {
			log.Debug("No bootstrap addresses provided, getting one from zookeeper")
			ids, err := client.GetBrokerIDs(ctx)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				return nil, errors.New("No brokers registered in zookeeper")
			}
			brokers, err := client.GetBrokers(ctx, ids[:1])
			if err != nil {
				return nil, err
			}
			bootstrapAddrs = []string{brokers[0].Addr()}
		}

		connectorConfig := config.Connector
		connectorConfig.BrokerAddr = bootstrapAddrs[0]

		connector, err := NewConnector(ctx, connectorConfig)
		if err != nil {
			return nil, err
		}
		client.connector = connector
	}

	return client, nil
}

// GetClusterID gets the cluster ID from zookeeper. This ID is generated when the cluster is
// created and should be stable over the life of the cluster.
func (c *ZKAdminClient) GetClusterID(
	ctx context.Context,
) (string, error) {
	zkClusterIDObj := zkClusterID{}
	_, err := c.zkClient.GetJSON(ctx, c.zNode(clusterIDPath), &zkClusterIDObj)
	if err != nil {
		return "", err
	}

	return zkClusterIDObj.ID, nil
}

// GetBrokers gets information on one or more cluster brokers from zookeeper.
// If the argument ids is unset, then it fetches all brokers.
func (c *ZKAdminClient) GetBrokers(
	ctx context.Context,
	ids []int,
) ([]BrokerInfo, error) {
	brokerIDs := ids
	if len(brokerIDs) == 0 {
		var err error
		brokerIDs, err = c.GetBrokerIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	brokersMap, err := FetchParallel(
		ctx,
		brokerIDs,
		c.fetchConcurrency,
		func(ctx context.Context, group []int) (map[int]BrokerInfo, error) {
			results := map[int]BrokerInfo{}
			for _, id := range group {
				broker, err := c.getBroker(ctx, id)
				if err != nil {
					return nil, err
				}
				results[id] = broker
			}
			return results, nil
		},
	)
	if err != nil {
		return nil, err
	}

	brokers := []BrokerInfo{}
	brokerHosts := []string{}
	for _, broker := range brokersMap {
		brokers = append(brokers, broker)
		brokerHosts = append(brokerHosts, broker.Host)
	}

	if c.instanceLookup != nil {
		instances, err := c.instanceLookup.Instances(ctx, brokerHosts)
		if err != nil {
			log.Debugf("Could not get instance info from EC2: %+v", err)
		}

		for b := 0; b < len(brokers); b++ {
			instance, ok := instances[brokers[b].Host]
			if !ok {
				continue
			}
			brokers[b].InstanceID = instance.InstanceID
			brokers[b].InstanceType = instance.InstanceType
			brokers[b].AvailabilityZone = instance.AvailabilityZone
		}
	}

	sort.Slice(brokers, func(i, j int) bool {
		return brokers[i].ID < brokers[j].ID
	})

	return brokers, nil
}

// GetBrokerIDs returns a sorted slice of all broker IDs.
func (c *ZKAdminClient) GetBrokerIDs(ctx context.Context) ([]int, error) {
	zPath := c.zNode(brokersPath)

	brokerIDStrs, _, err := c.zkClient.Children(ctx, zPath)
	if err != nil {
		return nil, fmt.Errorf(
			"Error getting children at path %s: %w",
			zPath,
			err,
		)
	}

	brokerIDs := []int{}

	for _, idStr := range brokerIDStrs {
		id, err := strconv.ParseInt(idStr, 10, 32)
		if err != nil {
			return nil, err
		}
		brokerIDs = append(brokerIDs, int(id))
	}

	sort.Ints(brokerIDs)
	return brokerIDs, nil
}

// GetTopicNames gets all topic names from zookeeper, sorted.
func (c *ZKAdminClient) GetTopicNames(ctx context.Context) ([]string, error) {
	zPath := c.zNode(topicsPath)

	topicNames, _, err := c.zkClient.Children(ctx, zPath)
	if errors.Is(err, zk.ErrNoNode) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf(
			"Error getting children at path %s: %w",
			zPath,
			err,
		)
	}

	sort.Strings(topicNames)
	return topicNames, nil
}

// GetPartitionCounts returns the number of partitions in each of the argument topics.
func (c *ZKAdminClient) GetPartitionCounts(
	ctx context.Context,
	topics []string,
) (map[string]int, error) {
	return FetchParallel(
		ctx,
		topics,
		c.fetchConcurrency,
		func(ctx context.Context, group []string) (map[string]int, error) {
			results := map[string]int{}
			for _, topic := range group {
				topicInfo, err := c.getTopic(ctx, topic)
				if err != nil {
					return nil, err
				}
				results[topic] = len(topicInfo.Partitions)
			}
			return results, nil
		},
	)
}

// GetReplicaAssignments returns the current replica lists of every partition in the
// argument topics.
func (c *ZKAdminClient) GetReplicaAssignments(
	ctx context.Context,
	topics []string,
) (Assignment, error) {
	return FetchParallel(
		ctx,
		topics,
		c.fetchConcurrency,
		func(ctx context.Context, group []string) (map[TopicPartition][]int, error) {
			results := map[TopicPartition][]int{}
			for _, topic := range group {
				topicInfo, err := c.getTopic(ctx, topic)
				if err != nil {
					return nil, err
				}

				for partitionStr, replicas := range topicInfo.Partitions {
					partition, err := strconv.ParseInt(partitionStr, 10, 32)
					if err != nil {
						return nil, fmt.Errorf(
							"Bad partition %s in topic %s: %w",
							partitionStr,
							topic,
							err,
						)
					}
					results[TopicPartition{Topic: topic, Partition: int(partition)}] =
						util.CopyInts(replicas)
				}
			}
			return results, nil
		},
	)
}

// GetLeaderAndISR returns the leader and in-sync replicas of each argument partition.
func (c *ZKAdminClient) GetLeaderAndISR(
	ctx context.Context,
	partitions []TopicPartition,
) (map[TopicPartition]LeaderAndISR, error) {
	return FetchParallel(
		ctx,
		partitions,
		c.fetchConcurrency,
		func(
			ctx context.Context,
			group []TopicPartition,
		) (map[TopicPartition]LeaderAndISR, error) {
			results := map[TopicPartition]LeaderAndISR{}
			for _, tp := range group {
				state := LeaderAndISR{}
				_, err := c.zkClient.GetJSON(
					ctx,
					c.zNode(
						topicsPath,
						tp.Topic,
						"partitions",
						fmt.Sprintf("%d", tp.Partition),
						"state",
					),
					&state,
				)
				if errors.Is(err, zk.ErrNoNode) {
					return nil, fmt.Errorf("%w: %s", ErrPartitionDoesNotExist, tp)
				} else if err != nil {
					return nil, err
				}
				results[tp] = state
			}
			return results, nil
		},
	)
}

// GetReassignment returns the partitions currently being reassigned.
func (c *ZKAdminClient) GetReassignment(ctx context.Context) (Reassignment, error) {
	data, _, err := c.zkClient.Get(ctx, c.zNode(assignmentPath))
	if errors.Is(err, zk.ErrNoNode) {
		return NewReassignment(nil), nil
	} else if err != nil {
		return Reassignment{}, err
	}

	return ParseReassignment(data)
}

// AssignPartitions notifies the cluster to begin a partition reassignment. It fails with
// zk.ErrNodeExists if one is already in progress.
func (c *ZKAdminClient) AssignPartitions(
	ctx context.Context,
	reassignment Reassignment,
) error {
	if c.readOnly {
		return ErrReadOnly
	}

	data, err := reassignment.Marshal()
	if err != nil {
		return err
	}

	zNode := c.zNode(assignmentPath)
	log.Debugf(
		"Writing reassignment of %d partitions to zk path %s",
		len(reassignment.Partitions),
		zNode,
	)

	return c.zkClient.Create(ctx, zNode, data, false)
}

// WatchReassignment streams changes to the reassignment path. Cancelling the context
// removes the watch.
func (c *ZKAdminClient) WatchReassignment(ctx context.Context) (<-chan zk.DataEvent, error) {
	return c.zkClient.WatchData(ctx, c.zNode(assignmentPath))
}

// RunLeaderElection triggers a preferred replica election for the argument partitions.
func (c *ZKAdminClient) RunLeaderElection(
	ctx context.Context,
	partitions []TopicPartition,
) error {
	if c.readOnly {
		return ErrReadOnly
	}

	zNode := c.zNode(electionPath)
	exists, _, err := c.zkClient.Exists(ctx, zNode)
	if err != nil {
		return err
	}
	if exists {
		return ErrElectionInProgress
	}

	sorted := append([]TopicPartition{}, partitions...)
	SortTopicPartitions(sorted)

	zkElectionObj := zkElection{
		Version:    ReassignmentVersion,
		Partitions: sorted,
	}

	log.Infof(
		"Writing leader election for %d partitions to zk path %s",
		len(sorted),
		zNode,
	)

	return c.zkClient.CreateJSON(ctx, zNode, zkElectionObj, false)
}

// CreateTopic creates a new topic with the argument config. It uses
// the topic creation API exposed on the controller broker.
func (c *ZKAdminClient) CreateTopic(
	ctx context.Context,
	config kafka.TopicConfig,
) error {
	if c.readOnly {
		return ErrReadOnly
	}
	if c.connector == nil {
		return errors.New("Cannot create topic without a broker connection")
	}

	req := kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{config},
	}
	log.Debugf("Creating topic with config %+v", config)

	resp, err := c.connector.KafkaClient.CreateTopics(ctx, &req)
	if err != nil {
		return err
	}
	for topic, topicErr := range resp.Errors {
		if topicErr != nil {
			return fmt.Errorf("Error creating topic %s: %w", topic, topicErr)
		}
	}

	return nil
}

// GetConnector returns the broker Connector, or nil if the client was created without one.
func (c *ZKAdminClient) GetConnector() *Connector {
	return c.connector
}

// AcquireLock acquires and returns a lock from the underlying zookeeper client.
// The Unlock method should be called on the lock when it's safe to release.
func (c *ZKAdminClient) AcquireLock(
	ctx context.Context,
	path string,
) (zk.Lock, error) {
	return c.zkClient.AcquireLock(ctx, path)
}

// Close closes the connections in the underlying zookeeper client.
func (c *ZKAdminClient) Close() error {
	return c.zkClient.Close()
}

func (c *ZKAdminClient) getBroker(ctx context.Context, id int) (BrokerInfo, error) {
	zkBrokerInfo := zkBrokerInfo{}
	_, err := c.zkClient.GetJSON(
		ctx,
		c.zNode(brokersPath, fmt.Sprintf("%d", id)),
		&zkBrokerInfo,
	)
	if err != nil {
		return BrokerInfo{}, fmt.Errorf("Error getting broker %d: %w", id, err)
	}

	var timestamp time.Time
	if zkBrokerInfo.TimestampStr != "" {
		epochMillis, err := strconv.ParseInt(zkBrokerInfo.TimestampStr, 10, 64)
		if err != nil {
			return BrokerInfo{}, err
		}
		timestamp = time.UnixMilli(epochMillis)
	}

	return BrokerInfo{
		ID:        id,
		Endpoints: zkBrokerInfo.Endpoints,
		Host:      zkBrokerInfo.Host,
		Port:      zkBrokerInfo.Port,
		Rack:      zkBrokerInfo.Rack,
		Version:   zkBrokerInfo.Version,
		Timestamp: timestamp,
	}, nil
}

func (c *ZKAdminClient) getTopic(ctx context.Context, name string) (zkTopicInfo, error) {
	log.Debugf("Getting info for topic %s", name)

	topicInfo := zkTopicInfo{}
	_, err := c.zkClient.GetJSON(ctx, c.zNode(topicsPath, name), &topicInfo)
	if errors.Is(err, zk.ErrNoNode) {
		return topicInfo, fmt.Errorf("%w: %s", ErrTopicDoesNotExist, name)
	}
	return topicInfo, err
}

func (c *ZKAdminClient) zNode(elements ...string) string {
	return path.Join("/", c.zkPrefix, path.Join(elements...))
}
