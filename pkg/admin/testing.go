package admin

import (
	"context"
	"fmt"
	"path"
	"testing"

	"github.com/segmentio/ktl/pkg/zk"
	"github.com/stretchr/testify/require"
)

// TestCluster describes the zookeeper contents written by SeedCluster. For testing
// purposes only.
type TestCluster struct {
	ZKPrefix   string
	Brokers    []BrokerInfo
	Assignment Assignment

	// States overrides the default partition state, which has the first replica as leader
	// and every replica in sync.
	States map[TopicPartition]LeaderAndISR
}

// SeedCluster writes broker, topic, and partition state nodes the way a Kafka cluster
// lays them out in zookeeper. For testing purposes only.
func SeedCluster(t *testing.T, client zk.Client, cluster TestCluster) {
	root := path.Join("/", cluster.ZKPrefix)
	pathTuples := []zk.PathTuple{
		{
			Path: path.Join(root, clusterIDPath),
			Obj:  zkClusterID{Version: "1", ID: "test-cluster"},
		},
		{
			Path: path.Join(root, brokersPath),
		},
		{
			Path: path.Join(root, topicsPath),
		},
		{
			Path: path.Join(root, path.Dir(assignmentPath)),
		},
	}

	for _, broker := range cluster.Brokers {
		host := broker.Host
		if host == "" {
			host = fmt.Sprintf("10.0.0.%d", broker.ID)
		}
		port := broker.Port
		if port == 0 {
			port = 9092
		}

		pathTuples = append(
			pathTuples,
			zk.PathTuple{
				Path: path.Join(root, brokersPath, fmt.Sprintf("%d", broker.ID)),
				Obj: zkBrokerInfo{
					Endpoints:    []string{fmt.Sprintf("PLAINTEXT://%s:%d", host, port)},
					Host:         host,
					Port:         port,
					Rack:         broker.Rack,
					TimestampStr: "1589603217000",
					Version:      4,
				},
			},
		)
	}

	topicInfos := map[string]zkTopicInfo{}
	for _, tp := range cluster.Assignment.TopicPartitions() {
		topicInfo, ok := topicInfos[tp.Topic]
		if !ok {
			topicInfo = zkTopicInfo{Version: 1, Partitions: map[string][]int{}}
		}
		topicInfo.Partitions[fmt.Sprintf("%d", tp.Partition)] = cluster.Assignment[tp]
		topicInfos[tp.Topic] = topicInfo
	}

	for _, topic := range cluster.Assignment.Topics() {
		pathTuples = append(
			pathTuples,
			zk.PathTuple{
				Path: path.Join(root, topicsPath, topic),
				Obj:  topicInfos[topic],
			},
		)
	}

	for _, tp := range cluster.Assignment.TopicPartitions() {
		replicas := cluster.Assignment[tp]
		state, ok := cluster.States[tp]
		if !ok {
			state = LeaderAndISR{
				Leader:          replicas[0],
				ISR:             replicas,
				LeaderEpoch:     1,
				ControllerEpoch: 1,
				Version:         1,
			}
		}

		pathTuples = append(
			pathTuples,
			zk.PathTuple{
				Path: path.Join(
					root,
					topicsPath,
					tp.Topic,
					"partitions",
					fmt.Sprintf("%d", tp.Partition),
					"state",
				),
				Obj: state,
			},
		)
	}

	for _, tuple := range pathTuples {
		exists, _, err := client.Exists(context.Background(), tuple.Path)
		require.NoError(t, err)
		if !exists {
			zk.CreateNode(t, client, tuple.Path, tuple.Obj)
		}
	}
}

// TestBrokers returns brokers with IDs starting at 1, spread over the argument number of
// racks (named zone1, zone2, ...). A rack count of 0 leaves the racks unset. For testing
// purposes only.
func TestBrokers(count int, racks int) []BrokerInfo {
	brokers := []BrokerInfo{}
	for i := 0; i < count; i++ {
		broker := BrokerInfo{ID: i + 1}
		if racks > 0 {
			broker.Rack = fmt.Sprintf("zone%d", i%racks+1)
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

// NewTestClient seeds a MemoryClient with the argument cluster and returns an admin client
// on top of it. For testing purposes only.
func NewTestClient(t *testing.T, cluster TestCluster) (*ZKAdminClient, *zk.MemoryClient) {
	zkClient := zk.NewMemoryClient()
	SeedCluster(t, zkClient, cluster)

	client, err := NewZKAdminClient(
		context.Background(),
		zkClient,
		ZKAdminClientConfig{
			ZKPrefix: cluster.ZKPrefix,
		},
	)
	require.NoError(t, err)
	return client, zkClient
}
