package strategies

import (
	"encoding/binary"
	"sort"

	"github.com/spaolacci/murmur3"
)

// rendezvousSeed is fixed so that rankings are stable across runs and hosts.
const rendezvousSeed uint32 = 0x6b746c

// RendezvousHash scores a broker for a (topic, partition). The input is the big-endian
// partition, the topic name bytes, and the big-endian broker ID.
func RendezvousHash(topic string, partition int, brokerID int) uint32 {
	data := make([]byte, 0, 8+len(topic))
	data = binary.BigEndian.AppendUint32(data, uint32(int32(partition)))
	data = append(data, topic...)
	data = binary.BigEndian.AppendUint32(data, uint32(int32(brokerID)))

	return murmur3.Sum32WithSeed(data, rendezvousSeed)
}

// RankBrokers orders the argument broker IDs by ascending rendezvous hash for the
// (topic, partition), breaking ties by broker ID. The input slice is not modified.
func RankBrokers(topic string, partition int, brokerIDs []int) []int {
	type scored struct {
		id    int
		score uint32
	}

	scores := make([]scored, 0, len(brokerIDs))
	for _, id := range brokerIDs {
		scores = append(scores, scored{id: id, score: RendezvousHash(topic, partition, id)})
	}

	sort.Slice(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score < scores[b].score
		}
		return scores[a].id < scores[b].id
	})

	ranked := make([]int, 0, len(scores))
	for _, s := range scores {
		ranked = append(ranked, s.id)
	}
	return ranked
}

// RendezvousStrategy gives every partition the replication-factor best-ranked brokers.
// Removing a broker only moves the replicas it held, and adding one only takes replicas
// for which it ranks in the top positions.
type RendezvousStrategy struct{}

var _ PlacementStrategy = (*RendezvousStrategy)(nil)

// Name returns the strategy name.
func (s *RendezvousStrategy) Name() string {
	return RendezvousName
}

// Assign returns replica lists for every partition in the request.
func (s *RendezvousStrategy) Assign(request Request) ([][]int, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}

	brokerIDs := sortedBrokerIDs(request.Brokers)
	assignments := [][]int{}

	for partition := 0; partition < request.Partitions; partition++ {
		ranked := RankBrokers(request.Topic, partition, brokerIDs)
		assignments = append(assignments, ranked[:request.ReplicationFactor])
	}

	return assignments, nil
}
