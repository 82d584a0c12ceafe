package load

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/ktl/pkg/admin"
	log "github.com/sirupsen/logrus"
)

// MessageCounter returns the number of messages retained in each partition.
type MessageCounter interface {
	MessageCounts(
		ctx context.Context,
		partitions []admin.TopicPartition,
	) (map[admin.TopicPartition]int64, error)
}

// OffsetsClient counts messages from the earliest and latest offsets reported by the
// partition leaders.
type OffsetsClient struct {
	client      *kafka.Client
	concurrency int
}

var _ MessageCounter = (*OffsetsClient)(nil)

// NewOffsetsClient returns a new OffsetsClient instance. Topics are queried in up to
// concurrency parallel requests.
func NewOffsetsClient(client *kafka.Client, concurrency int) *OffsetsClient {
	return &OffsetsClient{
		client:      client,
		concurrency: concurrency,
	}
}

// MessageCounts returns latest minus earliest offset for each argument partition.
// Partitions whose offsets can't be read are left out.
func (o *OffsetsClient) MessageCounts(
	ctx context.Context,
	partitions []admin.TopicPartition,
) (map[admin.TopicPartition]int64, error) {
	byTopic := map[string][]int{}
	for _, tp := range partitions {
		byTopic[tp.Topic] = append(byTopic[tp.Topic], tp.Partition)
	}
	topics := make([]string, 0, len(byTopic))
	for topic := range byTopic {
		topics = append(topics, topic)
	}

	return admin.FetchParallel(
		ctx,
		topics,
		o.concurrency,
		func(ctx context.Context, group []string) (map[admin.TopicPartition]int64, error) {
			req := &kafka.ListOffsetsRequest{
				Topics: map[string][]kafka.OffsetRequest{},
			}
			for _, topic := range group {
				for _, partition := range byTopic[topic] {
					req.Topics[topic] = append(
						req.Topics[topic],
						kafka.FirstOffsetOf(partition),
						kafka.LastOffsetOf(partition),
					)
				}
			}

			resp, err := o.client.ListOffsets(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("Error listing offsets: %w", err)
			}

			return countsFromOffsets(resp.Topics), nil
		},
	)
}

func countsFromOffsets(
	topics map[string][]kafka.PartitionOffsets,
) map[admin.TopicPartition]int64 {
	counts := map[admin.TopicPartition]int64{}

	for topic, partitionOffsets := range topics {
		for _, offsets := range partitionOffsets {
			tp := admin.TopicPartition{Topic: topic, Partition: offsets.Partition}
			if offsets.Error != nil {
				log.Warnf("Could not get offsets of %s: %+v", tp, offsets.Error)
				continue
			}

			count := offsets.LastOffset - offsets.FirstOffset
			if count < 0 {
				count = 0
			}
			counts[tp] = count
		}
	}

	return counts
}
