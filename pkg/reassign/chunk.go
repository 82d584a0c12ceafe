package reassign

import (
	"errors"
	"fmt"
	"sort"

	"github.com/segmentio/ktl/pkg/admin"
)

// ErrChunkTooLarge is returned when a single partition's entry is larger than the
// payload limit.
var ErrChunkTooLarge = errors.New("Reassignment entry exceeds the payload limit")

// Chunk is a part of a reassignment that fits in a single store write.
type Chunk []admin.PartitionReplicas

// Marshal returns the payload written to the store for this chunk.
func (c Chunk) Marshal() ([]byte, error) {
	return admin.NewReassignment(c).Marshal()
}

// Size returns the number of bytes in the chunk's payload.
func (c Chunk) Size() (int, error) {
	data, err := c.Marshal()
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Topics returns the distinct topics in the chunk, in order of first appearance.
func (c Chunk) Topics() []string {
	seen := map[string]struct{}{}
	topics := []string{}

	for _, entry := range c {
		if _, ok := seen[entry.Topic]; ok {
			continue
		}
		seen[entry.Topic] = struct{}{}
		topics = append(topics, entry.Topic)
	}
	return topics
}

// ParseChunk decodes a chunk from a reassignment payload.
func ParseChunk(data []byte) (Chunk, error) {
	reassignment, err := admin.ParseReassignment(data)
	if err != nil {
		return nil, err
	}
	return Chunk(reassignment.Partitions), nil
}

// CountPartitions returns the number of entries over all of the argument chunks.
func CountPartitions(chunks []Chunk) int {
	count := 0
	for _, chunk := range chunks {
		count += len(chunk)
	}
	return count
}

// SplitChunks orders the argument entries by topic and partition and splits them into
// chunks of at most limit entries (no cap if limit <= 0). Chunks whose payload is larger
// than maxPayloadBytes are then halved until they fit.
func SplitChunks(
	entries []admin.PartitionReplicas,
	limit int,
	maxPayloadBytes int,
) ([]Chunk, error) {
	sorted := append([]admin.PartitionReplicas{}, entries...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].TopicPartition().Less(sorted[b].TopicPartition())
	})

	groups := []Chunk{}
	if limit <= 0 {
		limit = len(sorted)
	}
	for start := 0; start < len(sorted); start += limit {
		end := start + limit
		if end > len(sorted) {
			end = len(sorted)
		}
		groups = append(groups, Chunk(sorted[start:end]))
	}

	chunks := []Chunk{}
	for _, group := range groups {
		fitted, err := halveToFit(group, maxPayloadBytes)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, fitted...)
	}

	return chunks, nil
}

func halveToFit(chunk Chunk, maxPayloadBytes int) ([]Chunk, error) {
	size, err := chunk.Size()
	if err != nil {
		return nil, err
	}
	if maxPayloadBytes <= 0 || size <= maxPayloadBytes {
		return []Chunk{chunk}, nil
	}
	if len(chunk) == 1 {
		return nil, fmt.Errorf(
			"%w: %s is %d bytes, limit is %d",
			ErrChunkTooLarge,
			chunk[0].TopicPartition(),
			size,
			maxPayloadBytes,
		)
	}

	half := (len(chunk) + 1) / 2

	first, err := halveToFit(chunk[:half], maxPayloadBytes)
	if err != nil {
		return nil, err
	}
	second, err := halveToFit(chunk[half:], maxPayloadBytes)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}
