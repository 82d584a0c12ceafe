package strategies

// DefaultStrategy places replicas the way Kafka does when a topic is created without
// an explicit assignment: leaders round-robin over the sorted brokers and followers are
// shifted from the leader by an offset that grows every broker-count partitions. The
// start index is rotated by the topic's position instead of being random, so the plan is
// stateless and repeatable.
type DefaultStrategy struct{}

var _ PlacementStrategy = (*DefaultStrategy)(nil)

// Name returns the strategy name.
func (s *DefaultStrategy) Name() string {
	return DefaultName
}

// Assign returns replica lists for every partition in the request.
func (s *DefaultStrategy) Assign(request Request) ([][]int, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}

	brokerIDs := sortedBrokerIDs(request.Brokers)
	numBrokers := len(brokerIDs)
	startIndex := request.TopicIndex % numBrokers
	replicaShift := startIndex

	assignments := [][]int{}

	for partition := 0; partition < request.Partitions; partition++ {
		if partition > 0 && partition%numBrokers == 0 {
			replicaShift++
		}

		firstIndex := (partition + startIndex) % numBrokers
		replicas := []int{brokerIDs[firstIndex]}

		for j := 0; j < request.ReplicationFactor-1; j++ {
			replicas = append(
				replicas,
				brokerIDs[followerIndex(firstIndex, replicaShift, j, numBrokers)],
			)
		}

		assignments = append(assignments, replicas)
	}

	return assignments, nil
}

func followerIndex(firstIndex int, shift int, replica int, numBrokers int) int {
	offset := 1 + (shift+replica)%(numBrokers-1)
	return (firstIndex + offset) % numBrokers
}
