package strategies

// RackAwareStrategy places each replica of a partition in a different rack. Racks are
// visited in sorted order rotated by the partition index, which spreads leaders over
// racks, and the broker picked in each rack is the best rendezvous-ranked one.
type RackAwareStrategy struct{}

var _ PlacementStrategy = (*RackAwareStrategy)(nil)

// Name returns the strategy name.
func (s *RackAwareStrategy) Name() string {
	return RackAwareName
}

// Assign returns replica lists for every partition in the request.
func (s *RackAwareStrategy) Assign(request Request) ([][]int, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}

	brokersPerRack, racks, err := racksOf(request.Brokers)
	if err != nil {
		return nil, err
	}
	if request.ReplicationFactor > len(racks) {
		return nil, &NotEnoughRacksError{
			Topic:             request.Topic,
			ReplicationFactor: request.ReplicationFactor,
			Racks:             len(racks),
		}
	}

	assignments := [][]int{}

	for partition := 0; partition < request.Partitions; partition++ {
		replicas := []int{}

		for _, rack := range rotate(racks, partition)[:request.ReplicationFactor] {
			ranked := RankBrokers(request.Topic, partition, brokersPerRack[rack])
			replicas = append(replicas, ranked[0])
		}

		assignments = append(assignments, replicas)
	}

	return assignments, nil
}
