package load

import (
	"bytes"
	"fmt"

	"github.com/fatih/color"
	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
)

// FormatProjections generates one section per projection: a summary line of what moves,
// followed by per-broker and per-rack load tables.
func FormatProjections(projections []Projection) string {
	buf := &bytes.Buffer{}

	for p, projection := range projections {
		if p > 0 {
			fmt.Fprintln(buf)
		}
		fmt.Fprintf(buf, "%s\n", color.New(color.Bold).Sprint(projection.Name))

		if projection.Name != CurrentName {
			fmt.Fprintf(
				buf,
				"moves %d partitions, %d replicas, %s messages\n",
				projection.MovedPartitions,
				projection.MovedReplicas,
				util.PrettyCount(projection.MovedMessages),
			)
		}
		fmt.Fprintf(
			buf,
			"replica spread %d, leader spread %d, rack isolated: %v\n",
			projection.ReplicaSpread,
			projection.LeaderSpread,
			projection.RackIsolated,
		)

		brokerTable := admin.NewTable(
			buf,
			[]string{
				"Broker",
				"Rack",
				"Leaders",
				"Replicas",
				"Leader\nMessages",
				"Replica\nMessages",
			},
		)
		for _, broker := range projection.Brokers {
			brokerTable.Append(
				[]string{
					fmt.Sprintf("%d", broker.BrokerID),
					broker.Rack,
					fmt.Sprintf("%d", broker.Leaders),
					fmt.Sprintf("%d", broker.Replicas),
					util.PrettyCount(broker.LeaderMessages),
					util.PrettyCount(broker.ReplicaMessages),
				},
			)
		}
		brokerTable.Render()

		if len(projection.Racks) < 2 {
			continue
		}

		rackTable := admin.NewTable(
			buf,
			[]string{
				"Rack",
				"Leaders",
				"Replicas",
				"Leader\nMessages",
				"Replica\nMessages",
			},
		)
		for _, rack := range projection.Racks {
			rackTable.Append(
				[]string{
					rack.Rack,
					fmt.Sprintf("%d", rack.Leaders),
					fmt.Sprintf("%d", rack.Replicas),
					util.PrettyCount(rack.LeaderMessages),
					util.PrettyCount(rack.ReplicaMessages),
				},
			)
		}
		rackTable.Render()
	}

	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
