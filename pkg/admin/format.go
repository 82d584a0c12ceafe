package admin

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/segmentio/ktl/pkg/util"
)

// NewTable returns a left-aligned, unwrapped table with top and bottom borders only.
func NewTable(writer io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	alignments := []int{}
	for range headers {
		alignments = append(alignments, tablewriter.ALIGN_LEFT)
	}
	table.SetColumnAlignment(alignments)
	table.SetBorders(
		tablewriter.Border{
			Left:   false,
			Top:    true,
			Right:  false,
			Bottom: true,
		},
	)

	return table
}

// FormatBrokers creates a pretty table from a list of brokers.
func FormatBrokers(brokers []BrokerInfo) string {
	buf := &bytes.Buffer{}

	var hasInstances bool
	for _, broker := range brokers {
		if broker.InstanceID != "" {
			hasInstances = true
			break
		}
	}

	headers := []string{
		"ID",
		"Host",
		"Port",
	}

	if hasInstances {
		headers = append(
			headers,
			"Instance",
			"Instance\nType",
			"AZ",
		)
	}

	headers = append(
		headers,
		"Rack",
		"Timestamp",
	)

	table := NewTable(buf, headers)

	for _, broker := range brokers {
		row := []string{
			fmt.Sprintf("%d", broker.ID),
			broker.Host,
			fmt.Sprintf("%d", broker.Port),
		}

		if hasInstances {
			row = append(
				row,
				broker.InstanceID,
				broker.InstanceType,
				broker.AvailabilityZone,
			)
		}

		var timestampStr string
		if !broker.Timestamp.IsZero() {
			timestampStr = broker.Timestamp.UTC().Format(time.RFC3339)
		}

		row = append(
			row,
			broker.Rack,
			timestampStr,
		)

		table.Append(row)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatAssignmentDiffs generates a pretty table that shows the current and proposed replicas
// for every partition in desired.
func FormatAssignmentDiffs(
	current Assignment,
	desired Assignment,
	brokers []BrokerInfo,
) string {
	buf := &bytes.Buffer{}

	table := NewTable(
		buf,
		[]string{
			"Topic",
			"Partition",
			"Curr\nReplicas",
			"Proposed\nReplicas",
			"Diff?",
			"New\nLeader?",
		},
	)

	brokerRacks := BrokerRacks(brokers)
	maxWidth := maxValueToMaxWidth(maxBrokerID(brokers))

	for _, diff := range AssignmentDiffs(current, desired) {
		var diffStr string
		var newLeaderStr string

		if diff.Changed() {
			diffStr = "Y"
		}
		if len(diff.Old) > 0 &&
			len(diff.New) > 0 &&
			diff.Old[0] != diff.New[0] {
			newLeaderStr = "Y"
		}

		table.Append(
			[]string{
				diff.Topic,
				fmt.Sprintf("%d", diff.Partition),
				replicaRacksStr(diff.Old, brokerRacks, maxWidth),
				replicaRacksDiffStr(diff.Old, diff.New, brokerRacks, maxWidth),
				diffStr,
				newLeaderStr,
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatClusterStats generates a pretty table of per-broker leader and replica counts.
func FormatClusterStats(stats ClusterStats) string {
	buf := &bytes.Buffer{}

	fmt.Fprintf(
		buf,
		"%d topics, %d partitions, %d brokers\n",
		stats.Topics,
		stats.Partitions,
		len(stats.Brokers),
	)

	table := NewTable(
		buf,
		[]string{
			"Broker",
			"Rack",
			"Leaders",
			"Leader\nShare",
			"Replicas",
			"Preferred\nLeaders",
		},
	)

	for _, broker := range stats.Brokers {
		var share float64
		if stats.Partitions > 0 {
			share = 100.0 * float64(stats.Leaders[broker.ID]) / float64(stats.Partitions)
		}

		table.Append(
			[]string{
				fmt.Sprintf("%d", broker.ID),
				broker.Rack,
				fmt.Sprintf("%d", stats.Leaders[broker.ID]),
				fmt.Sprintf("%.2f%%", share),
				fmt.Sprintf("%d", stats.Replicas[broker.ID]),
				fmt.Sprintf("%d", stats.PreferredLeaders[broker.ID]),
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func replicaRacksStr(
	replicas []int,
	brokerRacks map[int]string,
	maxWidth int,
) string {
	elements := []string{}

	for _, replica := range replicas {
		elements = append(
			elements,
			fmt.Sprintf("%*d (%s)", maxWidth, replica, brokerRacks[replica]),
		)
	}

	return strings.Join(elements, ", ")
}

func replicaRacksDiffStr(
	old []int,
	new []int,
	brokerRacks map[int]string,
	maxWidth int,
) string {
	if len(new) == 0 {
		return ""
	}

	if !util.InTerminal() {
		return replicaRacksStr(new, brokerRacks, maxWidth)
	}

	elements := []string{}

	added := color.New(color.FgRed).SprintfFunc()
	moved := color.New(color.FgCyan).SprintfFunc()

	for r, replica := range new {
		var element string

		if r < len(old) && replica == old[r] {
			element = fmt.Sprintf("%*d (%s)", maxWidth, replica, brokerRacks[replica])
		} else if util.ContainsInt(old, replica) {
			element = moved("%*d (%s)", maxWidth, replica, brokerRacks[replica])
		} else {
			element = added("%*d (%s)", maxWidth, replica, brokerRacks[replica])
		}

		elements = append(elements, element)
	}

	return strings.Join(elements, ", ")
}

func maxBrokerID(brokers []BrokerInfo) int {
	maxID := 0
	for _, broker := range brokers {
		if broker.ID > maxID {
			maxID = broker.ID
		}
	}
	return maxID
}

func maxValueToMaxWidth(maxValue int) int {
	return len(fmt.Sprintf("%d", maxValue))
}
