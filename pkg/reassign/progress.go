package reassign

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
)

// ProgressReport summarizes a reassignment of one kind.
type ProgressReport struct {
	Kind Kind

	// Remaining are the partitions still listed on the reassignment path.
	Remaining []admin.PartitionReplicas

	// OriginalSize is the number of partitions in the chunk that was submitted.
	OriginalSize int

	// Queued are the chunks waiting in the overflow.
	Queued []Chunk
}

// InProgress returns whether any partitions are still being reassigned.
func (r ProgressReport) InProgress() bool {
	return len(r.Remaining) > 0
}

// DonePercent returns the share of the submitted chunk that has been reassigned.
func (r ProgressReport) DonePercent() float64 {
	base := r.OriginalSize
	if base < len(r.Remaining) {
		base = len(r.Remaining)
	}
	if base == 0 {
		return 0
	}
	return float64(base-len(r.Remaining)) / float64(base) * 100
}

// ProgressReporter reads the state of a reassignment kind.
type ProgressReporter struct {
	adminClient admin.Client
	executor    *Executor
}

// NewProgressReporter returns a new ProgressReporter instance.
func NewProgressReporter(adminClient admin.Client, executor *Executor) *ProgressReporter {
	return &ProgressReporter{
		adminClient: adminClient,
		executor:    executor,
	}
}

// Report reads the reassignment path along with the progress and overflow of the
// reporter's kind.
func (p *ProgressReporter) Report(ctx context.Context) (ProgressReport, error) {
	report := ProgressReport{
		Kind:      p.executor.Kind(),
		Remaining: []admin.PartitionReplicas{},
		Queued:    []Chunk{},
	}

	reassignment, err := p.adminClient.GetReassignment(ctx)
	if err != nil {
		return report, err
	}
	report.Remaining = reassignment.Partitions

	progress, err := p.executor.LoadProgress(ctx)
	if err != nil {
		return report, err
	}
	if len(progress) > 0 {
		report.OriginalSize = len(progress[0])
	}

	report.Queued, err = p.executor.LoadOverflow(ctx)
	if err != nil {
		return report, err
	}

	return report, nil
}

// FormatProgress returns the lines shown to the user for the argument report. Verbose
// output adds tables of the remaining and queued replica lists.
func FormatProgress(report ProgressReport, verbose bool) string {
	buf := &bytes.Buffer{}

	if report.InProgress() {
		fmt.Fprintf(
			buf,
			"remaining partitions to reassign: %d (%.2f%% done)\n",
			len(report.Remaining),
			report.DonePercent(),
		)
		if verbose {
			buf.WriteString(FormatAssignmentsTable(report.Remaining))
		}
	} else {
		buf.WriteString("no partitions remaining to reassign\n")
	}

	if len(report.Queued) > 0 {
		fmt.Fprintf(buf, "there are %d queued reassignments\n", len(report.Queued))
		if verbose {
			for _, chunk := range report.Queued {
				buf.WriteString(FormatAssignmentsTable(chunk))
			}
		}
	}

	return buf.String()
}

// FormatAssignmentsTable returns a table with one row per topic listing the target
// replicas of each of its partitions.
func FormatAssignmentsTable(entries []admin.PartitionReplicas) string {
	buf := &bytes.Buffer{}
	table := admin.NewTable(buf, []string{"topic", "assignments"})

	byTopic := map[string][]admin.PartitionReplicas{}
	for _, entry := range entries {
		byTopic[entry.Topic] = append(byTopic[entry.Topic], entry)
	}

	for _, topic := range util.SortedStrings(byTopic) {
		topicEntries := byTopic[topic]
		sort.Slice(topicEntries, func(a, b int) bool {
			return topicEntries[a].Partition < topicEntries[b].Partition
		})

		assignments := []string{}
		for _, entry := range topicEntries {
			assignments = append(
				assignments,
				fmt.Sprintf("%d => [%s]", entry.Partition, joinInts(entry.Replicas)),
			)
		}
		table.Append([]string{topic, strings.Join(assignments, ", ")})
	}

	table.Render()
	return buf.String()
}
