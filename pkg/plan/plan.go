package plan

import (
	"context"
	"regexp"

	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/util"
	log "github.com/sirupsen/logrus"
)

// Planner computes the desired replica lists for the partitions it wants to move.
type Planner interface {
	Generate(ctx context.Context) (admin.Assignment, error)
}

var (
	_ Planner = (*ShufflePlan)(nil)
	_ Planner = (*MigrationPlan)(nil)
	_ Planner = (*DecommissionPlan)(nil)
)

func filterTopics(topics []string, filter *regexp.Regexp) []string {
	if filter == nil {
		return topics
	}

	filtered := []string{}
	for _, topic := range topics {
		if filter.MatchString(topic) {
			filtered = append(filtered, topic)
		}
	}
	return filtered
}

func logPlanEntry(tp admin.TopicPartition, current []int, desired []int) {
	if util.SameElements(current, desired) {
		log.Debugf("Reordering %s from %+v to %+v", tp, current, desired)
	} else {
		log.Debugf("Moving %s from %+v to %+v", tp, current, desired)
	}
}
