package subcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/ktl/pkg/plan"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/spf13/cobra"
)

var shuffleCmd = &cobra.Command{
	Use:     "shuffle [REGEXP]",
	Short:   "shuffle leaders and replicas of partitions",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: shufflePreRun,
	RunE:    shuffleRun,
}

type shuffleCmdConfig struct {
	blacklist         []int
	boundedLoad       bool
	brokers           []int
	minimalMovement   bool
	rackAware         bool
	rendezvous        bool
	replicationFactor int

	reassign reassignOptions
	shared   sharedOptions
}

var shuffleConfig shuffleCmdConfig

func init() {
	shuffleCmd.Flags().IntSliceVar(
		&shuffleConfig.blacklist,
		"blacklist",
		[]int{},
		"Broker IDs to exclude",
	)
	shuffleCmd.Flags().BoolVar(
		&shuffleConfig.boundedLoad,
		"bounded-load",
		false,
		"Use bounded-load rendezvous hashing (not supported yet)",
	)
	shuffleCmd.Flags().IntSliceVar(
		&shuffleConfig.brokers,
		"brokers",
		[]int{},
		"Broker IDs to place replicas on; all brokers if unset",
	)
	shuffleCmd.Flags().BoolVarP(
		&shuffleConfig.minimalMovement,
		"minimal-movement",
		"m",
		false,
		"Use the minimal-movement, rack-aware strategy",
	)
	shuffleCmd.Flags().BoolVarP(
		&shuffleConfig.rackAware,
		"rack-aware",
		"a",
		false,
		"Use the rack-aware rendezvous hashing strategy",
	)
	shuffleCmd.Flags().BoolVarP(
		&shuffleConfig.rendezvous,
		"rendezvous",
		"R",
		false,
		"Use the rendezvous hashing strategy",
	)
	shuffleCmd.Flags().IntVarP(
		&shuffleConfig.replicationFactor,
		"replication-factor",
		"r",
		0,
		"Replication factor to use; each topic's current one if unset",
	)

	addReassignFlags(shuffleCmd, &shuffleConfig.reassign)
	addSharedFlags(shuffleCmd, &shuffleConfig.shared)
	RootCmd.AddCommand(shuffleCmd)
}

func shufflePreRun(cmd *cobra.Command, args []string) error {
	if err := shuffleConfig.reassign.validate(); err != nil {
		return err
	}
	if _, err := shuffleStrategy(); err != nil {
		return err
	}
	return shuffleConfig.shared.validate()
}

// shuffleStrategy maps the strategy flags to a strategy. The most specific flag wins.
func shuffleStrategy() (strategies.PlacementStrategy, error) {
	switch {
	case shuffleConfig.minimalMovement:
		return strategies.FromName(strategies.MinimalMovementName)
	case shuffleConfig.rackAware:
		return strategies.FromName(strategies.RackAwareName)
	case shuffleConfig.boundedLoad:
		return strategies.FromName(strategies.BoundedLoadName)
	case shuffleConfig.rendezvous:
		return strategies.FromName(strategies.RendezvousName)
	default:
		return strategies.FromName(strategies.DefaultName)
	}
}

func shuffleRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filter := ".*"
	if len(args) > 0 {
		filter = args[0]
	}

	strategy, err := shuffleStrategy()
	if err != nil {
		return err
	}

	session, err := shuffleConfig.shared.getSession(
		ctx,
		clientOptions{readOnly: shuffleConfig.reassign.dryRun},
	)
	if err != nil {
		return err
	}
	defer session.close()

	shufflePlan, err := plan.NewShufflePlan(
		session.adminClient,
		strategy,
		plan.ShuffleConfig{
			Filter:            filter,
			Brokers:           shuffleConfig.brokers,
			Blacklist:         shuffleConfig.blacklist,
			ReplicationFactor: shuffleConfig.replicationFactor,
			LogPlan:           shuffleConfig.reassign.verbose || shuffleConfig.reassign.dryRun,
		},
	)
	if err != nil {
		return err
	}

	reassignConfig, err := shuffleConfig.reassign.reassignConfig(
		reassign.KindShuffle,
		session.clusterConfig,
	)
	if err != nil {
		return err
	}

	return session.runner.Reassign(ctx, shufflePlan, reassignConfig)
}
