package subcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/segmentio/ktl/pkg/plan"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/spf13/cobra"
)

var decommissionCmd = &cobra.Command{
	Use:     "decommission-broker [BROKER_ID]",
	Short:   "move every replica off a broker",
	Args:    cobra.ExactArgs(1),
	PreRunE: decommissionPreRun,
	RunE:    decommissionRun,
}

type decommissionCmdConfig struct {
	rendezvous bool

	reassign reassignOptions
	shared   sharedOptions
}

var decommissionConfig decommissionCmdConfig

func init() {
	decommissionCmd.Flags().BoolVarP(
		&decommissionConfig.rendezvous,
		"rendezvous",
		"R",
		false,
		"Re-place every partition with rendezvous hashing over the remaining brokers",
	)

	addReassignFlags(decommissionCmd, &decommissionConfig.reassign)
	addSharedFlags(decommissionCmd, &decommissionConfig.shared)
	RootCmd.AddCommand(decommissionCmd)
}

func decommissionPreRun(cmd *cobra.Command, args []string) error {
	if _, err := parseBrokerID(args[0]); err != nil {
		return err
	}
	if err := decommissionConfig.reassign.validate(); err != nil {
		return err
	}
	return decommissionConfig.shared.validate()
}

func parseBrokerID(arg string) (int, error) {
	brokerID, err := strconv.Atoi(arg)
	if err != nil || brokerID < 0 {
		return 0, fmt.Errorf("Invalid broker ID %q", arg)
	}
	return brokerID, nil
}

func decommissionRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	brokerID, err := parseBrokerID(args[0])
	if err != nil {
		return err
	}

	session, err := decommissionConfig.shared.getSession(
		ctx,
		clientOptions{readOnly: decommissionConfig.reassign.dryRun},
	)
	if err != nil {
		return err
	}
	defer session.close()

	logPlan := decommissionConfig.reassign.verbose || decommissionConfig.reassign.dryRun

	var planner plan.Planner
	if decommissionConfig.rendezvous {
		planner, err = plan.NewShufflePlan(
			session.adminClient,
			&strategies.RendezvousStrategy{},
			plan.ShuffleConfig{
				Blacklist: []int{brokerID},
				LogPlan:   logPlan,
			},
		)
		if err != nil {
			return err
		}
	} else {
		planner = plan.NewDecommissionPlan(
			session.adminClient,
			brokerID,
			plan.DecommissionConfig{LogPlan: logPlan},
		)
	}

	reassignConfig, err := decommissionConfig.reassign.reassignConfig(
		reassign.KindDecommission,
		session.clusterConfig,
	)
	if err != nil {
		return err
	}

	return session.runner.Reassign(ctx, planner, reassignConfig)
}
