package subcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/ktl/pkg/load"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:     "calculate-load [REGEXP]",
	Short:   "project the load of each broker under every placement strategy",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: loadPreRun,
	RunE:    loadRun,
}

type loadCmdConfig struct {
	noOffsets         bool
	replicationFactor int
	scaleDown         bool
	strategies        []string

	shared sharedOptions
}

var loadConfig loadCmdConfig

func init() {
	loadCmd.Flags().BoolVar(
		&loadConfig.noOffsets,
		"no-offsets",
		false,
		"Skip reading offsets from the brokers; message loads are reported as zero",
	)
	loadCmd.Flags().IntVarP(
		&loadConfig.replicationFactor,
		"replication-factor",
		"r",
		0,
		"Replication factor to use; each topic's current one if unset",
	)
	loadCmd.Flags().BoolVar(
		&loadConfig.scaleDown,
		"scale-down",
		false,
		"Add a projection without the highest broker of each rack",
	)
	loadCmd.Flags().StringSliceVar(
		&loadConfig.strategies,
		"strategies",
		load.DefaultStrategies,
		"Strategies to project",
	)

	addSharedFlags(loadCmd, &loadConfig.shared)
	RootCmd.AddCommand(loadCmd)
}

func loadPreRun(cmd *cobra.Command, args []string) error {
	return loadConfig.shared.validate()
}

func loadRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filter := ".*"
	if len(args) > 0 {
		filter = args[0]
	}

	session, err := loadConfig.shared.getSession(
		ctx,
		clientOptions{
			readOnly:       true,
			connectBrokers: !loadConfig.noOffsets,
		},
	)
	if err != nil {
		return err
	}
	defer session.close()

	return session.runner.CalculateLoad(
		ctx,
		load.CalculatorConfig{
			Filter:            filter,
			Strategies:        loadConfig.strategies,
			ReplicationFactor: loadConfig.replicationFactor,
			ScaleDown:         loadConfig.scaleDown,
		},
	)
}
