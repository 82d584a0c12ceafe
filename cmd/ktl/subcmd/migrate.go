package subcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/ktl/pkg/plan"
	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate-broker",
	Short:   "migrate partitions from one set of brokers to another",
	Args:    cobra.NoArgs,
	PreRunE: migratePreRun,
	RunE:    migrateRun,
}

type migrateCmdConfig struct {
	from      []int
	to        []int
	rackAware bool

	reassign reassignOptions
	shared   sharedOptions
}

var migrateConfig migrateCmdConfig

func init() {
	migrateCmd.Flags().IntSliceVarP(
		&migrateConfig.from,
		"from",
		"f",
		[]int{},
		"Broker IDs to migrate away from",
	)
	migrateCmd.Flags().IntSliceVarP(
		&migrateConfig.to,
		"to",
		"t",
		[]int{},
		"Broker IDs to migrate to, matched by position with --from",
	)
	migrateCmd.Flags().BoolVarP(
		&migrateConfig.rackAware,
		"rack-aware",
		"a",
		false,
		"Require every target broker to be in the same rack as its source",
	)
	migrateCmd.MarkFlagRequired("from")
	migrateCmd.MarkFlagRequired("to")

	addReassignFlags(migrateCmd, &migrateConfig.reassign)
	addSharedFlags(migrateCmd, &migrateConfig.shared)
	RootCmd.AddCommand(migrateCmd)
}

func migratePreRun(cmd *cobra.Command, args []string) error {
	if err := migrateConfig.reassign.validate(); err != nil {
		return err
	}
	return migrateConfig.shared.validate()
}

func migrateRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := migrateConfig.shared.getSession(
		ctx,
		clientOptions{readOnly: migrateConfig.reassign.dryRun},
	)
	if err != nil {
		return err
	}
	defer session.close()

	migrationPlan, err := plan.NewMigrationPlan(
		ctx,
		session.adminClient,
		migrateConfig.from,
		migrateConfig.to,
		plan.MigrationConfig{
			RackAware: migrateConfig.rackAware,
			LogPlan:   migrateConfig.reassign.verbose || migrateConfig.reassign.dryRun,
		},
	)
	if err != nil {
		return err
	}

	reassignConfig, err := migrateConfig.reassign.reassignConfig(
		reassign.KindMigrate,
		session.clusterConfig,
	)
	if err != nil {
		return err
	}

	return session.runner.Reassign(ctx, migrationPlan, reassignConfig)
}
