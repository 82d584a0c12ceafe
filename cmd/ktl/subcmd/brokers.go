package subcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var brokersCmd = &cobra.Command{
	Use:     "brokers",
	Short:   "list the brokers of the cluster",
	Args:    cobra.NoArgs,
	PreRunE: brokersPreRun,
	RunE:    brokersRun,
}

type brokersCmdConfig struct {
	instances bool

	shared sharedOptions
}

var brokersConfig brokersCmdConfig

func init() {
	brokersCmd.Flags().BoolVar(
		&brokersConfig.instances,
		"instances",
		false,
		"Look up the EC2 instance of every broker",
	)

	addSharedFlags(brokersCmd, &brokersConfig.shared)
	RootCmd.AddCommand(brokersCmd)
}

func brokersPreRun(cmd *cobra.Command, args []string) error {
	return brokersConfig.shared.validate()
}

func brokersRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := brokersConfig.shared.getSession(
		ctx,
		clientOptions{
			readOnly:        true,
			lookupInstances: brokersConfig.instances,
		},
	)
	if err != nil {
		return err
	}
	defer session.close()

	return session.runner.GetBrokers(ctx)
}
