package subcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var preferredCmd = &cobra.Command{
	Use:     "preferred-replica [REGEXP]",
	Short:   "perform preferred replica leader elections",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: preferredPreRun,
	RunE:    preferredRun,
}

type preferredCmdConfig struct {
	shared sharedOptions
}

var preferredConfig preferredCmdConfig

func init() {
	addSharedFlags(preferredCmd, &preferredConfig.shared)
	RootCmd.AddCommand(preferredCmd)
}

func preferredPreRun(cmd *cobra.Command, args []string) error {
	return preferredConfig.shared.validate()
}

func preferredRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filter := ".*"
	if len(args) > 0 {
		filter = args[0]
	}

	session, err := preferredConfig.shared.getSession(ctx, clientOptions{})
	if err != nil {
		return err
	}
	defer session.close()

	return session.runner.PreferredReplica(ctx, filter)
}
