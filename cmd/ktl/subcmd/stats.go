package subcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "show leader and replica counts per broker",
	Args:    cobra.NoArgs,
	PreRunE: statsPreRun,
	RunE:    statsRun,
}

type statsCmdConfig struct {
	shared sharedOptions
}

var statsConfig statsCmdConfig

func init() {
	addSharedFlags(statsCmd, &statsConfig.shared)
	RootCmd.AddCommand(statsCmd)
}

func statsPreRun(cmd *cobra.Command, args []string) error {
	return statsConfig.shared.validate()
}

func statsRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := statsConfig.shared.getSession(ctx, clientOptions{readOnly: true})
	if err != nil {
		return err
	}
	defer session.close()

	return session.runner.GetStats(ctx)
}
