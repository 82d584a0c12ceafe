package subcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:     "reassignment-progress",
	Short:   "show the progress of the current reassignment",
	Args:    cobra.NoArgs,
	PreRunE: progressPreRun,
	RunE:    progressRun,
}

type progressCmdConfig struct {
	kind    string
	verbose bool

	shared sharedOptions
}

var progressConfig progressCmdConfig

func init() {
	progressCmd.Flags().StringVarP(
		&progressConfig.kind,
		"kind",
		"k",
		string(reassign.KindShuffle),
		"Kind of reassignment (choices: migrate, shuffle, decommission)",
	)
	progressCmd.Flags().BoolVarP(
		&progressConfig.verbose,
		"verbose",
		"v",
		false,
		"Show the remaining and queued replica lists",
	)

	addSharedFlags(progressCmd, &progressConfig.shared)
	RootCmd.AddCommand(progressCmd)
}

func progressPreRun(cmd *cobra.Command, args []string) error {
	if _, err := reassign.ParseKind(progressConfig.kind); err != nil {
		return err
	}
	return progressConfig.shared.validate()
}

func progressRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind, err := reassign.ParseKind(progressConfig.kind)
	if err != nil {
		return err
	}

	session, err := progressConfig.shared.getSession(ctx, clientOptions{readOnly: true})
	if err != nil {
		return err
	}
	defer session.close()

	return session.runner.ReassignmentProgress(
		ctx,
		reassign.ExecutorConfig{
			Kind:      kind,
			StateRoot: session.clusterConfig.GetStateRoot(),
		},
		progressConfig.verbose,
	)
}
