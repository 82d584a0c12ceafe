package subcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/ktl/pkg/plan"
	"github.com/segmentio/ktl/pkg/plan/strategies"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create-topic [NAME]",
	Short:   "create a topic with an explicit replica placement",
	Args:    cobra.ExactArgs(1),
	PreRunE: createPreRun,
	RunE:    createRun,
}

type createCmdConfig struct {
	brokers           []int
	configEntries     []string
	dryRun            bool
	partitions        int
	replicationFactor int
	strategy          string
	yes               bool

	shared sharedOptions
}

var createConfig createCmdConfig

func init() {
	createCmd.Flags().IntSliceVar(
		&createConfig.brokers,
		"brokers",
		[]int{},
		"Broker IDs to place replicas on; all brokers if unset",
	)
	createCmd.Flags().StringSliceVarP(
		&createConfig.configEntries,
		"config",
		"c",
		[]string{},
		"Topic config entries, in key=value form",
	)
	createCmd.Flags().BoolVarP(
		&createConfig.dryRun,
		"dry-run",
		"d",
		false,
		"Show the placement without creating the topic",
	)
	createCmd.Flags().IntVarP(
		&createConfig.partitions,
		"partitions",
		"p",
		1,
		"Number of partitions",
	)
	createCmd.Flags().IntVarP(
		&createConfig.replicationFactor,
		"replication-factor",
		"r",
		3,
		"Replication factor",
	)
	createCmd.Flags().StringVarP(
		&createConfig.strategy,
		"strategy",
		"s",
		strategies.RackAwareName,
		"Placement strategy (choices: default, rendezvous, rack-aware, minimal-movement)",
	)
	createCmd.Flags().BoolVar(
		&createConfig.yes,
		"yes",
		false,
		"Create the topic without asking",
	)

	addSharedFlags(createCmd, &createConfig.shared)
	RootCmd.AddCommand(createCmd)
}

func createPreRun(cmd *cobra.Command, args []string) error {
	var err error

	if createConfig.partitions < 1 {
		err = multierror.Append(err, errors.New("Partitions must be positive"))
	}
	if createConfig.replicationFactor < 1 {
		err = multierror.Append(err, errors.New("Replication factor must be positive"))
	}
	if _, strategyErr := strategies.FromName(createConfig.strategy); strategyErr != nil {
		err = multierror.Append(err, strategyErr)
	}
	if _, entriesErr := parseConfigEntries(createConfig.configEntries); entriesErr != nil {
		err = multierror.Append(err, entriesErr)
	}
	if sharedErr := createConfig.shared.validate(); sharedErr != nil {
		err = multierror.Append(err, sharedErr)
	}

	return err
}

func parseConfigEntries(entries []string) (map[string]string, error) {
	configEntries := map[string]string{}
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("Config entry %q is not in key=value form", entry)
		}
		configEntries[key] = value
	}
	return configEntries, nil
}

func createRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strategy, err := strategies.FromName(createConfig.strategy)
	if err != nil {
		return err
	}
	configEntries, err := parseConfigEntries(createConfig.configEntries)
	if err != nil {
		return err
	}

	session, err := createConfig.shared.getSession(
		ctx,
		clientOptions{
			readOnly:       createConfig.dryRun,
			connectBrokers: !createConfig.dryRun,
		},
	)
	if err != nil {
		return err
	}
	defer session.close()

	topicPlan, err := plan.NewTopicPlan(
		session.adminClient,
		strategy,
		plan.TopicConfig{
			Topic:             args[0],
			Partitions:        createConfig.partitions,
			ReplicationFactor: createConfig.replicationFactor,
			Brokers:           createConfig.brokers,
			ConfigEntries:     configEntries,
		},
	)
	if err != nil {
		return err
	}

	return session.runner.CreateTopic(ctx, topicPlan, createConfig.dryRun, createConfig.yes)
}
