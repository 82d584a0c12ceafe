package subcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/cli"
	"github.com/segmentio/ktl/pkg/config"
	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/segmentio/ktl/pkg/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type sharedOptions struct {
	brokerAddr            string
	clusterConfig         string
	expandEnv             bool
	saslMechanism         string
	saslPassword          string
	saslUsername          string
	saslSecretsManagerArn string
	stateRoot             string
	tlsCACert             string
	tlsCert               string
	tlsEnabled            bool
	tlsKey                string
	tlsSkipVerify         bool
	tlsServerName         string
	zkAddr                string
	zkLockPath            string
	zkPrefix              string
}

func (s sharedOptions) validate() error {
	var err error

	if s.clusterConfig == "" && s.zkAddr == "" {
		err = multierror.Append(
			err,
			errors.New("Must set either cluster-config or zk-addr"),
		)
	}

	if s.clusterConfig != "" {
		clusterConfig, clusterConfigErr := config.LoadClusterFile(s.clusterConfig, s.expandEnv)
		if clusterConfigErr != nil {
			err = multierror.Append(
				err,
				clusterConfigErr,
			)
		} else {
			clusterConfigValidateErr := clusterConfig.Validate()

			if clusterConfigValidateErr != nil {
				err = multierror.Append(
					err,
					clusterConfigValidateErr,
				)
			}
		}
	}

	if s.clusterConfig != "" &&
		(s.zkAddr != "" || s.zkPrefix != "" || s.brokerAddr != "" || s.stateRoot != "" ||
			s.zkLockPath != "") {
		log.Warn("Broker and zk flags are ignored when using cluster-config")
	}

	useTLS := s.tlsEnabled || s.tlsCACert != "" || s.tlsCert != "" || s.tlsKey != ""
	if useTLS && (s.tlsCert == "") != (s.tlsKey == "") {
		err = multierror.Append(
			err,
			errors.New("Must set both tls-cert and tls-key if using a client cert"),
		)
	}

	useSASL := s.saslMechanism != "" || s.saslPassword != "" || s.saslUsername != "" ||
		s.saslSecretsManagerArn != ""
	if useSASL {
		saslMechanism, saslErr := admin.SASLNameToMechanism(s.saslMechanism)
		if saslErr != nil {
			err = multierror.Append(err, saslErr)
		}

		if saslMechanism == admin.SASLMechanismAWSMSKIAM &&
			(s.saslUsername != "" || s.saslPassword != "") {
			log.Warn("Username and password are ignored if using SASL AWS-MSK-IAM")
		}

		if (s.saslUsername != "" || s.saslPassword != "") && s.saslSecretsManagerArn != "" {
			err = multierror.Append(
				err,
				errors.New(
					"Cannot set both sasl-username or sasl-password and sasl-secrets-manager-arn",
				),
			)
		}
	}

	return err
}

func (s sharedOptions) getClusterConfig() (config.ClusterConfig, error) {
	if s.clusterConfig != "" {
		return config.LoadClusterFile(s.clusterConfig, s.expandEnv)
	}

	clusterConfig := config.ClusterConfig{
		Spec: config.ClusterSpec{
			ZKAddrs:    []string{s.zkAddr},
			ZKPrefix:   s.zkPrefix,
			ZKLockPath: s.zkLockPath,
			StateRoot:  s.stateRoot,
		},
	}
	if s.brokerAddr != "" {
		clusterConfig.Spec.BootstrapAddrs = []string{s.brokerAddr}
	}
	return clusterConfig, nil
}

func (s sharedOptions) getConnectorConfig() (admin.ConnectorConfig, error) {
	connectorConfig := admin.ConnectorConfig{
		TLS: admin.TLSConfig{
			Enabled: s.tlsEnabled ||
				s.tlsCACert != "" ||
				s.tlsCert != "" ||
				s.tlsKey != "",
			CACertPath: s.tlsCACert,
			CertPath:   s.tlsCert,
			KeyPath:    s.tlsKey,
			ServerName: s.tlsServerName,
			SkipVerify: s.tlsSkipVerify,
		},
		SASL: admin.SASLConfig{
			Enabled: s.saslMechanism != "" ||
				s.saslPassword != "" ||
				s.saslUsername != "",
			Password:          s.saslPassword,
			Username:          s.saslUsername,
			SecretsManagerArn: s.saslSecretsManagerArn,
		},
	}

	if s.saslMechanism != "" {
		saslMechanism, err := admin.SASLNameToMechanism(s.saslMechanism)
		if err != nil {
			return connectorConfig, err
		}
		connectorConfig.SASL.Mechanism = saslMechanism
	}

	return connectorConfig, nil
}

type clientOptions struct {
	readOnly        bool
	connectBrokers  bool
	lookupInstances bool
}

// clusterSession holds the clients of one command run.
type clusterSession struct {
	clusterConfig config.ClusterConfig
	adminClient   admin.Client
	runner        *cli.CLIRunner
}

func (c clusterSession) close() {
	if err := c.adminClient.Close(); err != nil {
		log.Warnf("Error closing admin client: %+v", err)
	}
}

func (s sharedOptions) getSession(
	ctx context.Context,
	opts clientOptions,
) (clusterSession, error) {
	clusterConfig, err := s.getClusterConfig()
	if err != nil {
		return clusterSession{}, err
	}

	adminClientOpts := config.AdminClientOpts{
		ReadOnly:       opts.readOnly,
		ConnectBrokers: opts.connectBrokers,
	}
	if opts.connectBrokers {
		adminClientOpts.Connector, err = s.getConnectorConfig()
		if err != nil {
			return clusterSession{}, err
		}
	}
	if opts.lookupInstances {
		adminClientOpts.InstanceLookup, err = admin.NewInstanceLookup(ctx)
		if err != nil {
			log.Warnf("Could not set up EC2 instance lookup, skipping: %+v", err)
		}
	}

	zkClient, err := clusterConfig.NewZKClient(opts.readOnly)
	if err != nil {
		return clusterSession{}, err
	}

	adminClient, err := clusterConfig.NewAdminClient(ctx, zkClient, adminClientOpts)
	if err != nil {
		zkClient.Close()
		return clusterSession{}, err
	}

	return clusterSession{
		clusterConfig: clusterConfig,
		adminClient:   adminClient,
		runner: cli.NewCLIRunner(
			adminClient,
			zkClient,
			printer,
			!noSpinner && util.InTerminal(),
		),
	}, nil
}

func printer(f string, a ...interface{}) {
	fmt.Printf(f, a...)
	fmt.Println("")
}

func addSharedFlags(cmd *cobra.Command, options *sharedOptions) {
	cmd.Flags().StringVarP(
		&options.brokerAddr,
		"broker-addr",
		"b",
		"",
		"Broker address; the lowest registered broker is used if unset",
	)
	cmd.Flags().BoolVarP(
		&options.expandEnv,
		"expand-env",
		"",
		false,
		"Expand environment in cluster config",
	)
	cmd.Flags().StringVar(
		&options.clusterConfig,
		"cluster-config",
		os.Getenv("KTL_CLUSTER_CONFIG"),
		"Cluster config",
	)
	cmd.Flags().StringVar(
		&options.saslMechanism,
		"sasl-mechanism",
		"",
		"SASL mechanism if using SASL (choices: AWS-MSK-IAM, PLAIN, SCRAM-SHA-256, or SCRAM-SHA-512)",
	)
	cmd.Flags().StringVar(
		&options.saslPassword,
		"sasl-password",
		os.Getenv("KTL_SASL_PASSWORD"),
		"SASL password if using SASL",
	)
	cmd.Flags().StringVar(
		&options.saslUsername,
		"sasl-username",
		os.Getenv("KTL_SASL_USERNAME"),
		"SASL username if using SASL",
	)
	cmd.Flags().StringVar(
		&options.saslSecretsManagerArn,
		"sasl-secrets-manager-arn",
		"",
		"Secrets manager ARN of the SASL username and password",
	)
	cmd.Flags().StringVar(
		&options.stateRoot,
		"state-root",
		"",
		fmt.Sprintf(
			"zk path of reassignment progress and overflow, under zk-prefix (default %s)",
			reassign.DefaultStateRoot,
		),
	)
	cmd.Flags().StringVar(
		&options.tlsCACert,
		"tls-ca-cert",
		"",
		"Path to client CA cert PEM file if using TLS",
	)
	cmd.Flags().StringVar(
		&options.tlsCert,
		"tls-cert",
		"",
		"Path to client cert PEM file if using TLS",
	)
	cmd.Flags().BoolVar(
		&options.tlsEnabled,
		"tls-enabled",
		false,
		"Use TLS for communication with brokers",
	)
	cmd.Flags().StringVar(
		&options.tlsKey,
		"tls-key",
		"",
		"Path to client private key PEM file if using TLS",
	)
	cmd.Flags().StringVar(
		&options.tlsServerName,
		"tls-server-name",
		"",
		"Server name to use for TLS cert verification",
	)
	cmd.Flags().BoolVar(
		&options.tlsSkipVerify,
		"tls-skip-verify",
		false,
		"Skip hostname verification when using TLS",
	)
	cmd.Flags().StringVarP(
		&options.zkAddr,
		"zk-addr",
		"z",
		"",
		"ZooKeeper address",
	)
	cmd.Flags().StringVar(
		&options.zkLockPath,
		"zk-lock-path",
		"",
		"zk path under which submissions are locked; no locking if unset",
	)
	cmd.Flags().StringVar(
		&options.zkPrefix,
		"zk-prefix",
		"",
		"Prefix for cluster-related nodes in zk",
	)
}

type reassignOptions struct {
	delay     time.Duration
	dryRun    bool
	limit     int
	multiStep bool
	verbose   bool
	wait      bool
	yes       bool
}

func (r reassignOptions) validate() error {
	var err error

	if r.limit < 0 {
		err = multierror.Append(err, errors.New("Limit cannot be negative"))
	}
	if r.delay < 0 {
		err = multierror.Append(err, errors.New("Delay cannot be negative"))
	}

	return err
}

func (r reassignOptions) reassignConfig(
	kind reassign.Kind,
	clusterConfig config.ClusterConfig,
) (cli.ReassignConfig, error) {
	delay := r.delay
	if delay == 0 {
		var err error
		delay, err = clusterConfig.GetReassignmentDelay()
		if err != nil {
			return cli.ReassignConfig{}, err
		}
	}

	return cli.ReassignConfig{
		Executor: reassign.ExecutorConfig{
			Kind:            kind,
			StateRoot:       clusterConfig.GetStateRoot(),
			Limit:           r.limit,
			MaxPayloadBytes: clusterConfig.GetMaxPayloadBytes(),
			MultiStep:       r.multiStep,
			LogAssignments:  r.verbose,
		},
		Delay:       delay,
		DryRun:      r.dryRun,
		Wait:        r.wait,
		LockRoot:    clusterConfig.Spec.ZKLockPath,
		SkipConfirm: r.yes,
	}, nil
}

func addReassignFlags(cmd *cobra.Command, options *reassignOptions) {
	cmd.Flags().DurationVar(
		&options.delay,
		"delay",
		0,
		fmt.Sprintf(
			"Delay between continuous reassignment iterations (default %s or cluster config)",
			reassign.DefaultDelay,
		),
	)
	cmd.Flags().BoolVarP(
		&options.dryRun,
		"dry-run",
		"d",
		false,
		"Output reassignment plan without executing",
	)
	cmd.Flags().IntVarP(
		&options.limit,
		"limit",
		"l",
		0,
		"Max number of partitions to reassign at a time",
	)
	cmd.Flags().BoolVar(
		&options.multiStep,
		"multi-step-migration",
		true,
		"Mirror partitions to new brokers before removing the old ones",
	)
	cmd.Flags().BoolVarP(
		&options.verbose,
		"verbose",
		"v",
		false,
		"Log every assignment",
	)
	cmd.Flags().BoolVarP(
		&options.wait,
		"wait",
		"w",
		false,
		"Wait for all reassignments to finish",
	)
	cmd.Flags().BoolVar(
		&options.yes,
		"yes",
		false,
		"Answer yes to every question",
	)
}
