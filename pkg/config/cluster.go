package config

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/segmentio/ktl/pkg/zk"
)

const (
	// DefaultZKTimeout is the session timeout of zookeeper connections.
	DefaultZKTimeout = 10 * time.Second
)

// ClusterConfig stores information about a cluster and how reassignments are driven in
// it.
type ClusterConfig struct {
	Meta ClusterMeta `json:"meta"`
	Spec ClusterSpec `json:"spec"`
}

// ClusterMeta contains (mostly immutable) metadata about the cluster. Inspired
// by the meta fields in Kubernetes objects.
type ClusterMeta struct {
	Name        string `json:"name"`
	Region      string `json:"region"`
	Environment string `json:"environment"`
	Description string `json:"description"`
}

// ClusterSpec contains the details necessary to communicate with a kafka cluster.
type ClusterSpec struct {
	// ZKAddrs is a list of one or more zookeeper addresses. These can use IPs
	// or DNS names.
	ZKAddrs []string `json:"zkAddrs"`

	// ZKPrefix is the prefix under which all zk nodes for the cluster are stored. If blank,
	// these are assumed to be under the zk root.
	ZKPrefix string `json:"zkPrefix"`

	// ZKLockPath indicates where submission locks are stored in zookeeper. If blank, then
	// no locking is done.
	ZKLockPath string `json:"zkLockPath"`

	// BootstrapAddrs is a list of broker addresses used for offsets and topic creation. If
	// blank, the lowest registered broker is used.
	BootstrapAddrs []string `json:"bootstrapAddrs"`

	// ClusterID is the value of the [prefix]/cluster/id node in zookeeper. If set, it's used
	// to validate that the cluster we're communicating with is the right one.
	ClusterID string `json:"clusterID"`

	// StateRoot is the zk path, relative to ZKPrefix, under which progress and overflow
	// chunks are stored. Defaults to /ktl.
	StateRoot string `json:"stateRoot"`

	// MaxPayloadBytes caps the size of every zk write. Defaults to 1MiB.
	MaxPayloadBytes int `json:"maxPayloadBytes"`

	// ReassignmentDelayStr is the pause between one chunk completing and the next one
	// being submitted. Defaults to 5s.
	ReassignmentDelayStr string `json:"reassignmentDelay"`

	// FetchConcurrency is the number of parallel workers used for bulk metadata reads.
	// Defaults to 8.
	FetchConcurrency int `json:"fetchConcurrency"`
}

// Validate evaluates whether the cluster config is valid.
func (c ClusterConfig) Validate() error {
	var err error

	if c.Meta.Name == "" {
		err = multierror.Append(err, errors.New("Name must be set"))
	}
	if c.Meta.Region == "" {
		err = multierror.Append(err, errors.New("Region must be set"))
	}
	if c.Meta.Environment == "" {
		err = multierror.Append(err, errors.New("Environment must be set"))
	}

	if len(c.Spec.ZKAddrs) == 0 {
		err = multierror.Append(err, errors.New("At least one zookeeper address must be set"))
	}
	if c.Spec.MaxPayloadBytes < 0 {
		err = multierror.Append(err, errors.New("MaxPayloadBytes must be positive"))
	}
	if c.Spec.FetchConcurrency < 0 {
		err = multierror.Append(err, errors.New("FetchConcurrency cannot be negative"))
	}

	_, parseErr := c.GetReassignmentDelay()
	if parseErr != nil {
		err = multierror.Append(
			err,
			fmt.Errorf("Error parsing reassignment delay: %+v", parseErr),
		)
	}

	return err
}

// GetReassignmentDelay returns the parsed reassignment delay, or the default one if unset.
func (c ClusterConfig) GetReassignmentDelay() (time.Duration, error) {
	if c.Spec.ReassignmentDelayStr == "" {
		return reassign.DefaultDelay, nil
	}

	delay, err := time.ParseDuration(c.Spec.ReassignmentDelayStr)
	if err != nil {
		return 0, err
	}
	if delay < 0 {
		return 0, fmt.Errorf("Delay cannot be negative: %s", delay)
	}
	return delay, nil
}

// GetMaxPayloadBytes returns the configured payload limit, or the default one if unset.
func (c ClusterConfig) GetMaxPayloadBytes() int {
	if c.Spec.MaxPayloadBytes <= 0 {
		return reassign.DefaultMaxPayloadBytes
	}
	return c.Spec.MaxPayloadBytes
}

// GetStateRoot returns the absolute zk path of the state root, including the cluster's
// prefix.
func (c ClusterConfig) GetStateRoot() string {
	stateRoot := c.Spec.StateRoot
	if stateRoot == "" {
		stateRoot = reassign.DefaultStateRoot
	}
	return path.Join("/", c.Spec.ZKPrefix, stateRoot)
}

// AdminClientOpts controls how the admin client of a cluster is constructed.
type AdminClientOpts struct {
	ReadOnly       bool
	ConnectBrokers bool
	Connector      admin.ConnectorConfig
	InstanceLookup *admin.InstanceLookup
}

// GetFetchConcurrency returns the configured fetch concurrency, or the default one if
// unset.
func (c ClusterConfig) GetFetchConcurrency() int {
	if c.Spec.FetchConcurrency <= 0 {
		return admin.DefaultFetchConcurrency
	}
	return c.Spec.FetchConcurrency
}

// NewZKClient connects to the cluster's zookeeper with one connection per fetch worker.
func (c ClusterConfig) NewZKClient(readOnly bool) (*zk.PooledClient, error) {
	return zk.NewPooledClient(
		c.Spec.ZKAddrs,
		DefaultZKTimeout,
		&zk.DebugLogger{},
		c.GetFetchConcurrency(),
		readOnly,
	)
}

// NewAdminClient returns a new admin client on top of the argument zk client, using the
// parameters in the current cluster config.
func (c ClusterConfig) NewAdminClient(
	ctx context.Context,
	zkClient zk.Client,
	opts AdminClientOpts,
) (*admin.ZKAdminClient, error) {
	return admin.NewZKAdminClient(
		ctx,
		zkClient,
		admin.ZKAdminClientConfig{
			ZKPrefix:          c.Spec.ZKPrefix,
			ExpectedClusterID: c.Spec.ClusterID,
			FetchConcurrency:  c.GetFetchConcurrency(),
			ReadOnly:          opts.ReadOnly,
			ConnectBrokers:    opts.ConnectBrokers,
			BootstrapAddrs:    c.Spec.BootstrapAddrs,
			Connector:         opts.Connector,
			InstanceLookup:    opts.InstanceLookup,
		},
	)
}
