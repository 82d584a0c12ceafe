package config

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/ktl/pkg/admin"
	"github.com/segmentio/ktl/pkg/reassign"
	"github.com/segmentio/ktl/pkg/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMeta() ClusterMeta {
	return ClusterMeta{
		Name:        "test-cluster",
		Region:      "test-region",
		Environment: "test-environment",
		Description: "test-description",
	}
}

func TestClusterValidate(t *testing.T) {
	type testCase struct {
		description   string
		clusterConfig ClusterConfig
		expErrors     int
	}

	testCases := []testCase{
		{
			description: "all good",
			clusterConfig: ClusterConfig{
				Meta: validMeta(),
				Spec: ClusterSpec{
					ZKAddrs:              []string{"zk-addr"},
					ReassignmentDelayStr: "30s",
					MaxPayloadBytes:      1024,
					FetchConcurrency:     2,
				},
			},
		},
		{
			description: "defaults",
			clusterConfig: ClusterConfig{
				Meta: validMeta(),
				Spec: ClusterSpec{
					ZKAddrs: []string{"zk-addr"},
				},
			},
		},
		{
			description: "missing meta fields",
			clusterConfig: ClusterConfig{
				Meta: ClusterMeta{
					Environment: "test-environment",
				},
				Spec: ClusterSpec{
					ZKAddrs: []string{"zk-addr"},
				},
			},
			expErrors: 2,
		},
		{
			description: "missing zk addresses",
			clusterConfig: ClusterConfig{
				Meta: validMeta(),
				Spec: ClusterSpec{
					BootstrapAddrs: []string{"broker-addr"},
				},
			},
			expErrors: 1,
		},
		{
			description: "bad numbers and delay",
			clusterConfig: ClusterConfig{
				Meta: validMeta(),
				Spec: ClusterSpec{
					ZKAddrs:              []string{"zk-addr"},
					MaxPayloadBytes:      -1,
					FetchConcurrency:     -2,
					ReassignmentDelayStr: "later",
				},
			},
			expErrors: 3,
		},
		{
			description: "negative delay",
			clusterConfig: ClusterConfig{
				Meta: validMeta(),
				Spec: ClusterSpec{
					ZKAddrs:              []string{"zk-addr"},
					ReassignmentDelayStr: "-5s",
				},
			},
			expErrors: 1,
		},
	}

	for _, testCase := range testCases {
		err := testCase.clusterConfig.Validate()
		if testCase.expErrors == 0 {
			assert.NoError(t, err, testCase.description)
			continue
		}

		require.Error(t, err, testCase.description)
		merr, ok := err.(*multierror.Error)
		require.True(t, ok, testCase.description)
		assert.Equal(t, testCase.expErrors, len(merr.Errors), testCase.description)
	}
}

func TestClusterDefaults(t *testing.T) {
	clusterConfig := ClusterConfig{
		Meta: validMeta(),
		Spec: ClusterSpec{
			ZKAddrs: []string{"zk-addr"},
		},
	}

	delay, err := clusterConfig.GetReassignmentDelay()
	require.NoError(t, err)
	assert.Equal(t, reassign.DefaultDelay, delay)
	assert.Equal(t, reassign.DefaultMaxPayloadBytes, clusterConfig.GetMaxPayloadBytes())
	assert.Equal(t, "/ktl", clusterConfig.GetStateRoot())

	clusterConfig.Spec.ZKPrefix = "kafka"
	clusterConfig.Spec.ReassignmentDelayStr = "1m"
	clusterConfig.Spec.MaxPayloadBytes = 4096

	delay, err = clusterConfig.GetReassignmentDelay()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, delay)
	assert.Equal(t, 4096, clusterConfig.GetMaxPayloadBytes())
	assert.Equal(t, "/kafka/ktl", clusterConfig.GetStateRoot())
}

func TestClusterNewAdminClient(t *testing.T) {
	zkClient := zk.NewMemoryClient()
	admin.SeedCluster(
		t,
		zkClient,
		admin.TestCluster{
			ZKPrefix: "kafka",
			Brokers:  admin.TestBrokers(3, 0),
		},
	)

	clusterConfig := ClusterConfig{
		Meta: validMeta(),
		Spec: ClusterSpec{
			ZKAddrs:   []string{"zk-addr"},
			ZKPrefix:  "kafka",
			ClusterID: "test-cluster",
		},
	}

	ctx := context.Background()
	client, err := clusterConfig.NewAdminClient(ctx, zkClient, AdminClientOpts{ReadOnly: true})
	require.NoError(t, err)

	ids, err := client.GetBrokerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)

	clusterConfig.Spec.ClusterID = "other-cluster"
	_, err = clusterConfig.NewAdminClient(ctx, zkClient, AdminClientOpts{ReadOnly: true})
	assert.Error(t, err)
}
