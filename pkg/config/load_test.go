package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCluster(t *testing.T) {
	os.Setenv("KTL_TEST_ENV_VAR", "test-region")
	defer os.Unsetenv("KTL_TEST_ENV_VAR")

	clusterConfig, err := LoadClusterFile("testdata/test-cluster/cluster.yaml", true)
	require.NoError(t, err)

	assert.Equal(
		t,
		ClusterConfig{
			Meta: ClusterMeta{
				Name:        "test-cluster",
				Region:      "test-region",
				Environment: "test-env",
				Description: "Test cluster\n",
			},
			Spec: ClusterSpec{
				ZKAddrs: []string{
					"zk-addr:2181",
				},
				ZKPrefix:   "/test-cluster-id",
				ZKLockPath: "/ktl/locks",
				BootstrapAddrs: []string{
					"bootstrap-addr:9092",
				},
				StateRoot:            "/ktl-state",
				MaxPayloadBytes:      65536,
				ReassignmentDelayStr: "10s",
				FetchConcurrency:     4,
			},
		},
		clusterConfig,
	)
	assert.NoError(t, clusterConfig.Validate())
	assert.Equal(t, "/test-cluster-id/ktl-state", clusterConfig.GetStateRoot())

	clusterConfig, err = LoadClusterFile("testdata/test-cluster/cluster.yaml", false)
	require.NoError(t, err)
	assert.Equal(t, "${KTL_TEST_ENV_VAR}", clusterConfig.Meta.Region)

	clusterConfig, err = LoadClusterFile("testdata/test-cluster/cluster-invalid.yaml", true)
	require.NoError(t, err)
	assert.Error(t, clusterConfig.Validate())

	_, err = LoadClusterFile("testdata/test-cluster/cluster-extra-fields.yaml", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster-extra-fields.yaml")

	_, err = LoadClusterFile("testdata/test-cluster/missing.yaml", true)
	assert.Error(t, err)
}
