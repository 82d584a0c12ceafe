package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ghodss/yaml"
)

// LoadClusterFile reads and decodes the cluster config at path. When expandEnv is set,
// ${VAR} references in the file are replaced from the environment before decoding.
func LoadClusterFile(path string, expandEnv bool) (ClusterConfig, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ClusterConfig{}, err
	}
	if expandEnv {
		contents = []byte(os.ExpandEnv(string(contents)))
	}

	clusterConfig, err := LoadClusterBytes(contents)
	if err != nil {
		return ClusterConfig{}, fmt.Errorf("Error parsing cluster config %s: %+v", path, err)
	}
	return clusterConfig, nil
}

// LoadClusterBytes decodes a cluster config from YAML. Keys that don't map to a
// ClusterConfig field are rejected.
func LoadClusterBytes(contents []byte) (ClusterConfig, error) {
	var clusterConfig ClusterConfig

	jsonBytes, err := yaml.YAMLToJSON(contents)
	if err != nil {
		return clusterConfig, err
	}

	decoder := json.NewDecoder(bytes.NewReader(jsonBytes))
	decoder.DisallowUnknownFields()
	err = decoder.Decode(&clusterConfig)
	return clusterConfig, err
}
