package zk

import (
	"context"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// PathTuple is a <path, object> combination used for generating nodes in zk. For testing purposes
// only.
type PathTuple struct {
	Path string
	Obj  interface{}
}

// CreateNode creates a single node at the argument path, along with any missing parents. A nil
// object creates an empty node. For testing purposes only.
func CreateNode(t *testing.T, client Client, path string, obj interface{}) {
	var data []byte
	var err error

	if obj != nil {
		data, err = json.Marshal(obj)
		require.NoError(t, err)
	}

	log.Debugf("Creating path %+v", path)

	err = CreateAll(context.Background(), client, path, data)
	require.NoError(t, err)
}

// CreateNodes creates nodes according to the argument PathTuples. For testing purposes only.
func CreateNodes(t *testing.T, client Client, pathTuples []PathTuple) {
	for _, tuple := range pathTuples {
		CreateNode(t, client, tuple.Path, tuple.Obj)
	}
}
