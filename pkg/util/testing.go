package util

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testZKAddrEnv = "KTL_TEST_ZK_ADDR"

var (
	testRandMu sync.Mutex
	testRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// CanTestZK returns whether a live zookeeper is configured for integration tests
// via KTL_TEST_ZK_ADDR.
func CanTestZK() bool {
	return os.Getenv(testZKAddrEnv) != ""
}

// TestZKAddr returns the zookeeper address used by integration tests.
func TestZKAddr() string {
	if addr := os.Getenv(testZKAddrEnv); addr != "" {
		return addr
	}
	return "localhost:2181"
}

const randomLetters = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns prefix followed by a dash and length random lowercase
// characters, for paths that must not collide between test runs.
func RandomString(prefix string, length int) string {
	testRandMu.Lock()
	defer testRandMu.Unlock()

	suffix := make([]byte, length)
	for i := range suffix {
		suffix[i] = randomLetters[testRand.Intn(len(randomLetters))]
	}
	return fmt.Sprintf("%s-%s", prefix, suffix)
}

// RetryUntil calls f with exponential backoff until it returns nil, failing the test
// with the last error once timeout has elapsed.
func RetryUntil(t *testing.T, timeout time.Duration, f func() error) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	backoff := 50 * time.Millisecond

	err := f()
	for err != nil && time.Now().Before(deadline) {
		time.Sleep(backoff)
		backoff *= 2
		err = f()
	}
	require.NoError(t, err)
}
