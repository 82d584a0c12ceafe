package zk

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	szk "github.com/samuel/go-zookeeper/zk"
)

var _ Client = (*MemoryClient)(nil)

// MemoryClient is an in-process Client that mimics zk node semantics: parents must exist
// before children, non-empty nodes can't be deleted, and versions are bumped on every
// set. Watches and locks are supported. It's used in tests and for dry runs against
// snapshots.
type MemoryClient struct {
	sync.Mutex

	nodes    map[string]*memoryNode
	watchers map[string][]*memoryWatcher
	locks    map[string]chan struct{}
	sequence int
}

type memoryNode struct {
	data     []byte
	version  int32
	children map[string]struct{}
}

// NewMemoryClient returns a MemoryClient containing only the root node.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		nodes: map[string]*memoryNode{
			"/": {children: map[string]struct{}{}},
		},
		watchers: map[string][]*memoryWatcher{},
		locks:    map[string]chan struct{}{},
	}
}

func (c *MemoryClient) stat(node *memoryNode) *szk.Stat {
	return &szk.Stat{
		Version:     node.version,
		NumChildren: int32(len(node.children)),
		DataLength:  int32(len(node.data)),
	}
}

// Get returns the value at the argument path.
func (c *MemoryClient) Get(ctx context.Context, nodePath string) ([]byte, *szk.Stat, error) {
	c.Lock()
	defer c.Unlock()

	node, ok := c.nodes[path.Clean(nodePath)]
	if !ok {
		return nil, nil, ErrNoNode
	}

	data := make([]byte, len(node.data))
	copy(data, node.data)
	return data, c.stat(node), nil
}

// GetJSON unmarshals the JSON content at the argument path into an object.
func (c *MemoryClient) GetJSON(
	ctx context.Context,
	nodePath string,
	obj interface{},
) (*szk.Stat, error) {
	data, stats, err := c.Get(ctx, nodePath)
	if err != nil {
		return stats, err
	}
	return stats, json.Unmarshal(data, obj)
}

// Children returns the names of the children of the argument path in sorted order.
func (c *MemoryClient) Children(
	ctx context.Context,
	nodePath string,
) ([]string, *szk.Stat, error) {
	c.Lock()
	defer c.Unlock()

	node, ok := c.nodes[path.Clean(nodePath)]
	if !ok {
		return nil, nil, ErrNoNode
	}

	children := []string{}
	for child := range node.children {
		children = append(children, child)
	}
	sort.Strings(children)

	return children, c.stat(node), nil
}

// Exists returns whether a node is present at the argument path.
func (c *MemoryClient) Exists(ctx context.Context, nodePath string) (bool, *szk.Stat, error) {
	c.Lock()
	defer c.Unlock()

	node, ok := c.nodes[path.Clean(nodePath)]
	if !ok {
		return false, nil, nil
	}
	return true, c.stat(node), nil
}

// Create adds a node at the argument path. The parent must already exist.
func (c *MemoryClient) Create(
	ctx context.Context,
	nodePath string,
	data []byte,
	sequential bool,
) error {
	c.Lock()

	nodePath = path.Clean(nodePath)
	if sequential {
		nodePath = fmt.Sprintf("%s%010d", nodePath, c.sequence)
		c.sequence++
	}

	if _, ok := c.nodes[nodePath]; ok {
		c.Unlock()
		return ErrNodeExists
	}

	parent, ok := c.nodes[path.Dir(nodePath)]
	if !ok {
		c.Unlock()
		return ErrNoNode
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	c.nodes[nodePath] = &memoryNode{
		data:     stored,
		children: map[string]struct{}{},
	}
	parent.children[path.Base(nodePath)] = struct{}{}

	watchers := c.watchers[nodePath]
	c.Unlock()

	for _, watcher := range watchers {
		watcher.push(DataEvent{Type: DataChanged, Path: nodePath, Data: stored})
	}
	return nil
}

// CreateJSON creates a node with the JSON encoding of the argument object.
func (c *MemoryClient) CreateJSON(
	ctx context.Context,
	nodePath string,
	obj interface{},
	sequential bool,
) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return c.Create(ctx, nodePath, data, sequential)
}

// Set replaces the contents of an existing node. A version of -1 skips the version check.
func (c *MemoryClient) Set(
	ctx context.Context,
	nodePath string,
	data []byte,
	version int32,
) (*szk.Stat, error) {
	c.Lock()

	nodePath = path.Clean(nodePath)
	node, ok := c.nodes[nodePath]
	if !ok {
		c.Unlock()
		return nil, ErrNoNode
	}
	if version >= 0 && version != node.version {
		c.Unlock()
		return nil, szk.ErrBadVersion
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	node.data = stored
	node.version++
	stats := c.stat(node)

	watchers := c.watchers[nodePath]
	c.Unlock()

	for _, watcher := range watchers {
		watcher.push(DataEvent{Type: DataChanged, Path: nodePath, Data: stored})
	}
	return stats, nil
}

// SetJSON replaces the contents of an existing node with the JSON encoding of the
// argument object.
func (c *MemoryClient) SetJSON(
	ctx context.Context,
	nodePath string,
	obj interface{},
	version int32,
) (*szk.Stat, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return c.Set(ctx, nodePath, data, version)
}

// Delete removes a node without children.
func (c *MemoryClient) Delete(ctx context.Context, nodePath string, version int32) error {
	c.Lock()

	nodePath = path.Clean(nodePath)
	node, ok := c.nodes[nodePath]
	if !ok || nodePath == "/" {
		c.Unlock()
		return ErrNoNode
	}
	if version >= 0 && version != node.version {
		c.Unlock()
		return szk.ErrBadVersion
	}
	if len(node.children) > 0 {
		c.Unlock()
		return szk.ErrNotEmpty
	}

	delete(c.nodes, nodePath)
	delete(c.nodes[path.Dir(nodePath)].children, path.Base(nodePath))

	watchers := c.watchers[nodePath]
	c.Unlock()

	for _, watcher := range watchers {
		watcher.push(DataEvent{Type: DataDeleted, Path: nodePath})
	}
	return nil
}

// WatchData streams changes to the argument path until the context is done.
func (c *MemoryClient) WatchData(ctx context.Context, nodePath string) (<-chan DataEvent, error) {
	nodePath = path.Clean(nodePath)
	watcher := newMemoryWatcher()

	c.Lock()
	c.watchers[nodePath] = append(c.watchers[nodePath], watcher)
	c.Unlock()

	go func() {
		<-ctx.Done()

		c.Lock()
		remaining := []*memoryWatcher{}
		for _, other := range c.watchers[nodePath] {
			if other != watcher {
				remaining = append(remaining, other)
			}
		}
		if len(remaining) == 0 {
			delete(c.watchers, nodePath)
		} else {
			c.watchers[nodePath] = remaining
		}
		c.Unlock()

		watcher.stop()
	}()

	go watcher.run(ctx)
	return watcher.events, nil
}

// WatcherCount returns the number of active watches on the argument path.
func (c *MemoryClient) WatcherCount(nodePath string) int {
	c.Lock()
	defer c.Unlock()
	return len(c.watchers[path.Clean(nodePath)])
}

// AcquireLock blocks until the lock at the argument path is free or the context is done.
func (c *MemoryClient) AcquireLock(ctx context.Context, nodePath string) (Lock, error) {
	c.Lock()
	lockChan, ok := c.locks[nodePath]
	if !ok {
		lockChan = make(chan struct{}, 1)
		c.locks[nodePath] = lockChan
	}
	c.Unlock()

	select {
	case lockChan <- struct{}{}:
		return &memoryLock{release: func() { <-lockChan }}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close is a no-op.
func (c *MemoryClient) Close() error {
	return nil
}

// Paths returns every node path below the argument prefix, sorted. For testing purposes.
func (c *MemoryClient) Paths(prefix string) []string {
	c.Lock()
	defer c.Unlock()

	paths := []string{}
	for nodePath := range c.nodes {
		if nodePath != "/" && strings.HasPrefix(nodePath, prefix) {
			paths = append(paths, nodePath)
		}
	}
	sort.Strings(paths)
	return paths
}

// memoryWatcher buffers events without bound so that writers never block on a slow
// consumer, including a consumer that writes to the watched path itself.
type memoryWatcher struct {
	sync.Mutex
	cond    *sync.Cond
	queue   []DataEvent
	stopped bool
	events  chan DataEvent
}

func newMemoryWatcher() *memoryWatcher {
	watcher := &memoryWatcher{
		events: make(chan DataEvent),
	}
	watcher.cond = sync.NewCond(&watcher.Mutex)
	return watcher
}

func (w *memoryWatcher) push(event DataEvent) {
	w.Lock()
	defer w.Unlock()

	if w.stopped {
		return
	}
	w.queue = append(w.queue, event)
	w.cond.Signal()
}

func (w *memoryWatcher) stop() {
	w.Lock()
	defer w.Unlock()

	w.stopped = true
	w.cond.Signal()
}

func (w *memoryWatcher) run(ctx context.Context) {
	defer close(w.events)

	for {
		w.Lock()
		for len(w.queue) == 0 && !w.stopped {
			w.cond.Wait()
		}
		if w.stopped {
			w.Unlock()
			return
		}
		event := w.queue[0]
		w.queue = w.queue[1:]
		w.Unlock()

		select {
		case w.events <- event:
		case <-ctx.Done():
			return
		}
	}
}
