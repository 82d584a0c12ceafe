package zk

import (
	szk "github.com/samuel/go-zookeeper/zk"
)

// Lock is a lock interface that's satisfied by the samuel zk Lock struct.
type Lock interface {
	Unlock() error
}

var (
	_ Lock = (*szk.Lock)(nil)
	_ Lock = (*memoryLock)(nil)
)

type memoryLock struct {
	release func()
}

func (l *memoryLock) Unlock() error {
	l.release()
	return nil
}
