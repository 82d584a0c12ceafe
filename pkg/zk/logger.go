package zk

import (
	szk "github.com/samuel/go-zookeeper/zk"
	log "github.com/sirupsen/logrus"
)

// DebugLogger forwards connection-level messages from the zookeeper library to
// logrus. They are noisy (session events, reconnects) so they only show up with
// --debug.
type DebugLogger struct{}

var _ szk.Logger = (*DebugLogger)(nil)

// Printf implements szk.Logger.
func (l *DebugLogger) Printf(format string, args ...interface{}) {
	log.WithField("component", "zk").Debugf(format, args...)
}
