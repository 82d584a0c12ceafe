package zk

// DataEventType is the kind of change reported by a data watch.
type DataEventType int

const (
	// DataChanged is sent when the node is created or its contents are updated.
	DataChanged DataEventType = iota

	// DataDeleted is sent when the node is removed.
	DataDeleted

	// DataError is sent when the watch can no longer be maintained. It's always the
	// last event on the channel.
	DataError
)

func (t DataEventType) String() string {
	switch t {
	case DataChanged:
		return "changed"
	case DataDeleted:
		return "deleted"
	case DataError:
		return "error"
	default:
		return "unknown"
	}
}

// DataEvent is a single notification from WatchData.
type DataEvent struct {
	Type DataEventType
	Path string

	// Data holds the node contents for DataChanged events.
	Data []byte

	// Err is set for DataError events.
	Err error
}
