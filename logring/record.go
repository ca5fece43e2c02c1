// Package logring implements the cross-process observability fabric: a
// single bounded mmap-backed ring of fixed-size serialized log records,
// shared by every HORUS process on the host.
package logring

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind classifies a Record. The first thirteen values are the enumerated
// pub/sub and remote-execution event set; Lap, Torn, and Corrupt extend
// it with the transport diagnostics Hub emits as log records.
type Kind string

const (
	KindPublish        Kind = "publish"
	KindSubscribe      Kind = "subscribe"
	KindInfo           Kind = "info"
	KindWarning        Kind = "warning"
	KindError          Kind = "error"
	KindDebug          Kind = "debug"
	KindTopicRead      Kind = "topic_read"
	KindTopicWrite     Kind = "topic_write"
	KindTopicMap       Kind = "topic_map"
	KindTopicUnmap     Kind = "topic_unmap"
	KindRemoteDeploy   Kind = "remote_deploy"
	KindRemoteCompile  Kind = "remote_compile"
	KindRemoteExecute  Kind = "remote_execute"
	KindLap            Kind = "lap"
	KindTorn           Kind = "torn"
	KindCorrupt        Kind = "corrupt"
)

// Record is the fixed-512-byte self-describing log entry every process
// on the host serializes into the shared log ring.
type Record struct {
	Timestamp  string        `msgpack:"ts"`
	NodeName   string        `msgpack:"node"`
	Kind       Kind          `msgpack:"kind"`
	Topic      string        `msgpack:"topic,omitempty"`
	Message    string        `msgpack:"msg"`
	TickMicros uint64        `msgpack:"tick_us"`
	IPCNanos   uint64        `msgpack:"ipc_ns"`
}

// NewRecord stamps Timestamp with the current time in RFC3339Nano form.
func NewRecord(nodeName string, kind Kind, topic, message string) Record {
	return Record{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		NodeName:  nodeName,
		Kind:      kind,
		Topic:     topic,
		Message:   message,
	}
}

// marshalTruncated serializes r to at most RecordSize bytes. Oversize
// records are truncated with a warning written to stderr by the caller.
func marshalTruncated(r Record) (data []byte, truncated bool, err error) {
	raw, err := msgpack.Marshal(r)
	if err != nil {
		return nil, false, err
	}
	if len(raw) <= RecordSize {
		return raw, false, nil
	}
	return raw[:RecordSize], true, nil
}

func unmarshalRecord(data []byte) (Record, error) {
	var r Record
	err := msgpack.Unmarshal(data, &r)
	return r, err
}
