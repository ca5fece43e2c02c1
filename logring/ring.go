package logring

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/horus-robotics/horus-go/platform"
	"github.com/horus-robotics/horus-go/shm"
)

// RecordSize is the fixed, on-disk size of one serialized Record.
const RecordSize = 512

// MaxRecords is the ring's slot capacity.
const MaxRecords = 5000

// ringHeaderSize is the 64-byte-padded header preceding the slots.
const ringHeaderSize = 64

type ringHeader struct {
	WriteIndex uint64
	_          [56]byte
}

func init() {
	if unsafe.Sizeof(ringHeader{}) != ringHeaderSize {
		panic(fmt.Sprintf("logring: header size is %d, expected %d", unsafe.Sizeof(ringHeader{}), ringHeaderSize))
	}
}

// Ring is the process-local handle to the single global log ring file
// shared by every HORUS process on the host. Writes are serialized by a
// process-local mutex; concurrent writers in other
// processes may race on the write index and occasionally overwrite one
// another's records — a deliberate availability-over-consistency
// trade-off, since readers discard records that fail to deserialize.
type Ring struct {
	mu     sync.Mutex
	region *shm.Region
	header *ringHeader
	data   []byte
}

var (
	globalOnce sync.Once
	global     *Ring
	globalErr  error
)

// Global returns the process-wide log ring, opening (and, if this is the
// first process to touch it, creating) the backing file on first call.
func Global() (*Ring, error) {
	globalOnce.Do(func() {
		global, globalErr = Open()
	})
	return global, globalErr
}

// Open maps the global log ring file, creating it if this is the first
// process on the host to do so.
func Open() (*Ring, error) {
	size := int64(ringHeaderSize) + int64(MaxRecords)*int64(RecordSize)
	region, err := shm.OpenOrCreateAt(platform.LogRingPath(), size)
	if err != nil {
		return nil, fmt.Errorf("logring: open: %w", err)
	}
	h := (*ringHeader)(unsafe.Pointer(&region.Bytes()[0]))
	return &Ring{region: region, header: h, data: region.Bytes()}, nil
}

// Close unmaps the ring. The backing file persists.
func (r *Ring) Close() error { return r.region.Close() }

// Push serializes and writes one record, truncating oversize records and
// warning to stderr, then advances the write index. Push holds
// the process-local mutex for its whole body — a small, bounded critical
// section.
func (r *Ring) Push(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := atomic.LoadUint64(&r.header.WriteIndex)
	data, truncated, err := marshalTruncated(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logring: failed to serialize record: %v\n", err)
		return
	}
	if truncated {
		fmt.Fprintf(os.Stderr, "logring: record for node %q exceeded %d bytes, truncated\n", rec.NodeName, RecordSize)
	}

	slotIdx := w % uint64(MaxRecords)
	off := int64(ringHeaderSize) + int64(slotIdx)*int64(RecordSize)
	slot := r.data[off : off+RecordSize]

	for i := range slot {
		slot[i] = 0
	}
	copy(slot, data)

	atomic.StoreUint64(&r.header.WriteIndex, w+1)
}

// ReadAll returns every record still live in the ring, oldest first,
// silently skipping slots that fail to deserialize (torn cross-process
// writes or records from an incompatible producer).
func (r *Ring) ReadAll() []Record {
	w := atomic.LoadUint64(&r.header.WriteIndex)
	count := w
	if count > uint64(MaxRecords) {
		count = uint64(MaxRecords)
	}
	start := uint64(0)
	if w > uint64(MaxRecords) {
		start = w % uint64(MaxRecords)
	}

	records := make([]Record, 0, count)
	for i := uint64(0); i < count; i++ {
		slotIdx := (start + i) % uint64(MaxRecords)
		off := int64(ringHeaderSize) + int64(slotIdx)*int64(RecordSize)
		slot := r.data[off : off+RecordSize]
		rec, err := unmarshalRecord(slot)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// ForNode filters ReadAll by node name.
func (r *Ring) ForNode(nodeName string) []Record {
	out := []Record{}
	for _, rec := range r.ReadAll() {
		if rec.NodeName == nodeName {
			out = append(out, rec)
		}
	}
	return out
}

// ForTopic filters ReadAll by topic.
func (r *Ring) ForTopic(topic string) []Record {
	out := []Record{}
	for _, rec := range r.ReadAll() {
		if rec.Topic == topic {
			out = append(out, rec)
		}
	}
	return out
}

// NodeLogger adapts a Ring into the shm.Logger contract Hub uses to
// report Lap/Torn/Corrupt events, tagging every emitted record with the
// owning node's name.
type NodeLogger struct {
	ring     *Ring
	nodeName string
}

// NewNodeLogger returns a shm.Logger backed by ring, tagging records with
// nodeName.
func NewNodeLogger(ring *Ring, nodeName string) *NodeLogger {
	return &NodeLogger{ring: ring, nodeName: nodeName}
}

func (n *NodeLogger) LogLap(topic string, skipped uint64) {
	n.ring.Push(NewRecord(n.nodeName, KindLap, topic, fmt.Sprintf("lap: skipped %d messages", skipped)))
}

func (n *NodeLogger) LogTorn(topic string) {
	n.ring.Push(NewRecord(n.nodeName, KindTorn, topic, "torn read, retries exhausted"))
}

func (n *NodeLogger) LogCorrupt(topic string) {
	n.ring.Push(NewRecord(n.nodeName, KindCorrupt, topic, "corrupt slot, deserialization failed"))
}

var _ shm.Logger = (*NodeLogger)(nil)
