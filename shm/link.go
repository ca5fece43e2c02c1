package shm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/horus-robotics/horus-go/internal/telemetry"
)

var linkLog = telemetry.Component("shm.link")

const linkSlotLenPrefix = 4

// linkHeader places the producer-owned head cursor, the consumer-owned
// tail cursor, and the shared geometry metadata on three separate
// cache lines, so that a producer's writes to Head never share a line
// with a consumer's writes to Tail.
type linkHeader struct {
	Head uint64
	_    [56]byte
	Tail uint64
	_    [56]byte
	N    uint32
	SlotSize uint32
	MsgKind  uint32
	_        [52]byte
}

const linkHeaderSize = 192

func init() {
	if unsafe.Sizeof(linkHeader{}) != linkHeaderSize {
		panic(fmt.Sprintf("shm: link header size is %d, expected %d", unsafe.Sizeof(linkHeader{}), linkHeaderSize))
	}
}

func linkHeaderAt(data []byte) *linkHeader {
	return (*linkHeader)(unsafe.Pointer(&data[0]))
}

func linkSlotBytes(data []byte, slotSize uint32, idx uint64, n uint32) []byte {
	off := int64(linkHeaderSize) + int64(idx%uint64(n))*int64(slotSize)
	return data[off : off+int64(slotSize)]
}

// roleRegistry tracks, per process, how many producer/consumer handles
// have ever been constructed for each topic so a second handle of the
// same role triggers a runtime warning (a best-effort diagnostic, not a
// correctness guarantee — it never blocks construction). Close does not
// decrement the count, so a handle constructed after an earlier one was
// closed also warns.
var roleRegistry sync.Map // map[string]*int32, key = topic+":"+role

func warnOnDuplicateRole(topic, role string) {
	key := topic + ":" + role
	v, _ := roleRegistry.LoadOrStore(key, new(int32))
	count := atomic.AddInt32(v.(*int32), 1)
	if count > 1 {
		linkLog.Warn().Str("topic", topic).Str("role", role).Int32("count", count).
			Msg("concurrent handles constructed for link topic in this process (undefined ordering)")
	}
}

// LinkConfig configures a Link handle.
type LinkConfig struct {
	Capacity       uint32
	SlotSize       uint32
	MsgKind        uint32
	RawPOD         bool // if true, payload is copied verbatim, no msgpack framing
}

func (c LinkConfig) withDefaults() LinkConfig {
	if c.Capacity == 0 {
		c.Capacity = defaultHubCapacity
	}
	if c.SlotSize == 0 {
		c.SlotSize = defaultSlotSize
	}
	return c
}

func openLinkRegion(topic string, cfg LinkConfig) (*Region, *linkHeader, error) {
	if err := validateSlotCount(cfg.Capacity); err != nil {
		return nil, nil, err
	}
	size := int64(linkHeaderSize) + int64(cfg.Capacity)*int64(cfg.SlotSize)
	region, err := OpenOrCreate(topic, size)
	if err != nil {
		return nil, nil, err
	}
	h := linkHeaderAt(region.Bytes())
	if region.IsOwner() {
		h.N = cfg.Capacity
		h.SlotSize = cfg.SlotSize
		h.MsgKind = cfg.MsgKind
	} else if h.N != cfg.Capacity || h.SlotSize != cfg.SlotSize {
		region.Close()
		return nil, nil, fmt.Errorf("shm: link %q geometry mismatch (N=%d/%d slot_size=%d/%d)",
			topic, h.N, cfg.Capacity, h.SlotSize, cfg.SlotSize)
	}
	return region, h, nil
}

// LinkProducer is the single-writer side of an SPSC channel. At most one
// producer handle may be alive per topic per process; every construction
// after the first for the same topic in this process triggers a logged
// warning.
type LinkProducer[T any] struct {
	topic  string
	region *Region
	header *linkHeader
	data   []byte
	rawPOD bool
}

// NewLinkProducer opens or creates the Link topic file and returns the
// producer handle.
func NewLinkProducer[T any](topic string, cfg LinkConfig) (*LinkProducer[T], error) {
	cfg = cfg.withDefaults()
	warnOnDuplicateRole(topic, "producer")
	region, h, err := openLinkRegion(topic, cfg)
	if err != nil {
		return nil, err
	}
	return &LinkProducer[T]{topic: topic, region: region, header: h, data: region.Bytes(), rawPOD: cfg.RawPOD}, nil
}

func (p *LinkProducer[T]) Close() error { return p.region.Close() }

// Send writes `value` into the next slot. If the channel is full
// (head-tail == N), it returns ErrFull without blocking or buffering —
// the caller decides whether to drop or retry.
func (p *LinkProducer[T]) Send(value T) error {
	var payload []byte
	if p.rawPOD {
		b, ok := any(value).([]byte)
		if !ok {
			return fmt.Errorf("shm: link %q: RawPOD send requires []byte value", p.topic)
		}
		payload = b
	} else {
		var err error
		payload, err = msgpack.Marshal(value)
		if err != nil {
			return fmt.Errorf("shm: link %q: serialize: %w", p.topic, err)
		}
	}

	capacity := int(p.header.SlotSize) - linkSlotLenPrefix
	if len(payload) > capacity {
		return fmt.Errorf("shm: link %q: %w (%d > %d)", p.topic, ErrPayloadTooLarge, len(payload), capacity)
	}

	h := atomic.LoadUint64(&p.header.Head)
	t := atomic.LoadUint64(&p.header.Tail)
	if h-t == uint64(p.header.N) {
		return ErrFull
	}

	slot := linkSlotBytes(p.data, p.header.SlotSize, h, p.header.N)
	lenPtr := (*uint32)(unsafe.Pointer(&slot[0]))
	atomic.StoreUint32(lenPtr, uint32(len(payload)))
	copy(slot[linkSlotLenPrefix:], payload)

	atomic.StoreUint64(&p.header.Head, h+1)
	return nil
}

// LinkConsumer is the single-reader side of an SPSC channel.
type LinkConsumer[T any] struct {
	topic  string
	region *Region
	header *linkHeader
	data   []byte
	rawPOD bool
}

// NewLinkConsumer opens or creates the Link topic file and returns the
// consumer handle.
func NewLinkConsumer[T any](topic string, cfg LinkConfig) (*LinkConsumer[T], error) {
	cfg = cfg.withDefaults()
	warnOnDuplicateRole(topic, "consumer")
	region, h, err := openLinkRegion(topic, cfg)
	if err != nil {
		return nil, err
	}
	return &LinkConsumer[T]{topic: topic, region: region, header: h, data: region.Bytes(), rawPOD: cfg.RawPOD}, nil
}

func (c *LinkConsumer[T]) Close() error { return c.region.Close() }

// TryReceive returns the next message, or ok=false if the channel is
// empty (head == tail).
func (c *LinkConsumer[T]) TryReceive() (value T, ok bool, err error) {
	t := atomic.LoadUint64(&c.header.Tail)
	h := atomic.LoadUint64(&c.header.Head)
	if h == t {
		return value, false, nil
	}

	slot := linkSlotBytes(c.data, c.header.SlotSize, t, c.header.N)
	lenPtr := (*uint32)(unsafe.Pointer(&slot[0]))
	n := atomic.LoadUint32(lenPtr)
	payload := append([]byte(nil), slot[linkSlotLenPrefix:linkSlotLenPrefix+int(n)]...)

	atomic.StoreUint64(&c.header.Tail, t+1)

	if c.rawPOD {
		if out, ok := any(&value).(*[]byte); ok {
			*out = payload
			return value, true, nil
		}
		return value, false, fmt.Errorf("shm: link %q: RawPOD receive requires []byte value", c.topic)
	}
	if err := msgpack.Unmarshal(payload, &value); err != nil {
		return value, false, fmt.Errorf("shm: link %q: deserialize: %w", c.topic, err)
	}
	return value, true, nil
}

// HasMessages is a best-effort peek at the current head/tail gap.
func (c *LinkConsumer[T]) HasMessages() bool {
	return atomic.LoadUint64(&c.header.Head) != atomic.LoadUint64(&c.header.Tail)
}
