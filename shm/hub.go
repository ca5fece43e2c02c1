package shm

import (
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultHubCapacity = 1024
	defaultSlotSize    = 256
	defaultTornRetries = 8
	tornRetryPause     = time.Microsecond
)

// HubConfig configures a Hub at construction. Zero-value fields take the
// package defaults.
type HubConfig struct {
	// Capacity is the ring's slot count N. Must be a power of two.
	Capacity uint32
	// SlotSize is the total per-slot byte size, including the 24-byte
	// slot header. Publishes of payloads larger than SlotSize-24 fail
	// with ErrPayloadTooLarge.
	SlotSize uint32
	// MsgKind identifies the payload schema. 0 means "unchecked": no
	// mismatch validation is performed against an existing file.
	MsgKind uint32
	// MaxTornRetries bounds the receive-side retry loop on a slot that
	// never settles.
	MaxTornRetries int
	// Logger receives Lap/Torn/Corrupt events. Nil disables emission.
	Logger Logger
}

func (c HubConfig) withDefaults() HubConfig {
	if c.Capacity == 0 {
		c.Capacity = defaultHubCapacity
	}
	if c.SlotSize == 0 {
		c.SlotSize = defaultSlotSize
	}
	if c.MaxTornRetries == 0 {
		c.MaxTornRetries = defaultTornRetries
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	return c
}

// Hub is a multi-producer, multi-consumer shared-memory topic ring. Each
// process-local handle holds a private read cursor (next_read); the
// cursor is never shared across handles, even within one process — two
// Hub handles on the same topic observe independent positions.
type Hub[T any] struct {
	topic      string
	region     *Region
	header     *header
	data       []byte
	n          uint32
	slotSize   uint32
	nextRead   uint64
	producerID uint32
	logger     Logger
	maxRetries int
}

// NewHub opens or creates the topic file for `topic` and returns a Hub
// handle positioned at the current write index, so a freshly attached
// consumer only observes messages published after it attaches.
func NewHub[T any](topic string, cfg HubConfig) (*Hub[T], error) {
	cfg = cfg.withDefaults()
	if err := validateSlotCount(cfg.Capacity); err != nil {
		return nil, err
	}
	if cfg.SlotSize <= SlotHeaderSize {
		return nil, fmt.Errorf("shm: slot size %d too small for %d-byte slot header", cfg.SlotSize, SlotHeaderSize)
	}

	size := totalRingSize(cfg.Capacity, cfg.SlotSize)
	region, err := OpenOrCreate(topic, size)
	if err != nil {
		return nil, err
	}

	h := headerAt(region.Bytes())
	if region.IsOwner() {
		h.N = cfg.Capacity
		h.SlotSize = cfg.SlotSize
		h.MsgKind = cfg.MsgKind
	} else {
		if h.N != cfg.Capacity || h.SlotSize != cfg.SlotSize {
			region.Close()
			return nil, fmt.Errorf("shm: topic %q geometry mismatch (N=%d/%d slot_size=%d/%d)",
				topic, h.N, cfg.Capacity, h.SlotSize, cfg.SlotSize)
		}
		if cfg.MsgKind != 0 && h.MsgKind != 0 && h.MsgKind != cfg.MsgKind {
			region.Close()
			return nil, fmt.Errorf("shm: topic %q: %w (have %d, want %d)", topic, ErrMsgKindMismatch, h.MsgKind, cfg.MsgKind)
		}
	}

	hub := &Hub[T]{
		topic:      topic,
		region:     region,
		header:     h,
		data:       region.Bytes(),
		n:          cfg.Capacity,
		slotSize:   cfg.SlotSize,
		nextRead:   atomicLoadWriteIndex(h),
		producerID: uint32(os.Getpid()),
		logger:     cfg.Logger,
		maxRetries: cfg.MaxTornRetries,
	}
	return hub, nil
}

// Topic returns the topic name this handle is bound to.
func (hub *Hub[T]) Topic() string { return hub.topic }

// Close unmaps the handle's region. The topic file itself is left intact.
func (hub *Hub[T]) Close() error { return hub.region.Close() }

// Publish serializes `value`, claims the next global sequence number, and
// writes it into the corresponding slot.
// Publish always succeeds unless serialization fails or the payload
// exceeds the slot's payload capacity — in the latter case the already-
// claimed sequence number is never filled in, leaving a permanent gap.
// A consumer whose cursor reaches the gap gets ErrTorn from TryReceive,
// without its cursor advancing, until later publishes lap it past the
// gap's slot.
func (hub *Hub[T]) Publish(value T) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("shm: publish %q: serialize: %w", hub.topic, err)
	}

	capacity := PayloadCapacity(hub.slotSize)
	oversized := len(payload) > capacity

	// The sequence is claimed unconditionally, before the size check: an
	// oversized payload still consumes a write_index slot, left
	// permanently unfilled, rather than silently refusing to advance
	// (the gap-tolerant policy).
	s := atomicAddWriteIndex(hub.header, 1)
	if oversized {
		return fmt.Errorf("shm: publish %q: %w (%d > %d)", hub.topic, ErrPayloadTooLarge, len(payload), capacity)
	}
	idx := uint32(s % uint64(hub.n))
	seqPtr := slotSequencePtr(hub.data, hub.slotSize, idx)

	atomicStoreU64(seqPtr, 2*s+1) // odd: write in progress

	length, producerID, timestampNs, slotPayload := slotFixedFields(hub.data, hub.slotSize, idx)
	atomicStoreU32(length, uint32(len(payload)))
	atomicStoreU32(producerID, hub.producerID)
	atomicStoreU64(timestampNs, uint64(time.Now().UnixNano()))
	copy(slotPayload, payload)

	atomicStoreU64(seqPtr, 2*s+2) // even: committed, sequence s+1
	return nil
}

// TryReceive returns the next unread message for this handle's cursor, or
// ok=false if the handle is caught up with the producer(s).
func (hub *Hub[T]) TryReceive() (value T, ok bool, err error) {
	for {
		w := atomicLoadWriteIndex(hub.header)
		r := hub.nextRead
		if w <= r {
			return value, false, nil
		}

		if w-r > uint64(hub.n) {
			skipped := (w - uint64(hub.n)) - r
			hub.nextRead = w - uint64(hub.n)
			hub.logger.LogLap(hub.topic, skipped)
			r = hub.nextRead
		}

		idx := uint32(r % uint64(hub.n))
		seqPtr := slotSequencePtr(hub.data, hub.slotSize, idx)

		settled := false
		var length uint32
		var payloadCopy []byte
		for attempt := 0; attempt < hub.maxRetries; attempt++ {
			before := atomicLoadU64(seqPtr)
			if before%2 != 0 || before/2 != r+1 {
				time.Sleep(tornRetryPause)
				continue
			}
			lengthPtr, _, _, slotPayload := slotFixedFields(hub.data, hub.slotSize, idx)
			length = atomicLoadU32(lengthPtr)
			if int(length) > len(slotPayload) {
				// corrupt length field; treat as a torn read and retry.
				time.Sleep(tornRetryPause)
				continue
			}
			payloadCopy = append([]byte(nil), slotPayload[:length]...)
			after := atomicLoadU64(seqPtr)
			if after != before {
				time.Sleep(tornRetryPause)
				continue
			}
			settled = true
			break
		}
		if !settled {
			hub.logger.LogTorn(hub.topic)
			return value, false, fmt.Errorf("shm: receive %q: %w", hub.topic, ErrTorn)
		}

		hub.nextRead = r + 1
		if err := msgpack.Unmarshal(payloadCopy, &value); err != nil {
			hub.logger.LogCorrupt(hub.topic)
			continue // try the next slot within this same call
		}
		return value, true, nil
	}
}

// HasMessages is a best-effort peek using this handle's own cursor.
func (hub *Hub[T]) HasMessages() bool {
	return atomicLoadWriteIndex(hub.header) > hub.nextRead
}

// ReceiveBlocking spins (with a short sleep between polls) until a message
// is available or the timeout elapses. It is a convenience wrapper, not a
// correctness requirement — callers needing precise wakeups should poll
// TryReceive from their own scheduler tick instead.
func (hub *Hub[T]) ReceiveBlocking(timeout time.Duration) (value T, ok bool, err error) {
	deadline := time.Now().Add(timeout)
	for {
		value, ok, err = hub.TryReceive()
		if ok || err != nil {
			return value, ok, err
		}
		if time.Now().After(deadline) {
			return value, false, nil
		}
		time.Sleep(100 * time.Microsecond)
	}
}
