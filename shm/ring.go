package shm

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// HeaderSize is the fixed, 64-byte-padded size of the ring header at the
// start of every Hub topic file.
const HeaderSize = 64

// SlotHeaderSize is the fixed per-slot header preceding the payload:
// sequence (8) + length (4) + producer_id (4) + timestamp_ns (8).
const SlotHeaderSize = 24

// header is the on-disk ring header, overlaid directly on the mapped
// bytes via an unsafe.Pointer cast. WriteIndex is accessed exclusively
// through atomic.* on its address — never through a plain field
// read/write.
type header struct {
	WriteIndex uint64
	N          uint32
	SlotSize   uint32
	MsgKind    uint32
	_          [44]byte // pad to HeaderSize
}

func init() {
	if unsafe.Sizeof(header{}) != HeaderSize {
		panic(fmt.Sprintf("shm: ring header size is %d, expected %d", unsafe.Sizeof(header{}), HeaderSize))
	}
}

func headerAt(data []byte) *header {
	return (*header)(unsafe.Pointer(&data[0]))
}

// validateSlotCount enforces the power-of-two slot count invariant: N
// must satisfy n&(n-1) == 0 so that index wraparound reduces to a mask.
func validateSlotCount(n uint32) error {
	if n == 0 || n&(n-1) != 0 {
		return fmt.Errorf("%w: got %d", ErrNotPowerOfTwo, n)
	}
	return nil
}

func totalRingSize(n, slotSize uint32) int64 {
	return int64(HeaderSize) + int64(n)*int64(slotSize)
}

// atomicLoadWriteIndex / atomicAddWriteIndex operate on the header's
// WriteIndex field via atomic.*Uint64, the single synchronization point
// between producers.
func atomicLoadWriteIndex(h *header) uint64 {
	return atomic.LoadUint64(&h.WriteIndex)
}

func atomicAddWriteIndex(h *header, delta uint64) uint64 {
	// Returns the pre-increment value (the claimed sequence number).
	return atomic.AddUint64(&h.WriteIndex, delta) - delta
}

// slotOffset returns the byte offset of slot `idx` (already reduced mod N
// by the caller) within the mapped region.
func slotOffset(slotSize uint32, idx uint32) int64 {
	return int64(HeaderSize) + int64(idx)*int64(slotSize)
}

// slotSequencePtr returns a pointer to the 8-byte atomic sequence field at
// the start of slot `idx`.
func slotSequencePtr(data []byte, slotSize uint32, idx uint32) *uint64 {
	off := slotOffset(slotSize, idx)
	return (*uint64)(unsafe.Pointer(&data[off]))
}

// slotFixedFields returns pointers to the length/producer_id/timestamp_ns
// fields and the payload sub-slice for slot `idx`.
func slotFixedFields(data []byte, slotSize uint32, idx uint32) (length *uint32, producerID *uint32, timestampNs *uint64, payload []byte) {
	off := slotOffset(slotSize, idx)
	length = (*uint32)(unsafe.Pointer(&data[off+8]))
	producerID = (*uint32)(unsafe.Pointer(&data[off+12]))
	timestampNs = (*uint64)(unsafe.Pointer(&data[off+16]))
	payload = data[off+SlotHeaderSize : off+int64(slotSize)]
	return
}

// atomicLoadU64/atomicStoreU64/atomicLoadU32/atomicStoreU32 give the Hub
// and Link implementations plain atomic access to fields addressed
// through unsafe.Pointer overlays on the mapped bytes.
func atomicLoadU64(p *uint64) uint64       { return atomic.LoadUint64(p) }
func atomicStoreU64(p *uint64, v uint64)   { atomic.StoreUint64(p, v) }
func atomicLoadU32(p *uint32) uint32       { return atomic.LoadUint32(p) }
func atomicStoreU32(p *uint32, v uint32)   { atomic.StoreUint32(p, v) }

// PayloadCapacity returns the number of payload bytes available per slot
// for the given total slot size.
func PayloadCapacity(slotSize uint32) int {
	return int(slotSize) - SlotHeaderSize
}
