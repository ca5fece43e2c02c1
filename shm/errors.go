package shm

import "errors"

// Error kinds surfaced by the shm package, covering the transport
// layer's own failure modes.
var (
	// ErrPayloadTooLarge is returned by Hub.Publish and Link.Send when the
	// serialized payload does not fit in a slot.
	ErrPayloadTooLarge = errors.New("shm: payload too large for slot")

	// ErrFull is returned by Link.Send when the channel has no free slots.
	// The MPMC Hub never returns this; it overwrites the oldest slot instead.
	ErrFull = errors.New("shm: link is full")

	// ErrTorn is returned when a receive exhausts its retry budget on a
	// slot that never settles to a readable state.
	ErrTorn = errors.New("shm: torn read, retries exhausted")

	// ErrMsgKindMismatch is returned on open when an existing topic file's
	// msg_kind does not match the opener's expectation.
	ErrMsgKindMismatch = errors.New("shm: msg_kind mismatch with existing topic file")

	// ErrNotPowerOfTwo is returned when a ring is constructed with a slot
	// count that is not a power of two.
	ErrNotPowerOfTwo = errors.New("shm: slot capacity must be a power of two")

	// ErrRegionMissing is returned by OpenExisting when the backing file
	// does not exist.
	ErrRegionMissing = errors.New("shm: region does not exist")

	// ErrDuplicateRole names the condition of more than one producer or
	// consumer handle being constructed for the same topic in this
	// process. No function returns it: Link only logs a warning for it.
	ErrDuplicateRole = errors.New("shm: duplicate producer/consumer handle for topic")
)
