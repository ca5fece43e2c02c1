package shm

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type tick struct {
	Seq uint64 `msgpack:"seq"`
}

func uniqueTopic(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("test_%s_%s", t.Name(), uuid.NewString())
}

func Test_Hub_PublishThenReceive_RoundTrips(t *testing.T) {
	topic := uniqueTopic(t)
	hub, err := NewHub[tick](topic, HubConfig{Capacity: 4, SlotSize: 64})
	require.NoError(t, err)
	defer hub.Close()

	require.NoError(t, hub.Publish(tick{Seq: 1}))
	require.NoError(t, hub.Publish(tick{Seq: 2}))

	v, ok, err := hub.TryReceive()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, v.Seq)

	v, ok, err = hub.TryReceive()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, v.Seq)

	_, ok, err = hub.TryReceive()
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_Hub_FreshConsumer_OnlySeesFuturePublishes(t *testing.T) {
	topic := uniqueTopic(t)
	producer, err := NewHub[tick](topic, HubConfig{Capacity: 4, SlotSize: 64})
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.Publish(tick{Seq: 1}))

	consumer, err := NewHub[tick](topic, HubConfig{Capacity: 4, SlotSize: 64})
	require.NoError(t, err)
	defer consumer.Close()

	_, ok, err := consumer.TryReceive()
	require.NoError(t, err)
	require.False(t, ok, "a consumer attached after a publish must not see it")

	require.NoError(t, producer.Publish(tick{Seq: 2}))
	v, ok, err := consumer.TryReceive()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, v.Seq)
}

// Test_Hub_LapPolicy_SkipsToNewest checks that a 4-slot ring that takes
// 10 publishes before the consumer reads anything lands the consumer on
// message index 6 (0-based), having skipped 0..5.
func Test_Hub_LapPolicy_SkipsToNewest(t *testing.T) {
	topic := uniqueTopic(t)
	hub, err := NewHub[tick](topic, HubConfig{Capacity: 4, SlotSize: 64})
	require.NoError(t, err)
	defer hub.Close()

	for i := uint64(0); i < 10; i++ {
		require.NoError(t, hub.Publish(tick{Seq: i}))
	}

	v, ok, err := hub.TryReceive()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 6, v.Seq)
}

type variablePayload struct {
	Data []byte `msgpack:"data"`
}

// Test_Hub_PayloadTooLarge_ClaimsSequenceWithoutWriting pins the
// gap-tolerant policy: an oversized publish still consumes a
// write_index slot, so the sequence number it claimed is a permanent,
// never-filled gap rather than being skipped at claim time.
func Test_Hub_PayloadTooLarge_ClaimsSequenceWithoutWriting(t *testing.T) {
	topic := uniqueTopic(t)
	hub, err := NewHub[variablePayload](topic, HubConfig{Capacity: 4, SlotSize: 64})
	require.NoError(t, err)
	defer hub.Close()

	require.NoError(t, hub.Publish(variablePayload{Data: []byte("a")})) // seq 0
	err = hub.Publish(variablePayload{Data: make([]byte, 256)})         // seq 1: claimed, never written
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	require.NoError(t, hub.Publish(variablePayload{Data: []byte("b")})) // seq 2
	require.NoError(t, hub.Publish(variablePayload{Data: []byte("c")})) // seq 3
	require.NoError(t, hub.Publish(variablePayload{Data: []byte("d")})) // seq 4, wraps over seq 0's slot
	require.NoError(t, hub.Publish(variablePayload{Data: []byte("e")})) // seq 5, wraps over seq 1's gap slot

	var got []string
	for {
		v, ok, err := hub.TryReceive()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(v.Data))
	}
	// "a" (seq 0) is skipped by the lap jump to w-n; the seq-1 gap is
	// never observable as a distinct message, but once its slot is
	// overwritten by seq 5 ("e"), reads resume normally.
	require.Equal(t, []string{"b", "c", "d", "e"}, got)
}

// Test_Hub_TornRead_ReturnsErrTornAfterExhaustingRetries manufactures a
// slot stuck mid-write (odd sequence, never completed) and checks that
// TryReceive, after exhausting its retry budget, surfaces ErrTorn rather
// than silently reporting ok=false.
func Test_Hub_TornRead_ReturnsErrTornAfterExhaustingRetries(t *testing.T) {
	topic := uniqueTopic(t)
	hub, err := NewHub[tick](topic, HubConfig{Capacity: 4, SlotSize: 64, MaxTornRetries: 2})
	require.NoError(t, err)
	defer hub.Close()

	s := atomicAddWriteIndex(hub.header, 1)
	idx := uint32(s % uint64(hub.n))
	seqPtr := slotSequencePtr(hub.data, hub.slotSize, idx)
	atomicStoreU64(seqPtr, 2*s+1) // odd: write in progress, never settles

	_, ok, err := hub.TryReceive()
	require.False(t, ok)
	require.ErrorIs(t, err, ErrTorn)
}

func Test_Hub_ConcurrentPublishers_NoPanicNoCorruption(t *testing.T) {
	topic := uniqueTopic(t)
	hub, err := NewHub[tick](topic, HubConfig{Capacity: 1024, SlotSize: 64})
	require.NoError(t, err)
	defer hub.Close()

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = hub.Publish(tick{Seq: uint64(p*perProducer + i)})
			}
		}(p)
	}
	wg.Wait()

	count := 0
	for {
		_, ok, err := hub.TryReceive()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.LessOrEqual(t, count, producers*perProducer)
}
