package node

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Heartbeat_WriteThenRead_RoundTrips(t *testing.T) {
	name := "test-node-" + uuid.NewString()
	hb, err := NewHeartbeat(name, 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, hb.Write(StateRunning, 1500*time.Microsecond, "topic_a,topic_b"))

	state, ts, lastTick, summary, err := ReadHeartbeat(name)
	require.NoError(t, err)
	require.Equal(t, StateRunning, state)
	require.WithinDuration(t, time.Now(), ts, time.Second)
	require.Equal(t, 1500*time.Microsecond, lastTick)
	require.Equal(t, "topic_a,topic_b", summary)
}

func Test_Heartbeat_Due_GatesOnPeriod(t *testing.T) {
	name := "test-node-" + uuid.NewString()
	hb, err := NewHeartbeat(name, 50*time.Millisecond)
	require.NoError(t, err)

	require.True(t, hb.Due(time.Now()), "never-written heartbeat is always due")
	require.NoError(t, hb.Write(StateRunning, 0, ""))
	require.False(t, hb.Due(time.Now()))
	require.True(t, hb.Due(time.Now().Add(100*time.Millisecond)))
}

func Test_IsStale_TrueWhenMissing(t *testing.T) {
	require.True(t, IsStale("no-such-node-"+uuid.NewString(), time.Second))
}

func Test_IsStale_FalseJustAfterWrite(t *testing.T) {
	name := "test-node-" + uuid.NewString()
	hb, err := NewHeartbeat(name, time.Second)
	require.NoError(t, err)
	require.NoError(t, hb.Write(StateRunning, 0, ""))
	require.False(t, IsStale(name, time.Second))
}
