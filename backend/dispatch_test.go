package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Resolve_BareTopicIsLocal(t *testing.T) {
	ep, err := Resolve("sensor_data")
	require.NoError(t, err)
	require.Equal(t, KindLocal, ep.Kind)
	require.Equal(t, "sensor_data", ep.Topic)
}

func Test_Resolve_RecognizedSchemes(t *testing.T) {
	cases := map[string]Kind{
		"tcp://localhost:9000/topic_a":       KindTCP,
		"udp://localhost:9001/topic_b":       KindUDP,
		"unix:///tmp/horus.sock":             KindUnix,
		"multicast://239.0.0.1:9002/topic_c": KindMulticast,
		"router://localhost:7777/topic_d":    KindRouter,
		"ws://example.com/stream":            KindWebSocket,
	}
	for uri, want := range cases {
		ep, err := Resolve(uri)
		require.NoError(t, err, uri)
		require.Equal(t, want, ep.Kind, uri)
	}
}

func Test_Resolve_UnknownScheme(t *testing.T) {
	_, err := Resolve("carrier-pigeon://nowhere/topic")
	require.ErrorIs(t, err, ErrUnknownScheme)
}

func Test_New_LocalHasNoTransport(t *testing.T) {
	ep, err := Resolve("local_topic")
	require.NoError(t, err)
	_, err = New(ep)
	require.Error(t, err)
}

func Test_New_UnimplementedNetworkedKindsReturnBackendUnavailable(t *testing.T) {
	ep, err := Resolve("tcp://localhost:9000/topic")
	require.NoError(t, err)
	_, err = New(ep)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func Test_ParseEnvBackend_RecognizesAliasesAndRejectsUnknown(t *testing.T) {
	b, err := parseEnvBackend("native")
	require.NoError(t, err)
	require.Equal(t, EnvBackendHorus, b)

	b, err = parseEnvBackend("iceoryx")
	require.NoError(t, err)
	require.Equal(t, EnvBackendIceOryx2, b)

	_, err = parseEnvBackend("quantum-link")
	require.ErrorIs(t, err, ErrUnknownEnvBackend)
}
