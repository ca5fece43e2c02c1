// Package backend resolves a topic name or URI into a transport kind and,
// for the kinds this build implements, a concrete Transport. It mirrors
// the core's own rule: local topics stay on shared memory, with URIs
// opting a topic into a networked transport instead.
package backend

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/horus-robotics/horus-go/internal/telemetry"
)

var dispatchLog = telemetry.Component("backend.dispatch")

// Kind identifies a resolved transport.
type Kind int

const (
	// KindLocal is the default: shm.Hub/shm.Link shared memory, no URI
	// scheme at all.
	KindLocal Kind = iota
	KindTCP
	KindUDP
	KindUnix
	KindMulticast
	KindRouter
	KindWebSocket
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindTCP:
		return "tcp"
	case KindUDP:
		return "udp"
	case KindUnix:
		return "unix"
	case KindMulticast:
		return "multicast"
	case KindRouter:
		return "router"
	case KindWebSocket:
		return "ws"
	default:
		return "unknown"
	}
}

// Endpoint is the parsed form of a topic/URI: a Kind plus whatever
// addressing information that kind needs.
type Endpoint struct {
	Kind  Kind
	Topic string
	Host  string
	Port  int
	Raw   string // original URI, kept for transports that parse it themselves
}

// Resolve parses topicOrURI into an Endpoint. A bare topic name with no
// "scheme://" prefix resolves to KindLocal. Recognized schemes are tcp,
// udp, unix, multicast, router, and ws; anything else is ErrUnknownScheme.
func Resolve(topicOrURI string) (Endpoint, error) {
	idx := strings.Index(topicOrURI, "://")
	if idx < 0 {
		return Endpoint{Kind: KindLocal, Topic: topicOrURI, Raw: topicOrURI}, nil
	}

	scheme := topicOrURI[:idx]
	u, err := url.Parse(topicOrURI)
	if err != nil {
		return Endpoint{}, fmt.Errorf("backend: parse %q: %w", topicOrURI, err)
	}

	ep := Endpoint{Host: u.Hostname(), Raw: topicOrURI}
	ep.Topic = strings.TrimPrefix(u.Path, "/")
	if ep.Topic == "" {
		ep.Topic = u.Host
	}
	if p := u.Port(); p != "" {
		fmt.Sscanf(p, "%d", &ep.Port)
	}

	switch scheme {
	case "tcp":
		ep.Kind = KindTCP
	case "udp":
		ep.Kind = KindUDP
	case "unix":
		ep.Kind = KindUnix
		ep.Host = "" // unix sockets address by path, carried in Raw
	case "multicast":
		ep.Kind = KindMulticast
	case "router":
		ep.Kind = KindRouter
	case "ws", "wss":
		ep.Kind = KindWebSocket
	default:
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return ep, nil
}

// EnvBackend names the known values for the HORUS_BACKEND environment
// variable override.
type EnvBackend int

const (
	EnvBackendHorus EnvBackend = iota
	EnvBackendIceOryx2
	EnvBackendZenoh
)

func (b EnvBackend) String() string {
	switch b {
	case EnvBackendHorus:
		return "horus"
	case EnvBackendIceOryx2:
		return "iceoryx2"
	case EnvBackendZenoh:
		return "zenoh"
	default:
		return "unknown"
	}
}

func parseEnvBackend(s string) (EnvBackend, error) {
	switch strings.ToLower(s) {
	case "horus", "native":
		return EnvBackendHorus, nil
	case "iceoryx2", "iceoryx":
		return EnvBackendIceOryx2, nil
	case "zenoh":
		return EnvBackendZenoh, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEnvBackend, s)
	}
}

var (
	envOnce    sync.Once
	envBackend EnvBackend
)

// CurrentEnvBackend resolves the process-wide backend selection: the
// HORUS_BACKEND environment variable if set and recognized, falling back
// to EnvBackendHorus (with a stderr warning) if set but unrecognized, and
// to EnvBackendHorus by default. The value is resolved once per process
// and cached, mirroring the one-shot "first available compiled backend"
// resolution the core performs at startup.
func CurrentEnvBackend() EnvBackend {
	envOnce.Do(func() {
		raw := os.Getenv("HORUS_BACKEND")
		if raw == "" {
			envBackend = EnvBackendHorus
			return
		}
		parsed, err := parseEnvBackend(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "backend: unknown HORUS_BACKEND %q, falling back to horus\n", raw)
			envBackend = EnvBackendHorus
			return
		}
		envBackend = parsed
	})
	return envBackend
}

// Transport is the capability set a networked backend exposes: a single
// outbound send of an already-serialized payload, and a non-blocking
// receive attempt. Topics resolved to KindLocal never go through a
// Transport at all — they use shm.Hub/shm.Link directly.
type Transport interface {
	Send(payload []byte) error
	TryReceive() (payload []byte, ok bool, err error)
	Close() error
}

// New constructs the Transport for a resolved Endpoint. KindLocal has no
// Transport (callers should use shm directly); the unimplemented
// networked kinds return ErrBackendUnavailable wrapped with the kind
// name, leaving room to wire a real implementation later without
// changing the dispatch contract.
func New(ep Endpoint) (Transport, error) {
	dispatchLog.Debug().Str("topic", ep.Topic).Str("kind", ep.Kind.String()).Msg("resolving transport")
	switch ep.Kind {
	case KindLocal:
		return nil, fmt.Errorf("backend: topic %q resolved to local, use shm directly", ep.Topic)
	case KindWebSocket:
		return newWebSocketTransport(ep)
	case KindTCP, KindUDP, KindUnix, KindMulticast, KindRouter:
		dispatchLog.Warn().Str("kind", ep.Kind.String()).Msg("transport not available in this build")
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, ep.Kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, ep.Kind)
	}
}
