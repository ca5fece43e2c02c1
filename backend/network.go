package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// wsTransport is a reconnecting WebSocket client: a long-lived
// goroutine that redials on error with a backoff, guarding the
// connection pointer with a mutex so Send never races a reconnect.
type wsTransport struct {
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	inbox  chan []byte
	closed chan struct{}
}

func newWebSocketTransport(ep Endpoint) (Transport, error) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &wsTransport{
		url:    ep.Raw,
		cancel: cancel,
		inbox:  make(chan []byte, 256),
		closed: make(chan struct{}),
	}
	go t.run(ctx)
	return t, nil
}

func (t *wsTransport) run(ctx context.Context) {
	defer close(t.closed)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := t.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
		}
	}
}

func (t *wsTransport) connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("backend: ws dial %q: %w", t.url, err)
	}
	defer conn.CloseNow()

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		select {
		case t.inbox <- data:
		default:
			// inbox full: drop oldest-pressure in favor of newest, same
			// lap-tolerant posture shm.Hub takes on a slow consumer.
			select {
			case <-t.inbox:
			default:
			}
			t.inbox <- data
		}
	}
}

// Send writes payload as a single binary WebSocket message. It fails
// with a plain error (not retried) when no connection is currently
// live; the caller decides whether to retry, same contract as
// shm.Hub.Publish's immediate-return-on-error.
func (t *wsTransport) Send(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("backend: ws %q not connected", t.url)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
		return fmt.Errorf("backend: ws write %q: %w", t.url, err)
	}
	return nil
}

// TryReceive returns the oldest buffered inbound message, if any,
// without blocking.
func (t *wsTransport) TryReceive() ([]byte, bool, error) {
	select {
	case data := <-t.inbox:
		return data, true, nil
	default:
		return nil, false, nil
	}
}

func (t *wsTransport) Close() error {
	t.cancel()
	<-t.closed
	return nil
}
