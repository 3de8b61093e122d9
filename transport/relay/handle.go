package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/mark3labs/walletbridge-go/transport"
)

const inboundBuffer = 16

// Handle is the caller's side of one relay session.
type Handle struct {
	server *Server
	id     string
	origin string
	timer  *time.Timer

	inbound   chan transport.Inbound
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	mu    sync.Mutex
	taken bool
	ws    *websocket.Conn
}

var (
	_ transport.Handle   = (*Handle)(nil)
	_ transport.Notifier = (*Handle)(nil)
)

func newHandle(s *Server, id, origin string) *Handle {
	return &Handle{
		server:  s,
		id:      id,
		origin:  origin,
		inbound: make(chan transport.Inbound, inboundBuffer),
		done:    make(chan struct{}),
	}
}

// ID is the session id carried in the token.
func (h *Handle) ID() string { return h.id }

func (h *Handle) Origin() string { return h.origin }

func (h *Handle) Messages() <-chan transport.Inbound { return h.inbound }

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Closed() bool { return h.closed.Load() }

// Send writes data to the wallet as a text frame.
func (h *Handle) Send(ctx context.Context, data []byte) error {
	if h.Closed() {
		return transport.ErrClosed
	}
	h.mu.Lock()
	ws := h.ws
	h.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		if h.Closed() {
			return transport.ErrClosed
		}
		return fmt.Errorf("relay: write: %w", err)
	}
	return nil
}

// Close ends the session. The socket, if any, is closed by the goroutine
// serving it.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.done)
		if h.timer != nil {
			h.timer.Stop()
		}
		h.server.forget(h.id)
	})
	return nil
}

func (h *Handle) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.taken || h.Closed() {
		return false
	}
	h.taken = true
	return true
}

func (h *Handle) claimed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.taken
}

func (h *Handle) accept(w http.ResponseWriter, r *http.Request) error {
	// The origin was matched against the token audience before the upgrade.
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return err
	}
	ws.SetReadLimit(readLimit)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Closed() {
		ws.CloseNow()
		return transport.ErrClosed
	}
	h.ws = ws
	return nil
}

// serve pumps frames until the wallet hangs up or the handle is closed.
func (h *Handle) serve(ctx context.Context) error {
	h.mu.Lock()
	ws := h.ws
	h.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- h.read(ctx, ws) }()

	select {
	case err := <-errc:
		_ = h.Close()
		ws.CloseNow()
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return nil
		}
		return err
	case <-h.done:
		_ = ws.Close(websocket.StatusNormalClosure, "session closed")
		<-errc
		return nil
	}
}

func (h *Handle) read(ctx context.Context, ws *websocket.Conn) error {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.server.opts.logger.Debug("ignoring binary relay frame", "session", h.id)
			continue
		}
		select {
		case h.inbound <- transport.Inbound{Origin: h.origin, Data: data}:
		case <-h.done:
			return nil
		}
	}
}
