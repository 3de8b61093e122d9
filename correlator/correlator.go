// Package correlator runs one request/response exchange with a wallet over a
// private transport: open the wallet, wait for its readiness signal, send a
// single request, and settle on the matching response or on the user closing
// the wallet.
package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/transport"
)

// State is a step of the exchange.
type State int

const (
	StateOpening State = iota
	StateAwaitingReady
	StateAwaitingResponse
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateSettled:
		return "settled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Call describes one exchange.
type Call struct {
	// Method is sent in the request and expected in the response.
	Method walletbridge.Method

	// Network scopes the request to a chain family.
	Network walletbridge.Family

	// ChainID is the active chain at call time, if any.
	ChainID walletbridge.ChainID

	// Params builds the request payload. It runs after the wallet signals
	// readiness; a nil Params sends no payload.
	Params func() (any, error)
}

// Correlator opens a new transport for every call.
type Correlator struct {
	opener       transport.Opener
	walletURL    string
	pollInterval time.Duration
	logger       *slog.Logger
	hook         func(walletbridge.Method, State)
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithPollInterval sets how often the transport is checked for closure.
func WithPollInterval(d time.Duration) Option {
	return func(c *Correlator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Correlator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStateHook registers a function called on every state transition.
func WithStateHook(fn func(walletbridge.Method, State)) Option {
	return func(c *Correlator) {
		c.hook = fn
	}
}

// New creates a Correlator that opens walletURL through opener.
func New(opener transport.Opener, walletURL string, opts ...Option) *Correlator {
	c := &Correlator{
		opener:       opener,
		walletURL:    walletURL,
		pollInterval: walletbridge.DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs one exchange and returns the raw result. Every failure is a
// *walletbridge.ProviderError:
//   - the transport could not be opened: CodeInternalError
//   - the user closed the wallet: CodeUserRejected
//   - Params failed: its own code, or CodeInvalidParams
//   - the wallet answered with an error: the wallet's code
//   - ctx ended: CodeInternalError wrapping ctx.Err()
func (c *Correlator) Do(ctx context.Context, call Call) (json.RawMessage, error) {
	log := c.logger.With("method", string(call.Method))
	c.transition(log, call.Method, StateOpening)

	h, err := c.opener.Open(ctx, c.walletURL)
	if err != nil {
		c.transition(log, call.Method, StateSettled)
		log.Warn("failed to open wallet", "error", err)
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "failed to open wallet", err)
	}
	log = log.With("origin", h.Origin())

	ticker := time.NewTicker(c.pollInterval)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			ticker.Stop()
			if !h.Closed() {
				if err := h.Close(); err != nil {
					log.Debug("failed to close transport", "error", err)
				}
			}
			c.transition(log, call.Method, StateSettled)
		})
	}
	defer cleanup()

	var closed <-chan struct{}
	if n, ok := h.(transport.Notifier); ok {
		closed = n.Done()
	}

	x := &exchange{c: c, call: call, h: h, log: log, cleanup: cleanup, state: StateAwaitingReady}
	c.transition(log, call.Method, x.state)

	for {
		select {
		case <-ctx.Done():
			return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "request cancelled", ctx.Err())

		case <-closed:
			return x.drainClosed(ctx)

		case <-ticker.C:
			if h.Closed() {
				return x.drainClosed(ctx)
			}

		case in := <-h.Messages():
			if res, done, err := x.handle(ctx, in); done {
				return res, err
			}
		}
	}
}

// exchange is the per-call state of Do.
type exchange struct {
	c       *Correlator
	call    Call
	h       transport.Handle
	log     *slog.Logger
	cleanup func()
	state   State
}

// handle processes one inbound message and reports whether the exchange settled.
func (x *exchange) handle(ctx context.Context, in transport.Inbound) (json.RawMessage, bool, error) {
	if in.Origin != x.h.Origin() {
		x.log.Debug("ignoring message from unexpected origin", "from", in.Origin)
		return nil, false, nil
	}
	var resp walletbridge.Response
	if err := json.Unmarshal(in.Data, &resp); err != nil || resp.Method == "" {
		x.log.Debug("ignoring malformed message")
		return nil, false, nil
	}

	switch x.state {
	case StateAwaitingReady:
		if resp.Method != walletbridge.MethodReady {
			return nil, false, nil
		}
		data, err := x.c.build(x.call)
		if err != nil {
			x.cleanup()
			return nil, true, err
		}
		if err := x.h.Send(ctx, data); err != nil {
			if x.h.Closed() {
				return nil, true, userClosed()
			}
			return nil, true, walletbridge.NewProviderError(walletbridge.CodeInternalError, "failed to send request", err)
		}
		x.state = StateAwaitingResponse
		x.c.transition(x.log, x.call.Method, x.state)

	case StateAwaitingResponse:
		if resp.Method != x.call.Method {
			return nil, false, nil
		}
		if perr := resp.Err(); perr != nil {
			x.log.Debug("wallet returned an error", "code", int(perr.Code))
			return nil, true, perr
		}
		return resp.Result, true, nil
	}
	return nil, false, nil
}

// drainClosed settles a closed exchange. A response that arrived before the
// window closed still wins over the closure.
func (x *exchange) drainClosed(ctx context.Context) (json.RawMessage, error) {
	for {
		select {
		case in := <-x.h.Messages():
			if x.state != StateAwaitingResponse {
				continue
			}
			if res, done, err := x.handle(ctx, in); done {
				return res, err
			}
		default:
			return nil, userClosed()
		}
	}
}

func (c *Correlator) build(call Call) ([]byte, error) {
	var params any
	if call.Params != nil {
		p, err := call.Params()
		if err != nil {
			return nil, walletbridge.AsProviderError(err, walletbridge.CodeInvalidParams, "failed to build request")
		}
		params = p
	}
	req, err := walletbridge.NewRequest(call.Method, call.Network, call.ChainID, params)
	if err != nil {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "failed to build request", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "failed to encode request", err)
	}
	return data, nil
}

func (c *Correlator) transition(log *slog.Logger, method walletbridge.Method, s State) {
	log.Debug("correlator state", "state", s.String())
	if c.hook != nil {
		c.hook(method, s)
	}
}

func userClosed() error {
	return walletbridge.NewProviderError(walletbridge.CodeUserRejected, "user closed the wallet window", nil)
}
