// Package browser opens wallet popups as real Chrome pages driven over the
// DevTools protocol. The page gets a window.opener whose postMessage is
// routed back to Go, and messages sent from Go are dispatched on the page as
// MessageEvents, so an unmodified popup wallet can talk to a Go caller.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/mark3labs/walletbridge-go/retry"
	"github.com/mark3labs/walletbridge-go/transport"
)

// DefaultCallerOrigin is the origin messages appear to come from when none
// is configured.
const DefaultCallerOrigin = "http://localhost"

const (
	binding       = "__walletbridgePost"
	inboundBuffer = 16
)

type options struct {
	callerOrigin string
	headless     bool
	logger       *slog.Logger
	retry        retry.Policy
}

// Option configures an Opener.
type Option func(*options)

// WithCallerOrigin sets the origin the wallet sees on messages from Go.
func WithCallerOrigin(origin string) Option {
	return func(o *options) {
		o.callerOrigin = origin
	}
}

// WithHeadless controls whether a launched browser shows its windows.
func WithHeadless(headless bool) Option {
	return func(o *options) {
		o.headless = headless
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRetry sets the policy used while launching and attaching to Chrome.
func WithRetry(p retry.Policy) Option {
	return func(o *options) {
		o.retry = p
	}
}

func newOptions(opts []Option) options {
	o := options{
		callerOrigin: DefaultCallerOrigin,
		headless:     true,
		logger:       slog.Default(),
		retry:        retry.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Opener opens wallet URLs as pages of one browser.
type Opener struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     options
}

var _ transport.Opener = (*Opener)(nil)

// New wraps an already connected browser. Close does not shut it down.
func New(b *rod.Browser, opts ...Option) *Opener {
	return &Opener{browser: b, opts: newOptions(opts)}
}

// Launch starts a local Chrome and connects to it. The browser is shut down
// by Close.
func Launch(ctx context.Context, opts ...Option) (*Opener, error) {
	o := newOptions(opts)
	l := launcher.New().Headless(o.headless)

	controlURL, err := retry.Do(ctx, o.retry, func(context.Context) (string, error) {
		return l.Launch()
	})
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b, err := retry.Do(ctx, o.retry, func(context.Context) (*rod.Browser, error) {
		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	o.logger.Debug("browser launched", "control_url", controlURL)
	return &Opener{browser: b, launcher: l, opts: o}, nil
}

// Open creates a page, installs the opener bridge and navigates to url.
func (o *Opener) Open(ctx context.Context, url string) (transport.Handle, error) {
	origin, err := transport.ResolveOrigin(url)
	if err != nil {
		return nil, err
	}

	page, err := o.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	h := &Handle{
		page:         page,
		origin:       origin,
		callerOrigin: o.opts.callerOrigin,
		logger:       o.opts.logger.With("origin", origin),
		inbound:      make(chan transport.Inbound, inboundBuffer),
		done:         make(chan struct{}),
	}

	stop, err := page.Expose(binding, func(j gson.JSON) (interface{}, error) {
		msg, ok := parseInbound(j)
		if !ok {
			h.logger.Debug("dropping malformed message from page")
			return nil, nil
		}
		h.deliver(msg)
		return nil, nil
	})
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("expose bridge: %w", err)
	}
	h.stop = stop

	if _, err := page.EvalOnNewDocument(openerShim(binding)); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("install opener: %w", err)
	}
	if err := page.Context(ctx).Navigate(url); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("navigate: %w", err)
	}

	o.opts.logger.Debug("popup opened", "url", url)
	return h, nil
}

// Close shuts down a browser started by Launch.
func (o *Opener) Close() error {
	if o.launcher == nil {
		return nil
	}
	err := o.browser.Close()
	o.launcher.Kill()
	o.launcher.Cleanup()
	return err
}

// Handle is one popup page.
type Handle struct {
	page         *rod.Page
	origin       string
	callerOrigin string
	logger       *slog.Logger
	stop         func() error

	inbound   chan transport.Inbound
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	stopOnce  sync.Once
}

var (
	_ transport.Handle   = (*Handle)(nil)
	_ transport.Notifier = (*Handle)(nil)
)

func (h *Handle) Origin() string { return h.origin }

func (h *Handle) Messages() <-chan transport.Inbound { return h.inbound }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Send dispatches data on the page as a MessageEvent from the caller origin.
func (h *Handle) Send(ctx context.Context, data []byte) error {
	if h.closed.Load() {
		return transport.ErrClosed
	}
	_, err := h.page.Context(ctx).Eval(dispatchJS, h.callerOrigin, string(data))
	if err != nil {
		if h.Closed() {
			return transport.ErrClosed
		}
		return fmt.Errorf("dispatch message: %w", err)
	}
	return nil
}

// Closed asks the browser whether the page still exists. Once it is gone the
// handle stays closed.
func (h *Handle) Closed() bool {
	if h.closed.Load() {
		return true
	}
	if _, err := h.page.Info(); err != nil {
		h.logger.Debug("popup gone", "error", err)
		h.markClosed()
		return true
	}
	return false
}

// Close closes the page unless the browser already reported it gone.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.unbind()
		if !h.closed.Load() {
			err = h.page.Close()
		}
		h.markClosed()
	})
	return err
}

// markClosed latches the handle closed and drops the exposed binding.
func (h *Handle) markClosed() {
	h.unbind()
	if h.closed.CompareAndSwap(false, true) {
		close(h.done)
	}
}

func (h *Handle) unbind() {
	h.stopOnce.Do(func() {
		if h.stop == nil {
			return
		}
		if err := h.stop(); err != nil {
			h.logger.Debug("unbind popup", "error", err)
		}
	})
}

func (h *Handle) deliver(msg transport.Inbound) {
	select {
	case h.inbound <- msg:
	case <-h.done:
	}
}

// parseInbound reads the {origin, data} object the opener shim posts.
func parseInbound(j gson.JSON) (transport.Inbound, bool) {
	origin := j.Get("origin")
	data := j.Get("data")
	if origin.Nil() || data.Nil() {
		return transport.Inbound{}, false
	}
	return transport.Inbound{Origin: origin.Str(), Data: []byte(data.Str())}, true
}

const dispatchJS = `(origin, data) => {
	window.dispatchEvent(new MessageEvent("message", { data: JSON.parse(data), origin }));
}`

// openerShim replaces window.opener on every document the page loads.
func openerShim(name string) string {
	return fmt.Sprintf(`(() => {
	const post = (message) => {
		window[%q]({ origin: location.origin, data: JSON.stringify(message) });
	};
	Object.defineProperty(window, "opener", {
		configurable: true,
		get: () => ({ postMessage: post, closed: false }),
	});
})()`, name)
}
