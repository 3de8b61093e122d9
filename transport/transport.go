// Package transport defines the primitive used to reach a wallet running in
// a separate browsing context: open it at a URL, post messages to it, receive
// its messages tagged with their origin, and notice when the user closes it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrClosed is returned by Send once the handle is closed.
var ErrClosed = errors.New("transport: closed")

// Inbound is a message received from the remote context.
type Inbound struct {
	// Origin is the origin the message was posted from.
	Origin string

	// Data is the raw JSON payload.
	Data []byte
}

// Handle is one open browsing context. Closure is terminal: once Closed
// reports true it never reports false again.
type Handle interface {
	// Origin is the resolved origin of the opened context.
	Origin() string

	// Send posts a message to the remote context without waiting for an answer.
	Send(ctx context.Context, data []byte) error

	// Messages delivers every inbound message. The channel is never closed.
	Messages() <-chan Inbound

	// Closed reports whether the remote context has been closed.
	Closed() bool

	// Close closes the remote context. It is safe to call more than once.
	Close() error
}

// Notifier is implemented by handles that can push a close notification
// instead of relying on Closed being polled.
type Notifier interface {
	Done() <-chan struct{}
}

// Opener opens a browsing context pointed at a URL.
type Opener interface {
	Open(ctx context.Context, url string) (Handle, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, url string) (Handle, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, url string) (Handle, error) {
	return f(ctx, url)
}

// ResolveOrigin returns the scheme://host[:port] origin of rawURL.
func ResolveOrigin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url: %q is not absolute", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
