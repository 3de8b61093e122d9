package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"

	"github.com/mark3labs/walletbridge-go/transport"
)

// SessionURL returns the session URL carried by a wallet URL that Open
// launched.
func SessionURL(walletURL string) (string, error) {
	u, err := url.Parse(walletURL)
	if err != nil {
		return "", fmt.Errorf("url: %w", err)
	}
	s := u.Query().Get(QueryParam)
	if s == "" {
		return "", fmt.Errorf("url: missing %q parameter", QueryParam)
	}
	return s, nil
}

// Client is the wallet's side of a relay session.
type Client struct {
	ws *websocket.Conn
}

// Dial connects to sessionURL, presenting origin as the wallet's origin.
func Dial(ctx context.Context, sessionURL, origin string) (*Client, error) {
	ws, resp, err := websocket.Dial(ctx, sessionURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{origin}},
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay: dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("relay: dial: %w", err)
	}
	ws.SetReadLimit(readLimit)
	return &Client{ws: ws}, nil
}

// Send writes one message to the caller.
func (c *Client) Send(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Receive reads the next message from the caller.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

// Close hangs up.
func (c *Client) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// Bridge connects the session to a local handle until either side closes:
// caller frames are sent to h and h's messages are written back. It is how a
// wallet that speaks transport.Handle, such as one behind a Pipe, is served
// over a relay. h should implement transport.Notifier so a local close ends
// the bridge promptly.
func (c *Client) Bridge(ctx context.Context, h transport.Handle) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		for {
			data, err := c.Receive(ctx)
			if err == nil {
				err = h.Send(ctx, data)
			}
			if err != nil {
				errc <- err
				return
			}
		}
	}()

	var done <-chan struct{}
	if n, ok := h.(transport.Notifier); ok {
		done = n.Done()
	}

	for {
		select {
		case msg := <-h.Messages():
			if err := c.Send(ctx, msg.Data); err != nil {
				_ = h.Close()
				return err
			}
		case <-done:
			return c.Close()
		case err := <-errc:
			_ = h.Close()
			c.ws.CloseNow()
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			_ = h.Close()
			c.ws.CloseNow()
			return ctx.Err()
		}
	}
}
