package transport

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

const pipeBuffer = 16

// Pipe is an in-memory Handle whose remote end is a Remote. It is used to run
// a wallet in-process, most often in tests.
type Pipe struct {
	origin   string
	inbound  chan Inbound
	requests chan []byte

	closeOnce sync.Once
	done      chan struct{}
	closed    atomic.Bool
	closes    atomic.Int32
}

// NewPipe creates a connected pair: the caller's Handle and the wallet's Remote.
func NewPipe(origin string) (*Pipe, *Remote) {
	p := &Pipe{
		origin:   origin,
		inbound:  make(chan Inbound, pipeBuffer),
		requests: make(chan []byte, pipeBuffer),
		done:     make(chan struct{}),
	}
	return p, &Remote{pipe: p}
}

func (p *Pipe) Origin() string { return p.origin }

func (p *Pipe) Messages() <-chan Inbound { return p.inbound }

func (p *Pipe) Done() <-chan struct{} { return p.done }

func (p *Pipe) Closed() bool { return p.closed.Load() }

// Send delivers data to the remote end.
func (p *Pipe) Send(ctx context.Context, data []byte) error {
	if p.Closed() {
		return ErrClosed
	}
	msg := append([]byte(nil), data...)
	select {
	case p.requests <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the pipe from the caller's side.
func (p *Pipe) Close() error {
	p.closes.Add(1)
	p.shutdown()
	return nil
}

// CloseCalls returns how many times Close was called on the caller side.
func (p *Pipe) CloseCalls() int {
	return int(p.closes.Load())
}

func (p *Pipe) shutdown() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
	})
}

// Remote is the wallet's end of a Pipe.
type Remote struct {
	pipe *Pipe
}

// Origin is the origin the remote posts from.
func (r *Remote) Origin() string { return r.pipe.origin }

// Requests delivers messages sent by the caller.
func (r *Remote) Requests() <-chan []byte { return r.pipe.requests }

// Done is closed when either side closes the pipe.
func (r *Remote) Done() <-chan struct{} { return r.pipe.done }

// Ready posts the readiness signal.
func (r *Remote) Ready() {
	r.PostJSON(map[string]string{"method": "ready"})
}

// Post sends data to the caller from the pipe's origin.
func (r *Remote) Post(data []byte) {
	r.PostFrom(r.pipe.origin, data)
}

// PostJSON marshals v and posts it. Values that cannot be marshaled are dropped.
func (r *Remote) PostJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	r.Post(data)
}

// PostFrom sends data tagged with an arbitrary origin. Messages posted after
// the pipe closed are dropped.
func (r *Remote) PostFrom(origin string, data []byte) {
	select {
	case <-r.pipe.done:
		return
	default:
	}
	select {
	case r.pipe.inbound <- Inbound{Origin: origin, Data: append([]byte(nil), data...)}:
	case <-r.pipe.done:
	}
}

// Close simulates the user closing the wallet window.
func (r *Remote) Close() {
	r.pipe.shutdown()
}

// ServeFunc runs a wallet against one opened pipe.
type ServeFunc func(ctx context.Context, url string, remote *Remote)

// PipeOpener opens a Pipe per request and runs Serve on its remote end.
type PipeOpener struct {
	// Origin is the origin every pipe reports. Required.
	Origin string

	// Serve answers requests. It runs in its own goroutine.
	Serve ServeFunc

	// Err, when set, makes every Open fail as if the popup were blocked.
	Err error

	mu    sync.Mutex
	opens int
	last  *Pipe
}

// Open creates a pipe and starts Serve.
func (o *PipeOpener) Open(ctx context.Context, url string) (Handle, error) {
	o.mu.Lock()
	o.opens++
	if o.Err != nil {
		o.mu.Unlock()
		return nil, o.Err
	}
	p, remote := NewPipe(o.Origin)
	o.last = p
	o.mu.Unlock()

	if o.Serve != nil {
		// The wallet's lifetime is bound to the pipe, not to the caller's ctx.
		go o.Serve(context.WithoutCancel(ctx), url, remote)
	}
	return p, nil
}

// Opens returns how many times Open was called.
func (o *PipeOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// Last returns the most recently opened pipe.
func (o *PipeOpener) Last() *Pipe {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}
