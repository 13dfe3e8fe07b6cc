// Package sessiontest provides in memory push channels for tests
package sessiontest

import (
	"context"
	"sync"

	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/session"
)

// Transport is a push channel connection driven by the test
type Transport struct {
	URL string

	frames chan session.Frame
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newTransport(url string) *Transport {
	return &Transport{
		URL:    url,
		frames: make(chan session.Frame, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

// SendText pushes a text frame
func (t *Transport) SendText(s string) {
	t.frames <- session.Frame{Text: true, Data: []byte(s)}
}

// SendBinary pushes a binary frame
func (t *Transport) SendBinary(b []byte) {
	t.frames <- session.Frame{Data: b}
}

// Fail makes the next read fail with err. Use session.ErrClosed to
// simulate a clean close by the remote end
func (t *Transport) Fail(err error) {
	t.errs <- err
}

// Closed is closed once the connection has been closed locally
func (t *Transport) Closed() <-chan struct{} {
	return t.closed
}

// Read implementation of session.Transport for Transport
func (t *Transport) Read(ctx context.Context) (session.Frame, error) {
	select {
	case <-ctx.Done():
		return session.Frame{}, ctx.Err()
	case <-t.closed:
		return session.Frame{}, stderr.New("use of closed connection")
	case f := <-t.frames:
		return f, nil
	case err := <-t.errs:
		return session.Frame{}, err
	}
}

// Close implementation of session.Transport for Transport
func (t *Transport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// Dialer hands out Transports. Every successful dial is published on
// Conns
type Dialer struct {
	Conns chan *Transport

	mu       sync.Mutex
	failures int
	dials    map[string]int
}

// NewDialer creates a new Dialer
func NewDialer() *Dialer {
	return &Dialer{
		Conns: make(chan *Transport, 16),
		dials: make(map[string]int),
	}
}

// FailNext makes the next n dials fail
func (d *Dialer) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

// Dials returns how many times url has been dialed
func (d *Dialer) Dials(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[url]
}

// Dial implementation of session.Dialer for Dialer
func (d *Dialer) Dial(ctx context.Context, url string) (session.Transport, error) {
	d.mu.Lock()
	d.dials[url]++
	if d.failures > 0 {
		d.failures--
		d.mu.Unlock()
		return nil, stderr.New("connection refused")
	}
	d.mu.Unlock()

	t := newTransport(url)
	d.Conns <- t
	return t, nil
}
