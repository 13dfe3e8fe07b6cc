package session

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	stderr "github.com/pkg/errors"
)

// ErrClosed is returned by a Transport when the remote end closed the
// connection cleanly
var ErrClosed = stderr.New("connection closed")

// Frame is a message received on a push channel. Text frames carry
// request URIs and binary frames carry sealed messages
type Frame struct {
	Text bool
	Data []byte
}

// Transport is an open push channel connection
type Transport interface {
	// Read blocks until a frame arrives, the connection fails or
	// ctx is done
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Dialer opens push channel connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// DialerFunc allows functions to act as a Dialer
type DialerFunc func(ctx context.Context, url string) (Transport, error)

// Dial implementation of Dialer for DialerFunc
func (f DialerFunc) Dial(ctx context.Context, url string) (Transport, error) {
	return f(ctx, url)
}

// WebsocketDialer opens push channels over websockets
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

// NewWebsocketDialer creates a WebsocketDialer with the default
// websocket settings
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{Dialer: websocket.DefaultDialer}
}

// Dial implementation of Dialer for WebsocketDialer
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, res, err := d.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		if res != nil {
			return nil, stderr.Wrapf(err, "websocket handshake failed with status %d", res.StatusCode)
		}
		return nil, stderr.Wrap(err, "failed to dial websocket")
	}

	return &websocketTransport{conn: conn}, nil
}

type websocketTransport struct {
	conn *websocket.Conn
	once sync.Once
}

func (t *websocketTransport) Read(ctx context.Context) (Frame, error) {
	// reads are not cancellable so the connection is closed to
	// unblock them
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-done:
		}
	}()

	typ, data, err := t.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, stderr.WithStack(ctx.Err())
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Frame{}, ErrClosed
		}
		return Frame{}, stderr.Wrap(err, "failed to read from websocket")
	}

	return Frame{Text: typ == websocket.TextMessage, Data: data}, nil
}

func (t *websocketTransport) Close() error {
	var err error
	t.once.Do(func() {
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = t.conn.Close()
	})
	return err
}
