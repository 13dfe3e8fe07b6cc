package session

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"
	"unicode/utf8"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/concurrent"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/seal"
)

// ConnState is the state of the push channel connection of a session
type ConnState uint32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// connection keeps the push channel of a session open. A connection
// that fails is dialed again following the retry policy. A connection
// that is closed cleanly by the remote end is not
type connection struct {
	id      string
	url     string
	key     *ecc.PrivateKey
	dialer  Dialer
	handler func() Handler
	retry   concurrent.RetryConfig
	logger  log.Logger

	state  uint32
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *connection) State() ConnState {
	return ConnState(atomic.LoadUint32(&c.state))
}

func (c *connection) setState(ctx context.Context, state ConnState) {
	prev := ConnState(atomic.SwapUint32(&c.state, uint32(state)))
	if prev != state {
		c.logger.Debug(ctx, "connection state changed", log.MapFields{
			"call_type": "ConnectionStateChange",
			"from":      prev.String(),
			"to":        state.String(),
		})
	}
}

// Done returns true once the connection will not be dialed again
func (c *connection) Done() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *connection) start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(log.PutSessionID(ctx, c.id))
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		_, err := concurrent.RetryWithConfig(ctx, concurrent.SupplierFunc(func() (interface{}, error) {
			return nil, c.connect(ctx)
		}), c.retry)

		c.setState(ctx, Disconnected)
		if err != nil && ctx.Err() == nil {
			c.logger.Warn(ctx, "push channel gave up reconnecting", log.MapFields{
				"call_type": "ConnectionGiveUp",
				"url":       c.url,
				"err":       err.Error(),
			})
		}
	}()
}

func (c *connection) stop() {
	c.cancel()
	<-c.done
}

// connect runs a single connection until it ends. A nil error means
// that the connection must not be retried
func (c *connection) connect(ctx context.Context) error {
	c.setState(ctx, Connecting)
	t, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.setState(ctx, Disconnected)
		if ctx.Err() != nil {
			return concurrent.ErrCannotRecover{Cause: ctx.Err()}
		}

		c.logger.Debug(ctx, "failed to dial push channel", log.MapFields{
			"call_type": "DialFailure",
			"url":       c.url,
			"err":       err.Error(),
		})
		return err
	}

	c.setState(ctx, Connected)
	err = c.listen(ctx, t)
	_ = t.Close()
	c.setState(ctx, Disconnected)

	switch {
	case ctx.Err() != nil:
		return concurrent.ErrCannotRecover{Cause: ctx.Err()}
	case errors.Is(err, ErrClosed):
		c.logger.Info(ctx, "push channel closed", log.MapFields{
			"call_type": "ConnectionClosed",
			"url":       c.url,
		})
		return nil
	default:
		c.logger.Warn(ctx, "push channel disconnected", log.MapFields{
			"call_type": "ConnectionFailure",
			"url":       c.url,
			"err":       err.Error(),
		})
		return err
	}
}

func (c *connection) listen(ctx context.Context, t Transport) error {
	for {
		frame, err := t.Read(ctx)
		if err != nil {
			return err
		}

		c.handleFrame(ctx, frame)
	}
}

// handleFrame delivers the request carried by a frame. Frames that
// cannot be understood are logged and dropped so that the connection
// stays up
func (c *connection) handleFrame(ctx context.Context, frame Frame) {
	uri, err := c.decodeFrame(frame)
	if err != nil {
		c.logger.Warn(ctx, "dropped push channel frame", log.MapFields{
			"call_type": "DecodeFrameFailure",
			"err":       err.Error(),
		})
		return
	}

	handler := c.handler()
	if handler == nil {
		c.logger.Warn(ctx, "no handler for push channel request", log.MapFields{
			"call_type": "HandleRequestFailure",
		})
		return
	}

	if err := handler.HandleSessionRequest(ctx, c.id, uri); err != nil {
		c.logger.Warn(ctx, "failed to handle push channel request", log.MapFields{
			"call_type": "HandleRequestFailure",
			"err":       err.Error(),
		})
	}
}

func (c *connection) decodeFrame(frame Frame) (string, error) {
	if utf8.Valid(frame.Data) {
		s := string(frame.Data)
		if u, err := url.Parse(s); err == nil && len(u.Scheme) > 0 {
			return s, nil
		}
	}

	msg, err := codec.DecodeSealedMessage(frame.Data)
	if err != nil {
		return "", err
	}

	return seal.Decrypt(msg, c.key)
}
