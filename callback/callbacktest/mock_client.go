package callbacktest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/oasislabs/signing-gateway/callback"
)

// MockClient is a callback.Dispatcher whose calls can be asserted
type MockClient struct {
	mock.Mock

	mu        sync.Mutex
	delivered []callback.Payload
	urls      []string
}

// ImplementMock makes every delivery succeed
func ImplementMock(client *MockClient) {
	client.On("Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	client.On("Reject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

// ImplementFailure makes every delivery fail with err
func ImplementFailure(client *MockClient, err error) {
	client.On("Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(err)
	client.On("Reject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(err)
}

func (c *MockClient) record(url string, body callback.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, body)
	c.urls = append(c.urls, url)
}

func (c *MockClient) Deliver(ctx context.Context, cb *callback.ResolvedCallback, payload callback.Payload, extra map[string]string) error {
	c.record(cb.URL, payload.With(extra))
	args := c.Called(ctx, cb, payload, extra)
	return args.Error(0)
}

func (c *MockClient) Reject(ctx context.Context, url, reason string, extra map[string]string) error {
	c.record(url, callback.Payload{callback.KeyRejected: reason}.With(extra))
	args := c.Called(ctx, url, reason, extra)
	return args.Error(0)
}

// Delivered returns the bodies that were posted, extra fields
// included, in order. Rejections carry the reason under "rejected"
func (c *MockClient) Delivered() []callback.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]callback.Payload(nil), c.delivered...)
}

// URLs returns the urls posted to, in order
func (c *MockClient) URLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.urls...)
}
