package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/errors"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/metrics"
	"github.com/oasislabs/signing-gateway/rw"
)

const (
	methodDeliver = "deliver"
	methodReject  = "reject"

	maxDrainSize = 64 << 10
)

// Dispatcher delivers results to requesters
type Dispatcher interface {
	Deliver(ctx context.Context, cb *ResolvedCallback, payload Payload, extra map[string]string) error
	Reject(ctx context.Context, url, reason string, extra map[string]string) error
}

// HttpClient is the basic interface for the
// underlying http client used by the Client
type HttpClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Deps are the required instantiated dependencies
// that a Client requires
type Deps struct {
	Logger log.Logger
	Client HttpClient
}

// Client is the Dispatcher that POSTs results as JSON. Every call
// issues exactly one request. Failed deliveries are not retried since
// the requester may already have acted on a previous attempt
type Client struct {
	client  HttpClient
	logger  log.Logger
	metrics *metrics.ServiceMetrics
}

// NewClientWithDeps creates a new client using the external
// dependencies provided
func NewClientWithDeps(deps *Deps) *Client {
	return &Client{
		client:  deps.Client,
		logger:  deps.Logger.ForClass("callback", "Client"),
		metrics: metrics.NewDefaultServiceMetrics("esr_callback"),
	}
}

func (c *Client) instrumentedRequest(ctx context.Context, method, url string, body map[string]string) (int, error) {
	timer := c.metrics.RequestTimer(method)
	defer timer.ObserveDuration()

	code, err := c.request(ctx, url, body)
	if err != nil {
		c.metrics.RequestCounter(method, "failure").Inc()
		return code, err
	}

	c.metrics.RequestCounter(method, "success").Inc()
	return code, nil
}

func (c *Client) request(ctx context.Context, url string, body map[string]string) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, stderr.Wrap(err, "failed to serialize callback body")
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, stderr.Wrap(err, "failed to create callback request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return 0, stderr.Wrap(err, "callback request failed")
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = rw.CopyWithLimit(io.Discard, res.Body, rw.ReadLimitProps{Limit: maxDrainSize})

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, stderr.Errorf("callback failed with status %d", res.StatusCode)
	}

	return res.StatusCode, nil
}

func (c *Client) post(ctx context.Context, method, url string, body map[string]string) error {
	c.logger.Debug(ctx, "attempt to deliver http callback", log.MapFields{
		"call_type": "SendCallbackAttempt",
		"method":    method,
		"url":       url,
	})

	code, err := c.instrumentedRequest(ctx, method, url, body)
	if err != nil {
		c.logger.Warn(ctx, "failed to deliver http callback", log.MapFields{
			"call_type":  "SendCallbackFailure",
			"method":     method,
			"url":        url,
			"statusCode": code,
			"err":        err.Error(),
		})
		return errors.New(errors.ErrDeliveryFailed, err)
	}

	c.logger.Debug(ctx, "http callback delivered", log.MapFields{
		"call_type":  "SendCallbackSuccess",
		"method":     method,
		"url":        url,
		"statusCode": code,
	})
	return nil
}

// Deliver implementation of Dispatcher for Client
func (c *Client) Deliver(ctx context.Context, cb *ResolvedCallback, payload Payload, extra map[string]string) error {
	return c.post(ctx, methodDeliver, cb.URL, payload.With(extra))
}

// Reject implementation of Dispatcher for Client
func (c *Client) Reject(ctx context.Context, url, reason string, extra map[string]string) error {
	return c.post(ctx, methodReject, url, Payload{KeyRejected: reason}.With(extra))
}
