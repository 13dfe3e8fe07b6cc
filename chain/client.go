package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/metrics"
	"github.com/oasislabs/signing-gateway/rw"
)

const (
	pathGetInfo         = "/v1/chain/get_info"
	pathGetRawAbi       = "/v1/chain/get_raw_abi"
	pathPushTransaction = "/v1/chain/push_transaction"

	blockTimeFormat = "2006-01-02T15:04:05.000"

	maxResponseSize = 4 << 20
)

// ErrAbiNotFound is returned when an account has no ABI deployed
var ErrAbiNotFound = stderr.New("account has no abi")

// Client is the set of chain operations the engine depends on
type Client interface {
	GetRawAbi(ctx context.Context, account codec.Name) ([]byte, error)
	GetInfo(ctx context.Context) (*Info, error)
	PushTransaction(ctx context.Context, tx *PackedTransaction) (*PushResult, error)
}

// HttpClient is the basic interface for the underlying http client
// used by the HTTPClient
type HttpClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Deps are the dependencies of an HTTPClient
type Deps struct {
	Logger log.Logger
	Client HttpClient
}

// Props define the behaviour of an HTTPClient
type Props struct {
	// URL is the base url of the chain node
	URL string
}

// HTTPClient is a Client that talks to the HTTP API of a chain node
type HTTPClient struct {
	url     string
	client  HttpClient
	logger  log.Logger
	metrics *metrics.ServiceMetrics
}

// NewHTTPClient creates a new client for the node at props.URL
func NewHTTPClient(deps *Deps, props *Props) *HTTPClient {
	return &HTTPClient{
		url:     strings.TrimRight(props.URL, "/"),
		client:  deps.Client,
		logger:  deps.Logger.ForClass("chain", "HTTPClient"),
		metrics: metrics.NewDefaultServiceMetrics("esr_chain"),
	}
}

// URL returns the base url of the node
func (c *HTTPClient) URL() string {
	return c.url
}

func (c *HTTPClient) instrumentedRequest(ctx context.Context, path string, body, out interface{}) error {
	timer := c.metrics.RequestTimer(path)
	defer timer.ObserveDuration()

	if err := c.request(ctx, path, body, out); err != nil {
		c.metrics.RequestCounter(path, "failure").Inc()
		c.logger.Debug(ctx, "chain request failed", log.MapFields{
			"call_type": "ChainRequestFailure",
			"path":      path,
			"err":       err.Error(),
		})
		return err
	}

	c.metrics.RequestCounter(path, "success").Inc()
	return nil
}

func (c *HTTPClient) request(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return stderr.Wrap(err, "failed to serialize request")
	}

	req, err := http.NewRequest(http.MethodPost, c.url+path, bytes.NewReader(payload))
	if err != nil {
		return stderr.Wrap(err, "failed to create request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return stderr.Wrapf(err, "request to %s failed", path)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := rw.ReadAllWithLimit(res.Body, maxResponseSize)
	if err != nil {
		return stderr.Wrapf(err, "failed to read response from %s", path)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var e errorResponse
		if err := json.Unmarshal(data, &e); err == nil && len(e.Error.What) > 0 {
			return stderr.Errorf("%s failed with status %d: %s", path, res.StatusCode, e.Error.What)
		}
		return stderr.Errorf("%s failed with status %d", path, res.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return stderr.Wrapf(err, "failed to deserialize response from %s", path)
	}

	return nil
}

// GetRawAbi implementation of Client for HTTPClient
func (c *HTTPClient) GetRawAbi(ctx context.Context, account codec.Name) ([]byte, error) {
	var res getRawAbiResponse
	if err := c.instrumentedRequest(ctx, pathGetRawAbi, getRawAbiRequest{AccountName: account.String()}, &res); err != nil {
		return nil, err
	}

	abi := strings.TrimRight(res.Abi, "=")
	if len(abi) == 0 {
		return nil, stderr.Wrapf(ErrAbiNotFound, "account %s", account)
	}

	b, err := base64.RawStdEncoding.DecodeString(abi)
	if err != nil {
		return nil, stderr.Wrap(err, "invalid abi encoding")
	}

	return b, nil
}

// GetInfo implementation of Client for HTTPClient
func (c *HTTPClient) GetInfo(ctx context.Context) (*Info, error) {
	var res getInfoResponse
	if err := c.instrumentedRequest(ctx, pathGetInfo, struct{}{}, &res); err != nil {
		return nil, err
	}

	return parseInfo(&res)
}

func parseInfo(res *getInfoResponse) (*Info, error) {
	chainID, err := codec.ParseChainID(res.ChainID)
	if err != nil {
		return nil, err
	}

	headTime, err := time.ParseInLocation(blockTimeFormat, res.HeadBlockTime, time.UTC)
	if err != nil {
		return nil, stderr.Wrap(err, "invalid head block time")
	}

	id, err := hex.DecodeString(res.LastIrreversibleBlockID)
	if err != nil || len(id) != len(BlockID{}) {
		return nil, stderr.Errorf("invalid last irreversible block id %q", res.LastIrreversibleBlockID)
	}

	info := &Info{
		ChainID:                  chainID,
		HeadBlockNum:             res.HeadBlockNum,
		HeadBlockTime:            headTime,
		LastIrreversibleBlockNum: res.LastIrreversibleBlockNum,
	}
	copy(info.LastIrreversibleBlockID[:], id)
	return info, nil
}

// PushTransaction implementation of Client for HTTPClient
func (c *HTTPClient) PushTransaction(ctx context.Context, tx *PackedTransaction) (*PushResult, error) {
	req := pushTransactionRequest{
		Signatures: make([]string, 0, len(tx.Signatures)),
		PackedTrx:  hex.EncodeToString(tx.PackedTrx),
	}
	for _, sig := range tx.Signatures {
		req.Signatures = append(req.Signatures, sig.String())
	}

	var res pushTransactionResponse
	if err := c.instrumentedRequest(ctx, pathPushTransaction, req, &res); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "transaction pushed", log.MapFields{
		"call_type":     "PushTransactionSuccess",
		"transactionId": res.TransactionID,
		"blockNum":      res.Processed.BlockNum,
	})

	return &PushResult{TransactionID: res.TransactionID, BlockNum: res.Processed.BlockNum}, nil
}

func (c *HTTPClient) String() string {
	return fmt.Sprintf("chain.HTTPClient(%s)", c.url)
}
