package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/rw"
)

const testChainID = "aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906"

type MockHttpClient struct {
	mock.Mock
}

func (c *MockHttpClient) Do(req *http.Request) (*http.Response, error) {
	args := c.Called(req)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*http.Response), nil
}

func jsonResponse(status int, body interface{}) *http.Response {
	b, _ := json.Marshal(body)
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(string(b)))}
}

func forPath(path string) interface{} {
	return mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == http.MethodPost && req.URL.Path == path
	})
}

func newClient() (*HTTPClient, *MockHttpClient) {
	m := &MockHttpClient{}
	return NewHTTPClient(&Deps{Logger: log.Discard(), Client: m}, &Props{URL: "http://node.example/"}), m
}

func infoBody() getInfoResponse {
	return getInfoResponse{
		ChainID:                  testChainID,
		HeadBlockNum:             1000,
		HeadBlockTime:            "2020-01-01T00:00:30.500",
		LastIrreversibleBlockNum: 990,
		LastIrreversibleBlockID:  "000003de0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c",
	}
}

func TestGetInfo(t *testing.T) {
	client, m := newClient()
	m.On("Do", forPath(pathGetInfo)).Return(jsonResponse(http.StatusOK, infoBody()), nil)

	info, err := client.GetInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testChainID, info.ChainID.String())
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 30, 500000000, time.UTC), info.HeadBlockTime)
	assert.Equal(t, uint16(990), info.LastIrreversibleBlockID.RefBlockNum())
	assert.Equal(t, uint32(0x0c0b0a09), info.LastIrreversibleBlockID.RefBlockPrefix())
	assert.Equal(t, "http://node.example", client.URL())
}

func TestGetInfoInvalidBlockID(t *testing.T) {
	client, m := newClient()
	body := infoBody()
	body.LastIrreversibleBlockID = "abc"
	m.On("Do", forPath(pathGetInfo)).Return(jsonResponse(http.StatusOK, body), nil)

	_, err := client.GetInfo(context.Background())
	assert.Error(t, err)
}

func TestGetRawAbi(t *testing.T) {
	client, m := newClient()
	abi := []byte{0x0e, 'e', 'o', 's', 'i', 'o', ':', ':', 'a', 'b', 'i', '/', '1', '.', '1'}
	m.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		if req.URL.Path != pathGetRawAbi {
			return false
		}
		var body getRawAbiRequest
		b, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(b, &body)
		return body.AccountName == "eosio.token"
	})).Return(jsonResponse(http.StatusOK, getRawAbiResponse{
		AccountName: "eosio.token",
		Abi:         base64.StdEncoding.EncodeToString(abi),
	}), nil)

	b, err := client.GetRawAbi(context.Background(), codec.MustName("eosio.token"))
	require.NoError(t, err)
	assert.Equal(t, abi, b)
}

func TestGetRawAbiNotDeployed(t *testing.T) {
	client, m := newClient()
	m.On("Do", forPath(pathGetRawAbi)).Return(jsonResponse(http.StatusOK, getRawAbiResponse{AccountName: "alice"}), nil)

	_, err := client.GetRawAbi(context.Background(), codec.MustName("alice"))
	assert.True(t, errors.Is(err, ErrAbiNotFound))
}

func TestGetRawAbiTransportError(t *testing.T) {
	client, m := newClient()
	m.On("Do", forPath(pathGetRawAbi)).Return(nil, errors.New("connection refused"))

	_, err := client.GetRawAbi(context.Background(), codec.MustName("alice"))
	assert.Error(t, err)
}

func TestPushTransaction(t *testing.T) {
	client, m := newClient()
	key, err := ecc.NewPrivateKey()
	require.NoError(t, err)
	sig, err := ecc.NewKeySigner(key).Sign(make([]byte, 32))
	require.NoError(t, err)

	m.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		if req.URL.Path != pathPushTransaction {
			return false
		}
		var body pushTransactionRequest
		b, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(b, &body)
		return body.PackedTrx == "0102" && len(body.Signatures) == 1 && body.Signatures[0] == sig.String()
	})).Return(jsonResponse(http.StatusAccepted, map[string]interface{}{
		"transaction_id": "abcd",
		"processed":      map[string]interface{}{"block_num": 42},
	}), nil)

	res, err := client.PushTransaction(context.Background(), &PackedTransaction{
		Signatures: []ecc.Signature{sig},
		PackedTrx:  []byte{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), res.BlockNum)
	assert.Equal(t, "abcd", res.TransactionID)
}

func TestPushTransactionRejected(t *testing.T) {
	client, m := newClient()
	m.On("Do", forPath(pathPushTransaction)).Return(jsonResponse(http.StatusInternalServerError, map[string]interface{}{
		"code":  500,
		"error": map[string]interface{}{"what": "Expired Transaction"},
	}), nil)

	_, err := client.PushTransaction(context.Background(), &PackedTransaction{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expired Transaction")
}

func TestFastest(t *testing.T) {
	m := &MockHttpClient{}
	deps := &Deps{Logger: log.Discard(), Client: m}

	m.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.Host == "slow.example"
	})).Run(func(mock.Arguments) {
		time.Sleep(50 * time.Millisecond)
	}).Return(jsonResponse(http.StatusOK, infoBody()), nil)
	m.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.Host == "fast.example"
	})).Return(jsonResponse(http.StatusOK, infoBody()), nil)
	m.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.Host == "down.example"
	})).Return(nil, errors.New("connection refused"))

	url, err := Fastest(context.Background(), deps,
		[]string{"http://slow.example", "http://down.example", "http://fast.example"},
		codec.MustChainID(testChainID))
	require.NoError(t, err)
	assert.Equal(t, "http://fast.example", url)
}

func TestProbeWrongChain(t *testing.T) {
	m := &MockHttpClient{}
	deps := &Deps{Logger: log.Discard(), Client: m}
	m.On("Do", mock.Anything).Return(jsonResponse(http.StatusOK, infoBody()), nil)

	other := codec.MustChainID("0000000000000000000000000000000000000000000000000000000000000001")
	probes := Probe(context.Background(), deps, []string{"http://a.example", "http://b.example"}, other)

	require.Len(t, probes, 2)
	for _, probe := range probes {
		assert.Error(t, probe.Err)
	}

	_, err := Fastest(context.Background(), deps, []string{"http://a.example", "http://b.example"}, other)
	assert.Error(t, err)
}

func TestResponseTooLarge(t *testing.T) {
	client, m := newClient()
	body := strings.Repeat(" ", maxResponseSize+1)
	m.On("Do", forPath(pathGetInfo)).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil)

	_, err := client.GetInfo(context.Background())
	assert.True(t, errors.Is(err, rw.ErrLimitExceeded))
}
