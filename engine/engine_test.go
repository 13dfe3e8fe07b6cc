package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	stderr "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oasislabs/signing-gateway/abi"
	"github.com/oasislabs/signing-gateway/abi/abitest"
	"github.com/oasislabs/signing-gateway/callback"
	"github.com/oasislabs/signing-gateway/callback/callbacktest"
	"github.com/oasislabs/signing-gateway/chain"
	"github.com/oasislabs/signing-gateway/chain/chaintest"
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/concurrent"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/engine"
	"github.com/oasislabs/signing-gateway/errors"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/resolver"
	"github.com/oasislabs/signing-gateway/session"
	"github.com/oasislabs/signing-gateway/session/sessiontest"
)

const waitFor = 2 * time.Second

var alice = engine.Account{
	ChainID:    chaintest.ChainID,
	Actor:      codec.MustName("alice"),
	Permission: codec.MustName("active"),
}

type countingSigner struct {
	*ecc.KeySigner
	calls int
}

func (s *countingSigner) Sign(digest []byte) (ecc.Signature, error) {
	s.calls++
	return s.KeySigner.Sign(digest)
}

type failingSigner struct {
	ecc.Signer
}

func (failingSigner) Sign(digest []byte) (ecc.Signature, error) {
	return ecc.Signature{}, stderr.New("device unavailable")
}

type fixture struct {
	engine    *engine.Engine
	chain     *chaintest.MockClient
	callbacks *callbacktest.MockClient
	sessions  *session.Manager
	dialer    *sessiontest.Dialer
	signer    *countingSigner
}

func newFixture(t *testing.T, methods chaintest.MockMethods) *fixture {
	return newFixtureWithAbiProps(t, methods, &abi.Props{})
}

func newFixtureWithAbiProps(t *testing.T, methods chaintest.MockMethods, abiProps *abi.Props) *fixture {
	ctx, cancel := context.WithCancel(context.Background())

	f := &fixture{
		chain:     &chaintest.MockClient{},
		callbacks: &callbacktest.MockClient{},
		dialer:    sessiontest.NewDialer(),
	}
	chaintest.ImplementMockWithOverwrite(f.chain, methods)
	chaintest.ImplementAbi(f.chain, codec.MustName("eosio.token"), abitest.TokenRaw())
	chaintest.ImplementMissingAbi(f.chain, codec.MustName("foo"), stderr.New("unknown contract"))

	key, err := ecc.NewPrivateKey()
	require.NoError(t, err)
	f.signer = &countingSigner{KeySigner: ecc.NewKeySigner(key)}

	f.sessions = session.NewManager(&session.Deps{
		Logger: log.Discard(),
		Store:  session.NewMemoryStore(),
		Dialer: f.dialer,
	}, &session.Props{Reconnect: concurrent.FixedRetryConfig(10*time.Millisecond, 0)})
	require.NoError(t, f.sessions.Start(ctx))

	queue := concurrent.NewSerialQueue(ctx, concurrent.SerialQueueConfig{Capacity: 16})
	f.engine = engine.New(&engine.Deps{
		Logger: log.Discard(),
		Chain:  f.chain,
		Abis: abi.NewResolver(&abi.Deps{
			Logger: log.Discard(),
			Client: f.chain,
			Queue:  queue,
		}, abiProps),
		Sessions:  f.sessions,
		Callbacks: f.callbacks,
		Queue:     queue,
	}, &engine.Props{
		ChannelService: "wss://channel.example.com/",
		Name:           "test-wallet",
	})

	t.Cleanup(func() {
		f.engine.Wait()
		_ = f.sessions.Stop()
		queue.Stop()
		cancel()
	})
	return f
}

func encode(t *testing.T, req *codec.Request) string {
	if req.ChainID == (codec.ChainID{}) {
		req.ChainID = chaintest.ChainID
	}
	uri, err := codec.Encode(req, "esr", true)
	require.NoError(t, err)
	return uri
}

func transferURI(t *testing.T, broadcast bool, cb string) string {
	return encode(t, &codec.Request{
		Kind:       codec.KindAction,
		Actions:    []codec.Action{abitest.TransferAction("bob", 10000, "thanks")},
		Broadcast:  broadcast,
		Background: true,
		Callback:   cb,
	})
}

func requesterKey(t *testing.T) ecc.PublicKey {
	key, err := ecc.NewPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func identityURI(t *testing.T, requester ecc.PublicKey, cb string, background bool) string {
	return encode(t, &codec.Request{
		Kind:       codec.KindIdentity,
		Background: background,
		Callback:   cb,
		Info: map[string]string{
			codec.InfoLinkKey:    requester.String(),
			codec.InfoReturnPath: "https://dapp.example.com/done",
		},
	})
}

func nextEvent(t *testing.T, events <-chan engine.Event) engine.Event {
	select {
	case ev := <-events:
		return ev
	case <-time.After(waitFor):
		t.Fatal("no event was emitted")
		return engine.Event{}
	}
}

func TestBeginTransfer(t *testing.T) {
	f := newFixture(t, nil)

	req, err := f.engine.Begin(context.Background(), transferURI(t, false, ""), alice)
	require.NoError(t, err)

	assert.Equal(t, req, f.engine.Pending())
	assert.Equal(t, engine.AwaitingApproval, f.engine.State())
	require.NotNil(t, req.Resolved)
	require.Len(t, req.Summaries, 1)
	assert.Equal(t, resolver.TokenTransfer, req.Summaries[0].Classification)
	assert.Len(t, req.Resolved.Transaction.Actions, len(req.Request.Actions))
	f.chain.AssertNumberOfCalls(t, "GetRawAbi", 1)
	f.chain.AssertNotCalled(t, "GetInfo", mock.Anything)
}

func TestBeginUnrecognizedSchemeKeepsPending(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.engine.Begin(context.Background(), transferURI(t, false, ""), alice)
	require.NoError(t, err)

	uri := strings.Replace(transferURI(t, false, ""), "esr:", "foo:", 1)
	_, err = f.engine.Begin(context.Background(), uri, alice)
	assert.True(t, errors.Is(err, errors.ErrUnrecognizedScheme))

	assert.Equal(t, first, f.engine.Pending())
	assert.Equal(t, engine.AwaitingApproval, f.engine.State())
}

func TestBeginDisallowedActionNeverSigns(t *testing.T) {
	f := newFixture(t, nil)

	uri := encode(t, &codec.Request{
		Kind: codec.KindAction,
		Actions: []codec.Action{{
			Account:       codec.MustName("eosio"),
			Name:          codec.MustName("updateauth"),
			Authorization: []codec.PermissionLevel{{Actor: codec.PlaceholderActor, Permission: codec.PlaceholderPermission}},
		}},
	})

	_, err := f.engine.Begin(context.Background(), uri, alice)
	assert.True(t, errors.Is(err, errors.ErrDisallowedAction))
	assert.Nil(t, f.engine.Pending())
	assert.Equal(t, engine.Failed, f.engine.State())

	_, err = f.engine.Accept(context.Background(), f.signer, true)
	assert.True(t, errors.Is(err, errors.ErrNoPendingRequest))
	assert.Zero(t, f.signer.calls)
	f.chain.AssertNotCalled(t, "GetRawAbi", mock.Anything, mock.Anything)
}

func TestBeginChainMismatch(t *testing.T) {
	f := newFixture(t, nil)

	other := alice
	other.ChainID = codec.MustChainID("1064487b3cd1a897ce03ae5b6a865651747e2e152090f99c1d19d44e01aea5a4")

	_, err := f.engine.Begin(context.Background(), transferURI(t, false, ""), other)
	assert.True(t, errors.Is(err, errors.ErrChainMismatch))
	assert.Nil(t, f.engine.Pending())
}

func TestBeginMissingAbi(t *testing.T) {
	f := newFixture(t, nil)

	uri := encode(t, &codec.Request{
		Kind: codec.KindActions,
		Actions: []codec.Action{
			abitest.TransferAction("bob", 1, ""),
			{Account: codec.MustName("foo"), Name: codec.MustName("bar")},
		},
	})

	_, err := f.engine.Begin(context.Background(), uri, alice)
	require.True(t, errors.Is(err, errors.ErrMissingAbi))
	assert.Contains(t, err.Error(), "foo")
	assert.Nil(t, f.engine.Pending())
	assert.Zero(t, f.signer.calls)
}

func TestBeginMalformedLinkKey(t *testing.T) {
	f := newFixture(t, nil)

	uri := encode(t, &codec.Request{
		Kind: codec.KindIdentity,
		Info: map[string]string{codec.InfoLinkKey: "PUB_K1_nope"},
	})

	_, err := f.engine.Begin(context.Background(), uri, alice)
	assert.True(t, errors.Is(err, errors.ErrMalformedRequest))
}

func TestBeginReplacesUndecided(t *testing.T) {
	f := newFixture(t, nil)
	events, unsubscribe := f.engine.Subscribe()
	defer unsubscribe()

	first, err := f.engine.Begin(context.Background(), transferURI(t, false, ""), alice)
	require.NoError(t, err)
	second, err := f.engine.Begin(context.Background(), transferURI(t, false, ""), alice)
	require.NoError(t, err)

	assert.Equal(t, engine.Event{Type: engine.EventPending, Request: first}, nextEvent(t, events))
	assert.Equal(t, engine.Event{Type: engine.EventCancelled, Request: first}, nextEvent(t, events))
	assert.Equal(t, engine.Event{Type: engine.EventPending, Request: second}, nextEvent(t, events))
	assert.Equal(t, second, f.engine.Pending())
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	events, unsubscribe := f.engine.Subscribe()
	defer unsubscribe()

	req, err := f.engine.Begin(context.Background(), transferURI(t, false, ""), alice)
	require.NoError(t, err)
	nextEvent(t, events)

	f.engine.Cancel()

	assert.Equal(t, engine.Event{Type: engine.EventCancelled, Request: req}, nextEvent(t, events))
	assert.Nil(t, f.engine.Pending())
	assert.Equal(t, engine.Idle, f.engine.State())
}

func TestAcceptWithoutPending(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Accept(context.Background(), f.signer, true)
	assert.True(t, errors.Is(err, errors.ErrNoPendingRequest))

	_, err = f.engine.Decline(context.Background(), true)
	assert.True(t, errors.Is(err, errors.ErrNoPendingRequest))
}

func TestAcceptIdentityOpensSession(t *testing.T) {
	f := newFixture(t, nil)
	callbacktest.ImplementMock(f.callbacks)
	requester := requesterKey(t)

	_, err := f.engine.Begin(context.Background(), identityURI(t, requester, "https://dapp.example.com/id", true), alice)
	require.NoError(t, err)
	assert.Nil(t, f.engine.Pending().Resolved)

	returnURL, err := f.engine.Accept(context.Background(), f.signer, true)
	require.NoError(t, err)
	assert.Equal(t, "https://dapp.example.com/done", returnURL)
	assert.Equal(t, 1, f.signer.calls)
	assert.Nil(t, f.engine.Pending())
	assert.Equal(t, engine.Complete, f.engine.State())

	s, err := f.sessions.Get(requester.String())
	require.NoError(t, err)
	assert.Equal(t, alice.Actor, s.Account)
	assert.Equal(t, "https://dapp.example.com/id", s.CallbackURL)
	assert.True(t, strings.HasPrefix(s.ChannelURL, "wss://channel.example.com/"))

	bodies := f.callbacks.Delivered()
	require.Len(t, bodies, 1)
	body := bodies[0]
	assert.NotEmpty(t, body[callback.KeySignature])
	assert.NotContains(t, body, callback.KeyBlockNum)
	assert.Equal(t, s.Key.PublicKey().String(), body[callback.KeyLinkKey])
	assert.Equal(t, s.ChannelURL, body[callback.KeyLinkChannel])
	assert.Equal(t, "test-wallet", body[callback.KeyLinkName])
	assert.Equal(t, "alice", body[callback.KeyActor])

	select {
	case conn := <-f.dialer.Conns:
		assert.Equal(t, s.ChannelURL, conn.URL)
	case <-time.After(waitFor):
		t.Fatal("session channel was not dialed")
	}
	f.chain.AssertNotCalled(t, "PushTransaction", mock.Anything, mock.Anything)
}

func TestAcceptIdentityForeground(t *testing.T) {
	f := newFixture(t, nil)
	requester := requesterKey(t)

	_, err := f.engine.Begin(context.Background(),
		identityURI(t, requester, "https://dapp.example.com/id?sig={{sig}}&actor={{sa}}", false), alice)
	require.NoError(t, err)

	returnURL, err := f.engine.Accept(context.Background(), f.signer, true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(returnURL, "https://dapp.example.com/id?sig=SIG_K1_"))
	assert.True(t, strings.HasSuffix(returnURL, "&actor=alice"))
	assert.Empty(t, f.callbacks.Delivered())

	_, err = f.sessions.Get(requester.String())
	assert.NoError(t, err)
}

func TestAcceptTransferWithoutBroadcast(t *testing.T) {
	f := newFixture(t, nil)
	callbacktest.ImplementMock(f.callbacks)

	req, err := f.engine.Begin(context.Background(), transferURI(t, false, "https://dapp.example.com/tx"), alice)
	require.NoError(t, err)

	_, err = f.engine.Accept(context.Background(), f.signer, true)
	require.NoError(t, err)
	f.engine.Wait()

	bodies := f.callbacks.Delivered()
	require.Len(t, bodies, 1)
	assert.NotContains(t, bodies[0], callback.KeyBlockNum)
	assert.Equal(t, req.Resolved.TransactionID(), bodies[0][callback.KeyTransaction])

	sig, err := ecc.ParseSignature(bodies[0][callback.KeySignature])
	require.NoError(t, err)
	pub, err := sig.RecoverPublicKey(req.Resolved.Digest[:])
	require.NoError(t, err)
	assert.Equal(t, f.signer.PublicKey(), pub)

	f.chain.AssertNotCalled(t, "PushTransaction", mock.Anything, mock.Anything)
}

func TestAcceptTransferWithBroadcast(t *testing.T) {
	f := newFixture(t, chaintest.MockMethods{
		"PushTransaction": {
			Arguments: []interface{}{mock.Anything, mock.Anything},
			Return:    []interface{}{&chain.PushResult{BlockNum: 42}, nil},
		},
	})
	callbacktest.ImplementMock(f.callbacks)

	_, err := f.engine.Begin(context.Background(), transferURI(t, true, "https://dapp.example.com/tx"), alice)
	require.NoError(t, err)
	f.chain.AssertNumberOfCalls(t, "GetInfo", 1)

	_, err = f.engine.Accept(context.Background(), f.signer, true)
	require.NoError(t, err)

	bodies := f.callbacks.Delivered()
	require.Len(t, bodies, 1)
	assert.Equal(t, "42", bodies[0][callback.KeyBlockNum])
	f.chain.AssertNumberOfCalls(t, "PushTransaction", 1)
}

func TestAcceptBroadcastFailureKeepsPending(t *testing.T) {
	f := newFixture(t, chaintest.MockMethods{
		"PushTransaction": {
			Arguments: []interface{}{mock.Anything, mock.Anything},
			Return:    []interface{}{nil, stderr.New("expired transaction")},
		},
	})

	req, err := f.engine.Begin(context.Background(), transferURI(t, true, "https://dapp.example.com/tx"), alice)
	require.NoError(t, err)

	_, err = f.engine.Accept(context.Background(), f.signer, true)
	assert.True(t, errors.Is(err, errors.ErrBroadcastFailed))
	assert.Equal(t, req, f.engine.Pending())
	assert.Equal(t, engine.AwaitingApproval, f.engine.State())
	assert.Empty(t, f.callbacks.Delivered())
}

func TestAcceptSignFailure(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Begin(context.Background(), transferURI(t, true, ""), alice)
	require.NoError(t, err)

	_, err = f.engine.Accept(context.Background(), failingSigner{}, true)
	assert.True(t, errors.Is(err, errors.ErrSignFailed))
	assert.NotNil(t, f.engine.Pending())
	f.chain.AssertNotCalled(t, "PushTransaction", mock.Anything, mock.Anything)
}

func TestDeclineReportsFailureAndClears(t *testing.T) {
	f := newFixture(t, nil)
	callbacktest.ImplementFailure(f.callbacks, errors.Newf(errors.ErrDeliveryFailed, "status 503"))
	events, unsubscribe := f.engine.Subscribe()
	defer unsubscribe()

	req, err := f.engine.Begin(context.Background(), transferURI(t, false, "https://dapp.example.com/tx"), alice)
	require.NoError(t, err)
	nextEvent(t, events)

	_, err = f.engine.Decline(context.Background(), true)
	assert.True(t, errors.Is(err, errors.ErrDeliveryFailed))
	assert.Nil(t, f.engine.Pending())
	assert.Equal(t, engine.Declined, f.engine.State())
	assert.Equal(t, engine.Event{Type: engine.EventDeclined, Request: req}, nextEvent(t, events))

	bodies := f.callbacks.Delivered()
	require.Len(t, bodies, 1)
	assert.Equal(t, engine.DeclineReason, bodies[0][callback.KeyRejected])
	assert.Equal(t, []string{"https://dapp.example.com/tx"}, f.callbacks.URLs())
}

func TestDeclineWithoutCallback(t *testing.T) {
	f := newFixture(t, nil)

	uri := encode(t, &codec.Request{
		Kind:    codec.KindAction,
		Actions: []codec.Action{abitest.TransferAction("bob", 1, "")},
		Info:    map[string]string{codec.InfoReturnPath: "app://back"},
	})
	_, err := f.engine.Begin(context.Background(), uri, alice)
	require.NoError(t, err)

	returnURL, err := f.engine.Decline(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "app://back", returnURL)
	assert.NotNil(t, f.engine.Pending())
	assert.Empty(t, f.callbacks.Delivered())
}

func TestSessionRequestIsCorrelated(t *testing.T) {
	f := newFixture(t, nil)
	callbacktest.ImplementMock(f.callbacks)
	requester := requesterKey(t)

	_, err := f.engine.Begin(context.Background(), identityURI(t, requester, "https://dapp.example.com/id", true), alice)
	require.NoError(t, err)
	_, err = f.engine.Accept(context.Background(), f.signer, true)
	require.NoError(t, err)

	var conn *sessiontest.Transport
	select {
	case conn = <-f.dialer.Conns:
	case <-time.After(waitFor):
		t.Fatal("session channel was not dialed")
	}

	events, unsubscribe := f.engine.Subscribe()
	defer unsubscribe()

	conn.SendText(transferURI(t, true, "https://dapp.example.com/tx"))
	ev := nextEvent(t, events)
	require.Equal(t, engine.EventPending, ev.Type)
	assert.Equal(t, requester.String(), ev.Request.SessionID)
	assert.Equal(t, requester.String(), ev.Request.RequesterKey)

	_, err = f.engine.Accept(context.Background(), f.signer, true)
	require.NoError(t, err)

	bodies := f.callbacks.Delivered()
	require.Len(t, bodies, 2)
	assert.Equal(t, requester.String(), bodies[1][callback.KeySessionID])
	assert.Equal(t, "1001", bodies[1][callback.KeyBlockNum])
}

func TestSessionRequestForUnknownSession(t *testing.T) {
	f := newFixture(t, nil)

	err := f.engine.HandleSessionRequest(context.Background(), "PUB_K1_unknown", transferURI(t, false, ""))
	assert.True(t, errors.Is(err, errors.ErrNoActiveSession))
}

func TestReset(t *testing.T) {
	f := newFixture(t, nil)
	callbacktest.ImplementMock(f.callbacks)

	_, err := f.engine.Begin(context.Background(), identityURI(t, requesterKey(t), "https://dapp.example.com/id", true), alice)
	require.NoError(t, err)
	_, err = f.engine.Accept(context.Background(), f.signer, false)
	require.NoError(t, err)
	require.Len(t, f.sessions.List(), 1)

	require.NoError(t, f.engine.Reset(context.Background()))
	assert.Empty(t, f.sessions.List())
	assert.Nil(t, f.engine.Pending())
	assert.Equal(t, engine.Idle, f.engine.State())
}

func TestAcceptTwiceSubmitsOnce(t *testing.T) {
	f := newFixture(t, chaintest.MockMethods{
		"PushTransaction": {
			Arguments: []interface{}{mock.Anything, mock.Anything},
			Return:    []interface{}{&chain.PushResult{BlockNum: 42}, nil},
		},
	})
	callbacktest.ImplementMock(f.callbacks)

	req, err := f.engine.Begin(context.Background(), transferURI(t, true, "https://dapp.example.com/tx"), alice)
	require.NoError(t, err)

	_, err = f.engine.Accept(context.Background(), f.signer, false)
	require.NoError(t, err)
	assert.Equal(t, req, f.engine.Pending())
	assert.Equal(t, engine.Complete, f.engine.State())

	_, err = f.engine.Accept(context.Background(), f.signer, false)
	assert.True(t, errors.Is(err, errors.ErrNoPendingRequest))
	_, err = f.engine.Decline(context.Background(), false)
	assert.True(t, errors.Is(err, errors.ErrNoPendingRequest))

	assert.Equal(t, 1, f.signer.calls)
	f.chain.AssertNumberOfCalls(t, "PushTransaction", 1)
	assert.Len(t, f.callbacks.Delivered(), 1)
	assert.Equal(t, engine.Complete, f.engine.State())
}

func TestAcceptAfterDeclineFails(t *testing.T) {
	f := newFixture(t, nil)
	callbacktest.ImplementMock(f.callbacks)

	_, err := f.engine.Begin(context.Background(), transferURI(t, true, "https://dapp.example.com/tx"), alice)
	require.NoError(t, err)

	_, err = f.engine.Decline(context.Background(), false)
	require.NoError(t, err)

	_, err = f.engine.Accept(context.Background(), f.signer, true)
	assert.True(t, errors.Is(err, errors.ErrNoPendingRequest))
	assert.Equal(t, engine.Declined, f.engine.State())
	assert.Equal(t, 0, f.signer.calls)
	f.chain.AssertNotCalled(t, "PushTransaction", mock.Anything, mock.Anything)

	bodies := f.callbacks.Delivered()
	require.Len(t, bodies, 1)
	assert.Equal(t, engine.DeclineReason, bodies[0][callback.KeyRejected])
}

func TestAcceptDeliveryFailureAfterBroadcastIsFinal(t *testing.T) {
	f := newFixture(t, chaintest.MockMethods{
		"PushTransaction": {
			Arguments: []interface{}{mock.Anything, mock.Anything},
			Return:    []interface{}{&chain.PushResult{BlockNum: 42}, nil},
		},
	})
	callbacktest.ImplementFailure(f.callbacks, errors.Newf(errors.ErrDeliveryFailed, "status 500"))
	events, unsubscribe := f.engine.Subscribe()
	defer unsubscribe()

	req, err := f.engine.Begin(context.Background(), transferURI(t, true, "https://dapp.example.com/tx"), alice)
	require.NoError(t, err)
	nextEvent(t, events)

	_, err = f.engine.Accept(context.Background(), f.signer, false)
	assert.True(t, errors.Is(err, errors.ErrDeliveryFailed))
	assert.Nil(t, f.engine.Pending())
	assert.Equal(t, engine.Failed, f.engine.State())
	assert.Equal(t, engine.Event{Type: engine.EventFailed, Request: req}, nextEvent(t, events))

	_, err = f.engine.Accept(context.Background(), f.signer, false)
	assert.True(t, errors.Is(err, errors.ErrNoPendingRequest))
	f.chain.AssertNumberOfCalls(t, "PushTransaction", 1)
}

func TestCloseSessionDropsCachedAbis(t *testing.T) {
	f := newFixtureWithAbiProps(t, nil, &abi.Props{Cache: true})
	callbacktest.ImplementMock(f.callbacks)
	requester := requesterKey(t)

	_, err := f.engine.Begin(context.Background(), transferURI(t, false, ""), alice)
	require.NoError(t, err)
	_, err = f.engine.Begin(context.Background(), transferURI(t, false, ""), alice)
	require.NoError(t, err)
	f.chain.AssertNumberOfCalls(t, "GetRawAbi", 1)

	_, err = f.engine.Begin(context.Background(), identityURI(t, requester, "https://dapp.example.com/id", true), alice)
	require.NoError(t, err)
	_, err = f.engine.Accept(context.Background(), f.signer, true)
	require.NoError(t, err)
	require.Len(t, f.sessions.List(), 1)

	require.NoError(t, f.engine.CloseSession(context.Background(), requester.String()))
	assert.Empty(t, f.sessions.List())

	_, err = f.engine.Begin(context.Background(), transferURI(t, false, ""), alice)
	require.NoError(t, err)
	f.chain.AssertNumberOfCalls(t, "GetRawAbi", 2)
}
