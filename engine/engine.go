// Package engine drives a signing request from the moment it is
// received until the user's decision is delivered back to the
// requester
package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oasislabs/signing-gateway/abi"
	"github.com/oasislabs/signing-gateway/callback"
	"github.com/oasislabs/signing-gateway/chain"
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/concurrent"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/errors"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/metrics"
	"github.com/oasislabs/signing-gateway/resolver"
	"github.com/oasislabs/signing-gateway/seal"
	"github.com/oasislabs/signing-gateway/session"
)

// DeclineReason is sent to background callbacks of declined requests
const DeclineReason = "User canceled request"

// Deps are the services the engine depends on
type Deps struct {
	Logger    log.Logger
	Chain     chain.Client
	Abis      *abi.Resolver
	Sessions  *session.Manager
	Callbacks callback.Dispatcher

	// Queue runs the steps that must observe a strict order. It is
	// expected to be shared with the ABI resolver
	Queue *concurrent.SerialQueue
}

// Props configure the engine
type Props struct {
	// Schemes accepted in request URIs
	Schemes []string

	// ChannelService is the base URL of the push channel service.
	// Channels of new sessions are created under it
	ChannelService string

	// Name of the wallet sent to requesters when a session is linked
	Name string
}

type beginOptions struct {
	sessionID string
}

// BeginOption modifies how a request is begun
type BeginOption func(*beginOptions)

// WithSessionID marks the request as received through the push
// channel of a session
func WithSessionID(id string) BeginOption {
	return func(o *beginOptions) {
		o.sessionID = id
	}
}

// Engine holds the single live ApprovalRequest of a wallet and runs
// the operations on it one at a time
type Engine struct {
	logger    log.Logger
	chain     chain.Client
	abis      *abi.Resolver
	sessions  *session.Manager
	callbacks callback.Dispatcher
	queue     *concurrent.SerialQueue
	metrics   *metrics.ServiceMetrics

	schemes        []string
	channelService string
	name           string

	// opMu serializes begin, accept and decline
	opMu sync.Mutex
	slot *slot
	wg   sync.WaitGroup
}

// New creates an engine. The engine registers itself as the handler
// of the requests arriving through the session manager
func New(deps *Deps, props *Props) *Engine {
	schemes := props.Schemes
	if len(schemes) == 0 {
		schemes = codec.DefaultSchemes
	}

	e := &Engine{
		logger:         deps.Logger.ForClass("engine", "Engine"),
		chain:          deps.Chain,
		abis:           deps.Abis,
		sessions:       deps.Sessions,
		callbacks:      deps.Callbacks,
		queue:          deps.Queue,
		metrics:        metrics.NewDefaultServiceMetrics("esr_engine"),
		schemes:        schemes,
		channelService: strings.TrimRight(props.ChannelService, "/"),
		name:           props.Name,
		slot:           newSlot(),
	}

	deps.Sessions.SetHandler(e)
	return e
}

func loggable(err error) log.Loggable {
	if e, ok := err.(errors.Error); ok {
		return e
	}
	return log.MapFields{"err": err.Error()}
}

func (e *Engine) count(op string, err error) {
	if err == nil {
		e.metrics.RequestCounter(op, "success").Inc()
		return
	}

	cause := "unknown"
	if v, ok := err.(errors.Error); ok {
		cause = string(v.ErrorCode.Category())
	}
	e.metrics.RequestCounter(op, "failure", cause).Inc()
}

// State returns the phase the engine is in
func (e *Engine) State() State {
	return e.slot.getState()
}

// Pending returns the live request, or nil if there is none
func (e *Engine) Pending() *ApprovalRequest {
	req, _ := e.slot.get()
	return req
}

// Subscribe returns a channel on which the changes of the live
// request are reported, and the function that ends the subscription
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.slot.subscribe()
}

// Cancel discards the live request without notifying the requester
// and aborts a begin in progress
func (e *Engine) Cancel() {
	if req := e.slot.cancel(); req != nil {
		e.logger.Info(context.Background(), "request cancelled", log.MapFields{
			"call_type": "CancelSuccess",
			"id":        req.ID,
		})
	}
}

// Reset signs the wallet out. The live request is discarded, every
// session is closed and the ABI cache is emptied
func (e *Engine) Reset(ctx context.Context) error {
	e.Cancel()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.abis.Reset()
	if err := e.sessions.CloseAll(ctx); err != nil {
		e.logger.Warn(ctx, "failed to close sessions", log.MapFields{
			"call_type": "ResetFailure",
		}, loggable(err))
		return err
	}

	e.slot.setState(Idle)
	return nil
}

// CloseSession removes the session id. ABIs cached while it was open
// are dropped
func (e *Engine) CloseSession(ctx context.Context, id string) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if err := e.sessions.Close(ctx, id); err != nil {
		return err
	}

	e.abis.Reset()
	return nil
}

// Wait blocks until the requests handed over by sessions have been
// begun and the enqueued callback deliveries are done
func (e *Engine) Wait() {
	e.wg.Wait()
}

// HandleSessionRequest implementation of session.Handler. The request
// is begun with the account of the session. Begin runs on its own
// goroutine so that the connection keeps reading while the user
// decides on the live request
func (e *Engine) HandleSessionRequest(ctx context.Context, sessionID string, uri string) error {
	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	account := Account{ChainID: s.ChainID, Actor: s.Account, Permission: s.Permission}
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		// Begin logs its own failures
		_, _ = e.Begin(ctx, uri, account, WithSessionID(sessionID))
	}()

	return nil
}

// Begin decodes uri and resolves it for account. On success the
// request becomes the live one, replacing any undecided request. On
// failure the live request is left untouched
func (e *Engine) Begin(ctx context.Context, uri string, account Account, opts ...BeginOption) (*ApprovalRequest, error) {
	var o beginOptions
	for _, opt := range opts {
		opt(&o)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	e.slot.beginStarted(cancel)
	defer e.slot.beginDone()

	req, err := e.begin(ctx, uri, account, o)
	if err == nil && !e.slot.replace(ctx, req) {
		err = errors.New(errors.ErrRequestSuperseded, ctx.Err())
	}
	e.count("begin", err)

	if err != nil {
		if ctx.Err() == nil {
			e.slot.fail()
		} else if !errors.Is(err, errors.ErrRequestSuperseded) {
			err = errors.New(errors.ErrRequestSuperseded, err)
		}

		e.logger.Warn(ctx, "failed to begin request", log.MapFields{
			"call_type": "BeginFailure",
			"sessionId": o.sessionID,
		}, loggable(err))
		return nil, err
	}

	e.logger.Info(ctx, "request pending approval", log.MapFields{
		"call_type": "BeginSuccess",
		"id":        req.ID,
		"sessionId": req.SessionID,
		"identity":  req.IsIdentity(),
	})
	return req, nil
}

func (e *Engine) begin(ctx context.Context, uri string, account Account, o beginOptions) (*ApprovalRequest, error) {
	req, err := codec.Decode(uri, e.schemes)
	if err != nil {
		return nil, err
	}

	if req.ChainID != account.ChainID {
		return nil, errors.Newf(errors.ErrChainMismatch,
			"request is for chain %s, account is on chain %s", req.ChainID, account.ChainID)
	}

	ar := &ApprovalRequest{
		ID:        uuid.New().String(),
		URI:       uri,
		SessionID: o.sessionID,
		Account:   account,
		Request:   req,
	}

	if err := e.identifyRequester(ar); err != nil {
		return nil, err
	}

	if path, ok := req.InfoValue(codec.InfoReturnPath); ok {
		ar.ReturnPath = path
	}

	if req.IsIdentity() {
		return ar, nil
	}

	if err := resolver.CheckPolicy(req); err != nil {
		return nil, err
	}

	e.slot.setState(ResolvingAbis)
	abis, err := e.abis.Require(ctx, req.ReferencedContracts())
	if err != nil {
		return nil, err
	}

	var info *chain.Info
	if resolver.NeedsTapos(req) {
		if info, err = e.chainInfo(ctx); err != nil {
			return nil, err
		}
	}

	resolved, err := resolver.Resolve(req, abis, info, account.PermissionLevel())
	if err != nil {
		return nil, err
	}

	ar.Resolved = resolved
	ar.Summaries = resolved.Summaries
	return ar, nil
}

// identifyRequester finds the long term key of the requester, from
// the session the request arrived through or from the request
// metadata
func (e *Engine) identifyRequester(ar *ApprovalRequest) error {
	req := ar.Request

	if ar.SessionID != "" {
		s, err := e.sessions.Get(ar.SessionID)
		if err != nil {
			return err
		}
		ar.RequesterKey = s.ID
	} else if v, ok := req.InfoValue(codec.InfoLinkKey); ok {
		key, err := ecc.ParsePublicKey(v)
		if err != nil {
			return errors.New(errors.ErrMalformedRequest, err)
		}
		ar.RequesterKey = key.String()
	}

	if v, ok := req.InfoValue(codec.InfoReqAccount); ok && v != "" {
		name, err := codec.ParseName(v)
		if err != nil {
			return errors.New(errors.ErrMalformedRequest, err)
		}
		ar.RequestedAccount = name
	}

	return nil
}

func (e *Engine) chainInfo(ctx context.Context) (*chain.Info, error) {
	v, err := e.queue.Do(ctx, concurrent.SupplierFunc(func() (interface{}, error) {
		return e.chain.GetInfo(ctx)
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.New(errors.ErrRequestSuperseded, err)
		}
		return nil, errors.New(errors.ErrInternal, err)
	}

	return v.(*chain.Info), nil
}

// Decline rejects the live request. Requests with a background
// callback report the rejection to the requester. The request is
// cleared when autoClose is set, even if the report fails
func (e *Engine) Decline(ctx context.Context, autoClose bool) (string, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	ar, gen, ok := e.slot.pending()
	if !ok {
		return "", errors.Newf(errors.ErrNoPendingRequest, "nothing to decline")
	}

	var err error
	if len(ar.Request.Callback) > 0 && ar.Request.Background {
		e.slot.setState(Delivering)
		_, err = e.queue.Do(ctx, concurrent.SupplierFunc(func() (interface{}, error) {
			return nil, e.callbacks.Reject(ctx, ar.Request.Callback, DeclineReason, e.correlation(ar))
		}))
		if err != nil && !errors.Is(err, errors.ErrDeliveryFailed) {
			err = errors.New(errors.ErrDeliveryFailed, err)
		}
	}
	e.count("decline", err)

	e.slot.finish(gen, Declined, EventDeclined, autoClose)

	if err != nil {
		e.logger.Warn(ctx, "failed to report declined request", log.MapFields{
			"call_type": "DeclineFailure",
			"id":        ar.ID,
		}, loggable(err))
		return ar.ReturnPath, err
	}

	e.logger.Info(ctx, "request declined", log.MapFields{
		"call_type": "DeclineSuccess",
		"id":        ar.ID,
	})
	return ar.ReturnPath, nil
}

// Accept signs the live request with key. Transactions are broadcast
// when the request asks for it and the result is delivered to the
// requester. The returned URL is the one the caller should open, if
// any. The request is cleared when autoClose is set
func (e *Engine) Accept(ctx context.Context, key ecc.Signer, autoClose bool) (string, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	ar, gen, ok := e.slot.pending()
	if !ok {
		return "", errors.Newf(errors.ErrNoPendingRequest, "nothing to accept")
	}

	returnURL, submitted, err := e.accept(ctx, ar, gen, key)
	e.count("accept", err)

	if err != nil {
		// a broadcast transaction cannot be submitted again
		if submitted {
			e.slot.finish(gen, Failed, EventFailed, true)
		} else {
			e.slot.fail()
		}
		e.logger.Warn(ctx, "failed to accept request", log.MapFields{
			"call_type": "AcceptFailure",
			"id":        ar.ID,
			"submitted": submitted,
		}, loggable(err))
		return "", err
	}

	e.slot.finish(gen, Complete, EventCompleted, autoClose)
	e.logger.Info(ctx, "request accepted", log.MapFields{
		"call_type": "AcceptSuccess",
		"id":        ar.ID,
	})
	return returnURL, nil
}

func (e *Engine) accept(ctx context.Context, ar *ApprovalRequest, gen uint64, key ecc.Signer) (string, bool, error) {
	e.slot.setState(Signing)

	resolved := ar.Resolved
	if ar.IsIdentity() {
		var err error
		if resolved, err = resolver.Resolve(ar.Request, nil, nil, ar.Account.PermissionLevel()); err != nil {
			return "", false, err
		}
	}

	sig, err := resolved.Sign(key)
	if err != nil {
		return "", false, err
	}

	var (
		blockNum  uint32
		submitted bool
	)
	if ar.Request.Broadcast && !ar.IsIdentity() {
		e.slot.setState(Broadcasting)
		res, err := e.broadcast(ctx, resolved, sig)
		if err != nil {
			return "", false, err
		}
		blockNum = res.BlockNum
		submitted = true
	}

	if !e.slot.isLive(gen) {
		return "", submitted, errors.Newf(errors.ErrRequestSuperseded, "request %s is no longer pending", ar.ID)
	}

	extra := e.correlation(ar)
	if ar.IsIdentity() {
		link, err := e.link(ctx, ar)
		if err != nil {
			return "", submitted, err
		}
		for k, v := range link {
			extra[k] = v
		}
	} else if ar.RequesterKey != "" {
		e.touch(ctx, ar.RequesterKey)
	}

	cb := callback.Resolve(ar.URI, resolved)
	if cb == nil {
		return ar.ReturnPath, submitted, nil
	}

	payload := cb.Payload([]ecc.Signature{sig}, blockNum)
	if !cb.Background {
		return cb.ExpandURL(payload.With(extra)), submitted, nil
	}

	e.slot.setState(Delivering)
	if err := e.deliver(ctx, ar, cb, payload, extra); err != nil {
		return "", submitted, err
	}

	return ar.ReturnPath, submitted, nil
}

func (e *Engine) broadcast(ctx context.Context, resolved *resolver.ResolvedRequest, sig ecc.Signature) (*chain.PushResult, error) {
	v, err := e.queue.Do(ctx, concurrent.SupplierFunc(func() (interface{}, error) {
		return e.chain.PushTransaction(ctx, resolved.PackedTransaction(sig))
	}))
	if err != nil {
		return nil, errors.New(errors.ErrBroadcastFailed, err)
	}

	return v.(*chain.PushResult), nil
}

// link opens, or refreshes, the session of the requester of an
// identity request and starts listening on its channel. The returned
// fields tell the requester how to reach the wallet
func (e *Engine) link(ctx context.Context, ar *ApprovalRequest) (map[string]string, error) {
	if ar.RequesterKey == "" {
		return nil, nil
	}

	key, err := seal.GenerateSessionKey()
	if err != nil {
		return nil, errors.New(errors.ErrInternal, err)
	}

	channel := e.channelService + "/" + uuid.New().String()
	if _, err := e.sessions.Open(ctx, session.OpenRequest{
		ID:          ar.RequesterKey,
		Account:     ar.Account.Actor,
		Permission:  ar.Account.Permission,
		ChainID:     ar.Account.ChainID,
		CallbackURL: ar.Request.Callback,
		Key:         key,
		ChannelURL:  channel,
	}); err != nil {
		return nil, err
	}

	if err := e.sessions.Listen(ctx, ar.RequesterKey); err != nil {
		e.logger.Warn(ctx, "failed to listen on session channel", log.MapFields{
			"call_type": "ListenFailure",
			"sessionId": ar.RequesterKey,
		}, loggable(err))
	}

	return map[string]string{
		callback.KeyLinkKey:     key.PublicKey().String(),
		callback.KeyLinkChannel: channel,
		callback.KeyLinkName:    e.name,
	}, nil
}

func (e *Engine) touch(ctx context.Context, id string) {
	err := e.sessions.Touch(ctx, id)
	if err != nil && !errors.Is(err, errors.ErrNoActiveSession) {
		e.logger.Warn(ctx, "failed to touch session", log.MapFields{
			"call_type": "TouchSessionFailure",
			"sessionId": id,
		}, loggable(err))
	}
}

// correlation returns the fields that let the requester match a
// delivery with the request it made
func (e *Engine) correlation(ar *ApprovalRequest) map[string]string {
	extra := make(map[string]string)
	if v, ok := ar.Request.InfoValue(codec.InfoSessionID); ok {
		extra[callback.KeySessionID] = v
	} else if ar.SessionID != "" {
		extra[callback.KeySessionID] = ar.SessionID
	}
	return extra
}

// deliver posts the payload to a background callback. Deliveries of
// identity and broadcast requests are awaited. The others are left on
// the queue
func (e *Engine) deliver(ctx context.Context, ar *ApprovalRequest, cb *callback.ResolvedCallback, payload callback.Payload, extra map[string]string) error {
	if ar.IsIdentity() || ar.Request.Broadcast {
		_, err := e.queue.Do(ctx, concurrent.SupplierFunc(func() (interface{}, error) {
			return nil, e.callbacks.Deliver(ctx, cb, payload, extra)
		}))
		if err != nil && !errors.Is(err, errors.ErrDeliveryFailed) {
			return errors.New(errors.ErrDeliveryFailed, err)
		}
		return err
	}

	ctx = context.WithoutCancel(ctx)
	out, err := e.queue.Enqueue(concurrent.SupplierFunc(func() (interface{}, error) {
		return nil, e.callbacks.Deliver(ctx, cb, payload, extra)
	}))
	if err != nil {
		return errors.New(errors.ErrDeliveryFailed, err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if res := <-out; res.Err != nil {
			e.logger.Warn(ctx, "enqueued callback delivery failed", log.MapFields{
				"call_type": "DeliverCallbackFailure",
				"id":        ar.ID,
			}, loggable(res.Err))
		}
	}()

	return nil
}
