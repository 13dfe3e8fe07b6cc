package concurrent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync/atomic"
)

const (
	stopped  = 0
	started  = 1
	stopping = 2
)

var (
	// ErrWorkerExists is returned when creating a worker with a key
	// that is already in use
	ErrWorkerExists = errors.New("worker already exists")

	// ErrWorkerNotFound is returned when a request targets a worker
	// that does not exist
	ErrWorkerNotFound = errors.New("worker does not exist")

	errMasterNotStarted = errors.New("master is not started")
)

func errorFromPanic(r interface{}) error {
	stacktrace := debug.Stack()

	switch x := r.(type) {
	case string:
		return fmt.Errorf("panic error %s at %s", x, string(stacktrace))
	case error:
		return fmt.Errorf("panic error %s at %s", x.Error(), string(stacktrace))
	default:
		return fmt.Errorf("unknown panic %+v at %s", r, string(stacktrace))
	}
}

// MasterEvent is the interface implemented by all events triggered
// by the master and handled for a MasterHandler
type MasterEvent interface {
	WorkerKey() string
}

type request interface {
	GetContext() context.Context
}

type createRequest struct {
	Context context.Context
	Key     string
	Out     chan error
	Value   interface{}
}

func (r createRequest) GetContext() context.Context {
	return r.Context
}

type destroyRequest struct {
	Context context.Context
	Key     string
	Out     chan Response
}

func (r destroyRequest) GetContext() context.Context {
	return r.Context
}

type existsRequest struct {
	Context context.Context
	Key     string
	Out     chan bool
}

func (r existsRequest) GetContext() context.Context {
	return r.Context
}

type keysRequest struct {
	Context context.Context
	Out     chan []string
}

func (r keysRequest) GetContext() context.Context {
	return r.Context
}

// Master owns a set of keyed workers and routes requests to them.
// All the bookkeeping of the workers happens in the master event
// loop, so workers can only be created, reached and destroyed
// through the master
type Master struct {
	// shutdownCh is the channel used by the Master to signal
	// a shutdown to itself
	shutdownCh chan struct{}

	// loopDoneCh is closed once the event loop has exited and all
	// the workers are gone
	loopDoneCh chan struct{}

	// doneCh is the channel used by workers to notify to the
	// Master that their lifetime has ended
	doneCh chan workerDestroyed

	// workers are the active workers by key
	workers map[string]*Worker

	// shutdownWorkers are the workers that are shutting down
	// and we are waiting for a doneCh event
	shutdownWorkers map[string]*Worker

	// state keeps track of whether the master is running. It
	// needs to be accessed in a thread safe manner
	state uint32

	// inCh is the channel used by the master to pass on requests
	// from external goroutines to the event loop
	inCh chan request

	// handler is the user defined handler for events that
	// need to be handled by the master
	handler MasterHandler

	// ctx is the context that the master uses for the duration
	// of its Start-Stop span
	ctx context.Context
}

// MasterHandler is the user defined handler to handle events
// for the master
type MasterHandler interface {
	Handle(ctx context.Context, ev MasterEvent) error
}

// MasterHandlerFunc is the implementation of MasterHandler for functions
type MasterHandlerFunc func(ctx context.Context, ev MasterEvent) error

// Handle implementation of MasterHandler for MasterHandlerFunc
func (f MasterHandlerFunc) Handle(ctx context.Context, ev MasterEvent) error {
	return f(ctx, ev)
}

// MasterProps are the properties used by the master to define
// its behaviour and that of its workers
type MasterProps struct {
	// MasterHandler is the handler the master will use to provide access
	// to the master events
	MasterHandler MasterHandler
}

// NewMaster creates a new master
func NewMaster(props MasterProps) *Master {
	return &Master{
		handler:         props.MasterHandler,
		workers:         make(map[string]*Worker),
		shutdownWorkers: make(map[string]*Worker),
		state:           stopped,
	}
}

// IsStopped returns true if the master is not running
func (m *Master) IsStopped() bool {
	return atomic.LoadUint32(&m.state) == stopped
}

// Start the master
func (m *Master) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&m.state, stopped, started) {
		return errors.New("master is not stopped")
	}

	m.doneCh = make(chan workerDestroyed, 64)
	m.shutdownCh = make(chan struct{})
	m.loopDoneCh = make(chan struct{})
	m.inCh = make(chan request)
	m.ctx = ctx

	go m.startLoop(ctx)
	return nil
}

// Stop the master and shutdown all the workers that are still running.
// This method blocks until all the workers have exited
func (m *Master) Stop() error {
	if !atomic.CompareAndSwapUint32(&m.state, started, stopping) {
		return errMasterNotStarted
	}

	close(m.shutdownCh)
	<-m.loopDoneCh

	if len(m.workers) > 0 || len(m.shutdownWorkers) > 0 {
		panic("failed to shutdown all workers gracefully")
	}

	if !atomic.CompareAndSwapUint32(&m.state, stopping, stopped) {
		panic("concurrency error in transition to stopped")
	}

	return nil
}

func (m *Master) send(req request) error {
	if atomic.LoadUint32(&m.state) != started {
		return errMasterNotStarted
	}

	select {
	case m.inCh <- req:
		return nil
	case <-m.loopDoneCh:
		return errMasterNotStarted
	case <-req.GetContext().Done():
		return req.GetContext().Err()
	}
}

// Create a new worker identified by key. The value is passed to the
// MasterHandler in the CreateWorkerEvent
func (m *Master) Create(ctx context.Context, key string, value interface{}) error {
	out := make(chan error, 1)
	if err := m.send(createRequest{Context: ctx, Key: key, Out: out, Value: value}); err != nil {
		return err
	}

	return <-out
}

// Destroy an existing worker and wait until it has exited
func (m *Master) Destroy(ctx context.Context, key string) error {
	out := make(chan Response, 1)
	if err := m.send(destroyRequest{Context: ctx, Key: key, Out: out}); err != nil {
		return err
	}

	res := <-out
	if res.Error != nil {
		return res.Error
	}

	c := res.Value.(<-chan error)
	if err, ok := <-c; ok && err != nil {
		return err
	}

	return nil
}

// Exists returns true if the worker exists, false otherwise
func (m *Master) Exists(ctx context.Context, key string) (bool, error) {
	out := make(chan bool, 1)
	if err := m.send(existsRequest{Context: ctx, Key: key, Out: out}); err != nil {
		return false, err
	}

	return <-out, nil
}

// Keys returns the sorted keys of the active workers
func (m *Master) Keys(ctx context.Context) ([]string, error) {
	out := make(chan []string, 1)
	if err := m.send(keysRequest{Context: ctx, Out: out}); err != nil {
		return nil, err
	}

	return <-out, nil
}

// Request sends a request to a specific worker and returns back
// the response
func (m *Master) Request(ctx context.Context, key string, req interface{}) (interface{}, error) {
	out := make(chan Response, 1)
	if err := m.send(workerRequest{Context: ctx, Key: key, Value: req, Out: out}); err != nil {
		return nil, err
	}

	res := <-out
	return res.Value, res.Error
}

// shutdown closes all the workers and waits until they have
// notified the master that they exited
func (m *Master) shutdown() {
	for key := range m.workers {
		m.shutdownWorker(key)
	}

	for len(m.shutdownWorkers) > 0 {
		m.removeWorker(<-m.doneCh)
	}
}

func (m *Master) shutdownWorker(key string) (<-chan error, bool) {
	w, ok := m.workers[key]
	if !ok {
		return nil, false
	}

	delete(m.workers, key)
	m.shutdownWorkers[key] = w
	close(w.C)
	return w.ShutdownC, true
}

func (m *Master) startLoop(ctx context.Context) {
	defer func() {
		m.shutdown()
		close(m.loopDoneCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdownCh:
			return
		case ev := <-m.doneCh:
			m.removeWorker(ev)
		case req := <-m.inCh:
			m.handleRequest(req)
		}
	}
}

func (m *Master) handleRequest(req request) {
	switch req := req.(type) {
	case workerRequest:
		m.handleWorkerRequest(req)
	case createRequest:
		req.Out <- m.createWorker(req.Context, req.Key, req.Value)
	case destroyRequest:
		m.handleDestroyRequest(req)
	case existsRequest:
		_, ok := m.workers[req.Key]
		req.Out <- ok
	case keysRequest:
		keys := make([]string, 0, len(m.workers))
		for key := range m.workers {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		req.Out <- keys
	default:
		panic("received unexpected request")
	}
}

func (m *Master) handleWorkerRequest(req workerRequest) {
	w, ok := m.workers[req.Key]
	if !ok {
		req.Out <- Response{Error: ErrWorkerNotFound}
		return
	}

	// the worker channel is buffered so a slow worker only blocks
	// the master once its backlog is full
	w.C <- req
}

func (m *Master) createWorker(ctx context.Context, key string, value interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorFromPanic(r)
		}
	}()

	if _, ok := m.workers[key]; ok {
		return ErrWorkerExists
	}
	if _, ok := m.shutdownWorkers[key]; ok {
		return ErrWorkerExists
	}

	var props CreateWorkerProps
	err = m.handler.Handle(ctx, CreateWorkerEvent{
		Value: value,
		Key:   key,
		Props: &props,
	})
	if err != nil {
		return err
	}

	m.workers[key] = newWorker(m.ctx, workerProps{
		Key:           key,
		DoneC:         m.doneCh,
		WorkerHandler: props.WorkerHandler,
		UserData:      props.UserData,
		C:             make(chan workerRequest, 64),
	})

	return nil
}

func (m *Master) handleDestroyRequest(req destroyRequest) {
	c, ok := m.shutdownWorker(req.Key)
	if !ok {
		req.Out <- Response{Error: ErrWorkerNotFound}
		return
	}

	req.Out <- Response{Value: c}
}

func (m *Master) removeWorker(ev workerDestroyed) {
	w, ok := m.shutdownWorkers[ev.Key]
	if ok {
		delete(m.shutdownWorkers, ev.Key)
	} else if w, ok = m.workers[ev.Key]; ok {
		// the worker exited on its own
		delete(m.workers, ev.Key)
	} else {
		return
	}

	err := ev.Cause
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errorFromPanic(r)
			}
		}()

		if herr := m.handler.Handle(context.Background(), DestroyWorkerEvent{
			Worker: w,
			Key:    ev.Key,
		}); herr != nil && err == nil {
			err = herr
		}
	}()

	if err != nil {
		w.ShutdownC <- err
	}
	close(w.ShutdownC)
}
