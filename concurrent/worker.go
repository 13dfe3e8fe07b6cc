package concurrent

import (
	"context"
)

// Worker handles requests issued by the master in a separate
// goroutine and gives back results. Its lifetime is managed
// by the Master
type Worker struct {
	// key is the string that uniquely identifies a worker
	key string

	// handler is the user defined handler for events that
	// a worker needs to handle
	handler WorkerHandler

	// C is the channel the worker only reads from
	C chan workerRequest

	// ShutdownC is used by the worker to signal that it has been
	// completely shutdown and removed
	ShutdownC chan error

	// doneC is a write once channel the worker uses to notify the master
	// that the worker has exited
	doneC chan<- workerDestroyed

	// UserData is data that the user can attach to the worker in case any
	// external context is required
	UserData interface{}
}

// Key returns the key that identifies the worker
func (w *Worker) Key() string {
	return w.key
}

// WorkerEvent is the interface defined for events that the worker emits
type WorkerEvent interface {
	GetWorker() *Worker
}

// RequestWorkerEvent is emitted by the worker when a request
// is received by the worker
type RequestWorkerEvent struct {
	Worker *Worker
	Value  interface{}
}

// GetWorker implementation of WorkerEvent for RequestWorkerEvent
func (e RequestWorkerEvent) GetWorker() *Worker {
	return e.Worker
}

// WorkerHandler is the user defined handler to handle events
// targeting a worker
type WorkerHandler interface {
	Handle(ctx context.Context, ev WorkerEvent) (interface{}, error)
}

// WorkerHandlerFunc is the implementation of WorkerHandler for functions
type WorkerHandlerFunc func(ctx context.Context, ev WorkerEvent) (interface{}, error)

// Handle implementation of WorkerHandler for WorkerHandlerFunc
func (f WorkerHandlerFunc) Handle(ctx context.Context, ev WorkerEvent) (interface{}, error) {
	return f(ctx, ev)
}

// CreateWorkerProps is the place where a user defined MasterHandler can put
// the defined properties for a Worker on a CreateWorkerEvent
type CreateWorkerProps struct {
	// WorkerHandler is the handler used by the worker to handle
	// incoming requests
	WorkerHandler WorkerHandler

	// UserData is data that the user can attach to the worker in case any
	// external context is required
	UserData interface{}
}

// CreateWorkerEvent is triggered by a master when a new worker
// is created and available to be sent events to
type CreateWorkerEvent struct {
	Key   string
	Value interface{}
	Props *CreateWorkerProps
}

// WorkerKey implementation of MasterEvent for CreateWorkerEvent
func (e CreateWorkerEvent) WorkerKey() string {
	return e.Key
}

// DestroyWorkerEvent is triggered by a master when an existing worker
// is destroyed
type DestroyWorkerEvent struct {
	Worker *Worker
	Key    string
}

// WorkerKey implementation of MasterEvent for DestroyWorkerEvent
func (e DestroyWorkerEvent) WorkerKey() string {
	return e.Key
}

type workerProps struct {
	Key           string
	DoneC         chan<- workerDestroyed
	WorkerHandler WorkerHandler
	C             chan workerRequest
	UserData      interface{}
}

// workerDestroyed is the event sent by a worker to the
// master to signal the end of the worker
type workerDestroyed struct {
	Key   string
	Cause error
}

// Response is the result of a request handled by a worker
type Response struct {
	Value interface{}
	Key   string
	Error error
}

type workerRequest struct {
	Context context.Context
	Key     string
	Value   interface{}
	Out     chan Response
}

func (r workerRequest) GetContext() context.Context {
	return r.Context
}

func newWorker(ctx context.Context, props workerProps) *Worker {
	w := &Worker{
		key:     props.Key,
		handler: props.WorkerHandler,
		C:       props.C,

		// ShutdownC may not have listeners, in which case the worker
		// must not block
		ShutdownC: make(chan error, 2),
		doneC:     props.DoneC,
		UserData:  props.UserData,
	}

	go w.startLoop(ctx)
	return w
}

func (w *Worker) startLoop(ctx context.Context) {
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = errorFromPanic(r)
		}

		w.doneC <- workerDestroyed{Key: w.key, Cause: err}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-w.C:
			if !ok {
				return
			}

			w.handleRequest(req)
		}
	}
}

func (w *Worker) handleRequest(req workerRequest) {
	defer func() {
		if r := recover(); r != nil {
			req.Out <- Response{Value: nil, Key: w.key, Error: errorFromPanic(r)}
			close(req.Out)
		}
	}()

	if req.Key != w.key {
		panic("received request intended for another worker")
	}

	v, err := w.handler.Handle(req.Context, RequestWorkerEvent{
		Worker: w,
		Value:  req.Value,
	})

	req.Out <- Response{Value: v, Key: w.key, Error: err}
	close(req.Out)
}
