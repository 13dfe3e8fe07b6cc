package concurrent

import (
	"context"
	"errors"
	"sync"
	"time"

	stderr "github.com/pkg/errors"
)

// ErrQueueStopped is returned when submitting to a stopped SerialQueue
var ErrQueueStopped = errors.New("queue is stopped")

// SerialQueueConfig is the configuration for a SerialQueue
type SerialQueueConfig struct {
	// Capacity is the number of suppliers that can be pending
	// before Submit blocks
	Capacity int
}

// SerialQueue runs suppliers one at a time in the order in which
// they were submitted. At most one supplier is in flight at any
// time
type SerialQueue struct {
	mu      sync.Mutex
	stopped bool
	counter uint64
	argCh   chan argument
	doneCh  chan struct{}
}

// NewSerialQueue creates and starts a SerialQueue. The queue stops
// executing suppliers when ctx is done
func NewSerialQueue(ctx context.Context, config SerialQueueConfig) *SerialQueue {
	if config.Capacity <= 0 {
		config.Capacity = 64
	}

	q := &SerialQueue{
		argCh:  make(chan argument, config.Capacity),
		doneCh: make(chan struct{}),
	}

	go q.run(ctx)
	return q
}

func (q *SerialQueue) run(ctx context.Context) {
	defer close(q.doneCh)
	for {
		select {
		case <-ctx.Done():
			for arg := range q.argCh {
				if arg.Out != nil {
					arg.Out <- Result{Index: arg.Index, Err: ctx.Err(), TimeSubmitted: arg.TimeSubmitted}
				}
			}
			return
		case arg, ok := <-q.argCh:
			if !ok {
				return
			}

			res := arg.run()
			if arg.Out != nil {
				arg.Out <- res
			}
		}
	}
}

func (q *SerialQueue) submit(out chan<- Result, supplier Supplier) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}

	q.counter++
	q.argCh <- argument{
		Index:         q.counter,
		TimeSubmitted: time.Now().UnixNano(),
		Out:           out,
		Supplier:      supplier,
	}
	return nil
}

// Submit enqueues the supplier and returns without waiting for it
// to run. The result of the supplier is discarded
func (q *SerialQueue) Submit(supplier Supplier) error {
	return q.submit(nil, supplier)
}

// Enqueue enqueues the supplier and returns the channel on which
// its result is delivered once it has run
func (q *SerialQueue) Enqueue(supplier Supplier) (<-chan Result, error) {
	out := make(chan Result, 1)
	if err := q.submit(out, supplier); err != nil {
		return nil, err
	}

	return out, nil
}

// Do enqueues the supplier and waits for its result. If ctx is done
// before the supplier runs Do returns, but the supplier remains
// queued and runs to completion
func (q *SerialQueue) Do(ctx context.Context, supplier Supplier) (interface{}, error) {
	out, err := q.Enqueue(supplier)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, stderr.WithStack(ctx.Err())
	case res := <-out:
		return res.Result, res.Err
	}
}

// Stop prevents new suppliers from being submitted and waits until
// the ones already queued have run
func (q *SerialQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.argCh)
	q.mu.Unlock()

	<-q.doneCh
}
