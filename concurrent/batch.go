package concurrent

import (
	"context"
	"sync"
	"time"
)

// BatchConfig is the configuration for Batch operations
type BatchConfig struct {
	// Concurrency is the number of Suppliers that will be
	// run in parallel
	Concurrency uint8
}

// Result is the result of a Supplier run by a BatchRunner or a
// SerialQueue
type Result struct {
	// Result is the value returned by the Supplier.Supply() call if any
	Result interface{}

	// Err is the err returned by the Supplier.Supply() call if any
	Err error

	// TimeSubmitted is the time at which the supplier was submitted
	TimeSubmitted int64

	// TimeExecuted is the time at which the supplier started executing
	TimeExecuted int64

	// TimeDone is the time at which the supplier was done
	TimeDone int64

	// Index of the result within the submitted batch
	Index uint64
}

// Elapsed returns the time the supplier took to run
func (r Result) Elapsed() time.Duration {
	return time.Duration(r.TimeDone - r.TimeExecuted)
}

type argument struct {
	Index         uint64
	TimeSubmitted int64
	Out           chan<- Result
	Supplier      Supplier
}

func (a argument) run() Result {
	executed := time.Now().UnixNano()
	v, err := a.Supplier.Supply()
	return Result{
		Result:        v,
		Err:           err,
		Index:         a.Index,
		TimeSubmitted: a.TimeSubmitted,
		TimeExecuted:  executed,
		TimeDone:      time.Now().UnixNano(),
	}
}

// BatchRunner executes a batch of suppliers with no ordering
// guarantees between them and returns the results in the order in
// which the suppliers were provided
type BatchRunner struct {
	config BatchConfig
	wg     sync.WaitGroup
	argCh  []chan argument
	resCh  chan Result
}

// NewBatchRunnerWithConfig creates a new BatchRunner. If the ctx is
// done the BatchRunner stops executing suppliers
func NewBatchRunnerWithConfig(ctx context.Context, config BatchConfig) *BatchRunner {
	if config.Concurrency == 0 {
		config.Concurrency = defaultConcurrency
	}

	runner := BatchRunner{
		config: config,
		argCh:  make([]chan argument, config.Concurrency),
		resCh:  make(chan Result, 64),
	}

	runner.wg.Add(int(config.Concurrency))
	for i := 0; i < int(config.Concurrency); i++ {
		runner.argCh[i] = make(chan argument, 64)
		go runner.run(ctx, runner.argCh[i])
	}

	return &runner
}

func (r *BatchRunner) run(ctx context.Context, inCh <-chan argument) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// drain so that Run does not wait on suppliers that
			// will never be executed
			for arg := range inCh {
				arg.Out <- Result{Index: arg.Index, Err: ctx.Err(), TimeSubmitted: arg.TimeSubmitted}
			}
			return
		case arg, ok := <-inCh:
			if !ok {
				return
			}

			arg.Out <- arg.run()
		}
	}
}

// Run executes the block of Suppliers as a batch and returns the
// result once all of them have completed
func (r *BatchRunner) Run(s []Supplier) []Result {
	result := make([]Result, len(s))
	if len(s) == 0 {
		return result
	}

	go func() {
		// the batch may not fit in the channels, so it is submitted
		// from a separate goroutine
		for i := 0; i < len(s); i++ {
			index := i % int(r.config.Concurrency)
			r.argCh[index] <- argument{
				Out:           r.resCh,
				Supplier:      s[i],
				Index:         uint64(i),
				TimeSubmitted: time.Now().UnixNano(),
			}
		}
	}()

	counter := 0
	for res := range r.resCh {
		result[res.Index] = res
		counter++
		if counter == len(s) {
			break
		}
	}

	return result
}

// Stop stops the execution of the BatchRunner and all the goroutines
// associated with it
func (r *BatchRunner) Stop() {
	for _, ch := range r.argCh {
		close(ch)
	}

	r.wg.Wait()
	close(r.resCh)
}

// Batch executes a block of Suppliers using a BatchRunner with the
// default concurrency
func Batch(ctx context.Context, supplier []Supplier) []Result {
	return BatchWithConfig(ctx, supplier, BatchConfig{Concurrency: defaultConcurrency})
}

// BatchWithConfig executes a block of Suppliers using a BatchRunner
func BatchWithConfig(ctx context.Context, supplier []Supplier, config BatchConfig) []Result {
	runner := NewBatchRunnerWithConfig(ctx, config)
	defer runner.Stop()
	return runner.Run(supplier)
}
