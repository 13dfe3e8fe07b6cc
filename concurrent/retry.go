package concurrent

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	stderr "github.com/pkg/errors"
)

// ErrCannotRecover is an error that can be returned by a Supplier
// so that the attempted action is not retried
type ErrCannotRecover struct {
	Cause error
}

// Error implementation of error for ErrCannotRecover
func (e ErrCannotRecover) Error() string {
	return e.Cause.Error()
}

// ErrMaxAttemptsReached is returned after attempting an action
// the maximum number of times with failures
type ErrMaxAttemptsReached struct {
	Causes []error
}

// Error implementation of error for ErrMaxAttemptsReached
func (e ErrMaxAttemptsReached) Error() string {
	return fmt.Sprintf("maximum number of attempts %d reached", len(e.Causes))
}

const (
	defaultConcurrency     uint8         = 4
	defaultBaseTimeout     time.Duration = 100 * time.Millisecond
	defaultBaseExp         uint8         = 2
	defaultMaxRetryTimeout time.Duration = 10 * time.Second
	defaultAttempts        uint8         = 10
)

// Supplier abstracts an operation into a generic method that can be
// run by Retry, Batch or a SerialQueue without knowing any specifics
// of what the Supplier actually does
type Supplier interface {
	Supply() (interface{}, error)
}

// SupplierFunc allows functions and closures to be passed as a Supplier
type SupplierFunc func() (interface{}, error)

// Supply is the implementation of Supplier by calling the method
// itself
func (s SupplierFunc) Supply() (interface{}, error) {
	return s()
}

// RetryConfig is the configuration parameters for RetryWithConfig
type RetryConfig struct {
	// Random sets the retry to wait a random time based on the
	// exponential back off
	Random bool

	// UnlimitedAttempts when set to true, Attempts will be ignored
	// and the action will be retried until it succeeds or the context
	// is done
	UnlimitedAttempts bool

	// Attempts is the maximum number of attempts allowed
	Attempts uint8

	// BaseExp is the base exponent for the calculation of the next
	// wait. A BaseExp of 1 results in a fixed backoff of BaseTimeout
	BaseExp uint8

	// BaseTimeout is the wait used after the first attempt fails
	BaseTimeout time.Duration

	// MaxRetryTimeout sets an upper bound into the time that
	// the retry will wait until attempting an operation again
	MaxRetryTimeout time.Duration
}

// FixedRetryConfig returns a configuration that waits the same
// interval between attempts. An attempts value of 0 retries until
// the context is done
func FixedRetryConfig(interval time.Duration, attempts uint8) RetryConfig {
	return RetryConfig{
		UnlimitedAttempts: attempts == 0,
		Attempts:          attempts,
		BaseExp:           1,
		BaseTimeout:       interval,
		MaxRetryTimeout:   interval,
	}
}

// RetryWithConfig is an implementation of an exponential back off
// retry operation for a supplier. It keeps retrying the operation
// until it succeeds, until the maximum number of attempts has been
// reached, in which case it returns ErrMaxAttemptsReached, or until
// the supplier returns ErrCannotRecover
func RetryWithConfig(
	ctx context.Context,
	supplier Supplier,
	config RetryConfig,
) (interface{}, error) {
	var errs []error
	timeout := config.BaseTimeout.Nanoseconds()
	exp := int64(config.BaseExp)
	maxTimeout := config.MaxRetryTimeout.Nanoseconds()
	attempts := 0
	maxAttempts := int(config.Attempts)
	timer := time.NewTimer(0)

	if exp == 0 {
		exp = 1
	}
	if config.UnlimitedAttempts {
		maxAttempts = -1
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, stderr.WithStack(ctx.Err())

		case <-timer.C:
			v, err := supplier.Supply()
			if err == nil {
				return v, nil
			}

			if err, ok := err.(ErrCannotRecover); ok {
				return nil, err.Cause
			}

			errs = append(errs, err)
		}

		attempts++
		if maxAttempts >= 0 && attempts >= maxAttempts {
			return nil, ErrMaxAttemptsReached{Causes: errs}
		}

		// only the latest cause is of interest on unlimited retries
		if maxAttempts < 0 && len(errs) > 1 {
			errs = errs[len(errs)-1:]
		}

		if attempts > 1 {
			timeout = timeout * exp
		}
		multiplier := rand.Float64() + 0.5
		if timeout > maxTimeout {
			timeout = maxTimeout
			multiplier = rand.Float64() + 1
		}

		wait := timeout
		if config.Random {
			wait = int64(multiplier*float64(timeout)) + 1
		}
		timer.Reset(time.Duration(wait))
	}
}

// Retry is the same operation as RetryWithConfig but in this
// case the default values for RetryConfig are used
func Retry(ctx context.Context, supplier Supplier) (interface{}, error) {
	return RetryWithConfig(ctx, supplier, RetryConfig{
		BaseTimeout:     defaultBaseTimeout,
		BaseExp:         defaultBaseExp,
		MaxRetryTimeout: defaultMaxRetryTimeout,
		Attempts:        defaultAttempts,
	})
}
