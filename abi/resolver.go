package abi

import (
	"context"
	"sync"

	"github.com/oasislabs/signing-gateway/chain"
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/concurrent"
	"github.com/oasislabs/signing-gateway/errors"
	"github.com/oasislabs/signing-gateway/log"
)

// Deps are the dependencies of a Resolver
type Deps struct {
	Logger log.Logger
	Client chain.Client

	// Queue is the strictly ordered queue on which every fetch is
	// issued
	Queue *concurrent.SerialQueue
}

// Props define the behaviour of a Resolver
type Props struct {
	// Cache keeps fetched ABIs until Reset is called
	Cache bool
}

// Resolver fetches the ABIs of the contracts referenced by requests
type Resolver struct {
	client chain.Client
	queue  *concurrent.SerialQueue
	logger log.Logger
	cache  bool

	mu     sync.Mutex
	cached map[codec.Name]*ABI
}

// NewResolver creates a new Resolver
func NewResolver(deps *Deps, props *Props) *Resolver {
	return &Resolver{
		client: deps.Client,
		queue:  deps.Queue,
		logger: deps.Logger.ForClass("abi", "Resolver"),
		cache:  props.Cache,
		cached: make(map[codec.Name]*ABI),
	}
}

type fetch struct {
	contract codec.Name
	out      <-chan concurrent.Result
}

// FetchAbis fetches the ABI of every distinct contract. Failures to
// fetch or decode a single ABI are logged and the contract is left out
// of the result, so callers can report exactly which one is missing.
// An error is only returned if ctx is done or the queue is stopped
// before every fetch has been processed
func (r *Resolver) FetchAbis(ctx context.Context, contracts []codec.Name) (map[codec.Name]*ABI, error) {
	abis := make(map[codec.Name]*ABI, len(contracts))
	var pending []fetch
	seen := make(map[codec.Name]bool)

	for _, contract := range contracts {
		if seen[contract] {
			continue
		}
		seen[contract] = true

		if abi, ok := r.fromCache(contract); ok {
			abis[contract] = abi
			continue
		}

		out, err := r.queue.Enqueue(concurrent.SupplierFunc(func() (interface{}, error) {
			raw, err := r.client.GetRawAbi(ctx, contract)
			if err != nil {
				return nil, err
			}
			return Decode(raw)
		}))
		if err != nil {
			return nil, errors.New(errors.ErrInternal, err)
		}

		pending = append(pending, fetch{contract: contract, out: out})
	}

	requested := len(seen)
	processed := requested - len(pending)
	available := len(abis)

	for _, f := range pending {
		var res concurrent.Result
		select {
		case <-ctx.Done():
			return nil, errors.New(errors.ErrRequestSuperseded, ctx.Err())
		case res = <-f.out:
		}

		processed++
		if res.Err != nil {
			r.logger.Warn(ctx, "failed to fetch abi", log.MapFields{
				"call_type": "FetchAbiFailure",
				"contract":  f.contract.String(),
				"err":       res.Err.Error(),
			})
			continue
		}

		abi := res.Result.(*ABI)
		abis[f.contract] = abi
		available++
		r.toCache(f.contract, abi)
	}

	r.logger.Debug(ctx, "abi fetch completed", log.MapFields{
		"call_type": "FetchAbiSuccess",
		"requested": requested,
		"processed": processed,
		"available": available,
	})

	return abis, nil
}

// CheckComplete returns MissingAbi for the first contract, in the order
// provided, that has no ABI in abis
func CheckComplete(contracts []codec.Name, abis map[codec.Name]*ABI) error {
	for _, contract := range contracts {
		if _, ok := abis[contract]; !ok {
			return errors.Newf(errors.ErrMissingAbi, "%s", contract)
		}
	}

	return nil
}

// Require fetches the ABIs of contracts and fails with MissingAbi if
// any of them is not available
func (r *Resolver) Require(ctx context.Context, contracts []codec.Name) (map[codec.Name]*ABI, error) {
	abis, err := r.FetchAbis(ctx, contracts)
	if err != nil {
		return nil, err
	}

	if err := CheckComplete(contracts, abis); err != nil {
		return nil, err
	}

	return abis, nil
}

// Reset drops every cached ABI
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = make(map[codec.Name]*ABI)
}

func (r *Resolver) fromCache(contract codec.Name) (*ABI, bool) {
	if !r.cache {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	abi, ok := r.cached[contract]
	return abi, ok
}

func (r *Resolver) toCache(contract codec.Name, abi *ABI) {
	if !r.cache {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached[contract] = abi
}
