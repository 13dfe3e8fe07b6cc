package engine

import (
	"context"

	"github.com/oasislabs/signing-gateway/abi"
	"github.com/oasislabs/signing-gateway/callback"
	"github.com/oasislabs/signing-gateway/chain"
	"github.com/oasislabs/signing-gateway/concurrent"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/session"
)

// Services are the services required to create an Engine from its
// configuration
type Services struct {
	Logger    log.Logger
	Chain     chain.Client
	Sessions  *session.Manager
	Callbacks callback.Dispatcher
}

// NewEngine creates an engine with its own ordered queue and ABI
// resolver. The queue stops when ctx is done
func NewEngine(ctx context.Context, services *Services, config *Config) *Engine {
	queue := concurrent.NewSerialQueue(ctx, concurrent.SerialQueueConfig{
		Capacity: config.QueueCapacity,
	})

	abis := abi.NewResolver(&abi.Deps{
		Logger: services.Logger,
		Client: services.Chain,
		Queue:  queue,
	}, &abi.Props{Cache: config.AbiCache})

	return New(&Deps{
		Logger:    services.Logger,
		Chain:     services.Chain,
		Abis:      abis,
		Sessions:  services.Sessions,
		Callbacks: services.Callbacks,
		Queue:     queue,
	}, &Props{
		Schemes:        config.Schemes,
		ChannelService: config.ChannelService,
		Name:           config.Name,
	})
}
