package chain

import (
	"context"
	"net/http"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/log"
)

// Services are the services required to create a client
type Services struct {
	Logger log.Logger
}

// ClientFactory creates a new instance of a client based
// on the provided configuration
type ClientFactory interface {
	New(context.Context, *Services, *Config) (*HTTPClient, error)
}

// ClientFactoryFunc allows for functions to act as a ClientFactory
type ClientFactoryFunc func(context.Context, *Services, *Config) (*HTTPClient, error)

// New implementation of ClientFactory for ClientFactoryFunc
func (f ClientFactoryFunc) New(ctx context.Context, services *Services, config *Config) (*HTTPClient, error) {
	return f(ctx, services, config)
}

// NewClient creates a client for the fastest of the configured nodes
var NewClient = ClientFactoryFunc(func(ctx context.Context, services *Services, config *Config) (*HTTPClient, error) {
	var chainID codec.ChainID
	if len(config.ID) > 0 {
		id, err := codec.ParseChainID(config.ID)
		if err != nil {
			return nil, err
		}
		chainID = id
	}

	deps := &Deps{
		Logger: services.Logger,
		Client: &http.Client{Timeout: config.Timeout},
	}

	url, err := Fastest(ctx, deps, config.URLs, chainID)
	if err != nil {
		return nil, err
	}

	return NewHTTPClient(deps, &Props{URL: url}), nil
})
