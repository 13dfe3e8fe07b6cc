package main

import (
	"context"
	"os"

	"github.com/oasislabs/signing-gateway/callback"
	"github.com/oasislabs/signing-gateway/chain"
	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/engine"
	"github.com/oasislabs/signing-gateway/errors"
	"github.com/oasislabs/signing-gateway/log"
	"github.com/oasislabs/signing-gateway/metrics"
	"github.com/oasislabs/signing-gateway/session"
)

// Services are the long lived components of a wallet process
type Services struct {
	Logger   log.Logger
	Metrics  metrics.Service
	Chain    *chain.HTTPClient
	Sessions *session.Manager
	Engine   *engine.Engine
	Account  engine.Account
}

func newLogger(config *Config) log.Logger {
	return log.New(&config.Logging, os.Stderr)
}

func newSessions(logger log.Logger, config *Config) (*session.Manager, error) {
	return session.NewManagerWithConfig(&session.Services{Logger: logger}, &config.Session)
}

// createServices builds the services of a process that signs. The
// chain id of the account is taken from the configuration, or from
// the selected node when it is not set
func createServices(ctx context.Context, config *Config) (*Services, error) {
	logger := newLogger(config)
	logger.Info(ctx, "configuration parsed", config)

	m, err := metrics.New(&config.Metrics, logger)
	if err != nil {
		return nil, err
	}

	client, err := chain.NewClient.New(ctx, &chain.Services{Logger: logger}, &config.Chain)
	if err != nil {
		return nil, errors.New(errors.ErrInternal, err)
	}

	var chainID codec.ChainID
	if len(config.Chain.ID) > 0 {
		chainID = codec.MustChainID(config.Chain.ID)
	} else {
		info, err := client.GetInfo(ctx)
		if err != nil {
			return nil, errors.New(errors.ErrInternal, err)
		}
		chainID = info.ChainID
	}

	sessions, err := newSessions(logger, config)
	if err != nil {
		return nil, err
	}

	e := engine.NewEngine(ctx, &engine.Services{
		Logger:    logger,
		Chain:     client,
		Sessions:  sessions,
		Callbacks: callback.NewClient(&callback.Services{Logger: logger}, &config.Callback),
	}, &config.Engine)

	return &Services{
		Logger:   logger,
		Metrics:  m,
		Chain:    client,
		Sessions: sessions,
		Engine:   e,
		Account: engine.Account{
			ChainID:    chainID,
			Actor:      config.Wallet.Account,
			Permission: config.Wallet.Permission,
		},
	}, nil
}
