package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/engine"
	"github.com/oasislabs/signing-gateway/log"
)

type listenProps struct {
	Approve bool
}

func runListen(ctx context.Context, parser *config.Parser, cfg *Config, props listenProps, uris []string) error {
	if err := parser.Configure(); err != nil {
		return err
	}

	services, err := createServices(ctx, cfg)
	if err != nil {
		return err
	}

	services.Metrics.Start()
	defer services.Metrics.Stop()

	if err := services.Sessions.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = services.Sessions.Stop() }()

	restored, err := services.Sessions.Restore(ctx)
	if err != nil {
		return err
	}
	if err := services.Sessions.EnableConnections(ctx); err != nil {
		return err
	}
	services.Logger.Info(ctx, "listening for requests", log.MapFields{
		"call_type": "ListenSuccess",
		"sessions":  restored,
	})

	events, unsubscribe := services.Engine.Subscribe()
	defer unsubscribe()

	// requests given on the command line, such as the identity request
	// that links a new requester, are handled like pushed ones
	for _, uri := range uris {
		go func() {
			_, _ = services.Engine.Begin(ctx, uri, services.Account)
		}()
	}

	key := ecc.NewKeySigner(cfg.Wallet.Key)
	for {
		select {
		case <-ctx.Done():
			services.Engine.Cancel()
			services.Engine.Wait()
			return nil
		case ev := <-events:
			if ev.Type != engine.EventPending || services.Engine.Pending() != ev.Request {
				continue
			}

			printJSON(viewPending(ev.Request))
			// failures are reported in the printed decision
			_ = decide(ctx, services.Engine, key, ev.Request, props.Approve)
		}
	}
}

func bindListen(cmd *cobra.Command, parser *config.Parser, cfg *Config) {
	var props listenProps

	listenCmd := &cobra.Command{
		Use:   "listen [uri]...",
		Short: "serve the requests pushed through the wallet sessions",
		Long: "Connects to the push channel of every stored session and " +
			"handles the requests that arrive on them. Requests passed as " +
			"arguments are handled first. Without --approve every request " +
			"is declined.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), parser, cfg, props, args)
		},
	}

	listenCmd.Flags().BoolVar(&props.Approve, "approve", false, "accept every request with the configured wallet key")

	cmd.AddCommand(listenCmd)
}
