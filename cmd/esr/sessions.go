package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/engine"
	"github.com/oasislabs/signing-gateway/session"
)

type sessionView struct {
	ID          string    `json:"id"`
	Account     string    `json:"account"`
	Permission  string    `json:"permission"`
	ChainID     string    `json:"chain_id"`
	CallbackURL string    `json:"callback_url,omitempty"`
	ChannelURL  string    `json:"channel_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func viewSession(s *session.Session) sessionView {
	return sessionView{
		ID:          s.ID,
		Account:     s.Account.String(),
		Permission:  s.Permission.String(),
		ChainID:     s.ChainID.String(),
		CallbackURL: s.CallbackURL,
		ChannelURL:  s.ChannelURL,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// restoreSessions creates a session manager from the configuration
// and loads the stored sessions. Connections are not started. The
// returned engine can only manage the sessions, it has no chain
// client to resolve requests with
func restoreSessions(ctx context.Context, parser *config.Parser, cfg *Config) (*session.Manager, *engine.Engine, error) {
	if err := parser.Configure(&cfg.Logging, &cfg.Session, &cfg.Engine); err != nil {
		return nil, nil, err
	}

	logger := newLogger(cfg)
	manager, err := newSessions(logger, cfg)
	if err != nil {
		return nil, nil, err
	}

	if _, err := manager.Restore(ctx); err != nil {
		return nil, nil, err
	}

	e := engine.NewEngine(ctx, &engine.Services{
		Logger:   logger,
		Sessions: manager,
	}, &cfg.Engine)
	return manager, e, nil
}

func bindSessions(cmd *cobra.Command, parser *config.Parser, cfg *Config) {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "manage the sessions linked to the wallet",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list the stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := restoreSessions(cmd.Context(), parser, cfg)
			if err != nil {
				return err
			}

			views := make([]sessionView, 0)
			for _, s := range manager.List() {
				views = append(views, viewSession(s))
			}
			printJSON(views)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>...",
		Short: "remove stored sessions",
		Long: "Removes sessions from the store. Requesters linked through " +
			"them can no longer push requests to the wallet.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, e, err := restoreSessions(cmd.Context(), parser, cfg)
			if err != nil {
				return err
			}

			for _, id := range args {
				if _, err := manager.Get(id); err != nil {
					return err
				}
				if err := e.CloseSession(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}

	sessionsCmd.AddCommand(listCmd, removeCmd)
	cmd.AddCommand(sessionsCmd)
}
