package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oasislabs/signing-gateway/config"
	"github.com/oasislabs/signing-gateway/ecc"
	"github.com/oasislabs/signing-gateway/engine"
)

type summaryView struct {
	Contract       string            `json:"contract"`
	Action         string            `json:"action"`
	Classification string            `json:"classification"`
	Fields         map[string]string `json:"fields,omitempty"`
}

type pendingView struct {
	ID           string        `json:"id"`
	RequesterKey string        `json:"requester_key,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`
	Request      requestView   `json:"request"`
	Transaction  string        `json:"transaction_id,omitempty"`
	Summaries    []summaryView `json:"summaries,omitempty"`
}

func viewPending(req *engine.ApprovalRequest) pendingView {
	view := pendingView{
		ID:           req.ID,
		RequesterKey: req.RequesterKey,
		SessionID:    req.SessionID,
		Request:      viewRequest(req.Request),
	}
	if req.Resolved != nil {
		view.Transaction = req.Resolved.TransactionID()
	}

	for _, summary := range req.Summaries {
		sv := summaryView{
			Contract:       summary.Contract.String(),
			Action:         summary.Action.String(),
			Classification: string(summary.Classification),
			Fields:         make(map[string]string, len(summary.Fields)),
		}
		for _, field := range summary.Fields {
			sv.Fields[field.Name] = fmt.Sprint(field.Value)
		}
		view.Summaries = append(view.Summaries, sv)
	}

	return view
}

type decisionView struct {
	ID        string `json:"id"`
	Decision  string `json:"decision"`
	ReturnURL string `json:"return_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// decide accepts or declines the live request of e and reports the
// outcome
func decide(ctx context.Context, e *engine.Engine, key ecc.Signer, req *engine.ApprovalRequest, approve bool) error {
	view := decisionView{ID: req.ID, Decision: "declined"}

	var err error
	if approve {
		view.Decision = "accepted"
		view.ReturnURL, err = e.Accept(ctx, key, true)
	} else {
		view.ReturnURL, err = e.Decline(ctx, true)
	}
	if err != nil {
		view.Error = err.Error()
	}

	printJSON(view)
	return err
}

type signProps struct {
	Decline bool
	DryRun  bool
}

func runSign(ctx context.Context, parser *config.Parser, cfg *Config, props signProps, uri string) error {
	if err := parser.Configure(); err != nil {
		return err
	}

	services, err := createServices(ctx, cfg)
	if err != nil {
		return err
	}
	if err := services.Sessions.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = services.Sessions.Stop() }()

	if _, err := services.Sessions.Restore(ctx); err != nil {
		return err
	}

	req, err := services.Engine.Begin(ctx, uri, services.Account)
	if err != nil {
		return err
	}
	printJSON(viewPending(req))

	if props.DryRun {
		return nil
	}

	err = decide(ctx, services.Engine, ecc.NewKeySigner(cfg.Wallet.Key), req, !props.Decline)
	services.Engine.Wait()
	return err
}

func bindSign(cmd *cobra.Command, parser *config.Parser, cfg *Config) {
	var props signProps

	signCmd := &cobra.Command{
		Use:   "sign <uri>",
		Short: "resolve and sign a signing request",
		Long: "Resolves a signing request against the chain, prints what it " +
			"does and accepts it with the configured wallet key. The result " +
			"is delivered to the requester as the request asks.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd.Context(), parser, cfg, props, args[0])
		},
	}

	signCmd.Flags().BoolVar(&props.Decline, "decline", false, "decline the request instead of accepting it")
	signCmd.Flags().BoolVar(&props.DryRun, "dry-run", false, "only resolve and print the request")

	cmd.AddCommand(signCmd)
}
