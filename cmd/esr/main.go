package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oasislabs/signing-gateway/config"
)

func printJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "failed to serialize output to json: ", err)
	}
}

func main() {
	cfg := &Config{}
	parser, err := config.Generate(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	root := parser.Command()
	root.Short = "wallet side of the signing request protocol"

	bindDecode(root)
	bindEncodeIdentity(root)
	bindSign(root, parser, cfg)
	bindSessions(root, parser, cfg)
	bindListen(root, parser, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "ERROR: ", err)
		os.Exit(1)
	}
}
