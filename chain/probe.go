package chain

import (
	"context"
	"time"

	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/codec"
	"github.com/oasislabs/signing-gateway/concurrent"
	"github.com/oasislabs/signing-gateway/log"
)

// ProbeResult is the outcome of probing a single node
type ProbeResult struct {
	URL     string
	Latency time.Duration
	Info    *Info
	Err     error
}

// Probe queries every node concurrently and returns the results in
// the order of urls. Nodes on a chain other than chainID are
// reported as failed. A zero chainID accepts any chain
func Probe(ctx context.Context, deps *Deps, urls []string, chainID codec.ChainID) []ProbeResult {
	suppliers := make([]concurrent.Supplier, 0, len(urls))
	for _, url := range urls {
		client := NewHTTPClient(deps, &Props{URL: url})
		suppliers = append(suppliers, concurrent.SupplierFunc(func() (interface{}, error) {
			return client.GetInfo(ctx)
		}))
	}

	results := concurrent.BatchWithConfig(ctx, suppliers, concurrent.BatchConfig{
		Concurrency: uint8(min(len(urls), 8)),
	})

	probes := make([]ProbeResult, 0, len(results))
	for i, res := range results {
		probe := ProbeResult{URL: urls[i], Latency: res.Elapsed(), Err: res.Err}
		if res.Err == nil {
			probe.Info = res.Result.(*Info)
			if chainID != (codec.ChainID{}) && probe.Info.ChainID != chainID {
				probe.Err = stderr.Errorf("node is on chain %s", probe.Info.ChainID)
			}
		}
		probes = append(probes, probe)
	}

	return probes
}

// Fastest probes urls and returns the url of the node that answered
// first among those that answered correctly
func Fastest(ctx context.Context, deps *Deps, urls []string, chainID codec.ChainID) (string, error) {
	if len(urls) == 0 {
		return "", stderr.New("no node urls to probe")
	}
	if len(urls) == 1 {
		return urls[0], nil
	}

	var best *ProbeResult
	probes := Probe(ctx, deps, urls, chainID)
	for i := range probes {
		probe := &probes[i]
		if probe.Err != nil {
			deps.Logger.Warn(ctx, "node probe failed", log.MapFields{
				"call_type": "ProbeNodeFailure",
				"url":       probe.URL,
				"err":       probe.Err.Error(),
			})
			continue
		}

		if best == nil || probe.Latency < best.Latency {
			best = probe
		}
	}

	if best == nil {
		return "", stderr.New("no node answered the probe")
	}

	deps.Logger.Info(ctx, "selected chain node", log.MapFields{
		"call_type": "ProbeNodeSuccess",
		"url":       best.URL,
		"latency":   best.Latency.String(),
	})
	return best.URL, nil
}
