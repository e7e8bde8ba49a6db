// Command signaggr runs the signing aggregator: the stateless front door
// that selects a quorum of healthy nodes and drives threshold signing for
// both raw messages and Taproot PSBT inputs.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"frostcustody/aggregator/signing"
	"frostcustody/config"
	"frostcustody/logs"
)

func main() {
	configPath := flag.String("config", "", "path to an aggregator config JSON file (falls back to development defaults)")
	flag.Parse()

	cfg, err := config.LoadAggregatorConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signaggr: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "signaggr: invalid config: %v\n", err)
		os.Exit(1)
	}

	logs.Prefix = "[signaggr]"

	agg := signing.New(cfg)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      agg.Router(),
		ReadTimeout:  cfg.Timeouts.SignRound,
		WriteTimeout: cfg.Timeouts.SignRound,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logs.Error("server exited: %v", err)
		os.Exit(1)
	case sig := <-sigCh:
		logs.Info("received %s, shutting down", sig)
	}
}
