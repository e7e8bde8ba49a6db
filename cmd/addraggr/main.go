// Command addraggr runs the address aggregator: the stateless front door
// that drives DKG across a node roster and returns a chain-encoded address
// for a (chain, passphrase) pair.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"frostcustody/aggregator/address"
	"frostcustody/config"
	"frostcustody/logs"
)

func main() {
	configPath := flag.String("config", "", "path to an aggregator config JSON file (falls back to development defaults)")
	flag.Parse()

	cfg, err := config.LoadAggregatorConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "addraggr: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "addraggr: invalid config: %v\n", err)
		os.Exit(1)
	}

	logs.Prefix = "[addraggr]"

	agg := address.New(cfg)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      agg.Router(),
		ReadTimeout:  cfg.Timeouts.DKGRound,
		WriteTimeout: cfg.Timeouts.DKGRound,
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
