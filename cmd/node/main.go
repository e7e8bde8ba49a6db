// Command node runs one signer node process: the HSM-backed holder of one
// DKG-derived share per passphrase, serving node/router.go's HTTP surface.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"frostcustody/config"
	"frostcustody/hsm"
	"frostcustody/logs"
	"frostcustody/node"
)

func main() {
	configPath := flag.String("config", "", "path to a node config JSON file (falls back to development defaults)")
	flag.Parse()

	cfg, err := config.LoadNodeConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "node: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "node: invalid config: %v\n", err)
		os.Exit(1)
	}

	logs.Prefix = fmt.Sprintf("[node-%d]", cfg.NodeIndex)

	provider, err := hsm.New(cfg.KeyProvider)
	if err != nil {
		logs.Error("hsm init failed: %v", err)
		os.Exit(1)
	}

	n, err := node.New(cfg, provider)
	if err != nil {
		logs.Error("node init failed: %v", err)
		os.Exit(1)
	}
	defer n.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.ListenAndServe()
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
