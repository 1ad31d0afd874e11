// Command lichtenstein-client is a field node that connects to a
// lichtenstein controller, authenticates, subscribes its output channels,
// and drives them from the controller's unicast and multicast streams.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/config"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/supervisor"
)

func main() {
	cfgPath := flag.String("config", "/etc/lichtenstein/client.toml", "path to the node's TOML configuration file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	logger.Infof("lichtenstein-client %s (commit %s, built %s)", versioninfo.Version, versioninfo.Revision, versioninfo.LastCommit)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	sv, err := supervisor.New(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatalf("failed to initialize: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sv.Run(ctx); err != nil {
		logger.Fatalf("run failed: %v", err)
	}
}
