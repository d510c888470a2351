// ABOUTME: Entry point for the VILLASlive viewer
// ABOUTME: Parses CLI flags and config, then streams samples from a node
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VILLASframework/villas-live-go/internal/app"
	"github.com/VILLASframework/villas-live-go/internal/config"
	"github.com/VILLASframework/villas-live-go/internal/logging"
	"github.com/VILLASframework/villas-live-go/internal/version"
	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

var (
	configPath = flag.String("config", "", "TOML config file")
	apiURL     = flag.String("api", "", "Node API base URL, e.g. http://localhost:8080/api/v1 (skip mDNS)")
	nodeName   = flag.String("node", "", "Websocket node to stream (default: last websocket node)")
	layout     = flag.String("layout", "auto", "Frame layout: auto, a or b")
	retry      = flag.Duration("retry", time.Second, "Reconnect delay")
	timespan   = flag.Duration("timespan", 5*time.Second, "Visible timespan")
	updateRate = flag.Int("rate", 25, "Redraws per second")
	logFile    = flag.String("log-file", "villas-live.log", "Log file path")
	logLevel   = flag.String("log-level", "info", "Log level")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs = flag.Bool("stream-logs", false, "Alias for -no-tui")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	useTUI := cfg.UI.Enabled && !(*noTUI || *streamLogs)

	closer, err := logging.Setup(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: !useTUI,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	if !useTUI {
		log.Info().Str("version", version.Version).Msgf("Starting %s", version.Product)
	}

	frameLayout, _ := webmsg.ParseLayout(cfg.Client.Layout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	viewer := app.New(app.Config{
		Resolve: app.ResolveConfig{
			API:              cfg.Client.API,
			Node:             cfg.Client.Node,
			DiscoveryTimeout: cfg.Client.DiscoveryTimeout,
		},
		RetryDelay: cfg.Client.RetryDelay,
		Layout:     frameLayout,
		Timespan:   cfg.UI.Timespan,
		UpdateRate: cfg.UI.UpdateRate,
		UseTUI:     useTUI,
	})

	if err := viewer.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Viewer failed")
		closer.Close()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.Info().Msg("Viewer stopped")
}

// applyFlags overrides the config with flags given on the command line
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api":
			cfg.Client.API = *apiURL
		case "node":
			cfg.Client.Node = *nodeName
		case "layout":
			cfg.Client.Layout = *layout
		case "retry":
			cfg.Client.RetryDelay = *retry
		case "timespan":
			cfg.UI.Timespan = *timespan
		case "rate":
			cfg.UI.UpdateRate = *updateRate
		case "log-file":
			cfg.Log.File = *logFile
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
}
