// ABOUTME: Entry point for the mock VILLAS node
// ABOUTME: Serves the node API and live endpoints with generated signals
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
	"golang.org/x/sync/errgroup"

	"github.com/VILLASframework/villas-live-go/internal/config"
	"github.com/VILLASframework/villas-live-go/internal/logging"
	"github.com/VILLASframework/villas-live-go/internal/node"
)

var (
	configPath = flag.String("config", "", "TOML config file with [[node]] tables")
	addr       = flag.String("addr", ":8080", "HTTP listen address")
	name       = flag.String("name", "", "Server name for mDNS (default: hostname)")
	logFile    = flag.String("log-file", "villas-mock-node.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "name":
			cfg.Server.Name = *name
		case "log-file":
			cfg.Log.File = *logFile
		case "no-mdns":
			cfg.Server.MDNS = !*noMDNS
		}
	})
	if *debug {
		cfg.Log.Level = "debug"
	}
	if len(cfg.Nodes) == 0 {
		cfg.Nodes = config.DefaultNodes()
	}

	closer, err := logging.Setup(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: true,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	var nodes []node.Config
	for _, nc := range cfg.Nodes {
		n, err := node.FromConfig(nc)
		if err != nil {
			log.Fatal().Err(err).Str("node", nc.Name).Msg("Invalid node")
		}
		nodes = append(nodes, n)
	}

	srv, err := node.NewServer(node.ServerConfig{
		Addr:       cfg.Server.Addr,
		Name:       cfg.Server.Name,
		EnableMDNS: cfg.Server.MDNS,
		Nodes:      nodes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	log.Info().Str("addr", cfg.Server.Addr).Msg("Press Ctrl-C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		reportInputs(ctx, srv, cfg.Nodes)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("Server stopped")
}

// reportInputs logs the latest operator input of every node
func reportInputs(ctx context.Context, srv *node.Server, nodes []config.NodeConfig) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	seen := make(map[string]uint64)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, nc := range nodes {
				n, ok := srv.Node(nc.Name)
				if !ok {
					continue
				}
				in, ok := n.LastInput()
				received := n.Received()
				if !ok || seen[nc.Name] == received {
					continue
				}
				seen[nc.Name] = received
				log.Info().
					Str("node", nc.Name).
					Int("subscribers", srv.Subscribers(n)).
					Uint64("received", received).
					Str("input", in.String()).
					Msg("Latest input")
			}
		}
	}
}
