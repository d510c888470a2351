// ABOUTME: Prints the samples of a live endpoint as text lines
// ABOUTME: One line per sample: seconds.nanoseconds(sequence) values
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/VILLASframework/villas-live-go/internal/app"
	"github.com/VILLASframework/villas-live-go/internal/client"
	"github.com/VILLASframework/villas-live-go/internal/logging"
	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

var (
	apiURL   = flag.String("api", "", "Node API base URL (skip mDNS)")
	liveURL  = flag.String("url", "", "Live endpoint URL, e.g. ws://localhost:8080/ws (skip the API)")
	nodeName = flag.String("node", "", "Websocket node to stream")
	layout   = flag.String("layout", "auto", "Frame layout: auto, a or b")
	count    = flag.Int("count", 0, "Exit after this many samples (0: run until interrupted)")
	retry    = flag.Duration("retry", time.Second, "Reconnect delay")
	logLevel = flag.String("log-level", "warn", "Log level")
)

func main() {
	flag.Parse()

	closer, err := logging.Setup(logging.Config{Level: *logLevel, Console: true, Output: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	frameLayout, err := webmsg.ParseLayout(*layout)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid layout")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := *liveURL
	if url == "" {
		target, err := app.Resolve(ctx, app.ResolveConfig{API: *apiURL, Node: *nodeName, DiscoveryTimeout: 10 * time.Second})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve node")
		}
		url = target.URL
	}

	c := client.NewClient(client.Config{URL: url, RetryDelay: *retry, Layout: frameLayout})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Run(ctx)
	})
	g.Go(func() error {
		return dump(c.Samples, *count, cancel)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Dump failed")
		closer.Close()
		os.Exit(1)
	}
}

// dump writes samples to stdout until the channel closes or limit is reached
func dump(samples <-chan webmsg.Sample, limit int, done context.CancelFunc) error {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	n := 0
	for s := range samples {
		if _, err := fmt.Fprintln(w, s.String()); err != nil {
			return fmt.Errorf("failed to write sample: %w", err)
		}
		if len(samples) == 0 {
			w.Flush()
		}

		n++
		if limit > 0 && n >= limit {
			done()
			break
		}
	}
	return nil
}
