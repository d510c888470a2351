// ABOUTME: Finds the live endpoint to connect to
// ABOUTME: Discovers the node API when needed and selects a websocket node
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VILLASframework/villas-live-go/internal/api"
	"github.com/VILLASframework/villas-live-go/internal/client"
	"github.com/VILLASframework/villas-live-go/internal/discovery"
)

// ResolveConfig selects the node API and node
type ResolveConfig struct {
	API              string // empty means browse via mDNS
	Node             string
	DiscoveryTimeout time.Duration
}

// Target is a resolved live endpoint
type Target struct {
	API   string
	Node  api.Node
	Nodes []api.Node
	URL   string
}

// NodeNames lists the websocket nodes of the API
func (t Target) NodeNames() []string {
	var names []string
	for _, n := range api.WebsocketNodes(t.Nodes) {
		names = append(names, n.Name)
	}
	return names
}

// Resolve finds the API, lists its nodes and builds the live URL. When
// the listing fails but a node name is given, that name is used as is.
func Resolve(ctx context.Context, cfg ResolveConfig) (Target, error) {
	target := Target{API: cfg.API}

	if target.API == "" {
		timeout := cfg.DiscoveryTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		log.Info().Dur("timeout", timeout).Msg("Starting node discovery...")
		mgr := discovery.NewManager(discovery.Config{})
		defer mgr.Stop()
		if err := mgr.Browse(); err != nil {
			return target, fmt.Errorf("failed to browse: %w", err)
		}

		found, err := mgr.WaitFirst(ctx, timeout)
		if err != nil {
			return target, fmt.Errorf("discovery failed: %w", err)
		}
		target.API = found.APIURL()
		log.Info().Str("api", target.API).Msg("Discovered node API")
	}

	nodes, err := api.NewClient(target.API).Nodes(ctx)
	switch {
	case err == nil:
		target.Nodes = nodes
		if target.Node, err = api.SelectNode(nodes, cfg.Node); err != nil {
			return target, err
		}
	case cfg.Node != "":
		log.Warn().Err(err).Str("node", cfg.Node).Msg("Node listing failed, connecting without signal names")
		target.Node = api.Node{Name: cfg.Node, Type: api.TypeWebsocket}
	default:
		return target, err
	}

	if target.URL, err = client.WebsocketURL(target.API, target.Node.Name); err != nil {
		return target, err
	}
	log.Info().Str("node", target.Node.Name).Str("url", target.URL).Msg("Selected node")
	return target, nil
}
