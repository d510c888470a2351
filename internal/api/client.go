// ABOUTME: HTTP client for the node API
// ABOUTME: Lists nodes and picks the websocket node to stream from
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNoWebsocketNode = errors.New("no websocket node available")

// Client talks to one node API base URL, e.g. http://host:8080/api/v1
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with a request timeout
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Nodes fetches the node listing
func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	url := strings.TrimRight(c.BaseURL, "/") + NodesPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	log.Debug().Str("url", url).Msg("Requesting nodes")
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request nodes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("node listing failed: HTTP %d", resp.StatusCode)
	}

	var nodes []Node
	if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}

	log.Debug().Int("count", len(nodes)).Msg("Found nodes")
	return nodes, nil
}

// SelectNode returns the websocket node called name, or the last
// websocket node in the listing when none matches
func SelectNode(nodes []Node, name string) (Node, error) {
	var fallback *Node
	for i := range nodes {
		if !nodes[i].IsWebsocket() {
			continue
		}
		if name != "" && nodes[i].Name == name {
			return nodes[i], nil
		}
		fallback = &nodes[i]
	}

	if fallback == nil {
		return Node{}, ErrNoWebsocketNode
	}
	if name != "" {
		log.Warn().Str("requested", name).Str("selected", fallback.Name).Msg("Requested node not found")
	}
	return *fallback, nil
}

// WebsocketNodes filters the listing
func WebsocketNodes(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		if n.IsWebsocket() {
			out = append(out, n)
		}
	}
	return out
}
