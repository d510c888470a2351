// ABOUTME: mDNS service discovery for VILLAS node APIs
// ABOUTME: The mock node advertises, the live client browses
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

const (
	ServiceType    = "_villas._tcp"
	DefaultAPIPath = "/api/v1"
	LiveProtocol   = "live"
)

// Config holds discovery configuration
type Config struct {
	Instance string // advertised instance name
	Port     int
	APIPath  string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	nodes  chan NodeInfo

	mu   sync.Mutex
	seen map[string]bool
}

// NodeInfo describes a discovered node API
type NodeInfo struct {
	Name     string
	Host     string
	Port     int
	APIPath  string
	Protocol string
}

// APIURL returns the HTTP base URL of the node API
func (n NodeInfo) APIURL() string {
	path := n.APIPath
	if path == "" {
		path = DefaultAPIPath
	}
	return "http://" + net.JoinHostPort(n.Host, strconv.Itoa(n.Port)) + path
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.APIPath == "" {
		config.APIPath = DefaultAPIPath
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		nodes:  make(chan NodeInfo, 10),
		seen:   make(map[string]bool),
	}
}

// TXT returns the advertised TXT records
func (c Config) TXT() []string {
	return []string{"api=" + c.APIPath, "protocol=" + LiveProtocol}
}

// Advertise announces the node API until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.Instance,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.config.TXT(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Info().
		Str("instance", m.config.Instance).
		Int("port", m.config.Port).
		Str("type", ServiceType).
		Msg("Advertising mDNS service")

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for node APIs until Stop is called
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				m.offer(parseEntry(entry))
			}
		}()

		params := &mdns.QueryParam{
			Service:     ServiceType,
			Domain:      "local",
			Timeout:     3 * time.Second,
			Entries:     entries,
			DisableIPv6: true,
		}

		if err := mdns.Query(params); err != nil {
			log.Debug().Err(err).Msg("mDNS query failed")
		}
		close(entries)
		<-done
	}
}

// offer publishes a node once per name and address
func (m *Manager) offer(node NodeInfo) {
	if node.Host == "" || node.Port == 0 {
		return
	}

	key := node.Name + "@" + node.APIURL()
	m.mu.Lock()
	if m.seen[key] {
		m.mu.Unlock()
		return
	}
	m.seen[key] = true
	m.mu.Unlock()

	log.Info().Str("name", node.Name).Str("api", node.APIURL()).Msg("Discovered node")

	select {
	case m.nodes <- node:
	case <-m.ctx.Done():
	}
}

// parseEntry maps an mDNS answer to a node, reading the TXT records
func parseEntry(entry *mdns.ServiceEntry) NodeInfo {
	node := NodeInfo{
		Name:    strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Port:    entry.Port,
		APIPath: DefaultAPIPath,
	}
	if entry.AddrV4 != nil {
		node.Host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		node.Host = entry.AddrV6.String()
	}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "api":
			node.APIPath = value
		case "protocol":
			node.Protocol = value
		}
	}
	return node
}

// Nodes returns the channel of discovered nodes
func (m *Manager) Nodes() <-chan NodeInfo {
	return m.nodes
}

// WaitFirst returns the first discovered node or an error on timeout
func (m *Manager) WaitFirst(ctx context.Context, timeout time.Duration) (NodeInfo, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case node := <-m.nodes:
		return node, nil
	case <-timer.C:
		return NodeInfo{}, fmt.Errorf("no node discovered within %s", timeout)
	case <-ctx.Done():
		return NodeInfo{}, ctx.Err()
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
