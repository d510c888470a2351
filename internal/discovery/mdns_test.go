// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers entry parsing, deduplication and URL building
package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerDefaults(t *testing.T) {
	mgr := NewManager(Config{Instance: "Test Node", Port: 8080})
	require.NotNil(t, mgr)
	defer mgr.Stop()

	assert.Equal(t, DefaultAPIPath, mgr.config.APIPath)
	assert.Equal(t, []string{"api=/api/v1", "protocol=live"}, mgr.config.TXT())
}

func TestParseEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "lab-rack." + ServiceType + ".local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8080,
		InfoFields: []string{"api=/villas/api/v1", "protocol=live", "junk"},
	}

	node := parseEntry(entry)
	assert.Equal(t, "lab-rack", node.Name)
	assert.Equal(t, "192.168.1.20", node.Host)
	assert.Equal(t, "/villas/api/v1", node.APIPath)
	assert.Equal(t, LiveProtocol, node.Protocol)
	assert.Equal(t, "http://192.168.1.20:8080/villas/api/v1", node.APIURL())
}

func TestParseEntryIPv6(t *testing.T) {
	node := parseEntry(&mdns.ServiceEntry{
		Name:   "v6",
		AddrV6: net.ParseIP("fe80::1"),
		Port:   80,
	})
	assert.Equal(t, "http://[fe80::1]:80/api/v1", node.APIURL())
}

func TestOfferDeduplicates(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Stop()

	node := NodeInfo{Name: "n", Host: "10.0.0.1", Port: 80}
	mgr.offer(node)
	mgr.offer(node)
	mgr.offer(NodeInfo{Name: "no-address"})

	got, err := mgr.WaitFirst(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, node, got)

	select {
	case extra := <-mgr.Nodes():
		t.Fatalf("unexpected duplicate %+v", extra)
	default:
	}
}

func TestWaitFirstTimeout(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Stop()

	_, err := mgr.WaitFirst(context.Background(), 10*time.Millisecond)
	assert.Error(t, err)
}
