// ABOUTME: A mock VILLAS node producing generated samples
// ABOUTME: Encodes vectorized messages and retains the last received input
package node

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VILLASframework/villas-live-go/internal/api"
	"github.com/VILLASframework/villas-live-go/internal/config"
	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

// Config describes one node
type Config struct {
	Name        string
	Description string
	Rate        float64 // messages per second
	Vectorize   int     // samples per message
	Layout      webmsg.Layout
	SourceID    uint8
	Signals     []SignalConfig
}

// FromConfig converts a [[node]] table
func FromConfig(nc config.NodeConfig) (Config, error) {
	layout, err := webmsg.ParseLayout(nc.Layout)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Name:        nc.Name,
		Description: nc.Description,
		Rate:        nc.Rate,
		Vectorize:   nc.Vectorize,
		Layout:      layout,
		SourceID:    nc.SourceID,
	}
	for _, s := range nc.Signals {
		cfg.Signals = append(cfg.Signals, SignalConfig{
			Name:      s.Name,
			Type:      s.Type,
			Unit:      s.Unit,
			Frequency: s.Frequency,
			Amplitude: s.Amplitude,
			Offset:    s.Offset,
		})
	}
	return cfg, nil
}

// Node generates samples for its subscribers
type Node struct {
	config Config
	id     uuid.UUID
	source *Source

	mu        sync.Mutex
	sequence  uint32
	lastInput *webmsg.Sample
	received  uint64
}

// New validates cfg and creates a node
func New(cfg Config) (*Node, error) {
	if cfg.Name == "" {
		return nil, errors.New("node name is required")
	}
	if cfg.Rate <= 0 || math.IsInf(cfg.Rate, 0) || math.IsNaN(cfg.Rate) {
		return nil, fmt.Errorf("node %q: rate must be positive", cfg.Name)
	}
	if cfg.Vectorize < 1 {
		cfg.Vectorize = 1
	}
	if cfg.Layout == webmsg.LayoutAuto {
		cfg.Layout = webmsg.LayoutA
	}
	if len(cfg.Signals) > webmsg.MaxSampleCount {
		return nil, fmt.Errorf("node %q: %w", cfg.Name, webmsg.ErrInvalidSampleCount)
	}

	src, err := NewSource(cfg.Signals, time.Now())
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", cfg.Name, err)
	}

	return &Node{
		config: cfg,
		id:     uuid.NewSHA1(uuid.NameSpaceURL, []byte("villas-node:"+cfg.Name)),
		source: src,
	}, nil
}

func (n *Node) Name() string { return n.config.Name }

// Period is the interval between messages
func (n *Node) Period() time.Duration {
	return time.Duration(float64(time.Second) / n.config.Rate)
}

// Next builds one vectorized message ending at now. Sample timestamps
// are spread evenly over the preceding period.
func (n *Node) Next(now time.Time) ([]byte, error) {
	vec := n.config.Vectorize
	spacing := n.Period() / time.Duration(vec)

	n.mu.Lock()
	first := n.sequence
	n.sequence += uint32(vec)
	n.mu.Unlock()

	buf := make([]byte, 0, vec*webmsg.FrameLen(len(n.config.Signals)))
	for i := range vec {
		ts := now.Add(-time.Duration(vec-1-i) * spacing)
		s := webmsg.NewSample(first+uint32(i), ts, n.source.Read(ts)...)
		s.Layout = n.config.Layout
		if s.Layout == webmsg.LayoutB {
			s.SourceID = n.config.SourceID
		}

		var err error
		if buf, err = webmsg.AppendFrame(buf, s); err != nil {
			return nil, fmt.Errorf("failed to encode sample %d: %w", s.Sequence, err)
		}
	}
	return buf, nil
}

// Receive decodes an inbound message and keeps its last sample
func (n *Node) Receive(data []byte) ([]webmsg.Sample, error) {
	samples, err := webmsg.DecodeAll(data)

	n.mu.Lock()
	n.received += uint64(len(samples))
	if len(samples) > 0 {
		last := samples[len(samples)-1]
		n.lastInput = &last
	}
	n.mu.Unlock()

	return samples, err
}

// LastInput returns the most recent inbound sample
func (n *Node) LastInput() (webmsg.Sample, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastInput == nil {
		return webmsg.Sample{}, false
	}
	return *n.lastInput, true
}

// Received counts inbound samples
func (n *Node) Received() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.received
}

// Info describes the node in the API listing
func (n *Node) Info(state string) api.Node {
	out := make([]api.Signal, len(n.config.Signals))
	for i, s := range n.config.Signals {
		out[i] = api.Signal{Name: s.Name, Type: "float", Unit: s.Unit}
	}

	return api.Node{
		Name:        n.config.Name,
		UUID:        n.id,
		Type:        api.TypeWebsocket,
		State:       state,
		Description: n.config.Description,
		In: api.Direction{
			Vectorize: 1,
			Signals: []api.Signal{
				{Name: "slider", Type: "float", Unit: "%"},
				{Name: "checkboxes", Type: "float"},
			},
		},
		Out: api.Direction{
			Vectorize: n.config.Vectorize,
			Signals:   out,
		},
	}
}
