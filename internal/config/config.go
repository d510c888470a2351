// ABOUTME: TOML configuration for the live client and the mock node
// ABOUTME: Defaults are applied first, then the file, then CLI flags in main
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

// Config is the top-level TOML document
type Config struct {
	Client ClientConfig `toml:"client"`
	UI     UIConfig     `toml:"ui"`
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
	Nodes  []NodeConfig `toml:"node"`
}

type ClientConfig struct {
	API              string        `toml:"api"` // empty means browse via mDNS
	Node             string        `toml:"node"`
	RetryDelay       time.Duration `toml:"retry_delay"`
	Layout           string        `toml:"layout"`
	DiscoveryTimeout time.Duration `toml:"discovery_timeout"`
}

type UIConfig struct {
	Enabled    bool          `toml:"enabled"`
	Timespan   time.Duration `toml:"timespan"`
	UpdateRate int           `toml:"update_rate"` // redraws per second
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	Name string `toml:"name"`
	MDNS bool   `toml:"mdns"`
}

type NodeConfig struct {
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Rate        float64        `toml:"rate"` // messages per second
	Vectorize   int            `toml:"vectorize"`
	Layout      string         `toml:"layout"`
	SourceID    uint8          `toml:"source_id"`
	Signals     []SignalConfig `toml:"signal"`
}

type SignalConfig struct {
	Name      string  `toml:"name"`
	Type      string  `toml:"type"`
	Unit      string  `toml:"unit"`
	Frequency float64 `toml:"frequency"`
	Amplitude float64 `toml:"amplitude"`
	Offset    float64 `toml:"offset"`
}

// Timespan bounds shared with the plot window
const (
	MinTimespan   = 100 * time.Millisecond
	MaxTimespan   = 10 * time.Second
	MinUpdateRate = 1
	MaxUpdateRate = 100
)

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Client: ClientConfig{
			RetryDelay:       time.Second,
			Layout:           "auto",
			DiscoveryTimeout: 10 * time.Second,
		},
		UI: UIConfig{
			Enabled:    true,
			Timespan:   5 * time.Second,
			UpdateRate: 25,
		},
		Log: LogConfig{
			Level: "info",
			File:  "villas-live.log",
		},
		Server: ServerConfig{
			Addr: ":8080",
			Name: defaultServerName(),
			MDNS: true,
		},
	}
}

// DefaultNodes is served by the mock node when the file declares none
func DefaultNodes() []NodeConfig {
	return []NodeConfig{{
		Name:        "ws",
		Description: "Generated test signals",
		Rate:        10,
		Vectorize:   5,
		Layout:      "a",
		Signals: []SignalConfig{
			{Name: "sine", Type: "sine", Unit: "V", Frequency: 1, Amplitude: 1},
			{Name: "square", Type: "square", Unit: "V", Frequency: 0.5, Amplitude: 1},
			{Name: "ramp", Type: "ramp", Frequency: 0.2, Amplitude: 1},
			{Name: "counter", Type: "counter", Amplitude: 1},
		},
	}}
}

func defaultServerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "villas-mock-node"
	}
	return host
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and node declarations
func (c Config) Validate() error {
	var errs []error

	if c.Client.RetryDelay <= 0 {
		errs = append(errs, errors.New("client.retry_delay must be positive"))
	}
	if _, err := webmsg.ParseLayout(c.Client.Layout); err != nil {
		errs = append(errs, fmt.Errorf("client.layout: %w", err))
	}
	if c.UI.Timespan < MinTimespan || c.UI.Timespan > MaxTimespan {
		errs = append(errs, fmt.Errorf("ui.timespan must be within [%s, %s]", MinTimespan, MaxTimespan))
	}
	if c.UI.UpdateRate < MinUpdateRate || c.UI.UpdateRate > MaxUpdateRate {
		errs = append(errs, fmt.Errorf("ui.update_rate must be within [%d, %d]", MinUpdateRate, MaxUpdateRate))
	}

	seen := make(map[string]bool)
	for i, n := range c.Nodes {
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("node[%d]: name is required", i))
			continue
		}
		if seen[n.Name] {
			errs = append(errs, fmt.Errorf("node %q: duplicate name", n.Name))
		}
		seen[n.Name] = true
		if err := n.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", n.Name, err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks a single node declaration
func (n NodeConfig) Validate() error {
	if n.Rate <= 0 {
		return errors.New("rate must be positive")
	}
	if n.Vectorize < 1 {
		return errors.New("vectorize must be at least 1")
	}
	layout, err := webmsg.ParseLayout(n.Layout)
	if err != nil {
		return err
	}
	if layout != webmsg.LayoutB && n.SourceID != 0 {
		return errors.New("source_id requires layout b")
	}
	if len(n.Signals) == 0 {
		return errors.New("at least one signal is required")
	}
	if len(n.Signals) > webmsg.MaxSampleCount {
		return fmt.Errorf("too many signals: %d", len(n.Signals))
	}
	for i, s := range n.Signals {
		if s.Type == "" {
			return fmt.Errorf("signal[%d]: type is required", i)
		}
	}
	return nil
}
