// ABOUTME: Live viewer orchestration
// ABOUTME: Wires the client, series store, stats and TUI under one errgroup
package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/VILLASframework/villas-live-go/internal/client"
	"github.com/VILLASframework/villas-live-go/internal/control"
	"github.com/VILLASframework/villas-live-go/internal/series"
	"github.com/VILLASframework/villas-live-go/internal/ui"
	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

const (
	statsInterval = 500 * time.Millisecond
	logEvery      = 20 // stats ticks between log lines without TUI
)

// Config holds viewer configuration
type Config struct {
	Resolve    ResolveConfig
	RetryDelay time.Duration
	Layout     webmsg.Layout
	SourceID   uint8
	Timespan   time.Duration
	UpdateRate int
	UseTUI     bool
}

// Viewer connects to one node and shows its samples
type Viewer struct {
	config   Config
	store    *series.Store
	client   *client.Client
	builder  *control.Builder
	controls *ui.Controls
	tuiProg  *tea.Program
}

// New creates a viewer
func New(config Config) *Viewer {
	return &Viewer{
		config:   config,
		store:    series.NewStore(series.NewWindow(config.Timespan)),
		builder:  control.NewBuilder(config.Layout, config.SourceID),
		controls: ui.NewControls(),
	}
}

// Store exposes the received series
func (v *Viewer) Store() *series.Store {
	return v.store
}

// Run resolves the node and streams until ctx is done or the operator quits
func (v *Viewer) Run(ctx context.Context) error {
	target, err := Resolve(ctx, v.config.Resolve)
	if err != nil {
		return err
	}
	return v.RunTarget(ctx, target)
}

// RunTarget streams from an already resolved target
func (v *Viewer) RunTarget(ctx context.Context, target Target) error {
	v.store.SetNames(target.Node.SignalNames())
	v.client = client.NewClient(client.Config{
		URL:           target.URL,
		RetryDelay:    v.config.RetryDelay,
		Layout:        v.config.Layout,
		OnStateChange: v.onStateChange,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if v.config.UseTUI {
		model := ui.NewModel(v.store, v.controls, ui.Options{
			Window:     series.NewWindow(v.config.Timespan),
			UpdateRate: v.config.UpdateRate,
			NodeName:   target.Node.DisplayName(),
			Nodes:      target.NodeNames(),
		})
		prog, err := ui.Run(model)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		v.tuiProg = prog

		g.Go(func() error {
			defer cancel()
			if _, err := prog.Run(); err != nil {
				return fmt.Errorf("TUI failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			prog.Quit()
			return nil
		})
		g.Go(func() error {
			return v.handleControls(ctx, cancel)
		})
	}

	g.Go(func() error {
		return v.client.Run(ctx)
	})
	g.Go(func() error {
		v.consume()
		return nil
	})
	g.Go(func() error {
		return v.statsLoop(ctx)
	})

	return g.Wait()
}

// consume drains the client until it stops
func (v *Viewer) consume() {
	for s := range v.client.Samples {
		v.store.Add(s)
		if !v.config.UseTUI {
			log.Debug().Str("sample", s.String()).Msg("Sample")
		}
	}
}

// handleControls forwards TUI input to the client
func (v *Viewer) handleControls(ctx context.Context, cancel context.CancelFunc) error {
	for {
		select {
		case in := <-v.controls.Inputs:
			sample := v.builder.Next(in, time.Now())
			if err := v.client.Send(sample); err != nil {
				log.Warn().Err(err).Msg("Failed to send input")
			}
		case paused := <-v.controls.Pause:
			if paused {
				v.client.Pause()
			} else {
				v.client.Resume()
			}
		case <-v.controls.Quit:
			log.Info().Msg("Received quit signal from TUI")
			cancel()
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// statsLoop publishes statistics to the TUI or the log
func (v *Viewer) statsLoop(ctx context.Context) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			v.client.Tracker().CheckQuality(now)
			stream := v.client.Tracker().Snapshot()
			cs := v.client.Stats()

			if v.tuiProg != nil {
				v.tuiProg.Send(ui.StatusMsg{
					Stream:       &stream,
					Messages:     cs.Messages,
					DecodeErrors: cs.DecodeErrors,
					Sent:         cs.Sent,
				})
				continue
			}

			v.store.Prune(now)
			if tick%logEvery == 0 {
				log.Info().
					Uint64("messages", cs.Messages).
					Uint64("samples", cs.Samples).
					Uint64("decode_errors", cs.DecodeErrors).
					Uint64("gaps", stream.Gaps).
					Dur("delay", stream.Delay).
					Stringer("quality", stream.Quality).
					Msg("Stream stats")
			}
		}
	}
}

func (v *Viewer) onStateChange(state client.State, err error) {
	ev := log.Info().Stringer("state", state)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("Connection state")

	if v.tuiProg != nil {
		v.tuiProg.Send(ui.StatusMsg{State: state.String(), Err: err})
	}
}
