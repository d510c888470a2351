// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and its input channels
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/VILLASframework/villas-live-go/internal/control"
	"github.com/VILLASframework/villas-live-go/internal/series"
)

// QuitMsg is sent when the operator quits
type QuitMsg struct{}

// Controls holds channels from the TUI to the client
type Controls struct {
	Inputs chan control.Input
	Pause  chan bool
	Quit   chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Inputs: make(chan control.Input, 10),
		Pause:  make(chan bool, 10),
		Quit:   make(chan QuitMsg, 1),
	}
}

// Options sets the initial view
type Options struct {
	Window     series.Window
	UpdateRate int
	NodeName   string
	Nodes      []string
}

// NewModel creates a new TUI model
func NewModel(store *series.Store, controls *Controls, opts Options) Model {
	if opts.Window.Delta == 0 {
		opts.Window = series.NewWindow(series.DefaultDelta)
	}
	if opts.UpdateRate == 0 {
		opts.UpdateRate = 25
	}

	m := Model{
		store:      store,
		controls:   controls,
		state:      "disconnected",
		nodeName:   opts.NodeName,
		nodes:      opts.Nodes,
		window:     opts.Window,
		updateRate: min(max(opts.UpdateRate, MinUpdateRate), MaxUpdateRate),
		now:        time.Now,
	}
	m.setWindow(opts.Window)
	return m
}

// Run creates the TUI program; the caller starts it
func Run(model Model) (*tea.Program, error) {
	p := tea.NewProgram(model, tea.WithAltScreen())
	return p, nil
}
