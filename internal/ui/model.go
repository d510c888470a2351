// ABOUTME: Bubbletea model for the live plot TUI
// ABOUTME: Renders channel sparklines and forwards operator input
package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/VILLASframework/villas-live-go/internal/control"
	"github.com/VILLASframework/villas-live-go/internal/series"
	"github.com/VILLASframework/villas-live-go/internal/stats"
	"github.com/VILLASframework/villas-live-go/internal/version"
)

const (
	MinUpdateRate = 1
	MaxUpdateRate = 100
	sliderStep    = 100
	sliderBigStep = 1000
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	labelStyle   = lipgloss.NewStyle().Width(16)
	numberStyle  = lipgloss.NewStyle().Width(11).Align(lipgloss.Right)
	sparkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	sectionStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Model represents the TUI state
type Model struct {
	store    *series.Store
	controls *Controls

	// Connection
	state    string
	lastErr  string
	nodeName string
	nodes    []string

	// Stats
	stream       stats.Snapshot
	messages     uint64
	decodeErrors uint64
	sent         uint64

	// Plot
	window     series.Window
	updateRate int
	channels   []series.Channel
	paused     bool
	now        func() time.Time

	input control.Input

	width  int
	height int
}

// tickMsg triggers a redraw at the update rate
type tickMsg time.Time

// StatusMsg updates TUI state. Zero fields are left unchanged.
type StatusMsg struct {
	State        string
	Err          error
	NodeName     string
	Nodes        []string
	Stream       *stats.Snapshot
	Messages     uint64
	DecodeErrors uint64
	Sent         uint64
}

// Init starts the redraw ticker
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.updateRate), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case tickMsg:
		m.refresh(time.Time(msg))
		return m, m.tick()
	}

	return m, nil
}

// refresh prunes the store and takes a new snapshot
func (m *Model) refresh(now time.Time) {
	if m.store == nil || m.paused {
		return
	}
	m.store.Prune(now)
	m.channels = m.store.Snapshot()
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		sectionStyle.Render(m.renderChannels()),
		sectionStyle.Render(m.renderControls()),
		m.renderStats(),
		m.renderHelp(),
	)
}

func (m Model) renderHeader() string {
	var status string
	switch m.state {
	case "connected":
		status = goodStyle.Render("● Connected")
	case "connecting":
		status = warnStyle.Render("◌ Connecting")
	default:
		status = badStyle.Render("○ Disconnected")
		if m.lastErr != "" {
			status += dimStyle.Render(" (" + truncate(m.lastErr, 50) + ")")
		}
	}
	if m.paused {
		status += warnStyle.Render("  ❚❚ Paused")
	}

	node := m.nodeName
	if node == "" {
		node = "-"
	}

	title := titleStyle.Render(fmt.Sprintf("%s %s", version.Product, version.Version))
	line := fmt.Sprintf("%s  %s  Node: %s", title, status, node)
	if len(m.nodes) > 1 {
		line += dimStyle.Render("  [" + strings.Join(m.nodes, " ") + "]")
	}
	return line
}

func (m Model) renderChannels() string {
	if len(m.channels) == 0 {
		return dimStyle.Render("No data")
	}

	from, to := m.window.Bounds(m.now())
	width := m.sparkWidth()

	var b strings.Builder
	b.WriteString(labelStyle.Render("Signal"))
	b.WriteString(numberStyle.Render("Last"))
	b.WriteString(numberStyle.Render("Min"))
	b.WriteString(numberStyle.Render("Max"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("-%s … +%s", m.window.Past(), m.window.Future())))

	for _, ch := range m.channels {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(truncate(ch.Label(), 15)))
		b.WriteString(numberStyle.Render(formatValue(ch.Last)))
		b.WriteString(numberStyle.Render(formatValue(ch.Min)))
		b.WriteString(numberStyle.Render(formatValue(ch.Max)))
		b.WriteString("  ")
		b.WriteString(sparkStyle.Render(sparkline(ch, from, to, width)))
	}
	return b.String()
}

func (m Model) sparkWidth() int {
	return max(10, m.width-16-3*11-8)
}

func (m Model) renderControls() string {
	var boxes strings.Builder
	for i, on := range m.input.Checkboxes {
		mark := " "
		if on {
			mark = "x"
		}
		fmt.Fprintf(&boxes, "[%s]%d ", mark, i+1)
	}

	return fmt.Sprintf("Slider: [%s] %6.2f%%\nInputs: %s\nSpan: %s  Rate: %d Hz",
		renderBar(m.input.Slider, control.SliderMax, 20),
		float64(m.input.Slider)/100,
		boxes.String(),
		m.window.Delta, m.updateRate)
}

func (m Model) renderStats() string {
	quality := badStyle.Render(m.stream.Quality.String())
	switch m.stream.Quality {
	case stats.QualityGood:
		quality = goodStyle.Render(m.stream.Quality.String())
	case stats.QualityDegraded:
		quality = warnStyle.Render(m.stream.Quality.String())
	}

	return fmt.Sprintf("Stream: %s  RX: %d msgs / %d samples  Delay: %s  Gaps: %d  Reorders: %d  Errors: %d  TX: %d",
		quality, m.messages, m.stream.Samples,
		m.stream.Delay.Round(100*time.Microsecond),
		m.stream.Gaps, m.stream.Reorders, m.decodeErrors, m.sent)
}

func (m Model) renderHelp() string {
	return dimStyle.Render("+/-:Span  [/]:Rate  p:Pause  ←/→:Slider  1-8:Inputs  q:Quit")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "+", "=":
		m.setWindow(m.window.Scale(2))
	case "-", "_":
		m.setWindow(m.window.Scale(0.5))
	case "]":
		m.updateRate = stepRate(m.updateRate, +1)
	case "[":
		m.updateRate = stepRate(m.updateRate, -1)
	case "p", " ":
		m.paused = !m.paused
		if m.controls != nil {
			select {
			case m.controls.Pause <- m.paused:
			default:
				log.Warn().Msg("Pause request dropped")
			}
		}
	case "left":
		m.changeInput(func(in *control.Input) { in.Nudge(-sliderStep) })
	case "right":
		m.changeInput(func(in *control.Input) { in.Nudge(sliderStep) })
	case "shift+left", "pgdown":
		m.changeInput(func(in *control.Input) { in.Nudge(-sliderBigStep) })
	case "shift+right", "pgup":
		m.changeInput(func(in *control.Input) { in.Nudge(sliderBigStep) })
	case "1", "2", "3", "4", "5", "6", "7", "8":
		i := int(key[0] - '1')
		m.changeInput(func(in *control.Input) { in.Toggle(i) })
	}

	return m, nil
}

func (m *Model) setWindow(w series.Window) {
	m.window = w
	if m.store != nil {
		m.store.SetWindow(w)
	}
}

// changeInput applies fn and forwards the new input state
func (m *Model) changeInput(fn func(*control.Input)) {
	fn(&m.input)
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Inputs <- m.input:
	default:
		log.Warn().Msg("Input change dropped")
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.State != "" {
		m.state = msg.State
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		} else if msg.State == "connected" {
			m.lastErr = ""
		}
	}
	if msg.NodeName != "" {
		m.nodeName = msg.NodeName
	}
	if msg.Nodes != nil {
		m.nodes = msg.Nodes
	}
	if msg.Stream != nil {
		m.stream = *msg.Stream
	}
	if msg.Messages != 0 {
		m.messages = msg.Messages
	}
	if msg.DecodeErrors != 0 {
		m.decodeErrors = msg.DecodeErrors
	}
	if msg.Sent != 0 {
		m.sent = msg.Sent
	}
}

// stepRate moves by one below 5 Hz and by five above
func stepRate(rate, dir int) int {
	step := 5
	if rate < 5 || (dir < 0 && rate <= 5) {
		step = 1
	}
	return min(max(rate+dir*step, MinUpdateRate), MaxUpdateRate)
}

// sparkline scales the resampled channel between its min and max
func sparkline(ch series.Channel, from, to time.Time, width int) string {
	buckets := series.Resample(ch.Points, from, to, width)
	span := float64(ch.Max) - float64(ch.Min)

	var b strings.Builder
	for _, v := range buckets {
		if math.IsNaN(v) {
			b.WriteRune(' ')
			continue
		}
		level := len(sparkLevels) / 2
		if span > 0 {
			level = int((v - float64(ch.Min)) / span * float64(len(sparkLevels)-1))
			level = min(max(level, 0), len(sparkLevels)-1)
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

func formatValue(v float32) string {
	return fmt.Sprintf("%.4g", v)
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
