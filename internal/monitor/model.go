package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/aalink/internal/channel"
	"github.com/muurk/aalink/internal/protocol"
	"github.com/muurk/aalink/internal/session"
	"github.com/muurk/aalink/internal/transport"
)

// DefaultInterval is how often the view samples the session.
const DefaultInterval = 500 * time.Millisecond

// StatsSource provides session snapshots. *session.Session implements it.
type StatsSource interface {
	Stats() session.Stats
}

type tickMsg time.Time

// SessionEndedMsg tells the model the session has stopped serving.
type SessionEndedMsg struct {
	Err error
}

type keyMap struct {
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

var defaultKeys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Model is the Bubble Tea model of the traffic view.
type Model struct {
	source   StatsSource
	interval time.Duration

	stats     session.Stats
	prev      transport.Stats
	sampledAt time.Time
	rxRate    float64 // bytes per second
	txRate    float64
	ended     bool
	endErr    error
	quitting  bool
	width     int
	channels  table.Model
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
	now       func() time.Time
}

// NewModel creates a view sampling source every interval.
func NewModel(source StatsSource, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(WarningColor)

	t := table.New(
		table.WithColumns(channelColumns()),
		table.WithFocused(false),
		table.WithHeight(len(protocol.Channels())+1),
	)
	t.SetStyles(tableStyles())

	m := Model{
		source:   source,
		interval: interval,
		width:    MinTerminalWidth,
		channels: t,
		spinner:  s,
		help:     help.New(),
		keys:     defaultKeys,
		now:      time.Now,
	}
	m.sample()
	return m
}

func channelColumns() []table.Column {
	return []table.Column{
		{Title: "Channel", Width: 14},
		{Title: "Rx msgs", Width: 9},
		{Title: "Rx bytes", Width: 10},
		{Title: "Tx msgs", Width: 9},
		{Title: "Tx bytes", Width: 10},
		{Title: "Failed", Width: 7},
	}
}

// Stats returns the most recent snapshot.
func (m Model) Stats() session.Stats {
	return m.stats
}

// Ended reports whether the session has stopped and with which error.
func (m Model) Ended() (bool, error) {
	return m.ended, m.endErr
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		if m.ended {
			return m, nil
		}
		m.sample()
		return m, m.tick()

	case SessionEndedMsg:
		m.ended = true
		m.endErr = msg.Err
		m.sample()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// sample refreshes the snapshot and derives throughput from the previous
// one.
func (m *Model) sample() {
	now := m.now()
	stats := m.source.Stats()

	if !m.sampledAt.IsZero() {
		if elapsed := now.Sub(m.sampledAt).Seconds(); elapsed > 0 {
			m.rxRate = float64(stats.Transport.BytesReceived-m.prev.BytesReceived) / elapsed
			m.txRate = float64(stats.Transport.BytesSent-m.prev.BytesSent) / elapsed
		}
	}
	m.stats = stats
	m.prev = stats.Transport
	m.sampledAt = now
	m.channels.SetRows(channelRows(stats))
}

func channelRows(stats session.Stats) []table.Row {
	rows := make([]table.Row, 0, len(protocol.Channels()))
	for _, id := range protocol.Channels() {
		cs := stats.Channels[id]
		rows = append(rows, table.Row{
			id.String(),
			fmt.Sprintf("%d", cs.MessagesReceived),
			formatBytes(float64(cs.BytesReceived)),
			fmt.Sprintf("%d", cs.MessagesSent),
			formatBytes(float64(cs.BytesSent)),
			fmt.Sprintf("%d", cs.SendFailures),
		})
	}
	return rows
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.channels.View())
	b.WriteString("\n\n")
	b.WriteString(m.renderTransport())
	b.WriteString("\n")

	if m.ended {
		b.WriteString("\n")
		if m.endErr != nil {
			b.WriteString(errorStyle.Render(FailureMarker + "  session ended: " + m.endErr.Error()))
		} else {
			b.WriteString(subtitleStyle.Render("session ended"))
		}
		b.WriteString("\n")
	} else if !m.quitting {
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render(m.help.View(m.keys)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("AALINK SESSION")
	id := subtitleStyle.Render(m.stats.ID)

	var state string
	switch {
	case m.stats.Active:
		state = activeStyle.Render(ActiveMarker + " encrypted")
	case m.ended:
		state = pendingStyle.Render(PendingMarker + " closed")
	default:
		state = pendingStyle.Render(m.spinner.View() + "handshake")
	}

	lines := []string{
		lipgloss.JoinVertical(lipgloss.Left, title, id),
		divider(m.width - 6),
		field("Protocol", versionString(m.stats.Version)),
		field("TLS", state),
		field("Uptime", m.stats.Uptime.Truncate(time.Second).String()),
	}
	return headerBoxStyle(m.width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderTransport() string {
	ts := m.stats.Transport
	lines := []string{
		field("Received", fmt.Sprintf("%s (%s/s)", formatBytes(float64(ts.BytesReceived)), formatBytes(m.rxRate))),
		field("Sent", fmt.Sprintf("%s (%s/s)", formatBytes(float64(ts.BytesSent)), formatBytes(m.txRate))),
	}
	if ts.ReadFailures > 0 || ts.WriteFailures > 0 {
		lines = append(lines, field("I/O errors",
			errorStyle.UnsetPaddingLeft().Render(fmt.Sprintf("%d read, %d write", ts.ReadFailures, ts.WriteFailures))))
	}
	return strings.Join(lines, "\n")
}

func field(name, value string) string {
	return keyStyle.Render(name+":") + " " + valueStyle.Render(value)
}

func versionString(v channel.VersionResponse) string {
	if v.Major == 0 && v.Minor == 0 {
		return "negotiating"
	}
	return fmt.Sprintf("%d.%d (%s)", v.Major, v.Minor, v.Status)
}

func formatBytes(n float64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%.0f B", n)
	}
	div, exp := float64(unit), 0
	for v := n / unit; v >= unit && exp < 3; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", n/div, "KMGT"[exp])
}
