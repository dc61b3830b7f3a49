package main

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/espresso-dash/internal/display"
	"github.com/sweeney/espresso-dash/internal/logic"
	"github.com/sweeney/espresso-dash/internal/mqtt"
	"github.com/sweeney/espresso-dash/internal/panel"
)

var helpStyle = lipgloss.NewStyle().MarginTop(1)

// keyMap holds the dashboard's key bindings.
type keyMap struct {
	Toggle    key.Binding
	HeaterOn  key.Binding
	HeaterOff key.Binding
	Quit      key.Binding
}

var defaultKeyMap = keyMap{
	Toggle: key.NewBinding(
		key.WithKeys("h", " "),
		key.WithHelp("h/space", "toggle heater"),
	),
	HeaterOn: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "heater on"),
	),
	HeaterOff: key.NewBinding(
		key.WithKeys("0"),
		key.WithHelp("0", "heater off"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.HeaterOn, k.HeaterOff, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type tickMsg time.Time

// model is the TUI owner loop. Update runs on bubbletea's goroutine, which
// is the only caller of Panel.Tick in this mode.
type model struct {
	dash     *panel.Panel
	renderer *display.Renderer
	conn     mqtt.ConnectionStatus
	interval time.Duration
	keys     keyMap
	help     help.Model
	frame    panel.Frame
}

func newModel(dash *panel.Panel, r *display.Renderer, conn mqtt.ConnectionStatus, interval time.Duration) model {
	return model{
		dash:     dash,
		renderer: r,
		conn:     conn,
		interval: interval,
		keys:     defaultKeyMap,
		help:     help.New(),
		frame:    dash.Last(),
	}
}

func (m model) Init() tea.Cmd {
	return tick(m.interval)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.frame = m.dash.Tick()
		return m, tick(m.interval)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			m.dash.Submit(logic.ToggleHeater())
		case key.Matches(msg, m.keys.HeaterOn):
			m.dash.Submit(logic.SetHeater(true))
		case key.Matches(msg, m.keys.HeaterOff):
			m.dash.Submit(logic.SetHeater(false))
		}
	}
	return m, nil
}

func (m model) View() string {
	online := m.conn != nil && m.conn.IsConnected()
	return m.renderer.Render(m.frame.Display, m.frame.ShotLabel, online) +
		"\n" + helpStyle.Render(m.help.View(m.keys))
}
