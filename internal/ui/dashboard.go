package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/probekit/internal/probe"
)

// DefaultRefresh is how often the dashboard re-reads snapshots
const DefaultRefresh = 500 * time.Millisecond

// Source supplies the snapshots the dashboard shows. *manager.Manager
// satisfies it.
type Source interface {
	Snapshots() []probe.State
}

// DashboardConfig configures a Dashboard
type DashboardConfig struct {
	Source    Source
	Nicknames func(serial string) string
	Refresh   time.Duration
	Unit      Unit
	// Title defaults to "probekit"
	Title string
}

type keyMap struct {
	Quit  key.Binding
	Unit  key.Binding
	Stale key.Binding
	Help  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Unit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Unit, k.Stale}, {k.Help, k.Quit}}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Unit: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "°C/°F"),
		),
		Stale: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "show/hide stale"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
	}
}

type tickMsg time.Time

// Dashboard is a bubbletea model showing live probe snapshots
type Dashboard struct {
	config    DashboardConfig
	keys      keyMap
	help      help.Model
	spinner   spinner.Model
	rows      []Row
	unit      Unit
	hideStale bool
	width     int
	height    int
	quitting  bool
}

// NewDashboard creates a dashboard model
func NewDashboard(cfg DashboardConfig) Dashboard {
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Title == "" {
		cfg.Title = "probekit"
	}
	width, height := GetTerminalSize()
	return Dashboard{
		config: cfg,
		keys:   defaultKeyMap(),
		help:   help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(StatusLineStyle),
		),
		unit:   cfg.Unit,
		width:  width,
		height: height,
	}
}

func (d Dashboard) tick() tea.Cmd {
	return tea.Tick(d.config.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (d *Dashboard) load() {
	if d.config.Source == nil {
		d.rows = nil
		return
	}
	d.rows = Rows(d.config.Source.Snapshots(), d.config.Nicknames)
}

// Init implements tea.Model
func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spinner.Tick, func() tea.Msg { return tickMsg(time.Now()) })
}

// Update implements tea.Model
func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Quit):
			d.quitting = true
			return d, tea.Quit
		case key.Matches(msg, d.keys.Unit):
			d.unit = d.unit.Toggle()
		case key.Matches(msg, d.keys.Stale):
			d.hideStale = !d.hideStale
		case key.Matches(msg, d.keys.Help):
			d.help.ShowAll = !d.help.ShowAll
		}
		return d, nil

	case tea.WindowSizeMsg:
		d.width = clampWidth(msg.Width)
		d.height = msg.Height
		d.help.Width = d.width
		return d, nil

	case tickMsg:
		d.load()
		return d, d.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd
	}
	return d, nil
}

func (d Dashboard) visible() []Row {
	if !d.hideStale {
		return d.rows
	}
	out := make([]Row, 0, len(d.rows))
	for _, r := range d.rows {
		if !r.State.Stale {
			out = append(out, r)
		}
	}
	return out
}

// View implements tea.Model
func (d Dashboard) View() string {
	if d.quitting {
		return ""
	}

	rows := d.visible()
	live := 0
	for _, r := range d.rows {
		if !r.State.Stale {
			live++
		}
	}

	var b strings.Builder
	b.WriteString(DashboardTitleStyle.Render(d.config.Title))
	b.WriteString("  ")
	b.WriteString(d.spinner.View())
	b.WriteString(StatusLineStyle.Render(fmt.Sprintf(" scanning · %d live · %d tracked · %s", live, len(d.rows), d.unit)))
	b.WriteString("\n\n")

	if len(rows) == 0 {
		b.WriteString(StatusLineStyle.Render("  Waiting for probes..."))
		b.WriteString("\n")
	} else {
		b.WriteString(RenderProbeTable(rows, d.unit, d.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(d.help.View(d.keys))
	return b.String()
}

// RunDashboard runs d full-screen until the user quits or ctx is done
func RunDashboard(ctx context.Context, d Dashboard) error {
	p := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
