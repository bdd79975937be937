// Package tui is an interactive terminal front end for a bb84.Engine.
package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/eve"
	"github.com/alan-christopher/bb84sim/bb84/store"
)

// Options configures the TUI.
type Options struct {
	// Engine is the simulation to drive. Must be non-nil.
	Engine *bb84.Engine

	// Policy and Fraction describe the attack launched by the attack key.
	// A Fraction of zero attacks every qubit.
	Policy   eve.Policy
	Fraction float64

	// ExportPath is where the save key writes a snapshot; the extension picks
	// the format. Defaults to bb84-snapshot.json.
	ExportPath string

	// Save, if non-nil, is also called with every saved snapshot.
	Save func(bb84.Snapshot) error
}

type model struct {
	engine   *bb84.Engine
	opts     Options
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	status   string
	playGen  int
	width    int
	height   int
	quitting bool
}

// tickMsg advances auto-play. Ticks from an earlier auto-play run are ignored.
type tickMsg struct {
	gen int
}

// Run starts the TUI and blocks until the user quits.
func Run(opts Options) error {
	m, err := newModel(opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func newModel(opts Options) (model, error) {
	if opts.Engine == nil {
		return model{}, errors.New("must provide Engine")
	}
	if opts.ExportPath == "" {
		opts.ExportPath = "bb84-snapshot.json"
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor))
	return model{
		engine:  opts.Engine,
		opts:    opts,
		keys:    Keys,
		help:    help.New(),
		spinner: s,
		status:  InfoStyle.Render("Press → to start the protocol"),
	}, nil
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) tick() tea.Cmd {
	gen := m.playGen
	d := m.engine.Config().AutoPlayInterval
	if d <= 0 {
		d = bb84.DefaultAutoPlayInterval
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if msg.gen != m.playGen || !m.engine.AutoPlaying() {
			return m, nil
		}
		more, err := m.engine.Tick()
		if err != nil {
			m.setErr(err)
			return m, nil
		}
		if !more {
			m.status = SuccessStyle.Render("Auto-play finished")
			return m, nil
		}
		m.status = InfoStyle.Render("Auto-playing…")
		return m, m.tick()

	case spinner.TickMsg:
		if !m.engine.AutoPlaying() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.engine
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		e.StopAutoPlay()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Prev):
		e.StopAutoPlay()
		if err := e.PrevStep(); err != nil {
			m.setErr(err)
		} else {
			m.status = ""
		}

	case key.Matches(msg, m.keys.Next):
		e.StopAutoPlay()
		if err := e.NextStep(); err != nil {
			m.setErr(err)
		} else {
			m.status = ""
		}

	case key.Matches(msg, m.keys.Play):
		if e.AutoPlaying() {
			e.StopAutoPlay()
			m.status = InfoStyle.Render("Auto-play paused")
			return m, nil
		}
		if err := e.StartAutoPlay(); err != nil {
			m.setErr(err)
			return m, nil
		}
		m.playGen++
		m.status = InfoStyle.Render("Auto-playing…")
		return m, tea.Batch(m.tick(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Attack):
		fraction := m.opts.Fraction
		if fraction <= 0 {
			fraction = 1
		}
		n, err := e.AttackFraction(fraction, m.opts.Policy)
		if err != nil {
			m.setErr(err)
		} else {
			m.status = WarningStyle.Render(fmt.Sprintf("Eve intercepted %d qubits (%s basis)", n, m.opts.Policy))
		}

	case key.Matches(msg, m.keys.Reset):
		e.Reset()
		m.playGen++
		m.status = InfoStyle.Render("Simulation reset")

	case key.Matches(msg, m.keys.Export):
		m.save()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *model) save() {
	snap := m.engine.Snapshot()
	if err := store.WriteFile(m.opts.ExportPath, snap); err != nil {
		m.setErr(err)
		return
	}
	if m.opts.Save != nil {
		if err := m.opts.Save(snap); err != nil {
			m.setErr(err)
			return
		}
	}
	m.status = SuccessStyle.Render("Saved snapshot to " + m.opts.ExportPath)
}

func (m *model) setErr(err error) {
	switch {
	case errors.Is(err, bb84.ErrAborted):
		m.status = ErrorStyle.Render(err.Error())
	case errors.Is(err, bb84.ErrPrecondition), errors.Is(err, bb84.ErrOutOfRange):
		m.status = WarningStyle.Render(err.Error())
	default:
		m.status = ErrorStyle.Render("Error: " + err.Error())
	}
}
