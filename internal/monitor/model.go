package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/multisense/autoconnect/internal/status"
	"github.com/multisense/autoconnect/internal/ui"
)

// DefaultPollInterval matches the service's publish cadence.
const DefaultPollInterval = 100 * time.Millisecond

// errCommandPending is reported when the service has not yet consumed the
// previous command.
var errCommandPending = errors.New("previous command not yet picked up by the service")

// Source is the controller end of the status region.
type Source interface {
	Snapshot() ([]byte, error)
	SendCommand(cmd []byte) error
	Pending() bool
}

// Messages
type tickMsg time.Time

type snapshotMsg struct {
	doc *status.Document
	err error
}

type commandMsg struct {
	label string
	err   error
}

// Model is the monitor screen.
type Model struct {
	source   Source
	interval time.Duration

	doc      *status.Document
	selected int
	finished bool
	err      error
	notice   string

	width   int
	height  int
	log     viewport.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// New returns a model polling source every interval. A non-positive interval
// selects DefaultPollInterval.
func New(source Source, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.PrimaryColor)

	width, height := ui.GetTerminalSize()
	m := Model{
		source:   source,
		interval: interval,
		spinner:  s,
		help:     help.New(),
		keys:     newKeyMap(),
		log:      viewport.New(width-4, 10),
	}
	m.resize(width, height)
	return m
}

// Init starts polling immediately.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.spinner.Tick)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tickMsg:
		return m, m.poll()

	case snapshotMsg:
		m.applySnapshot(msg)
		if m.finished {
			return m, nil
		}
		return m, m.tick()

	case commandMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("%s: %w", msg.label, msg.err)
			m.notice = ""
		} else {
			m.err = nil
			m.notice = msg.label + " sent"
		}
		return m, nil

	case spinner.TickMsg:
		if m.doc != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < m.resultCount()-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.SetIP):
		if m.resultCount() == 0 {
			m.err = errors.New("no results to set an address for")
			return m, nil
		}
		return m, m.send(fmt.Sprintf("SetIP %d", m.selected), status.EncodeSetAddress(m.selected))

	case key.Matches(msg, m.keys.Digit):
		index := int(msg.String()[0] - '0')
		if index >= m.resultCount() {
			m.err = fmt.Errorf("result %d does not exist, %d published", index, m.resultCount())
			return m, nil
		}
		m.selected = index
		return m, m.send(fmt.Sprintf("SetIP %d", index), status.EncodeSetAddress(index))

	case key.Matches(msg, m.keys.Stop):
		if m.finished {
			return m, nil
		}
		return m, m.send("Stop", status.EncodeStop())

	case key.Matches(msg, m.keys.Scroll):
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) poll() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		data, err := source.Snapshot()
		if err != nil {
			return snapshotMsg{err: err}
		}
		// Empty while the service is mid-write or has not published yet.
		if len(data) == 0 {
			return snapshotMsg{}
		}
		doc, err := status.ParseDocument(data)
		return snapshotMsg{doc: doc, err: err}
	}
}

func (m Model) send(label string, payload []byte) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		if source.Pending() {
			return commandMsg{label: label, err: errCommandPending}
		}
		return commandMsg{label: label, err: source.SendCommand(payload)}
	}
}

func (m *Model) applySnapshot(msg snapshotMsg) {
	if msg.err != nil {
		m.err = msg.err
		return
	}
	if msg.doc == nil {
		return
	}

	atBottom := m.log.AtBottom()
	m.doc = msg.doc
	m.finished = msg.doc.Command == status.CommandStop
	if n := m.resultCount(); m.selected >= n {
		m.selected = max(n-1, 0)
	}
	m.log.SetContent(ui.RenderLogLines(msg.doc.Log))
	if atBottom {
		m.log.GotoBottom()
	}
}

func (m *Model) resize(width, height int) {
	m.width = ui.ClampWidth(width)
	m.height = height
	m.help.Width = m.width
	m.log.Width = m.width - 4
	m.log.Height = max(height/2-4, 3)
}

func (m Model) resultCount() int {
	if m.doc == nil {
		return 0
	}
	return len(m.doc.Result)
}

// Document returns the last status document received, or nil.
func (m Model) Document() *status.Document {
	return m.doc
}

// Finished reports whether the service published its final document.
func (m Model) Finished() bool {
	return m.finished
}

// View renders the monitor screen
func (m Model) View() string {
	var sections []string

	title := ui.HeaderTitleStyle.Render("AUTOCONNECT MONITOR")
	switch {
	case m.doc == nil:
		title += "  " + m.spinner.View() + ui.EmptyStyle.Render(" waiting for the service to publish")
	case m.finished:
		title += "  " + ui.WarningTitleStyle.Render("run finished")
	default:
		title += "  " + ui.SuccessTitleStyle.Render("running")
	}
	sections = append(sections, title)

	if m.doc != nil {
		sections = append(sections,
			ui.SectionTitleStyle.Render(fmt.Sprintf("%s %s", m.doc.Name, m.doc.Version)),
			ui.RenderResults(m.doc.Result, m.width),
		)
		if n := m.resultCount(); n > 0 {
			r := m.doc.Result[m.selected]
			target := fmt.Sprintf("→ SetIP target: #%d %s", m.selected, r.Name)
			if len(r.AddressList) > 0 {
				target += " " + r.AddressList[0]
			}
			sections = append(sections, ui.HeaderParamValueStyle.Render(target))
		}
		logTitle := ui.SectionTitleStyle.Render(fmt.Sprintf("Log (%d lines)", len(m.doc.Log)))
		sections = append(sections, ui.PanelStyle(m.width).Render(logTitle+"\n"+m.log.View()))
	}

	switch {
	case m.err != nil:
		sections = append(sections, ui.ErrorMessageStyle.Render(ui.FailureMarker+" "+m.err.Error()))
	case m.notice != "":
		sections = append(sections, ui.SuccessTitleStyle.Render(ui.SuccessMarker+" "+m.notice))
	}

	sections = append(sections, m.help.View(m.keys))
	return strings.Join(sections, "\n")
}

// Run shows the monitor until the user quits or ctx is cancelled, and
// returns the last document seen.
func Run(ctx context.Context, source Source, interval time.Duration) (*status.Document, error) {
	p := tea.NewProgram(New(source, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("monitor failed: %w", err)
	}
	if fm, ok := final.(Model); ok {
		return fm.Document(), nil
	}
	return nil, nil
}
