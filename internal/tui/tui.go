// Package tui renders a live dashboard for a single hot potato game.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/potato"
)

const maxLogLines = 500

// GameStateMsg carries a fresh view of the watched game
type GameStateMsg struct {
	Info game.Info
}

// GameEventMsg carries one event broadcast for the watched game
type GameEventMsg struct {
	Envelope events.Envelope
}

// ErrMsg reports a failure from whatever is feeding the dashboard
type ErrMsg struct {
	Err error
}

type tickMsg time.Time

// Option configures a Dashboard
type Option func(*Dashboard)

// WithClock sets the clock used for the countdown
func WithClock(clock quartz.Clock) Option {
	return func(d *Dashboard) { d.clock = clock }
}

// WithNames shows known names instead of account hex
func WithNames(names map[potato.Account]string) Option {
	return func(d *Dashboard) { d.names = names }
}

// Dashboard is the Bubble Tea model for watching one game
type Dashboard struct {
	gameID    string
	logger    *log.Logger
	clock     quartz.Clock
	names     map[potato.Account]string
	formatter *events.Formatter

	// UI components
	board   table.Model
	spinner spinner.Model
	logView viewport.Model

	// State
	info     *game.Info
	lines    []string
	err      error
	quitting bool

	// Dimensions
	width  int
	height int
}

// NewDashboard creates a dashboard for gameID. It shows a spinner until the
// first GameStateMsg arrives.
func NewDashboard(gameID string, logger *log.Logger, opts ...Option) *Dashboard {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	d := &Dashboard{
		gameID: gameID,
		logger: logger.WithPrefix("tui"),
		clock:  quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.formatter = events.NewFormatter(events.FormattingOptions{Names: d.names})

	d.board = table.New(
		table.WithColumns(boardColumns()),
		table.WithHeight(10),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4"))
	d.board.SetStyles(styles)

	d.spinner = spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SuccessStyle))
	d.logView = viewport.New(80, 8)
	return d
}

func boardColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Holder", Width: 16},
		{Title: "Turn", Width: 9},
		{Title: "Owed", Width: 6},
		{Title: "Per turn", Width: 10},
	}
}

func (d *Dashboard) holderName(a potato.Account) string {
	if n, ok := d.names[a]; ok {
		return n
	}
	return a.Short()
}

func (d *Dashboard) boardRows(info game.Info) []table.Row {
	rows := make([]table.Row, 0, len(info.Holders))
	for _, h := range info.Holders {
		if h.IsEmpty() {
			continue
		}
		rows = append(rows, table.Row{
			fmt.Sprint(h.Offset),
			d.holderName(h.Participant),
			fmt.Sprintf("%d/%d", h.TurnNumber, game.TicketEntrySplit),
			fmt.Sprint(h.PaymentPending),
			fmt.Sprint(h.TurnAmount),
		})
	}
	return rows
}

// Info returns the most recent game state, if any has arrived
func (d *Dashboard) Info() (game.Info, bool) {
	if d.info == nil {
		return game.Info{}, false
	}
	return *d.info, true
}

// Log returns the formatted event lines shown in the log pane
func (d *Dashboard) Log() []string {
	return d.lines
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the spinner and the countdown ticker
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spinner.Tick, tick())
}

// Update handles messages for the dashboard
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.resize()
		return d, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			d.quitting = true
			return d, tea.Quit
		}
		var cmd tea.Cmd
		d.board, cmd = d.board.Update(msg)
		return d, cmd

	case GameStateMsg:
		if msg.Info.ID != d.gameID {
			return d, nil
		}
		info := msg.Info
		d.info = &info
		d.board.SetRows(d.boardRows(info))
		return d, nil

	case GameEventMsg:
		d.appendEvent(msg.Envelope)
		return d, nil

	case ErrMsg:
		d.err = msg.Err
		return d, nil

	case tickMsg:
		return d, tick()

	case spinner.TickMsg:
		if d.info != nil {
			return d, nil
		}
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd
	}
	return d, nil
}

func (d *Dashboard) appendEvent(env events.Envelope) {
	if env.Game != d.gameID {
		return
	}
	e, err := env.Open()
	if err != nil {
		d.logger.Warn("Dropping undecodable event", "type", env.Type, "error", err)
		return
	}

	// State changes carry enough to keep the header current between refreshes
	if sc, ok := e.(events.GameStateChanged); ok && d.info != nil {
		d.info.Phase = sc.State
		d.info.Deadline = sc.Deadline
	}

	line := d.formatter.Format(e)
	if !env.Timestamp.IsZero() {
		line = env.Timestamp.Local().Format("15:04:05") + " " + line
	}
	d.lines = append(d.lines, line)
	if len(d.lines) > maxLogLines {
		d.lines = d.lines[len(d.lines)-maxLogLines:]
	}
	d.logView.SetContent(LogStyle.Render(strings.Join(d.lines, "\n")))
	d.logView.GotoBottom()
}

func (d *Dashboard) resize() {
	// header, footer, and two bordered panes
	const chrome = 1 + 1 + 4
	logHeight := max(3, d.height/3)
	boardHeight := max(3, d.height-logHeight-chrome)
	width := max(20, d.width-2)

	d.logView.Width = width
	d.logView.Height = logHeight
	d.board.SetWidth(width)
	d.board.SetHeight(boardHeight)
	d.logger.Debug("Resized", "width", d.width, "height", d.height)
}

// Countdown describes how long until the game's next deadline
func Countdown(info game.Info, now time.Time) string {
	switch info.Phase {
	case game.PhasePending.String():
		return "waiting for the first entry"
	case game.PhaseClosed.String():
		return "finished"
	}

	remaining := info.Deadline.Sub(now)
	if remaining <= 0 {
		return "crank due"
	}
	if remaining < time.Second {
		remaining = time.Second
	}
	label := "next turn in"
	if info.Phase == game.PhaseStaging.String() {
		label = "starts in"
	}
	return label + " " + remaining.Truncate(time.Second).String()
}

func (d *Dashboard) header() string {
	info := *d.info
	parts := []string{
		HeaderStyle.Render("hot potato " + d.gameID),
		PhaseStyle(info.Phase).Render(info.Phase),
		LabelStyle.Render("pot") + " " + PotStyle.Render(fmt.Sprint(info.Pot)),
		LabelStyle.Render("holders") + " " + fmt.Sprintf("%d/%d", len(d.board.Rows()), info.Capacity),
		LabelStyle.Render("owed") + " " + fmt.Sprint(len(info.Pending)),
		InfoStyle.Render(Countdown(info, d.clock.Now())),
	}
	return strings.Join(parts, "  ")
}

// View renders the dashboard
func (d *Dashboard) View() string {
	if d.quitting {
		return ""
	}
	if d.info == nil {
		view := fmt.Sprintf("%s Waiting for game %s", d.spinner.View(), d.gameID)
		if d.err != nil {
			view += "\n" + ErrorStyle.Render(d.err.Error())
		}
		return view + "\n"
	}

	sections := []string{
		d.header(),
		paneStyle.BorderForeground(focusColor).Render(d.board.View()),
		paneStyle.Render(d.logView.View()),
	}
	if d.err != nil {
		sections = append(sections, ErrorStyle.Render("error: "+d.err.Error()))
	}
	sections = append(sections, InfoStyle.Render("↑/↓ scroll holders • q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
