package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/ab-eip-client/pkg/plctag"
)

// watchedTag is one tag this monitor opened and polls on every tick.
type watchedTag struct {
	attribs string
	tg      *plctag.Tag
	value   string
	err     error
}

type tickMsg time.Time

type readDoneMsg struct {
	index int
	value string
	err   error
}

// model is plcmon's bubbletea model: a spinner shown beside the header
// at all times, a table of watched tags, and a table of the process-wide
// registry's open sessions underneath, refreshed every pollInterval.
type model struct {
	spinner      spinner.Model
	tagTable     table.Model
	sessionTable table.Model
	watched      []*watchedTag
	pollInterval time.Duration
	readTimeout  time.Duration
	width        int
}

func newModel(attribStrings []string, pollInterval, readTimeout time.Duration) (*model, error) {
	watched := make([]*watchedTag, 0, len(attribStrings))
	for _, a := range attribStrings {
		tg, err := plctag.Create(a)
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", a, err)
		}
		tg.SetTimeout(readTimeout)
		watched = append(watched, &watchedTag{attribs: a, tg: tg})
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	tagCols := []table.Column{
		{Title: "TAG", Width: 24},
		{Title: "VALUE", Width: 24},
		{Title: "STATUS", Width: 16},
	}
	sessCols := []table.Column{
		{Title: "PROTOCOL", Width: 10},
		{Title: "GATEWAY", Width: 22},
		{Title: "STATE", Width: 14},
		{Title: "REFS", Width: 6},
	}

	return &model{
		spinner:      sp,
		tagTable:     table.New(table.WithColumns(tagCols), table.WithFocused(false)),
		sessionTable: table.New(table.WithColumns(sessCols), table.WithFocused(false)),
		watched:      watched,
		pollInterval: pollInterval,
		readTimeout:  readTimeout,
	}, nil
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.readAll(), tick(m.pollInterval))
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// readAll fires one readOne command per watched tag; bubbletea runs
// tea.Batch's commands concurrently, so a slow gateway on one tag never
// stalls the others.
func (m *model) readAll() tea.Cmd {
	cmds := make([]tea.Cmd, len(m.watched))
	for i := range m.watched {
		cmds[i] = m.readOne(i)
	}
	return tea.Batch(cmds...)
}

func (m *model) readOne(i int) tea.Cmd {
	w := m.watched[i]
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.readTimeout)
		defer cancel()
		if err := w.tg.Read(ctx); err != nil {
			return readDoneMsg{index: i, err: err}
		}
		v, err := formatTag(w.tg)
		return readDoneMsg{index: i, value: v, err: err}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			for _, w := range m.watched {
				w.tg.Destroy()
			}
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.readAll(), tick(m.pollInterval))
	case readDoneMsg:
		w := m.watched[msg.index]
		w.value, w.err = msg.value, msg.err
		m.refreshTables()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) refreshTables() {
	tagRows := make([]table.Row, 0, len(m.watched))
	for _, w := range m.watched {
		status := "ok"
		value := w.value
		if w.err != nil {
			status = "error"
			value = w.err.Error()
		}
		tagRows = append(tagRows, table.Row{w.tg.Name(), value, status})
	}
	m.tagTable.SetRows(tagRows)

	sessions := plctag.Sessions()
	sessRows := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		sessRows = append(sessRows, table.Row{
			s.Protocol,
			fmt.Sprintf("%s:%d", s.Host, s.Port),
			s.State,
			fmt.Sprintf("%d", s.RefCount),
		})
	}
	m.sessionTable.SetRows(sessRows)
}

func (m *model) View() string {
	header := titleStyle.Render("plcmon") + " " + dimStyle.Render(fmt.Sprintf("poll=%s  q to quit", m.pollInterval))
	body := panelStyle.Render(m.tagTable.View()) + "\n" +
		dimStyle.Render("sessions") + "\n" +
		panelStyle.Render(m.sessionTable.View())
	return header + "\n" + m.spinner.View() + " watching\n" + body + "\n"
}

// formatTag renders the tag's first element by its byte width, since
// plcmon (unlike plctagctl) does not thread a --type flag through to
// know the exact signedness; width alone is enough for a monitor's
// at-a-glance value.
func formatTag(tg *plctag.Tag) (string, error) {
	switch tg.Size() {
	case 1:
		v, err := tg.GetUint8(0)
		return fmt.Sprintf("%d", v), err
	case 2:
		v, err := tg.GetInt16(0)
		return fmt.Sprintf("%d", v), err
	case 4:
		v, err := tg.GetInt32(0)
		return fmt.Sprintf("%d", v), err
	case 8:
		v, err := tg.GetInt64(0)
		return fmt.Sprintf("%d", v), err
	default:
		return fmt.Sprintf("%d bytes", tg.Size()), nil
	}
}
