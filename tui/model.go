// Package tui is the terminal inbox: notifications and courses shown from
// optimistic collections, so marking read or advancing a status is visible
// at once and undone if the BFF refuses.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmcleod/learngate/catalog"
	"github.com/jmcleod/learngate/notifications"
	"github.com/jmcleod/learngate/optimistic"
)

// Backend is what the inbox needs from the BFF. *client.Client implements
// it.
type Backend interface {
	Notifications(ctx context.Context) ([]notifications.Notification, error)
	MarkRead(ctx context.Context, id string) error
	Courses(ctx context.Context) ([]catalog.Course, error)
	ChangeCourseStatus(ctx context.Context, id string, s catalog.Status) (*catalog.Course, error)
}

// Tab selects the visible list.
type Tab int

const (
	NotificationsTab Tab = iota
	CoursesTab
)

func (t Tab) String() string {
	if t == CoursesTab {
		return "Courses"
	}
	return "Notifications"
}

// loadedMsg carries the result of one load. gen identifies the load that
// produced it.
type loadedMsg struct {
	gen     int
	notes   []notifications.Notification
	courses []catalog.Course
	err     error
}

// settledMsg reports the remote half of an optimistic mutation.
type settledMsg struct {
	pending settler
	what    string
	err     error
}

type settler interface {
	Commit()
	Rollback()
}

// Model is the Bubble Tea model of the inbox.
type Model struct {
	ctx     context.Context
	backend Backend

	notes   *optimistic.Collection[notifications.Notification]
	courses *optimistic.Collection[catalog.Course]

	tab     Tab
	cursor  [2]int
	gen     int
	loading bool
	err     string

	spinner spinner.Model
	help    help.Model
	keys    keyMap
	styles  Styles

	quitting bool
}

// New returns a Model reading from backend. ctx bounds every remote call.
func New(ctx context.Context, backend Backend) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:     ctx,
		backend: backend,
		notes:   optimistic.New(notifications.Key, nil),
		courses: optimistic.New(catalog.CourseKey, nil),
		gen:     1,
		loading: true,
		spinner: sp,
		help:    help.New(),
		keys:    defaultKeys(),
		styles:  DefaultStyles(),
	}
}

// Init starts the first load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

// reload starts a new load generation. A load that is still running is not
// aborted; its result is dropped on arrival.
func (m *Model) reload() tea.Cmd {
	m.gen++
	m.loading = true
	return m.load()
}

func (m Model) load() tea.Cmd {
	gen, ctx, backend := m.gen, m.ctx, m.backend
	return func() tea.Msg {
		msg := loadedMsg{gen: gen}
		msg.notes, msg.err = backend.Notifications(ctx)
		if msg.err != nil {
			return msg
		}
		msg.courses, msg.err = backend.Courses(ctx)
		return msg
	}
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = "load failed: " + msg.err.Error()
			return m, nil
		}
		m.err = ""
		m.notes.Replace(msg.notes)
		m.courses.Replace(msg.courses)
		m.clampCursors()
		return m, nil

	case settledMsg:
		if msg.err != nil {
			msg.pending.Rollback()
			m.err = fmt.Sprintf("could not %s: %v", msg.what, msg.err)
			return m, nil
		}
		msg.pending.Commit()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Tab):
		m.tab = (m.tab + 1) % 2
	case key.Matches(msg, m.keys.Up):
		if m.cursor[m.tab] > 0 {
			m.cursor[m.tab]--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor[m.tab] < m.length(m.tab)-1 {
			m.cursor[m.tab]++
		}
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.reload()
		return m, cmd
	case key.Matches(msg, m.keys.Act):
		return m.act()
	}
	return m, nil
}

// act applies the selected row's mutation locally and dispatches the
// remote call.
func (m Model) act() (tea.Model, tea.Cmd) {
	ctx, backend := m.ctx, m.backend
	switch m.tab {
	case NotificationsTab:
		items := m.notes.Items()
		if m.cursor[NotificationsTab] >= len(items) {
			return m, nil
		}
		n := items[m.cursor[NotificationsTab]]
		p, err := m.notes.Begin(n.ID, notifications.MarkRead)
		if err != nil {
			m.err = beginError(err)
			return m, nil
		}
		m.err = ""
		return m, func() tea.Msg {
			return settledMsg{pending: p, what: "mark notification read", err: backend.MarkRead(ctx, n.ID)}
		}

	case CoursesTab:
		items := m.courses.Items()
		if m.cursor[CoursesTab] >= len(items) {
			return m, nil
		}
		c := items[m.cursor[CoursesTab]]
		next := c.Status.Next()
		p, err := m.courses.Begin(c.ID, catalog.WithStatus(next))
		if err != nil {
			m.err = beginError(err)
			return m, nil
		}
		m.err = ""
		return m, func() tea.Msg {
			_, err := backend.ChangeCourseStatus(ctx, c.ID, next)
			return settledMsg{pending: p, what: "change course status", err: err}
		}
	}
	return m, nil
}

func beginError(err error) string {
	if errors.Is(err, optimistic.ErrInFlight) {
		return "still saving the previous change"
	}
	return err.Error()
}

func (m Model) length(t Tab) int {
	if t == CoursesTab {
		return m.courses.Len()
	}
	return m.notes.Len()
}

func (m *Model) clampCursors() {
	for _, t := range []Tab{NotificationsTab, CoursesTab} {
		if n := m.length(t); m.cursor[t] >= n {
			m.cursor[t] = max(n-1, 0)
		}
	}
}
