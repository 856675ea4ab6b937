package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmcleod/learngate/catalog"
	"github.com/jmcleod/learngate/notifications"
)

// Styles contains lipgloss styles for the inbox.
type Styles struct {
	Title     lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Row       lipgloss.Style
	Selected  lipgloss.Style
	Unread    lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1),
		Tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().
			Background(lipgloss.Color("63")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		Row: lipgloss.NewStyle().PaddingLeft(2),
		Selected: lipgloss.NewStyle().
			PaddingLeft(1).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("63")),
		Unread: lipgloss.NewStyle().Bold(true),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
	}
}

// View renders the inbox.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("learngate"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " loading...\n")
	} else {
		switch m.tab {
		case NotificationsTab:
			b.WriteString(m.renderNotifications())
		case CoursesTab:
			b.WriteString(m.renderCourses())
		}
	}

	if m.err != "" {
		b.WriteString("\n" + m.styles.Error.Render(m.err) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, 2)
	for _, t := range []Tab{NotificationsTab, CoursesTab} {
		label := t.String()
		if t == NotificationsTab {
			label = fmt.Sprintf("%s (%d)", label, notifications.UnreadCount(m.notes.Items()))
		}
		style := m.styles.Tab
		if t == m.tab {
			style = m.styles.ActiveTab
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderNotifications() string {
	items := m.notes.Items()
	if len(items) == 0 {
		return m.styles.Muted.Render("No notifications.") + "\n"
	}
	var b strings.Builder
	for i, n := range items {
		line := n.Title
		if n.Message != "" {
			line += m.styles.Muted.Render("  " + n.Message)
		}
		if !n.Read {
			line = m.styles.Unread.Render("● ") + line
		} else {
			line = "  " + line
		}
		if m.notes.InFlight(n.ID) {
			line += m.styles.Muted.Render(" (saving)")
		}
		b.WriteString(m.row(i == m.cursor[NotificationsTab], line))
	}
	return b.String()
}

func (m Model) renderCourses() string {
	items := m.courses.Items()
	if len(items) == 0 {
		return m.styles.Muted.Render("No courses.") + "\n"
	}
	var b strings.Builder
	for i, c := range items {
		line := fmt.Sprintf("%-30s %-12s %s", c.Name, statusLabel(c.Status),
			m.styles.Muted.Render(fmt.Sprintf("%d students", len(c.Students))))
		if m.courses.InFlight(c.ID) {
			line += m.styles.Muted.Render(" (saving)")
		}
		b.WriteString(m.row(i == m.cursor[CoursesTab], line))
	}
	return b.String()
}

func (m Model) row(selected bool, line string) string {
	if selected {
		return m.styles.Selected.Render(line) + "\n"
	}
	return m.styles.Row.Render(line) + "\n"
}

func statusLabel(s catalog.Status) string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}
