package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/anonto42/followpulse/backend/pkg/actionqueue"
	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.Color("#7C3AED") // violet
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(dim)
	passStyle    = lipgloss.NewStyle().Foreground(success)
	failStyle    = lipgloss.NewStyle().Foreground(danger)
	warnStyle    = lipgloss.NewStyle().Foreground(warning)
	badgeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(accent).Padding(0, 1)
	unreadMarker = lipgloss.NewStyle().Foreground(accent).Render("●")
	separator    = dimStyle.Render(strings.Repeat("─", 48))
)

// lockedWriter serializes lines written from listener goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) println(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func renderBadge(unread int) string {
	return badgeStyle.Render(fmt.Sprintf("%d unread", unread))
}

func renderNotification(n protocol.Notification) string {
	marker := " "
	if !n.Read {
		marker = unreadMarker
	}
	when := ""
	if !n.CreatedAt.IsZero() {
		when = dimStyle.Render(n.CreatedAt.Local().Format("Jan 02 15:04:05"))
	}
	return fmt.Sprintf("%s #%d %s  %s  %s", marker, n.ID, titleStyle.Render(n.Title), n.Message, when)
}

func renderAction(a actionqueue.Action) string {
	verb := strings.ToLower(string(a.Kind))
	label := fmt.Sprintf("%s user %d", verb, a.TargetID)
	switch {
	case a.Status == actionqueue.StatusSuccess:
		return passStyle.Render("✓ ") + label
	case a.Terminal():
		return failStyle.Render("✗ ") + label + dimStyle.Render(fmt.Sprintf("  gave up after %d attempts: %s", a.RetryCount, a.LastError))
	case a.Status == actionqueue.StatusFailed:
		return warnStyle.Render("↻ ") + label + dimStyle.Render(fmt.Sprintf("  attempt %d failed, will retry", a.RetryCount))
	case a.Status == actionqueue.StatusProcessing:
		return dimStyle.Render("… " + label)
	default:
		return dimStyle.Render("+ " + label + " queued")
	}
}
