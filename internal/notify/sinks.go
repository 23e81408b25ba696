package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/plugin"
)

// LogSink writes notifications to a logger, warning and error types at
// the matching level.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs n.
func (s *LogSink) Deliver(n Notification) error {
	l := s.logger.WithFields(map[string]any{
		"notification": n.ID,
		"type":         n.Type.String(),
	})
	switch n.Type {
	case plugin.NotifyWarning:
		l.Warn("%s: %s", n.Title, n.Message)
	case plugin.NotifyError:
		l.Error("%s: %s", n.Title, n.Message)
	default:
		l.Info("%s: %s", n.Title, n.Message)
	}
	return nil
}

// TerminalSink prints notifications to a writer, styled when the writer
// is a terminal.
type TerminalSink struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
	badge  map[plugin.NotificationType]lipgloss.Style
	title  lipgloss.Style
}

// NewTerminalSink creates a sink writing to w. Styling is enabled only
// when w is an *os.File attached to a terminal.
func NewTerminalSink(w io.Writer) *TerminalSink {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}

	r := lipgloss.NewRenderer(w)
	badge := func(color string) lipgloss.Style {
		return r.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color(color))
	}
	return &TerminalSink{
		w:      w,
		styled: styled,
		badge: map[plugin.NotificationType]lipgloss.Style{
			plugin.NotifyInformation: badge("39"),
			plugin.NotifySuccess:     badge("46"),
			plugin.NotifyWarning:     badge("214"),
			plugin.NotifyError:       badge("196"),
		},
		title: r.NewStyle().Bold(true),
	}
}

// Deliver prints n on one line.
func (s *TerminalSink) Deliver(n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := n.Type.String()
	if !s.styled {
		_, err := fmt.Fprintf(s.w, "[%s] %s: %s\n", label, n.Title, n.Message)
		return err
	}
	line := lipgloss.JoinHorizontal(lipgloss.Center,
		s.badge[n.Type].Render(label), " ",
		s.title.Render(n.Title), " ", n.Message)
	_, err := fmt.Fprintln(s.w, line)
	return err
}
