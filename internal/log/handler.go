package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Level tag and key styles. Colors follow the status palette used by the
// flow package.
var (
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	keyStyle   = lipgloss.NewStyle().Faint(true)
)

// Options configure a ConsoleHandler.
type Options struct {
	// Level is the minimum level to log. Nil means slog.LevelWarn.
	Level slog.Leveler

	// Color enables lipgloss styling of level tags and attribute keys.
	// Keep it off when the writer is not a terminal.
	Color bool
}

// ConsoleHandler is an slog.Handler that renders compact terminal lines:
//
//	21:04:05 WARN  submission failed task=w0/t2 error="exit status 1"
//
// Design decision: We implement the handler interface directly rather than
// wrapping slog.NewTextHandler because the text handler insists on
// time=... level=... prefixes that drown short interactive lines.
type ConsoleHandler struct {
	w    io.Writer
	mu   *sync.Mutex
	opts Options

	// attrs holds preformatted attributes inherited through WithAttrs;
	// group is the dotted key prefix accumulated through WithGroup.
	attrs string
	group string
}

// NewConsoleHandler creates a ConsoleHandler writing to w. A nil opts uses
// the defaults: level Warn, no color.
func NewConsoleHandler(w io.Writer, opts *Options) *ConsoleHandler {
	h := &ConsoleHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether records at the given level are logged.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelWarn
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle renders one record as a single line.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	if !r.Time.IsZero() {
		sb.WriteString(r.Time.Format("15:04:05"))
		sb.WriteByte(' ')
	}
	sb.WriteString(h.levelTag(r.Level))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	sb.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&sb, h.group, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

// WithAttrs returns a handler that prepends the given attributes to every
// record. They are formatted once, here.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var sb strings.Builder
	for _, a := range attrs {
		h.appendAttr(&sb, h.group, a)
	}
	h2 := *h
	h2.attrs = h.attrs + sb.String()
	return &h2
}

// WithGroup returns a handler that prefixes subsequent attribute keys with
// the group name.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = joinGroup(h.group, name)
	return &h2
}

// levelTag formats the fixed-width level column.
func (h *ConsoleHandler) levelTag(level slog.Level) string {
	tag := fmt.Sprintf("%-5s", level.String())
	if !h.opts.Color {
		return tag
	}
	switch {
	case level >= slog.LevelError:
		return errorStyle.Render(tag)
	case level >= slog.LevelWarn:
		return warnStyle.Render(tag)
	case level >= slog.LevelInfo:
		return infoStyle.Render(tag)
	default:
		return debugStyle.Render(tag)
	}
}

// appendAttr writes one attribute as " key=value", flattening groups into
// dotted keys.
func (h *ConsoleHandler) appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(sb, joinGroup(prefix, a.Key), ga)
		}
		return
	}

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if h.opts.Color {
		key = keyStyle.Render(key)
	}
	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(quoteValue(a.Value.String()))
}

// joinGroup appends a group segment to a dotted prefix. Empty segments
// inline their attributes into the parent, as slog requires.
func joinGroup(prefix, name string) string {
	switch {
	case name == "":
		return prefix
	case prefix == "":
		return name
	default:
		return prefix + "." + name
	}
}

// quoteValue wraps values containing spaces or quotes so lines stay
// splittable on whitespace.
func quoteValue(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// NewConsoleLogger creates a logger that renders compact terminal lines.
// Verbose lowers the level to Debug from the default Warn. Color enables
// lipgloss styling and should follow whether w is a terminal.
func NewConsoleLogger(w io.Writer, verbose, color bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(NewConsoleHandler(w, &Options{Level: level, Color: color}))
}

// NewJSONLogger creates a logger that emits one JSON object per line, for
// runs whose output is collected by another tool rather than read live.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
