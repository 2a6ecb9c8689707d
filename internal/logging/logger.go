// Package logging provides the leveled logger used across the medlocus client.
package logging

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Logger is a small leveled logging interface. Args are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// GlogAdapter writes through github.com/golang/glog. Debug lines are only
// emitted at verbosity 2 and above (-v=2).
type GlogAdapter struct {
	tag   string
	attrs []any
}

// New returns a glog backed logger prefixed with tag.
func New(tag string) *GlogAdapter {
	return &GlogAdapter{tag: tag}
}

// Debug logs a debug message.
func (g *GlogAdapter) Debug(msg string, args ...any) {
	if glog.V(2) {
		glog.InfoDepth(1, g.format(msg, args))
	}
}

// Info logs an info message.
func (g *GlogAdapter) Info(msg string, args ...any) {
	glog.InfoDepth(1, g.format(msg, args))
}

// Warn logs a warning message.
func (g *GlogAdapter) Warn(msg string, args ...any) {
	glog.WarningDepth(1, g.format(msg, args))
}

// Error logs an error message.
func (g *GlogAdapter) Error(msg string, args ...any) {
	glog.ErrorDepth(1, g.format(msg, args))
}

// With returns a logger that appends args to every line.
func (g *GlogAdapter) With(args ...any) Logger {
	attrs := make([]any, 0, len(g.attrs)+len(args))
	attrs = append(attrs, g.attrs...)
	attrs = append(attrs, args...)
	return &GlogAdapter{tag: g.tag, attrs: attrs}
}

func (g *GlogAdapter) format(msg string, args []any) string {
	return Format(g.tag, msg, append(append([]any(nil), g.attrs...), args...)...)
}

// Format renders "[tag]msg k=v k=v". A trailing key without value is
// rendered as "k=<missing>".
func Format(tag, msg string, args ...any) string {
	var b strings.Builder
	if tag != "" {
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 >= len(args) {
			fmt.Fprintf(&b, "%v=<missing>", args[i])
			break
		}
		fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
	}
	return b.String()
}

var _ Logger = (*GlogAdapter)(nil)

// NopLogger discards all output.
type NopLogger struct{}

// Nop returns a logger that discards everything.
func Nop() Logger { return NopLogger{} }

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (n NopLogger) With(...any) Logger { return n }
