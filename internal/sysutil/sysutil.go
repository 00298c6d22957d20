// Package sysutil holds process bootstrap helpers for the server binary:
// building the root zerolog logger from configuration and picking the first
// set value among env-style fallbacks.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps a level name (case-insensitive, "warning" accepted) to a
// zerolog level. Unknown and empty names are info.
func ParseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogLevel sets the global zerolog level and returns it.
func SetLogLevel(lvl string) zerolog.Level {
	l := ParseLevel(lvl)
	zerolog.SetGlobalLevel(l)
	return l
}

// LogOptions configure NewLogger.
type LogOptions struct {
	Level   string
	Pretty  bool   // console writer instead of JSON
	Service string // added as "service" when set
	Version string // added as "version" when set
	Out     io.Writer
	Hooks   []zerolog.Hook
}

// NewLogger builds the root logger, applies the global level and installs
// it as zerolog.DefaultContextLogger so zerolog.Ctx never returns a
// disabled logger for contexts that were not decorated by the HTTP layer
// (scheduler jobs, startup code).
func NewLogger(o LogOptions) zerolog.Logger {
	SetLogLevel(o.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := o.Out
	if out == nil {
		out = os.Stdout
	}
	if o.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if o.Service != "" {
		ctx = ctx.Str("service", o.Service)
	}
	if o.Version != "" {
		ctx = ctx.Str("version", o.Version)
	}
	lg := ctx.Logger()
	for _, h := range o.Hooks {
		lg = lg.Hook(h)
	}
	zerolog.DefaultContextLogger = &lg
	return lg
}

// FirstNonEmpty returns the first value that is not blank, unmodified, or ""
// if all are blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
