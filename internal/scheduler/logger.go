package scheduler

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// gocronLogger forwards gocron's key/value logging to zerolog.
type gocronLogger struct {
	log zerolog.Logger
}

// NewGocronLogger adapts log to the gocron.Logger interface.
func NewGocronLogger(log zerolog.Logger) gocron.Logger {
	return gocronLogger{log: log.With().Str("component", "gocron").Logger()}
}

func (l gocronLogger) Debug(msg string, args ...any) { l.emit(l.log.Debug(), msg, args) }
func (l gocronLogger) Info(msg string, args ...any)  { l.emit(l.log.Info(), msg, args) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.emit(l.log.Warn(), msg, args) }
func (l gocronLogger) Error(msg string, args ...any) { l.emit(l.log.Error(), msg, args) }

func (gocronLogger) emit(ev *zerolog.Event, msg string, args []any) {
	if len(args)%2 == 1 {
		args = append(args, "(MISSING)")
	}
	ev.Fields(args).Msg(msg)
}
