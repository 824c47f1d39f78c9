package logx

import (
	"os"
	"strings"

	"github.com/Chative-core-poc-v1/orchestrator/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// Level overrides the environment default when it parses as a zerolog level.
	Level string
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

func Init(opts ...LoggerOpts) {
	o := safe(opts...)
	level := zerolog.DebugLevel
	if o.Environment.StructuredLogs() {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		if o.Environment.IsProduction() {
			level = zerolog.InfoLevel
		}
	} else {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
	}
	if o.Level != "" {
		if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(o.Level))); err == nil {
			level = l
		}
	}
	log.Logger = log.Logger.Level(level)
}

// WithLevel returns an event at the given level, used where the level is
// decided at runtime (e.g. from an error severity).
func WithLevel(level zerolog.Level) *zerolog.Event {
	return log.WithLevel(level)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
