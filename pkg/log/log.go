package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	// Logger is the global diagnostic logger. It is the fallback
	// channel for Scribe's own internal faults and is never part of
	// the event pipeline itself, so a broken sink can always be
	// reported here.
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	// faultLimiter throttles internal fault reporting so a
	// persistently failing sink cannot flood stderr.
	faultLimiter = rate.NewLimiter(rate.Every(time.Second), 10)
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// Fault reports an instrumentation-internal failure on the fallback
// channel. Reporting is rate limited; faults beyond the budget are
// silently discarded rather than amplifying the problem.
func Fault(component string, err error, msg string) {
	if !faultLimiter.Allow() {
		return
	}
	ev := Logger.Error().Str("component", component)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

// Warnf logs a formatted warning with a component field.
func Warnf(component, format string, args ...any) {
	Logger.Warn().Str("component", component).Msgf(format, args...)
}
