package types

import (
	"fmt"
	"strings"
	"time"
)

// Level represents the severity of a log event.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the canonical lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name to a Level. It accepts the common
// aliases "warn" and "err".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error", "err":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown level: %q", s)
}

// Category classifies events by the subsystem that produced them. A sink
// may filter on a single category or accept all of them.
type Category string

const (
	CategoryGeneral     Category = "general"
	CategoryRequest     Category = "request"
	CategoryDatabase    Category = "database"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
	CategoryExceptions  Category = "exceptions"
)

// Categories lists every category that gets a dedicated log file.
func Categories() []Category {
	return []Category{
		CategoryRequest,
		CategoryDatabase,
		CategoryPerformance,
		CategorySecurity,
		CategoryExceptions,
	}
}

// LogEvent is the atomic unit delivered to sinks. Events are immutable
// once constructed; sinks format copies and never mutate the original.
// Fields must already be sanitized by the redaction engine before the
// event is built.
type LogEvent struct {
	Timestamp time.Time
	Level     Level
	Category  Category
	Logger    string
	Message   string
	TraceID   string
	SpanID    string
	ThreadID  uint64
	ProcessID int
	Fields    map[string]any
}

// Format selects a sink's on-disk encoding.
type Format string

const (
	FormatLine Format = "line"
	FormatJSON Format = "json"
)

// RotationPolicy controls when a sink's active file is retired and how
// many retired files are kept.
type RotationPolicy struct {
	// MaxBytes rotates the active file once its size exceeds this
	// value. Zero disables rotation.
	MaxBytes int64
	// BackupCount is the maximum number of rotated files retained.
	// Older files are deleted first.
	BackupCount int
	// Compress gzips rotated files in the background.
	Compress bool
}

// SinkConfig describes one named output destination.
type SinkConfig struct {
	Name string
	// Category filters events; the empty string matches any category.
	Category Category
	MinLevel Level
	Path     string
	Format   Format
	Rotation RotationPolicy
}

// Matches reports whether an event passes this sink's category and
// level filters.
func (c SinkConfig) Matches(ev LogEvent) bool {
	if c.Category != "" && c.Category != ev.Category {
		return false
	}
	return ev.Level >= c.MinLevel
}

// PerformanceSample records one duration measurement against the
// operation's configured threshold.
type PerformanceSample struct {
	Operation string
	Duration  time.Duration
	Threshold time.Duration
	Exceeded  bool
}
