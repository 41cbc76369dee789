package sink

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/scribe/pkg/types"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// encode renders an event in the sink's configured format, newline
// terminated.
func encode(ev types.LogEvent, format types.Format) []byte {
	if format == types.FormatJSON {
		return encodeJSON(ev)
	}
	return encodeLine(ev)
}

// jsonEvent is the stable wire shape of a structured event.
type jsonEvent struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Category  string         `json:"category"`
	Logger    string         `json:"logger"`
	Message   string         `json:"message"`
	ThreadID  uint64         `json:"thread_id"`
	ProcessID int            `json:"process_id"`
	Trace     *jsonTrace     `json:"trace,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type jsonTrace struct {
	ID     string `json:"id"`
	SpanID string `json:"span_id,omitempty"`
}

func encodeJSON(ev types.LogEvent) []byte {
	je := jsonEvent{
		Timestamp: ev.Timestamp.UTC().Format(timeLayout),
		Level:     ev.Level.String(),
		Category:  string(ev.Category),
		Logger:    ev.Logger,
		Message:   ev.Message,
		ThreadID:  ev.ThreadID,
		ProcessID: ev.ProcessID,
		Fields:    ev.Fields,
	}
	if ev.TraceID != "" {
		je.Trace = &jsonTrace{ID: ev.TraceID, SpanID: ev.SpanID}
	}

	b, err := json.Marshal(je)
	if err != nil {
		// Fields have been sanitized upstream; this is unreachable
		// short of a corrupted event, but never lose the message.
		b, _ = json.Marshal(jsonEvent{
			Timestamp: je.Timestamp,
			Level:     je.Level,
			Category:  je.Category,
			Logger:    je.Logger,
			Message:   fmt.Sprintf("%s (fields unmarshalable: %v)", ev.Message, err),
			ThreadID:  je.ThreadID,
			ProcessID: je.ProcessID,
			Trace:     je.Trace,
		})
	}
	return append(b, '\n')
}

func encodeLine(ev types.LogEvent) []byte {
	var b strings.Builder
	b.WriteString(ev.Timestamp.Format(timeLayout))
	fmt.Fprintf(&b, " %-7s [%s] %s: %s", ev.Level.String(), ev.Category, ev.Logger, ev.Message)
	if ev.TraceID != "" {
		b.WriteString(" trace=")
		b.WriteString(shortID(ev.TraceID))
		if ev.SpanID != "" {
			b.WriteByte('/')
			b.WriteString(ev.SpanID)
		}
	}
	if len(ev.Fields) > 0 {
		keys := make([]string, 0, len(ev.Fields))
		for k := range ev.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, formatValue(ev.Fields[k]))
		}
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if strings.ContainsAny(val, " \t\"=") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case time.Duration:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// shortID keeps line output readable; the full trace ID is in the
// structured stream.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
