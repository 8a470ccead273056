// Package logging holds gridrun's two log outputs: the leveled stderr logger
// used by every command, and the JSONL run-event log kept next to the ledger
// (~/.gridrun/events.jsonl) when running at debug or trace level.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/gridrun/internal/constants"
)

// LevelTrace sits below Debug. At this level the child's full argv and
// environment are logged.
const LevelTrace = slog.LevelDebug - 4

var levels = map[string]slog.Level{
	"error": slog.LevelError,
	"warn":  slog.LevelWarn,
	"info":  slog.LevelInfo,
	"debug": slog.LevelDebug,
	"trace": LevelTrace,
}

// LevelNames lists the accepted level names, most verbose last.
var LevelNames = []string{"error", "warn", "info", "debug", "trace"}

// ParseLevel maps a level name (case-insensitive) to a slog.Level. Empty and
// unknown names mean info.
func ParseLevel(s string) slog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// ValidateLevel reports whether s names a level. Empty is valid.
func ValidateLevel(s string) error {
	if s == "" {
		return nil
	}
	if _, ok := levels[strings.ToLower(strings.TrimSpace(s))]; !ok {
		return fmt.Errorf("invalid log level %q (valid: %s)", s, strings.Join(LevelNames, ", "))
	}
	return nil
}

// NewLogger returns a text logger on w filtering below level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key != slog.LevelKey {
				return attr
			}
			if l, ok := attr.Value.Any().(slog.Level); ok && l == LevelTrace {
				attr.Value = slog.StringValue("TRACE")
			}
			return attr
		},
	}))
}

// EventLogger appends run events to a JSONL file. It is safe for concurrent
// use, and a nil *EventLogger discards everything.
type EventLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewEventLogger opens dir/events.jsonl for append when level is debug or
// more verbose. Otherwise, or when the file cannot be opened, it returns nil.
func NewEventLogger(dir string, level string) *EventLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, constants.EventsFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &EventLogger{file: f}
}

// Log writes event with fields as one line, adding "event" and "time".
// fields is not modified.
func (el *EventLogger) Log(event string, fields map[string]any) {
	if el == nil {
		return
	}

	line := make(map[string]any, len(fields)+2)
	maps.Copy(line, fields)
	line["event"] = event
	line["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(line)
	if err != nil {
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		_, _ = el.file.Write(append(data, '\n'))
	}
}

// Close closes the file; later calls to Log are dropped.
func (el *EventLogger) Close() {
	if el == nil {
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		el.file.Close()
		el.file = nil
	}
}
