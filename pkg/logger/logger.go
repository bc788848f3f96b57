// Package logger is the engine's leveled logger. Console lines are
// human readable; an optional file sink mirrors every entry as JSON so
// progression incidents (lost turns, degraded evolutions) can be
// replayed later. Messages and fields pass through redaction before
// either sink sees them: chat turns carry wallet addresses and the
// config carries provider keys, and neither belongs in a log file.
//
// Component names are free-form; the engine uses "gate", "evolution",
// "backfill", "gateway", "serve" and "cli".
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soulmint/soulmint/pkg/redaction"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if l < DEBUG || l > FATAL {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name (any case) into a LogLevel.
func ParseLevel(s string) (LogLevel, bool) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return LogLevel(i), true
		}
	}
	return INFO, false
}

// Entry is the JSON shape written to the file sink.
type Entry struct {
	Level     string         `json:"level"`
	Timestamp string         `json:"timestamp"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

var (
	mu               sync.RWMutex
	currentLevel     = levelFromEnv()
	fileSink         *os.File
	redactionEnabled = true
)

// levelFromEnv seeds the initial level from SOULMINT_LOG_LEVEL; unset
// or unknown values mean INFO.
func levelFromEnv() LogLevel {
	if l, ok := ParseLevel(os.Getenv("SOULMINT_LOG_LEVEL")); ok {
		return l
	}
	return INFO
}

func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
}

func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// EnableFileLogging mirrors every entry as one JSON line appended to
// filePath.
func EnableFileLogging(filePath string) error {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		fileSink.Close()
	}
	fileSink = file
	return nil
}

func DisableFileLogging() {
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
}

func logMessage(level LogLevel, component, message string, fields map[string]any) {
	mu.RLock()
	minLevel, sink, redact := currentLevel, fileSink, redactionEnabled
	mu.RUnlock()

	if level < minLevel {
		return
	}

	if redact {
		message = redaction.Redact(message)
		if fields != nil {
			fields = redaction.RedactFields(fields)
		}
	}

	entry := Entry{
		Level:     level.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Component: component,
		Message:   message,
		Fields:    fields,
	}

	if sink != nil {
		if data, err := json.Marshal(entry); err == nil {
			sink.Write(append(data, '\n'))
		}
	}

	fmt.Fprintln(os.Stderr, formatLine(entry))

	if level == FATAL {
		os.Exit(1)
	}
}

// formatLine renders the console form of an entry. Fields are sorted by
// key so repeated runs produce comparable output.
func formatLine(e Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s]", e.Timestamp, e.Level)
	if e.Component != "" {
		fmt.Fprintf(&b, " %s:", e.Component)
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(parts, ", "))
	}
	return b.String()
}

func Debug(message string) {
	logMessage(DEBUG, "", message, nil)
}

func DebugC(component, message string) {
	logMessage(DEBUG, component, message, nil)
}

func DebugCF(component, message string, fields map[string]any) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) {
	logMessage(INFO, "", message, nil)
}

func InfoC(component, message string) {
	logMessage(INFO, component, message, nil)
}

func InfoCF(component, message string, fields map[string]any) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) {
	logMessage(WARN, "", message, nil)
}

func WarnC(component, message string) {
	logMessage(WARN, component, message, nil)
}

func WarnCF(component, message string, fields map[string]any) {
	logMessage(WARN, component, message, fields)
}

func Error(message string) {
	logMessage(ERROR, "", message, nil)
}

func ErrorC(component, message string) {
	logMessage(ERROR, component, message, nil)
}

func ErrorCF(component, message string, fields map[string]any) {
	logMessage(ERROR, component, message, fields)
}

func Fatal(message string) {
	logMessage(FATAL, "", message, nil)
}

func FatalCF(component, message string, fields map[string]any) {
	logMessage(FATAL, component, message, fields)
}

// SetRedactionEnabled toggles masking of messages and fields.
func SetRedactionEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	redactionEnabled = enabled
}

// ConfigureRedaction replaces the process-wide redaction patterns.
func ConfigureRedaction(config redaction.Config) {
	redaction.SetGlobalConfig(config)
}
