// Package logger provides a small leveled, field-structured logger used
// across the supervisor, worker, and management-plane processes.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a leveled logger that carries structured fields and an
// optional process "mode" tag (e.g. "server", "worker").
type Logger struct {
	level  Level
	logger *log.Logger
	fields map[string]interface{}
	mode   string
}

// Config configures a new Logger.
type Config struct {
	Level  Level
	Output io.Writer
	Mode   string
}

// New returns a default logger writing text lines to stdout at INFO level.
func New() *Logger {
	return NewWithConfig(Config{Level: INFO, Output: os.Stdout})
}

// NewWithConfig returns a logger built from the given Config.
func NewWithConfig(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	return &Logger{
		level:  cfg.Level,
		logger: log.New(cfg.Output, "", 0),
		fields: make(map[string]interface{}),
		mode:   cfg.Mode,
	}
}

// SetMode sets the mode tag applied to every line logged by this instance.
func (l *Logger) SetMode(mode string) { l.mode = mode }

// GetMode returns the current mode tag.
func (l *Logger) GetMode() string { return l.mode }

// WithFields returns a derived logger carrying the additional key/value
// pairs on every subsequent log call.
func (l *Logger) WithFields(keyVals ...interface{}) *Logger {
	next := &Logger{
		level:  l.level,
		logger: l.logger,
		fields: make(map[string]interface{}, len(l.fields)+len(keyVals)/2),
		mode:   l.mode,
	}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		next.fields[fmt.Sprintf("%v", keyVals[i])] = keyVals[i+1]
	}
	return next
}

// WithField is a convenience wrapper around WithFields for a single pair.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

// WithMode returns a derived logger tagged with the given mode.
func (l *Logger) WithMode(mode string) *Logger {
	next := l.WithFields()
	next.mode = mode
	return next
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(DEBUG, msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(INFO, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(WARN, msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(ERROR, msg, kv...) }

func (l *Logger) Fatal(msg string, kv ...interface{}) {
	l.log(ERROR, msg, kv...)
	os.Exit(1)
}

func (l *Logger) log(level Level, msg string, kv ...interface{}) {
	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")

	all := make(map[string]interface{}, len(l.fields)+len(kv)/2)
	for k, v := range l.fields {
		all[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		all[fmt.Sprintf("%v", kv[i])] = kv[i+1]
	}

	l.logger.Print(l.formatLine(timestamp, level, msg, all))
}

func (l *Logger) formatLine(timestamp string, level Level, msg string, fields map[string]interface{}) string {
	parts := []string{fmt.Sprintf("[%s]", timestamp), fmt.Sprintf("[%s]", level.String())}
	if l.mode != "" {
		parts = append(parts, fmt.Sprintf("[%s]", l.mode))
	}
	parts = append(parts, msg)

	if len(fields) > 0 {
		var fieldParts []string
		for k, v := range fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, formatValue(v)))
		}
		parts = append(parts, "|", strings.Join(fieldParts, " "))
	}

	return strings.Join(parts, " ")
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, " ") {
			return fmt.Sprintf("%q", v)
		}
		return v
	case error:
		return fmt.Sprintf("%q", v.Error())
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (l *Logger) SetLevel(level Level) { l.level = level }
func (l *Logger) GetLevel() Level      { return l.level }

// global logger used by package-level convenience functions.
var global = New()

func SetGlobalMode(mode string)                { global.SetMode(mode) }
func Debug(msg string, kv ...interface{})      { global.Debug(msg, kv...) }
func Info(msg string, kv ...interface{})       { global.Info(msg, kv...) }
func Warn(msg string, kv ...interface{})       { global.Warn(msg, kv...) }
func Error(msg string, kv ...interface{})      { global.Error(msg, kv...) }
func Fatal(msg string, kv ...interface{})      { global.Fatal(msg, kv...) }
func WithFields(kv ...interface{}) *Logger     { return global.WithFields(kv...) }
func WithField(k string, v interface{}) *Logger { return global.WithField(k, v) }
func WithMode(mode string) *Logger             { return global.WithMode(mode) }
func SetLevel(level Level)                     { global.SetLevel(level) }

// ParseLevel parses a level name, defaulting to INFO on an unrecognized string.
func ParseLevel(level string) (Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", level)
	}
}
