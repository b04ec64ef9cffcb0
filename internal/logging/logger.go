// Package logging provides structured logging with file and console output.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is a single log line kept in memory for the event feed
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Data      string `json:"data,omitempty"`
}

// Logger wraps zerolog with file output and log history. Every event
// written through the underlying zerolog.Logger, including component
// loggers derived from it, passes the level filter and lands in history.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	logPath string
	level   atomic.Int32
	out     io.Writer
	mu      sync.RWMutex
	history []LogEntry
	maxHist int
	onLog   func(LogEntry)
}

// Config holds logger configuration
type Config struct {
	LogDir     string    // Directory for log files (default: ~/.daymind/logs); empty disables the file
	Level      LogLevel  // Minimum log level (default: info)
	MaxHistory int       // Max entries to keep in memory (default: 500)
	Console    bool      // Also log to Output
	Output     io.Writer // Console destination (default: stderr, stdout is for the conversation)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogDir:     filepath.Join(home, ".daymind", "logs"),
		Level:      LevelInfo,
		MaxHistory: 500,
		Console:    false,
		Output:     os.Stderr,
	}
}

// ParseLevel maps a config string onto a LogLevel, falling back to info.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// New creates a new Logger
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 500
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var writers []io.Writer
	var file *os.File
	var logPath string

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logFileName := fmt.Sprintf("daymind_%s.log", time.Now().Format("2006-01-02"))
		logPath = filepath.Join(cfg.LogDir, logFileName)

		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, file)
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05",
		})
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	logger := &Logger{
		file:    file,
		logPath: logPath,
		out:     out,
		history: make([]LogEntry, 0, cfg.MaxHistory),
		maxHist: cfg.MaxHistory,
	}
	logger.level.Store(int32(toZerologLevel(cfg.Level)))

	// the level is enforced by WriteLevel so SetLevel reaches derived loggers
	logger.zlog = zerolog.New(logger).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Str("app", "daymind").
		Logger()

	logger.Debug("logging", "Logger initialized", map[string]interface{}{
		"logFile": logPath,
		"level":   string(cfg.Level),
	})

	return logger, nil
}

func toZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel changes the minimum level at runtime (used by config reload)
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(toZerologLevel(level)))
}

// SetOnLog sets a callback for real-time log streaming. It runs on the
// logging goroutine and must not block.
func (l *Logger) SetOnLog(fn func(LogEntry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLog = fn
}

// Write implements io.Writer for events without a level
func (l *Logger) Write(p []byte) (int, error) {
	return l.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter: it drops events below the
// current level, forwards the rest and records them in history.
func (l *Logger) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level != zerolog.NoLevel && level < zerolog.Level(l.level.Load()) {
		return len(p), nil
	}
	if _, err := l.out.Write(p); err != nil {
		return 0, err
	}
	if entry, ok := parseEntry(p); ok {
		l.addToHistory(entry)
	}
	return len(p), nil
}

// parseEntry turns one JSON log line into a history entry
func parseEntry(p []byte) (LogEntry, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return LogEntry{}, false
	}

	entry := LogEntry{Timestamp: time.Now().Format("15:04:05.000")}
	take := func(key string) string {
		v, _ := fields[key].(string)
		delete(fields, key)
		return v
	}
	entry.Level = take(zerolog.LevelFieldName)
	entry.Component = take("component")
	entry.Message = take(zerolog.MessageFieldName)
	errText := take(zerolog.ErrorFieldName)
	delete(fields, zerolog.TimestampFieldName)
	delete(fields, "app")

	entry.Data = formatData(fields)
	if errText != "" {
		if entry.Data != "" {
			entry.Data += ", "
		}
		entry.Data += "error=" + errText
	}
	return entry, true
}

func (l *Logger) addToHistory(entry LogEntry) {
	l.mu.Lock()
	l.history = append(l.history, entry)
	if len(l.history) > l.maxHist {
		l.history = l.history[len(l.history)-l.maxHist:]
	}
	onLog := l.onLog
	l.mu.Unlock()

	if onLog != nil {
		onLog(entry)
	}
}

// GetHistory returns up to limit recent entries, oldest first
func (l *Logger) GetHistory(limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}

	result := make([]LogEntry, limit)
	copy(result, l.history[len(l.history)-limit:])
	return result
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close closes the log file
func (l *Logger) Close() error {
	l.Debug("logging", "Logger shutting down", nil)
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// formatData renders data as sorted key=value pairs
func formatData(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, ", ")
}

func (l *Logger) log(event *zerolog.Event, component, msg string, data map[string]interface{}) {
	// zerolog hands back a nil event below the configured level
	if event == nil {
		return
	}
	event = event.Str("component", component)
	for k, v := range data {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (l *Logger) current() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zlog
}

// Debug logs a debug message
func (l *Logger) Debug(component, msg string, data map[string]interface{}) {
	z := l.current()
	l.log(z.Debug(), component, msg, data)
}

// Info logs an info message
func (l *Logger) Info(component, msg string, data map[string]interface{}) {
	z := l.current()
	l.log(z.Info(), component, msg, data)
}

// Warn logs a warning message
func (l *Logger) Warn(component, msg string, data map[string]interface{}) {
	z := l.current()
	l.log(z.Warn(), component, msg, data)
}

// Error logs an error message
func (l *Logger) Error(component, msg string, err error, data map[string]interface{}) {
	z := l.current()
	event := z.Error()
	if err != nil {
		event = event.Err(err)
	}
	l.log(event, component, msg, data)
}

// Component returns a zerolog.Logger with the component field set
func (l *Logger) Component(name string) zerolog.Logger {
	z := l.current()
	return z.With().Str("component", name).Logger()
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.current()
}
