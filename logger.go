package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	format  string
	output  io.Writer
	logFile *os.File
}

var (
	defaultLogger   *Logger
	defaultLoggerMu sync.Mutex
)

// InitLogger installs the process-wide logger. When logDir is non-empty the
// output is mirrored into logDir/codebot.log.
func InitLogger(level, format, logDir string) (*Logger, error) {
	logger := NewLogger(os.Stdout, level, format)

	if logDir = strings.TrimSpace(logDir); logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %q: %w", logDir, err)
		}
		logFile, err := os.OpenFile(filepath.Join(logDir, "codebot.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.logFile = logFile
		logger.output = io.MultiWriter(os.Stdout, logFile)
	}

	defaultLoggerMu.Lock()
	defaultLogger = logger
	defaultLoggerMu.Unlock()

	return logger, nil
}

func NewLogger(output io.Writer, level, format string) *Logger {
	if format != "json" {
		format = "text"
	}
	return &Logger{
		level:  ParseLogLevel(level),
		format: format,
		output: output,
	}
}

func GetLogger() *Logger {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(os.Stdout, "info", "text")
	}
	return defaultLogger
}

func (l *Logger) write(level LogLevel, fields map[string]interface{}, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		entry := make(map[string]interface{}, len(fields)+3)
		for k, v := range fields {
			entry[k] = v
		}
		entry["timestamp"] = timestamp
		entry["level"] = level.String()
		entry["message"] = msg
		jsonBytes, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.output, "[%s] [%s] %s (unencodable fields: %v)\n", timestamp, level.String(), msg, err)
			return
		}
		fmt.Fprintln(l.output, string(jsonBytes))
		return
	}

	var fieldStr strings.Builder
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&fieldStr, " %s=%v", k, fields[k])
	}
	fmt.Fprintf(l.output, "[%s] [%s]%s %s\n", timestamp, level.String(), fieldStr.String(), msg)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LogLevelDebug, nil, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LogLevelInfo, nil, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LogLevelWarn, nil, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LogLevelError, nil, format, args...)
}

func (l *Logger) WithField(key string, value interface{}) *LogEntry {
	return &LogEntry{
		logger: l,
		fields: map[string]interface{}{key: value},
	}
}

func (l *Logger) WithFields(fields map[string]interface{}) *LogEntry {
	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &LogEntry{
		logger: l,
		fields: copied,
	}
}

func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// LogEntry is a logger bound to a fixed set of fields.
type LogEntry struct {
	logger *Logger
	fields map[string]interface{}
}

func (e *LogEntry) WithField(key string, value interface{}) *LogEntry {
	fields := make(map[string]interface{}, len(e.fields)+1)
	for k, v := range e.fields {
		fields[k] = v
	}
	fields[key] = value
	return &LogEntry{logger: e.logger, fields: fields}
}

func (e *LogEntry) Debug(format string, args ...interface{}) {
	e.logger.write(LogLevelDebug, e.fields, format, args...)
}

func (e *LogEntry) Info(format string, args ...interface{}) {
	e.logger.write(LogLevelInfo, e.fields, format, args...)
}

func (e *LogEntry) Warn(format string, args ...interface{}) {
	e.logger.write(LogLevelWarn, e.fields, format, args...)
}

func (e *LogEntry) Error(format string, args ...interface{}) {
	e.logger.write(LogLevelError, e.fields, format, args...)
}

func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

func WithField(key string, value interface{}) *LogEntry {
	return GetLogger().WithField(key, value)
}

func WithFields(fields map[string]interface{}) *LogEntry {
	return GetLogger().WithFields(fields)
}
