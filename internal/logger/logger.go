// Package logger provides the leveled, structured logger used by both
// peers. Console output stays a plain ANSI-colored line (useful while
// watching a transfer live); file-backed output is delegated to logrus
// so on-disk logs are JSON and greppable.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel orders log severities.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) color() string {
	switch l {
	case DEBUG:
		return "\033[37m"
	case INFO:
		return "\033[34m"
	case WARN:
		return "\033[33m"
	case ERROR:
		return "\033[31m"
	case FATAL:
		return "\033[35m"
	default:
		return "\033[0m"
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	case FATAL:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger is a leveled logger with an optional structured prefix
// (peer=1.2.3.4:9000, seq=42, ...) attached via WithField/WithFields.
type Logger struct {
	level    LogLevel
	output   io.Writer
	prefix   string
	file     *os.File
	useColor bool
	// structured is non-nil for file-backed loggers; it renders each
	// entry as JSON instead of the colored console line.
	structured *logrus.Logger
}

// NewLogger creates a console logger writing plain, optionally colored
// lines to output.
func NewLogger(level LogLevel, output io.Writer, prefix string) *Logger {
	return &Logger{level: level, output: output, prefix: prefix, useColor: true}
}

// NewFileLogger creates a logger that appends structured JSON lines to
// logDir/<prefix>_<date>.log, backed by logrus.
func NewFileLogger(level LogLevel, logDir, prefix string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("%s_%s.log", prefix, time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, err
	}

	lr := logrus.New()
	lr.SetOutput(file)
	lr.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	lr.SetLevel(level.logrusLevel())

	return &Logger{level: level, output: file, prefix: prefix, file: file, useColor: false, structured: lr}, nil
}

// Close closes the backing file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetLevel changes the minimum level that is emitted.
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	if l.structured != nil {
		l.structured.SetLevel(level.logrusLevel())
	}
}

// SetColor toggles ANSI coloring on console output.
func (l *Logger) SetColor(useColor bool) { l.useColor = useColor }

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	message := fmt.Sprintf(format, args...)

	if l.structured != nil {
		_, file, line, ok := runtime.Caller(2)
		if !ok {
			file, line = "unknown", 0
		} else {
			file = filepath.Base(file)
		}
		entry := l.structured.WithFields(logrus.Fields{"caller": fmt.Sprintf("%s:%d", file, line)})
		if l.prefix != "" {
			entry = entry.WithField("context", l.prefix)
		}
		switch level {
		case DEBUG:
			entry.Debug(message)
		case INFO:
			entry.Info(message)
		case WARN:
			entry.Warn(message)
		case ERROR:
			entry.Error(message)
		case FATAL:
			entry.Fatal(message)
		}
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "unknown", 0
	} else {
		file = filepath.Base(file)
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	var logLine string
	if l.useColor {
		logLine = fmt.Sprintf("%s[%s] %s %s:%d %s\033[0m\n", level.color(), timestamp, level.String(), file, line, message)
	} else {
		logLine = fmt.Sprintf("[%s] %s %s:%d %s\n", timestamp, level.String(), file, line, message)
	}
	if l.prefix != "" {
		logLine = fmt.Sprintf("[%s] %s", l.prefix, logLine)
	}
	l.output.Write([]byte(logLine))
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(FATAL, format, args...)
	if l.structured == nil {
		os.Exit(1)
	}
}

// WithField returns a derived logger carrying an additional key=value in
// its prefix.
func (l *Logger) WithField(key, value string) *Logger {
	return &Logger{
		level: l.level, output: l.output,
		prefix:     joinPrefix(l.prefix, fmt.Sprintf("%s=%s", key, value)),
		file:       l.file,
		useColor:   l.useColor,
		structured: l.structured,
	}
}

// WithFields returns a derived logger carrying multiple key=value pairs.
func (l *Logger) WithFields(fields map[string]string) *Logger {
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return &Logger{
		level: l.level, output: l.output,
		prefix:     joinPrefix(l.prefix, strings.Join(parts, " ")),
		file:       l.file,
		useColor:   l.useColor,
		structured: l.structured,
	}
}

func joinPrefix(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + " " + addition
}
