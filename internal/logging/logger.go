package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger defines a minimal, printf-style logging contract.
//
// Components depend on this interface rather than a concrete sink so tests can
// substitute a no-op or recording logger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

var (
	rootInstance *root
	rootOnce     sync.Once
	rootLevel    atomic.Int32
)

func init() {
	rootLevel.Store(int32(INFO))
}

// root is the shared sink behind every component logger. It writes to stdout
// and, when available, to flapd-debug.log in the user's home directory.
type root struct {
	mu     sync.Mutex
	file   *os.File
	logger *log.Logger
	out    io.Writer
}

func getRoot() *root {
	rootOnce.Do(func() {
		rootInstance = &root{out: os.Stdout}

		home, err := os.UserHomeDir()
		if err != nil {
			log.Printf("logging: failed to resolve home directory: %v", err)
			return
		}
		logPath := filepath.Join(home, "flapd-debug.log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("logging: failed to open log file: %v", err)
			return
		}
		rootInstance.file = file
		rootInstance.logger = log.New(file, "", 0)
	})
	return rootInstance
}

// SetLevel sets the global minimum log level. Safe to call from any
// goroutine.
func SetLevel(level LogLevel) {
	rootLevel.Store(int32(level))
}

// ParseLevel converts a config string into a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// componentLogger scopes log lines to a named component.
type componentLogger struct {
	component string
}

// NewComponentLogger creates a logger for a specific component.
func NewComponentLogger(component string) Logger {
	return &componentLogger{component: component}
}

func (l *componentLogger) log(level LogLevel, format string, args ...any) {
	if level < LogLevel(rootLevel.Load()) {
		return
	}

	r := getRoot()
	r.mu.Lock()
	defer r.mu.Unlock()

	// Format: 2025-09-30 12:34:56 [INFO] [component] - message
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s [%s] [%s] - %s\n", timestamp, levelToString(level), l.component, message)
	line = sanitizeLogLine(line)

	if r.logger != nil {
		r.logger.Print(line)
	}
	fmt.Fprint(r.out, line)
}

func (l *componentLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *componentLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *componentLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *componentLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

func levelToString(level LogLevel) string {
	switch level {
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

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)
	apiKeyPattern      = regexp.MustCompile(`(?i)((?:api[_-]?key|token|secret|password)["']?\s*[:=]\s*)["']?[^"'\s,;]+["']?`)
	secretShapePattern = regexp.MustCompile(`(?i)(sk-[A-Za-z0-9]{16,}|ghp_[A-Za-z0-9]{16,})`)
)

// sanitizeLogLine masks credentials before a line reaches any sink. Provider
// API keys routinely appear in request dumps, so this runs on every line.
func sanitizeLogLine(line string) string {
	sanitized := bearerTokenPattern.ReplaceAllString(line, "${1}[REDACTED]")
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}[REDACTED]")
	sanitized = secretShapePattern.ReplaceAllString(sanitized, "[REDACTED]")
	return sanitized
}
