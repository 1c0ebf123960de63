package logging

// Leveled logging for cipwire

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

var levelNames = map[LogLevel]string{
	LogLevelSilent:  "silent",
	LogLevelError:   "error",
	LogLevelInfo:    "info",
	LogLevelVerbose: "verbose",
	LogLevelDebug:   "debug",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel maps a level name to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	for level, n := range levelNames {
		if strings.EqualFold(name, n) {
			return level, nil
		}
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q (want silent, error, info, verbose or debug)", name)
}

func (l LogLevel) label() string { return strings.ToUpper(l.String()) }

// Logger writes leveled messages to the console and, optionally, a log file.
// A nil *Logger discards everything, so callers may pass one around unset.
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	format  string
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
}

// NewLogger creates a text logger.
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	return NewLoggerWithOptions(level, logFile, "text")
}

// NewLoggerWithOptions creates a logger. format is "text" or "json"; it
// applies to the log file only.
func NewLoggerWithOptions(level LogLevel, logFile, format string) (*Logger, error) {
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	l := &Logger{
		level:  level,
		format: format,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		flags := log.LstdFlags
		if format == "json" {
			flags = 0
		}
		l.fileLog = log.New(file, "", flags)
	}

	return l, nil
}

// NewWriterLogger logs every message at or below level to w.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	out := log.New(w, "", 0)
	return &Logger{level: level, format: "text", stdout: out, stderr: out}
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) Error(format string, v ...any) { l.logf(LogLevelError, format, v...) }

func (l *Logger) Info(format string, v ...any) { l.logf(LogLevelInfo, format, v...) }

func (l *Logger) Verbose(format string, v ...any) { l.logf(LogLevelVerbose, format, v...) }

func (l *Logger) Debug(format string, v ...any) { l.logf(LogLevelDebug, format, v...) }

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level LogLevel) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return level != LogLevelSilent && l.level >= level
}

func (l *Logger) logf(level LogLevel, format string, v ...any) {
	if !l.Enabled(level) {
		return
	}
	l.write(level, fmt.Sprintf(format, v...))
}

// write sends msg to the file and the console. Errors go to stderr; other
// messages reach stdout only at verbose level and above.
func (l *Logger) write(level LogLevel, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := level.label() + ": " + msg
	if l.fileLog != nil {
		if l.format == "json" {
			entry, _ := json.Marshal(struct {
				Time  string `json:"time"`
				Level string `json:"level"`
				Msg   string `json:"msg"`
			}{time.Now().UTC().Format(time.RFC3339Nano), level.String(), msg})
			l.fileLog.Println(string(entry))
		} else {
			l.fileLog.Println(line)
		}
	}

	if level == LogLevelError {
		l.stderr.Println(line)
	} else if l.level >= LogLevelVerbose {
		l.stdout.Println(line)
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	if l == nil {
		return LogLevelSilent
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogOperation logs one request/reply exchange. Failures log at info,
// successes at verbose.
func (l *Logger) LogOperation(operation, target, service string, success bool, rttMs float64, status uint8, err error) {
	if l == nil {
		return
	}
	result := "SUCCESS"
	if !success {
		result = "FAILED"
	}

	var errStr string
	if err != nil {
		errStr = fmt.Sprintf(" - error: %v", err)
	}

	msg := fmt.Sprintf("%s %s on %s (service: %s, status: 0x%02X, RTT: %.3fms)%s",
		result, operation, target, service, status, rttMs, errStr)

	if success {
		l.Verbose("%s", msg)
	} else {
		l.Info("%s", msg)
	}
}

// LogConnect logs the parameters a command connects with.
func (l *Logger) LogConnect(target string, timeout time.Duration, route, configPath string) {
	if l == nil {
		return
	}
	l.Info("connecting to %s", target)
	l.Verbose("  Timeout: %s", timeout)
	if route != "" {
		l.Verbose("  Route: %s", route)
	}
	if configPath != "" {
		l.Verbose("  Config: %s", configPath)
	}
}

// LogHex logs data as space-separated hex bytes at debug level.
func (l *Logger) LogHex(label string, data []byte) {
	if !l.Enabled(LogLevelDebug) {
		return
	}
	l.write(LogLevelDebug, fmt.Sprintf("%s: % x", label, data))
}
