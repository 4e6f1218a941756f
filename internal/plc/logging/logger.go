// Package logging provides the level-gated logger every component in
// this module writes through, adapted from the teacher's structured
// logger: same level set, same file+stdout/stderr fan-out, same hex
// formatter, generalized from CIP-probe operation logging to session/
// tag operation logging.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Level is a logging verbosity level.
type Level int

const (
	LevelSilent Level = iota
	LevelError
	LevelInfo
	LevelVerbose
	LevelDebug
)

// Logger writes each message that passes the level gate to stdout/stderr
// and, optionally, to a log file.
type Logger struct {
	mu      sync.Mutex
	level   Level
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
}

// New creates a Logger at level, optionally also writing every message
// that passes the level gate to logFile.
func New(level Level, logFile string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
	}
	if logFile != "" {
		f, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("logging: create log file: %w", err)
		}
		l.file = f
		l.fileLog = log.New(f, "", log.LstdFlags)
	}
	return l, nil
}

// Close closes the log file, if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) Error(format string, v ...any) {
	if l.level >= LevelError {
		l.write("ERROR: "+fmt.Sprintf(format, v...), true)
	}
}

// Warn logs a non-fatal condition worth a user's attention (e.g. a
// caller-supplied parameter silently clamped), gated the same as Info
// since it is not itself a failed operation.
func (l *Logger) Warn(format string, v ...any) {
	if l.level >= LevelInfo {
		l.write("WARN: "+fmt.Sprintf(format, v...), false)
	}
}

func (l *Logger) Info(format string, v ...any) {
	if l.level >= LevelInfo {
		l.write("INFO: "+fmt.Sprintf(format, v...), false)
	}
}

func (l *Logger) Verbose(format string, v ...any) {
	if l.level >= LevelVerbose {
		l.write("VERBOSE: "+fmt.Sprintf(format, v...), false)
	}
}

func (l *Logger) Debug(format string, v ...any) {
	if l.level >= LevelDebug {
		l.write("DEBUG: "+fmt.Sprintf(format, v...), false)
	}
}

func (l *Logger) write(msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}
	if isError {
		l.stderr.Println(msg)
	} else if l.level >= LevelVerbose {
		l.stdout.Println(msg)
	}
}

// SetLevel changes the logger's verbosity at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current verbosity.
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogOperation logs the outcome of one tag read or write (spec.md S7):
// target tag name, the PLC family's addressing scheme, success/failure,
// round-trip time, and the resulting status code.
func (l *Logger) LogOperation(operation, tagName, family string, success bool, rttMs float64, code int, err error) {
	outcome := "SUCCESS"
	if !success {
		outcome = "FAILED"
	}
	var errStr string
	if err != nil {
		errStr = fmt.Sprintf(" - error: %v", err)
	}
	msg := fmt.Sprintf("%s %s on %s (family: %s, status: %d, RTT: %.3fms)%s",
		outcome, operation, tagName, family, code, rttMs, errStr)
	if success {
		l.Verbose("%s", msg)
	} else {
		l.Info("%s", msg)
	}
}

// LogSessionEvent logs a session state-machine transition (connect,
// reconnect, forward-open, teardown).
func (l *Logger) LogSessionEvent(identity, event string) {
	l.Verbose("session %s: %s", identity, event)
}

// LogHex logs data as space-separated hex bytes, at Debug level only.
func (l *Logger) LogHex(label string, data []byte) {
	if l.level < LevelDebug {
		return
	}
	hexStr := fmt.Sprintf("%x", data)
	var formatted string
	for i := 0; i < len(hexStr); i += 2 {
		if i > 0 {
			formatted += " "
		}
		if i+2 <= len(hexStr) {
			formatted += hexStr[i : i+2]
		} else {
			formatted += hexStr[i:]
		}
	}
	l.Debug("%s: %s", label, formatted)
}
