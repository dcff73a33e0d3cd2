// Package corelog wraps the standard library logger with the per-device
// tagging convention the teacher's driver code uses (log.Printf("...: %v",
// err)), so that protocol errors and illegal lifecycle transitions are
// always reported through one place instead of scattered Printf calls.
package corelog

import (
	"log"
	"os"
)

// Logger tags every message with a device identifier.
type Logger struct {
	tag  string
	std  *log.Logger
}

// New returns a Logger that prefixes messages with tag (typically a device
// name or address).
func New(tag string) *Logger {
	return &Logger{
		tag: tag,
		std: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.std.Printf("[%s] "+format, append([]interface{}{l.tag}, args...)...)
}

// BugOn reports a protocol error: a condition the driver author considers a
// programming error (spec.md §4.1's "illegal transitions are programming
// errors and must be diagnosed"). It never panics — diagnosis here means
// logging loudly and returning a structured error to the caller.
func (l *Logger) BugOn(format string, args ...interface{}) {
	l.std.Printf("[%s] BUG: "+format, append([]interface{}{l.tag}, args...)...)
}
