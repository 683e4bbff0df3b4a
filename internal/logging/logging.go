// Package logging wraps the standard logger with the component-tagged
// lines used throughout this service's own packages. internal/aws keeps
// its own emoji-prefixed log lines, carried over from the teacher's AWS
// client wrappers.
package logging

import "log"

// Logger prefixes every line with a component tag, e.g. "[Pipeline]".
type Logger struct {
	tag string
}

// New returns a Logger tagged with the given component name.
func New(component string) *Logger {
	return &Logger{tag: "[" + component + "]"}
}

// Printf is a no-op on a nil *Logger, so zero-value structs (as in tests
// that construct a type directly instead of through its constructor) never
// need to wire one up just to avoid a panic.
func (l *Logger) Printf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	log.Printf(l.tag+" "+format, args...)
}

func (l *Logger) Println(args ...interface{}) {
	if l == nil {
		return
	}
	log.Println(append([]interface{}{l.tag}, args...)...)
}

// Fatalf logs and exits, for unrecoverable boot-time failures.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	if l == nil {
		log.Fatalf(format, args...)
		return
	}
	log.Fatalf(l.tag+" "+format, args...)
}
