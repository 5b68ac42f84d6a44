// Package ualog provides a thin, injectable logger in the stdlib
// log.Printf("[component] ...") style rather than a structured logging
// framework. No other package in this module imports it.
package ualog

import (
	"fmt"
	"log"
)

// Logger writes component-prefixed lines through an underlying *log.Logger.
// The zero value is not usable; use New or Default.
type Logger struct {
	prefix string
	out    *log.Logger
}

// New returns a Logger that prefixes every line with "[component] " and
// writes through out. A nil out falls back to log.Default().
func New(component string, out *log.Logger) *Logger {
	if out == nil {
		out = log.Default()
	}
	return &Logger{prefix: "[" + component + "] ", out: out}
}

// Default returns a Logger writing through log.Default().
func Default(component string) *Logger {
	return New(component, nil)
}

func (l *Logger) Debugf(format string, args ...any) { l.out.Print(l.prefix + "DEBUG " + fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.out.Print(l.prefix + fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.out.Print(l.prefix + "WARN " + fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.out.Print(l.prefix + "ERROR " + fmt.Sprintf(format, args...)) }
