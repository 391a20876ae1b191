// Package logging is the leveled printf-style logger handed to every package.
// Backends plug in through LogFuncs; each package logger carries a module
// prefix.
package logging

import "fmt"

// Levels accepted by LogLevelf
const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

// LevelName returns the lowercase name of level
func LevelName(level int) string {
	if level < LogLevelDebug || level > LogLevelError {
		return fmt.Sprintf("level(%d)", level)
	}
	return levelNames[level]
}

type Logger interface {
	LogLevelf(level int, format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type LogLevelFunc func(level int, format string, args ...interface{})
type LogFunc func(format string, args ...interface{})

// LogFuncs is a backend. LogLevelf, when set, receives every level.
type LogFuncs struct {
	LogLevelf LogLevelFunc
	Debugf    LogFunc
	Infof     LogFunc
	Warnf     LogFunc
	Errorf    LogFunc
}

func (f LogFuncs) forLevel(level int) LogFunc {
	switch level {
	case LogLevelDebug:
		return f.Debugf
	case LogLevelInfo:
		return f.Infof
	case LogLevelWarn:
		return f.Warnf
	case LogLevelError:
		return f.Errorf
	}
	return nil
}

type logger struct {
	prefix string
	funcs  LogFuncs
}

func NewLogger(prefix string, funcs LogFuncs) Logger {
	return &logger{prefix: prefix, funcs: funcs}
}

// NewNopLogger discards everything
func NewNopLogger() Logger {
	return &logger{}
}

// ModulePrefix is the prefix every package logger carries
func ModulePrefix(module string) string {
	return fmt.Sprintf("module: %s, ", module)
}

// ForModule binds funcs to the prefix of module
func ForModule(module string, funcs LogFuncs) Logger {
	return NewLogger(ModulePrefix(module), funcs)
}

func (l *logger) LogLevelf(level int, format string, args ...interface{}) {
	format = l.prefix + format
	if l.funcs.LogLevelf != nil {
		l.funcs.LogLevelf(level, format, args...)
		return
	}
	if fn := l.funcs.forLevel(level); fn != nil {
		fn(format, args...)
	}
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.LogLevelf(LogLevelDebug, format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.LogLevelf(LogLevelInfo, format, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.LogLevelf(LogLevelWarn, format, args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.LogLevelf(LogLevelError, format, args...)
}
