package logging

import (
	"errors"
	"os"
	"sync"
)

var ErrUnknownLevel = errors.New("unknown log level")

// LoggingBuilder assembles a LoggerFactory from providers.
type LoggingBuilder struct {
	providers    []LoggerProvider
	minimumLevel LogLevel
	json         bool
	mu           sync.RWMutex
}

func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{minimumLevel: LogLevelInfo}
}

func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumLevel = level
	return b
}

// UseJSON makes providers added afterwards with default options emit JSON.
func (b *LoggingBuilder) UseJSON(on bool) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.json = on
	return b
}

func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	provider.SetMinimumLevel(b.minimumLevel)
	b.providers = append(b.providers, provider)
	return b
}

// AddConsole adds a console provider. Without options it writes colored text,
// or JSON after UseJSON(true), to stdout.
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	b.mu.RLock()
	opts := ConsoleLoggerOptions{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
		ColorOutput:      !b.json,
		JSON:             b.json,
		Output:           os.Stdout,
	}
	b.mu.RUnlock()
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewConsoleLoggerProvider(opts))
}

// AddFile adds a file provider appending to path.
func (b *LoggingBuilder) AddFile(path string, options ...FileLoggerOptions) *LoggingBuilder {
	b.mu.RLock()
	opts := FileLoggerOptions{Path: path, JSON: b.json}
	b.mu.RUnlock()
	if len(options) > 0 {
		opts = options[0]
		opts.Path = path
	}
	return b.AddProvider(NewFileLoggerProvider(opts))
}

func (b *LoggingBuilder) Build() LoggerFactory {
	b.mu.RLock()
	defer b.mu.RUnlock()

	factory := &loggerFactory{minimumLevel: b.minimumLevel}
	for _, provider := range b.providers {
		factory.AddProvider(provider)
	}
	return factory
}

// NewLogger returns a console logger at info level.
func NewLogger() Logger {
	return NewLoggingBuilder().AddConsole().Build().CreateLogger("injectgen")
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Trace(string, ...Field)         {}
func (nopLogger) Debug(string, ...Field)         {}
func (nopLogger) Info(string, ...Field)          {}
func (nopLogger) Warn(string, ...Field)          {}
func (nopLogger) Error(string, ...Field)         {}
func (nopLogger) Fatal(string, ...Field)         { os.Exit(1) }
func (nopLogger) Log(LogLevel, string, ...Field) {}
func (n nopLogger) WithFields(...Field) Logger   { return n }
func (n nopLogger) WithCategory(string) Logger   { return n }
