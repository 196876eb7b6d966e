package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// entryWriter receives formatted entries; AsyncWriter and syncEntryWriter
// implement it.
type entryWriter interface {
	WriteLog(entry *LogEntry)
}

// writerLogger formats entries and hands them to an entryWriter.
type writerLogger struct {
	out          entryWriter
	category     string
	minimumLevel func() LogLevel
	fields       []Field
}

func (l *writerLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *writerLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *writerLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *writerLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *writerLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *writerLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *writerLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.minimumLevel() {
		return
	}
	l.out.WriteLog(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *writerLogger) WithFields(fields ...Field) Logger {
	c := *l
	c.fields = mergeFields(l.fields, fields)
	return &c
}

func (l *writerLogger) WithCategory(category string) Logger {
	c := *l
	c.category = category
	return &c
}

// syncEntryWriter formats and writes inline under a mutex.
type syncEntryWriter struct {
	mu        sync.Mutex
	w         io.Writer
	formatter Formatter
}

func (s *syncEntryWriter) WriteLog(entry *LogEntry) {
	data, err := s.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log format error: %v\n", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(withNewline(data))
}

// levelHolder stores a provider's minimum level.
type levelHolder struct {
	mu    sync.RWMutex
	level LogLevel
}

func (h *levelHolder) get() LogLevel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.level
}

func (h *levelHolder) SetMinimumLevel(level LogLevel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// ConsoleLoggerOptions configures console output.
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	// JSON switches to the JSON formatter; the other options then only
	// control the timestamp layout.
	JSON   bool
	Output io.Writer
}

// ConsoleLoggerProvider writes synchronously to stdout or Output.
type ConsoleLoggerProvider struct {
	levelHolder
	out *syncEntryWriter
}

// NewConsoleLoggerProvider creates a console provider.
func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	var formatter Formatter
	if options.JSON {
		f := NewJsonFormatter()
		if options.TimestampFormat != "" {
			f.TimestampFormat = options.TimestampFormat
		}
		formatter = f
	} else {
		f := NewTextFormatter()
		f.IncludeTimestamp = options.IncludeTimestamp
		f.ColorOutput = options.ColorOutput
		if options.TimestampFormat != "" {
			f.TimestampFormat = options.TimestampFormat
		}
		formatter = f
	}
	return &ConsoleLoggerProvider{
		levelHolder: levelHolder{level: LogLevelInfo},
		out:         &syncEntryWriter{w: options.Output, formatter: formatter},
	}
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return &writerLogger{out: p.out, category: category, minimumLevel: p.get}
}

// FileLoggerOptions configures file output.
type FileLoggerOptions struct {
	Path       string
	JSON       bool
	BufferSize int
}

// FileLoggerProvider appends to a file through an AsyncWriter. The file is
// opened on first use.
type FileLoggerProvider struct {
	levelHolder
	options FileLoggerOptions
	mu      sync.Mutex
	file    *os.File
	writer  *AsyncWriter
}

// NewFileLoggerProvider creates a file provider.
func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	if options.BufferSize <= 0 {
		options.BufferSize = 1024
	}
	return &FileLoggerProvider{
		levelHolder: levelHolder{level: LogLevelInfo},
		options:     options,
	}
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			fallback := &syncEntryWriter{w: os.Stderr, formatter: NewTextFormatter()}
			return &writerLogger{out: fallback, category: category, minimumLevel: p.get}
		}
		var formatter Formatter = NewTextFormatter()
		if p.options.JSON {
			formatter = NewJsonFormatter()
		}
		p.file = file
		p.writer = NewAsyncWriter(file, formatter, p.options.BufferSize)
	}
	return &writerLogger{out: p.writer, category: category, minimumLevel: p.get}
}

// Close flushes pending entries and closes the file. Loggers created before
// Close drop what they log afterwards; the next CreateLogger reopens the file.
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := errors.Join(p.writer.Close(), p.file.Close())
	p.writer, p.file = nil, nil
	return err
}
