package main

import (
	"io"
	"strings"

	"github.com/gocrud/injectgen/config"
	"github.com/gocrud/injectgen/logging"
)

// newLogger builds the process logger. The returned func flushes and closes
// the log file, if any.
func newLogger(s config.LoggingSettings, out io.Writer) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(s.Level)
	if err != nil {
		return nil, nil, err
	}
	json := strings.EqualFold(s.Format, "json")
	b := logging.NewLoggingBuilder().SetMinimumLevel(level).UseJSON(json)
	b.AddConsole(logging.ConsoleLoggerOptions{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
		ColorOutput:      false,
		JSON:             json,
		Output:           out,
	})

	closeFile := func() {}
	if s.File != "" {
		file := logging.NewFileLoggerProvider(logging.FileLoggerOptions{Path: s.File, JSON: json})
		b.AddProvider(file)
		closeFile = func() { _ = file.Close() }
	}
	return b.Build().CreateLogger("injectgen"), closeFile, nil
}
