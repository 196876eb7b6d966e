package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "registry",
		Message:  "table built",
		Fields:   []Field{{Key: "entries", Value: 3}},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	str := string(out)
	assert.Contains(t, str, "INFO")
	assert.Contains(t, str, "[registry]")
	assert.Contains(t, str, "table built")
	assert.Contains(t, str, "entries=3")
	assert.True(t, strings.HasSuffix(str, "\n"))
}

func TestJsonFormatter(t *testing.T) {
	f := NewJsonFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelWarn,
		Category: "lower",
		Message:  "hoisted",
		Fields:   []Field{{Key: "type", Value: "Db"}, {Key: "err", Value: errors.New("boom")}},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	var data map[string]any
	require.NoError(t, json.Unmarshal(out, &data))
	assert.Equal(t, "WARN", data["level"])
	assert.Equal(t, "lower", data["category"])
	fields := data["fields"].(map[string]any)
	assert.Equal(t, "Db", fields["type"])
	assert.Equal(t, "boom", fields["err"])
}

func TestAsyncWriter(t *testing.T) {
	writer := &syncWriter{}
	asyncWriter := NewAsyncWriter(writer, NewJsonFormatter(), 10)

	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "async"}
	for i := 0; i < 5; i++ {
		asyncWriter.WriteLog(entry)
	}
	require.NoError(t, asyncWriter.Close())

	lines := strings.Split(strings.TrimSpace(writer.String()), "\n")
	assert.Len(t, lines, 5)

	asyncWriter.WriteLog(entry)
	assert.EqualValues(t, 1, asyncWriter.Dropped())
	assert.NoError(t, asyncWriter.Close())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriter_ReportsFirstError(t *testing.T) {
	asyncWriter := NewAsyncWriter(failingWriter{}, NewTextFormatter(), 4)
	asyncWriter.WriteLog(&LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "lost"})
	err := asyncWriter.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestFileLoggerProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "injectgen.log")
	provider := NewFileLoggerProvider(FileLoggerOptions{Path: path, JSON: true, BufferSize: 2})
	provider.SetMinimumLevel(LogLevelDebug)

	log := provider.CreateLogger("watch")
	for i := 0; i < 10; i++ {
		log.Debug("planned", Field{Key: "n", Value: i})
	}
	require.NoError(t, provider.Close())
	log.Info("after close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 10)
	var last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[9]), &last))
	assert.Equal(t, "watch", last["category"])
	assert.Equal(t, "planned", last["msg"])
	assert.NotContains(t, string(data), "after close")

	require.NoError(t, provider.Close(), "closing twice is harmless")
}

func TestFactory_LevelsAndCategories(t *testing.T) {
	var buf syncWriter
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelDebug).
		AddConsole(ConsoleLoggerOptions{Output: &buf}).
		Build()

	log := factory.CreateLogger("resolve").WithFields(Field{Key: "root", Value: "A"})
	log.Trace("hidden")
	log.Debug("visible")
	log.WithCategory("lower").Info("other")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "DEBUG [resolve] visible {root=A}")
	assert.Contains(t, out, "INFO [lower] other {root=A}")
}

func TestWithFieldsDoesNotAlias(t *testing.T) {
	var buf syncWriter
	base := NewLoggingBuilder().AddConsole(ConsoleLoggerOptions{Output: &buf}).Build().
		CreateLogger("x").WithFields(Field{Key: "a", Value: 1})
	first := base.WithFields(Field{Key: "b", Value: 2})
	second := base.WithFields(Field{Key: "c", Value: 3})
	first.Info("one")
	second.Info("two")

	out := buf.String()
	assert.Contains(t, out, "one {a=1, b=2}")
	assert.Contains(t, out, "two {a=1, c=3}")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestNop(t *testing.T) {
	log := Nop().WithCategory("x").WithFields(Field{Key: "k", Value: 1})
	assert.NotPanics(t, func() { log.Info("ignored") })
}

type syncWriter struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func BenchmarkAsyncLogging(b *testing.B) {
	asyncWriter := NewAsyncWriter(io.Discard, NewTextFormatter(), 10000)
	defer asyncWriter.Close()

	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "bench"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		asyncWriter.WriteLog(entry)
	}
}
