package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// maxBatch bounds how many formatted bytes are gathered before a Write.
const maxBatch = 64 << 10

// AsyncWriter queues entries for a goroutine that formats them and writes
// whatever has accumulated with a single Write. Entries logged after Close
// are dropped and counted.
type AsyncWriter struct {
	out       io.Writer
	formatter Formatter
	queue     chan *LogEntry
	done      chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64

	// err is the first failure; read only after done is closed.
	err error
}

// NewAsyncWriter starts a writer whose queue holds capacity entries.
func NewAsyncWriter(out io.Writer, formatter Formatter, capacity int) *AsyncWriter {
	if capacity < 1 {
		capacity = 1
	}
	w := &AsyncWriter{
		out:       out,
		formatter: formatter,
		queue:     make(chan *LogEntry, capacity),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// WriteLog queues entry, blocking while the queue is full.
func (w *AsyncWriter) WriteLog(entry *LogEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	w.queue <- entry
}

// Close writes everything queued and returns the first format or write
// error. It is safe to call more than once.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.err
}

// Dropped is the number of entries logged after Close.
func (w *AsyncWriter) Dropped() int64 { return w.dropped.Load() }

func (w *AsyncWriter) run() {
	defer close(w.done)
	batch := GlobalBufferPool.Get()
	defer GlobalBufferPool.Put(batch)

	for entry := range w.queue {
		w.add(batch, entry)
	gather:
		for batch.Len() < maxBatch {
			select {
			case next, ok := <-w.queue:
				if !ok {
					break gather
				}
				w.add(batch, next)
			default:
				break gather
			}
		}
		if batch.Len() == 0 {
			continue
		}
		if _, err := w.out.Write(batch.Bytes()); err != nil {
			w.fail(fmt.Errorf("write log batch: %w", err))
		}
		batch.Reset()
	}
}

func (w *AsyncWriter) add(batch *bytes.Buffer, entry *LogEntry) {
	data, err := w.formatter.Format(entry)
	if err != nil {
		w.fail(fmt.Errorf("format log entry: %w", err))
		return
	}
	batch.Write(withNewline(data))
}

// fail keeps the first error and reports it once on stderr, since the
// writer cannot log its own failures.
func (w *AsyncWriter) fail(err error) {
	if w.err != nil {
		return
	}
	w.err = err
	fmt.Fprintf(os.Stderr, "log writer: %v\n", err)
}

// BufferPool recycles formatting buffers.
type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool() *BufferPool {
	return &BufferPool{pool: sync.Pool{New: func() any { return new(bytes.Buffer) }}}
}

func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *BufferPool) Put(b *bytes.Buffer) {
	b.Reset()
	p.pool.Put(b)
}

// GlobalBufferPool is shared by the text formatter and the async writer.
var GlobalBufferPool = NewBufferPool()
