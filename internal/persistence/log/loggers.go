package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"beltway.ai/internal/sim/world"
)

// DefaultRotateEvery is the file period when none is configured.
const DefaultRotateEvery = time.Hour

// bucketLayout names files by the UTC start of their period; it sorts lexicographically.
const bucketLayout = "2006-01-02-1504"

// Option configures a JSONLZstdWriter.
type Option func(*JSONLZstdWriter)

// WithClock replaces the wall clock used to pick the current file.
func WithClock(now func() time.Time) Option {
	return func(w *JSONLZstdWriter) {
		if now != nil {
			w.now = now
		}
	}
}

// WithRotateEvery sets the file period. Periods under a minute are raised to one minute.
func WithRotateEvery(d time.Duration) Option {
	return func(w *JSONLZstdWriter) {
		if d <= 0 {
			return
		}
		if d < time.Minute {
			d = time.Minute
		}
		w.period = d
	}
}

// WithFlushEvery flushes the compressed stream after every n records instead of every record.
// Close and rotation always flush.
func WithFlushEvery(n int) Option {
	return func(w *JSONLZstdWriter) {
		if n > 0 {
			w.flushEvery = n
		}
	}
}

// JSONLZstdWriter appends one JSON document per line to a zstd stream, starting a new file for
// each clock period.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	now        func() time.Time
	period     time.Duration
	flushEvery int

	mu        sync.Mutex
	curBucket string
	pending   int
	records   uint64
	f         *os.File
	enc       *zstd.Encoder
	w         *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string, opts ...Option) *JSONLZstdWriter {
	w := &JSONLZstdWriter{
		baseDir:    baseDir,
		prefix:     prefix,
		now:        time.Now,
		period:     DefaultRotateEvery,
		flushEvery: 1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Records reports how many records were written since the writer was created.
func (w *JSONLZstdWriter) Records() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	bucket := w.now().UTC().Truncate(w.period).Format(bucketLayout)
	if bucket != w.curBucket || w.w == nil {
		if err := w.rotateLocked(bucket); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.records++
	w.pending++
	if w.pending < w.flushEvery {
		return nil
	}
	w.pending = 0
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(bucket string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathFor(bucket)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curBucket = bucket
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	w.pending = 0
	return err
}

func (w *JSONLZstdWriter) pathFor(bucket string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, bucket))
}

// TickLogger writes one entry per tick. Entries carry the commands applied at that tick, which
// is everything a replay needs.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string, opts ...Option) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "ticks"), "ticks", opts...)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Records() uint64                      { return l.w.Records() }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes audit entries.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string, opts ...Option) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "audit"), "audit", opts...)}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Records() uint64                     { return l.w.Records() }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
