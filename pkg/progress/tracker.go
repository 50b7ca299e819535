// Package progress reports extraction throughput while a run is in flight.
package progress

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultInterval is how often a running Tracker logs.
const DefaultInterval = time.Second

// Tracker counts finished entries and written bytes. A nil *Tracker is
// valid and records nothing.
type Tracker struct {
	logger   *slog.Logger
	interval time.Duration

	entries atomic.Uint64
	bytes   atomic.Uint64
	total   atomic.Uint64

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
	started time.Time
}

// New returns a Tracker that logs to logger every interval once started.
func New(logger *slog.Logger, interval time.Duration) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{logger: logger, interval: interval}
}

// Start resets the counters and begins periodic logging for a run of
// total entries. Starting a running Tracker only resets the total.
func (t *Tracker) Start(total uint64) {
	if t == nil {
		return
	}
	t.total.Store(total)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return
	}
	t.entries.Store(0)
	t.bytes.Store(0)
	t.started = time.Now()
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})
	go t.run(t.done, t.stopped)
}

// Stop ends periodic logging and logs a final summary.
func (t *Tracker) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	done, stopped := t.done, t.stopped
	t.done, t.stopped = nil, nil
	t.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	<-stopped
}

// EntryDone records one finished entry regardless of outcome.
func (t *Tracker) EntryDone() {
	if t != nil {
		t.entries.Add(1)
	}
}

// AddBytes records n bytes written.
func (t *Tracker) AddBytes(n uint64) {
	if t != nil && n > 0 {
		t.bytes.Add(n)
	}
}

// Entries returns the number of finished entries.
func (t *Tracker) Entries() uint64 {
	if t == nil {
		return 0
	}
	return t.entries.Load()
}

// Bytes returns the number of bytes written.
func (t *Tracker) Bytes() uint64 {
	if t == nil {
		return 0
	}
	return t.bytes.Load()
}

func (t *Tracker) run(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var prevBytes uint64
	prevTick := time.Now()
	for {
		select {
		case now := <-ticker.C:
			cur := t.bytes.Load()
			secs := now.Sub(prevTick).Seconds()
			var rate uint64
			if secs > 0 {
				rate = uint64(float64(cur-prevBytes) / secs)
			}
			prevBytes, prevTick = cur, now

			total := t.total.Load()
			finished := t.entries.Load()
			var pct float64
			if total > 0 {
				pct = float64(finished) / float64(total) * 100
			}
			t.logger.Info("extracting",
				"entries", finished,
				"total", total,
				"percent", int(pct),
				"written", humanize.Bytes(cur),
				"rate", humanize.Bytes(rate)+"/s")
		case <-done:
			elapsed := time.Since(t.started)
			cur := t.bytes.Load()
			var avg uint64
			if s := elapsed.Seconds(); s > 0 {
				avg = uint64(float64(cur) / s)
			}
			t.logger.Info("extraction finished",
				"entries", t.entries.Load(),
				"written", humanize.Bytes(cur),
				"elapsed", elapsed.Round(time.Millisecond),
				"avg_rate", humanize.Bytes(avg)+"/s")
			return
		}
	}
}

// Writer counts bytes written through it
type Writer struct {
	W       io.Writer
	Tracker *Tracker
}

// Write implements io.Writer and tracks bytes written
func (pw *Writer) Write(p []byte) (n int, err error) {
	n, err = pw.W.Write(p)
	if n > 0 {
		pw.Tracker.AddBytes(uint64(n))
	}
	return
}
