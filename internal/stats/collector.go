package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// windowLen is how many one-second throughput samples are retained.
const windowLen = 60

// Collector accumulates run counters. All Add and Start/Finish methods are
// safe for concurrent use by hash workers.
type Collector struct {
	discovered atomic.Int64
	hashed     atomic.Int64
	failed     atomic.Int64
	readBytes  atomic.Int64
	totalBytes atomic.Int64
	inFlight   atomic.Int64
	peak       atomic.Int64
	began      time.Time

	win throughputWindow
}

// throughputWindow holds per-second byte deltas, newest at head-1.
type throughputWindow struct {
	mu      sync.Mutex
	samples [windowLen]int64
	head    int
	filled  int
	prev    int64
}

func (w *throughputWindow) push(total int64) {
	w.mu.Lock()
	w.samples[w.head] = total - w.prev
	w.prev = total
	w.head = (w.head + 1) % windowLen
	w.filled = min(w.filled+1, windowLen)
	w.mu.Unlock()
}

func (w *throughputWindow) mean(n int) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n = min(n, w.filled)
	if n <= 0 {
		return 0
	}
	var sum int64
	idx := w.head
	for range n {
		idx = (idx - 1 + windowLen) % windowLen
		sum += w.samples[idx]
	}
	return float64(sum) / float64(n)
}

// NewCollector returns a Collector whose elapsed clock starts now.
func NewCollector() *Collector {
	return &Collector{began: time.Now()}
}

// Snapshot is a consistent-enough copy of the counters for display.
type Snapshot struct {
	FilesDiscovered int64
	FilesHashed     int64
	FilesFailed     int64
	BytesHashed     int64
	BytesTotal      int64
	InFlight        int64
	PeakInFlight    int64
	Elapsed         time.Duration
}

func (c *Collector) AddFilesDiscovered(n int64) { c.discovered.Add(n) }
func (c *Collector) AddFilesHashed(n int64)     { c.hashed.Add(n) }
func (c *Collector) AddFilesFailed(n int64)     { c.failed.Add(n) }
func (c *Collector) AddBytesHashed(n int64)     { c.readBytes.Add(n) }
func (c *Collector) AddBytesTotal(n int64)      { c.totalBytes.Add(n) }

// StartFile records that a worker opened a file. PeakInFlight only grows.
func (c *Collector) StartFile() {
	now := c.inFlight.Add(1)
	for seen := c.peak.Load(); now > seen; seen = c.peak.Load() {
		if c.peak.CompareAndSwap(seen, now) {
			return
		}
	}
}

// FinishFile records that a worker released its file handle.
func (c *Collector) FinishFile() { c.inFlight.Add(-1) }

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesDiscovered: c.discovered.Load(),
		FilesHashed:     c.hashed.Load(),
		FilesFailed:     c.failed.Load(),
		BytesHashed:     c.readBytes.Load(),
		BytesTotal:      c.totalBytes.Load(),
		InFlight:        c.inFlight.Load(),
		PeakInFlight:    c.peak.Load(),
		Elapsed:         c.Elapsed(),
	}
}

// Tick samples hashed bytes into the throughput window. Presenters call it
// once per second.
func (c *Collector) Tick() { c.win.push(c.readBytes.Load()) }

// RollingSpeed averages bytes/sec over the most recent ticks, up to seconds.
func (c *Collector) RollingSpeed(seconds int) float64 { return c.win.mean(seconds) }

func (c *Collector) Elapsed() time.Duration { return time.Since(c.began) }

// String renders the snapshot as key=value pairs for log lines.
func (s Snapshot) String() string {
	return fmt.Sprintf("files=%d/%d failed=%d read=%s peak_inflight=%d",
		s.FilesHashed, s.FilesDiscovered, s.FilesFailed, FormatBytes(s.BytesHashed), s.PeakInFlight)
}

var binaryUnits = [...]string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatBytes renders n using binary (1024-based) units.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	i := 0
	for v >= 1024 && i < len(binaryUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, binaryUnits[i])
}
