package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/treehash/internal/stats"
)

const (
	ansiClearLine = "\r\033[2K"
	hudRedraw     = 100 * time.Millisecond
)

// hudPresenter keeps a single status line at the bottom of a terminal and
// prints failures above it.
type hudPresenter struct {
	w        io.Writer
	stats    *stats.Collector
	workers  int
	width    int
	total    int64
	current  string
	busy     map[int]bool
	drawn    bool
	lastDraw time.Time
}

func (h *hudPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.clear()
				return nil
			}
			h.handleEvent(ev)
			if time.Since(h.lastDraw) >= hudRedraw {
				h.draw()
			}
		case <-ticker.C:
			h.stats.Tick()
			h.draw()
		}
	}
}

func (h *hudPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case ScanComplete:
		h.total = ev.Total
	case FileStarted:
		h.busy[ev.WorkerID] = true
		h.current = ev.Path
	case FileHashed:
		delete(h.busy, ev.WorkerID)
	case FileFailed:
		delete(h.busy, ev.WorkerID)
		h.above(fmt.Sprintf("failed: %v", ev.Error))
	case ScanError:
		h.above(fmt.Sprintf("skipped directory: %v", ev.Error))
	}
}

func (h *hudPresenter) above(line string) {
	h.clear()
	fmt.Fprintln(h.w, line)
	h.draw()
}

func (h *hudPresenter) clear() {
	if h.drawn {
		fmt.Fprint(h.w, ansiClearLine)
		h.drawn = false
	}
}

func (h *hudPresenter) draw() {
	snap := h.stats.Snapshot()
	done := snap.FilesHashed + snap.FilesFailed
	count := FormatCount(done)
	if h.total > 0 {
		count += "/" + FormatCount(h.total)
	}
	status := fmt.Sprintf("%s %s files  %s  %s  ",
		WorkerIndicator(len(h.busy), h.workers),
		count,
		FormatBytes(snap.BytesHashed),
		FormatRate(h.stats.RollingSpeed(5)),
	)
	room := h.width - len([]rune(status)) - 1
	line := status
	if room > 8 {
		line += truncateLeft(h.current, room)
	}
	fmt.Fprint(h.w, ansiClearLine+line)
	h.drawn = true
	h.lastDraw = time.Now()
}

func (h *hudPresenter) Summary() string {
	return CompletionSummary(h.stats.Snapshot())
}
