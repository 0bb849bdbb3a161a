package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/treehash/internal/stats"
)

const plainProgressInterval = 5 * time.Second

// plainPresenter writes failures as they happen and a progress line every
// few seconds. It is used when stderr is not a terminal.
type plainPresenter struct {
	w       io.Writer
	stats   *stats.Collector
	verbose bool
	total   int64
}

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var ticks int
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			ticks++
			if ticks%int(plainProgressInterval/time.Second) == 0 {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case ScanComplete:
		p.total = ev.Total
		if p.verbose {
			fmt.Fprintf(p.w, "discovered %s files (%s)\n", FormatCount(ev.Total), FormatBytes(ev.TotalSize))
		}
	case ScanError:
		fmt.Fprintf(p.w, "skipped directory: %v\n", ev.Error)
	case FileFailed:
		msg := "error"
		if ev.Error != nil {
			msg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "failed: %s\n", msg)
	case FileHashed:
		if p.verbose {
			fmt.Fprintf(p.w, "hashed: %s (%s)\n", ev.Path, FormatBytes(ev.Size))
		}
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	done := snap.FilesHashed + snap.FilesFailed
	speed := FormatRate(p.stats.RollingSpeed(5))
	if p.total > 0 {
		fmt.Fprintf(p.w, "progress: %s/%s files %s %s\n",
			FormatCount(done), FormatCount(p.total), FormatBytes(snap.BytesHashed), speed)
		return
	}
	fmt.Fprintf(p.w, "progress: %s files %s %s\n",
		FormatCount(done), FormatBytes(snap.BytesHashed), speed)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
