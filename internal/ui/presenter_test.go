package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/treehash/internal/config"
	"github.com/bamsammich/treehash/internal/stats"
)

func configTheme(failure *string) config.ThemeConfig {
	return config.ThemeConfig{Failure: failure}
}

func TestNewPresenterSelection(t *testing.T) {
	c := stats.NewCollector()

	_, quiet := NewPresenter(Config{Quiet: true, Stats: c}).(*quietPresenter)
	assert.True(t, quiet)

	_, plain := NewPresenter(Config{IsTTY: false, Stats: c}).(*plainPresenter)
	assert.True(t, plain)

	_, plainNoProgress := NewPresenter(Config{IsTTY: true, NoProgress: true, Stats: c}).(*plainPresenter)
	assert.True(t, plainNoProgress)

	_, hud := NewPresenter(Config{IsTTY: true, Stats: c, Workers: 4}).(*hudPresenter)
	assert.True(t, hud)
}

func TestPlainPresenterFailures(t *testing.T) {
	var out bytes.Buffer
	p := &plainPresenter{w: &out, stats: stats.NewCollector()}

	events := make(chan Event, 4)
	events <- Event{Type: FileHashed, Path: "ok.txt", Size: 10}
	events <- Event{Type: FileFailed, Path: "bad.txt", Error: assert.AnError}
	events <- Event{Type: ScanError, Error: assert.AnError}
	close(events)

	require.NoError(t, p.Run(events))
	assert.Contains(t, out.String(), "failed: "+assert.AnError.Error())
	assert.Contains(t, out.String(), "skipped directory")
	assert.NotContains(t, out.String(), "ok.txt")
}

func TestPlainPresenterVerbose(t *testing.T) {
	var out bytes.Buffer
	p := &plainPresenter{w: &out, stats: stats.NewCollector(), verbose: true}

	events := make(chan Event, 2)
	events <- Event{Type: ScanComplete, Total: 1200, TotalSize: 2048}
	events <- Event{Type: FileHashed, Path: "ok.txt", Size: 10}
	close(events)

	require.NoError(t, p.Run(events))
	assert.Contains(t, out.String(), "discovered 1,200 files (2.0 KiB)")
	assert.Contains(t, out.String(), "hashed: ok.txt")
}

func TestHUDPresenterDrawsAndClears(t *testing.T) {
	var out bytes.Buffer
	h := &hudPresenter{w: &out, stats: stats.NewCollector(), workers: 2, width: 80, busy: map[int]bool{}}

	events := make(chan Event, 4)
	events <- Event{Type: ScanComplete, Total: 2}
	events <- Event{Type: FileStarted, Path: "a.txt", WorkerID: 0}
	events <- Event{Type: FileFailed, Path: "a.txt", WorkerID: 0, Error: assert.AnError}
	close(events)

	require.NoError(t, h.Run(events))
	assert.Contains(t, out.String(), "failed: "+assert.AnError.Error())
	assert.False(t, h.drawn)
	assert.Empty(t, h.busy)
}

func TestQuietPresenterDrains(t *testing.T) {
	events := make(chan Event, 2)
	events <- Event{Type: FileHashed}
	events <- Event{Type: FileFailed}
	close(events)

	p := &quietPresenter{}
	require.NoError(t, p.Run(events))
	assert.Empty(t, p.Summary())
}

func TestCompletionSummary(t *testing.T) {
	ok := CompletionSummary(stats.Snapshot{FilesHashed: 1234, BytesHashed: 2048, Elapsed: 2 * time.Second})
	assert.Contains(t, ok, "done ✓")
	assert.Contains(t, ok, "files 1,234")
	assert.Contains(t, ok, "errors 0")

	failed := CompletionSummary(stats.Snapshot{FilesHashed: 1, FilesFailed: 2, Elapsed: time.Second})
	assert.Contains(t, failed, "done ✗")
	assert.Contains(t, failed, "errors 2")
}
