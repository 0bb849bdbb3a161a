package ui

import (
	"strconv"
	"strings"

	"github.com/bamsammich/treehash/internal/stats"
)

// CompletionSummary is the one-line footer printed after a run, e.g.
//
//	done ✓  files 48,917  size 2.1 GiB  avg 641 MB/s  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	mark := "✓"
	if snap.FilesFailed > 0 {
		mark = "✗"
	}
	var avg float64
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		avg = float64(snap.BytesHashed) / secs
	}
	return strings.Join([]string{
		"done " + mark,
		"files " + FormatCount(snap.FilesHashed),
		"size " + FormatBytes(snap.BytesHashed),
		"avg " + FormatRate(avg),
		"time " + FormatDuration(snap.Elapsed),
		"errors " + strconv.FormatInt(snap.FilesFailed, 10),
	}, "  ")
}
