package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"
)

// BenchmarkResult holds throughput measurements for one tree.
type BenchmarkResult struct {
	// ReadBytesPerSec is raw sequential read speed from the tree.
	ReadBytesPerSec float64
	// HashBytesPerSec is single-core digest speed for the chosen algorithm.
	HashBytesPerSec  float64
	SuggestedWorkers int
}

const (
	benchReadSize = 64 * 1024 * 1024
	benchHashSize = 16 * 1024 * 1024
)

// RunBenchmark measures read throughput on a file under root and the
// in-memory speed of algo, then suggests a worker count.
func RunBenchmark(ctx context.Context, root string, algo Algorithm) (BenchmarkResult, error) {
	var result BenchmarkResult

	readSpeed, err := benchRead(ctx, root)
	if err != nil {
		return result, fmt.Errorf("read benchmark: %w", err)
	}
	result.ReadBytesPerSec = readSpeed

	hashSpeed, err := benchHash(ctx, algo)
	if err != nil {
		return result, fmt.Errorf("hash benchmark: %w", err)
	}
	result.HashBytesPerSec = hashSpeed

	result.SuggestedWorkers = suggestWorkers(readSpeed, hashSpeed, runtime.NumCPU())
	return result, nil
}

var errStopScan = errors.New("stop")

// findBenchFile returns the first file under root at least benchReadSize
// long, or else the largest non-empty file seen.
func findBenchFile(ctx context.Context, root string) (string, error) {
	scanCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(errStopScan)

	entries, errs := NewScanner(ScannerConfig{Root: root}).Scan(scanCtx)
	go func() {
		for range errs {
		}
	}()

	var (
		target string
		best   int64
	)
	for e := range entries {
		if e.Size > best {
			target, best = e.Path, e.Size
		}
		if e.Size >= benchReadSize {
			cancel(errStopScan)
			break
		}
	}
	for range entries {
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if target == "" {
		return "", fmt.Errorf("no readable files in %s", root)
	}
	return target, nil
}

func benchRead(ctx context.Context, root string) (float64, error) {
	target, err := findBenchFile(ctx, root)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(target)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 1<<20)
	var total int64
	start := time.Now()
	for total < benchReadSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, readErr := f.Read(buf)
		total += int64(n)
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return 0, readErr
		}
	}
	return perSecond(total, time.Since(start)), nil
}

func benchHash(ctx context.Context, algo Algorithm) (float64, error) {
	buf := make([]byte, 1<<20)
	for i := range buf {
		buf[i] = byte(i)
	}

	h := algo.New()
	var total int64
	start := time.Now()
	for total < benchHashSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, _ := h.Write(buf)
		total += int64(n)
	}
	_ = h.Sum(nil)
	return perSecond(total, time.Since(start)), nil
}

func perSecond(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		elapsed = time.Microsecond
	}
	return float64(n) / elapsed.Seconds()
}

// suggestWorkers picks a concurrency limit from measured throughput. Slow
// storage gains little from parallel reads; fast storage is limited by how
// many cores can keep hashing.
func suggestWorkers(readBPS, hashBPS float64, cpus int) int {
	cpus = max(cpus, 1)

	var w int
	switch {
	case readBPS >= 2e9: // NVMe
		w = min(cpus*2, 32)
	case readBPS >= 200e6: // SSD
		w = min(cpus, 16)
	default: // HDD or network
		w = min(4, cpus)
	}

	// Storage outruns one core: give every core a worker.
	if hashBPS > 0 && readBPS > hashBPS {
		w = max(w, min(cpus, 32))
	}
	return max(w, 1)
}

// FormatBenchmark formats a BenchmarkResult for display.
func FormatBenchmark(r BenchmarkResult, algo Algorithm) string {
	return fmt.Sprintf("benchmark: read %s/s  %s %s/s per core  suggested workers %d",
		formatBytes(r.ReadBytesPerSec), algo, formatBytes(r.HashBytesPerSec), r.SuggestedWorkers)
}

func formatBytes(b float64) string {
	switch {
	case b >= 1e9:
		return fmt.Sprintf("%.1f GB", b/1e9)
	case b >= 1e6:
		return fmt.Sprintf("%.0f MB", b/1e6)
	case b >= 1e3:
		return fmt.Sprintf("%.0f KB", b/1e3)
	default:
		return fmt.Sprintf("%.0f B", b)
	}
}
