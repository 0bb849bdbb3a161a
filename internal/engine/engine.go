package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bamsammich/treehash/internal/event"
	"github.com/bamsammich/treehash/internal/filter"
	"github.com/bamsammich/treehash/internal/stats"
)

// Config describes one fingerprinting run.
type Config struct {
	Root string
	// Workers is the concurrency limit N. Zero means runtime.NumCPU().
	Workers        int
	ExcludeDirs    []string
	Filter         *filter.Chain
	FollowSymlinks bool
	Algorithm      Algorithm
	ChunkSize      int
	Policy         Policy
	// BWLimit caps aggregate read throughput in bytes/sec. Zero is unlimited.
	BWLimit int64
	Open    OpenFunc
	Events  chan<- event.Event
	Stats   *stats.Collector
	Logger  *slog.Logger
}

// Result is the outcome of a run. On a fatal error Digests is nil.
type Result struct {
	// Digests maps root-relative slash-separated paths to their results.
	Digests map[string]HashResult
	// ScanErrors lists subdirectories that could not be read under
	// PolicyIsolate. Files below them were not discovered.
	ScanErrors []error
	Algorithm  Algorithm
	Stats      stats.Snapshot
	Err        error
}

// Failed returns the number of failure entries in Digests.
func (r Result) Failed() int {
	n := 0
	for _, d := range r.Digests {
		if !d.OK() {
			n++
		}
	}
	return n
}

// ComputeTreeDigests hashes every regular file under root with SHA-256
// using at most concurrencyLimit concurrent reads, skipping directories named
// in excludedDirNames (nil selects DefaultExcludeDirs).
//
// Per-file failures are isolated: they appear in the returned mapping as
// failure results and do not affect other files. A missing or unreadable
// root, or cancellation of ctx, returns a nil mapping and an error.
//
// If a subdirectory below root cannot be read, the files that were reachable
// are still returned, together with an *IncompleteTreeError naming every
// directory that was skipped. Callers that accept a partial tree can check
// for it with errors.As.
func ComputeTreeDigests(
	ctx context.Context,
	root string,
	concurrencyLimit int,
	excludedDirNames []string,
) (map[string]HashResult, error) {
	res := Run(ctx, Config{
		Root:        root,
		Workers:     concurrencyLimit,
		ExcludeDirs: excludedDirNames,
		Policy:      PolicyIsolate,
	})
	if res.Err != nil {
		return nil, res.Err
	}
	if len(res.ScanErrors) > 0 {
		return res.Digests, &IncompleteTreeError{Skipped: res.ScanErrors}
	}
	return res.Digests, nil
}

// Run discovers and hashes every regular file under cfg.Root, blocking until
// all files have a result or the run aborts.
//
//nolint:gocyclo // orchestrates scanner, pool and policy handling
func Run(ctx context.Context, cfg Config) Result {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	algo := cfg.Algorithm
	if algo == "" {
		algo = SHA256
	}
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	if err := CheckRoot(cfg.Root); err != nil {
		return Result{Algorithm: algo, Err: err}
	}

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)

	pool := NewHasherPool(PoolConfig{
		Workers:   cfg.Workers,
		Algorithm: algo,
		ChunkSize: cfg.ChunkSize,
		Policy:    cfg.Policy,
		Open:      cfg.Open,
		Limiter:   NewReadLimiter(cfg.BWLimit),
		Events:    cfg.Events,
		Stats:     collector,
		Logger:    log,
		OnAbort:   cancelRun,
	})

	log.Debug("run started",
		"root", cfg.Root,
		"workers", pool.Workers(),
		"algorithm", string(algo),
		"policy", cfg.Policy.String(),
	)
	start := time.Now()
	emitEvent(cfg.Events, event.Event{Type: event.ScanStarted, Path: cfg.Root})

	scanner := NewScanner(ScannerConfig{
		Root:           cfg.Root,
		ExcludeDirs:    cfg.ExcludeDirs,
		Filter:         cfg.Filter,
		FollowSymlinks: cfg.FollowSymlinks,
	})
	found, scanErrs := scanner.Scan(runCtx)

	// Count discoveries on their way to the pool. discovered is read only
	// after the pool returns, which happens after entries is closed.
	var discovered int64
	entries := make(chan FileEntry, 64)
	go func() {
		defer close(entries)
		var bytes int64
		for e := range found {
			discovered++
			bytes += e.Size
			collector.AddFilesDiscovered(1)
			collector.AddBytesTotal(e.Size)
			entries <- e
		}
		emitEvent(cfg.Events, event.Event{
			Type:      event.ScanComplete,
			Total:     discovered,
			TotalSize: bytes,
		})
	}()

	var (
		dirErrs   []error
		scanFatal error
		scanDone  = make(chan struct{})
	)
	go func() {
		defer close(scanDone)
		for err := range scanErrs {
			emitEvent(cfg.Events, event.Event{Type: event.ScanError, Error: err})
			if cfg.Policy == PolicyFailFast {
				if scanFatal == nil {
					scanFatal = err
					cancelRun(err)
				}
				continue
			}
			log.Warn("directory unreadable", "error", err)
			dirErrs = append(dirErrs, err)
		}
	}()

	agg := NewAggregator(256)
	poolErr := pool.Run(runCtx, entries, agg)
	<-scanDone

	snap := collector.Snapshot()
	switch {
	case ctx.Err() != nil:
		return Result{Algorithm: algo, Stats: snap, Err: fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())}
	case scanFatal != nil:
		return Result{Algorithm: algo, Stats: snap, Err: scanFatal}
	case poolErr != nil:
		return Result{Algorithm: algo, Stats: snap, Err: poolErr}
	}

	if int64(agg.Len()) != discovered {
		return Result{Algorithm: algo, Stats: snap, Err: fmt.Errorf(
			"internal: %d files discovered but %d results recorded", discovered, agg.Len())}
	}

	log.Debug("run complete", "stats", snap.String(), "elapsed", time.Since(start))

	return Result{
		Digests:    agg.Results(),
		ScanErrors: dirErrs,
		Algorithm:  algo,
		Stats:      snap,
	}
}

func emitEvent(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
