package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bamsammich/treehash/internal/event"
	"github.com/bamsammich/treehash/internal/stats"
)

// PoolConfig controls hasher pool behavior.
type PoolConfig struct {
	Workers   int
	Algorithm Algorithm
	ChunkSize int
	Policy    Policy
	Open      OpenFunc
	Limiter   *rate.Limiter
	Events    chan<- event.Event
	Stats     *stats.Collector
	Logger    *slog.Logger
	// OnAbort, if set, is called once with the fatal error under
	// PolicyFailFast so the producer feeding entries can stop too.
	OnAbort func(error)
}

// HasherPool hashes discovered files on a fixed number of workers. Each
// worker holds at most one open file, so open descriptors never exceed
// Workers.
type HasherPool struct {
	cfg  PoolConfig
	bufs sync.Pool
	log  *slog.Logger
}

// NewHasherPool creates a pool, filling in defaults for unset fields.
func NewHasherPool(cfg PoolConfig) *HasherPool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = SHA256
	}
	if cfg.Open == nil {
		cfg.Open = openFile
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	size := cfg.ChunkSize
	p := &HasherPool{cfg: cfg, log: log}
	p.bufs.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Workers returns the effective concurrency limit.
func (p *HasherPool) Workers() int {
	return p.cfg.Workers
}

// Run hashes every entry received from entries and records one result per
// entry in agg. It blocks until entries is closed and every in-flight hash
// has finished.
//
// Under PolicyIsolate a failing file becomes a failure result and its
// siblings keep going. Under PolicyFailFast the first failure cancels the
// remaining work and is returned. If ctx is cancelled, in-flight reads are
// abandoned, no partial results are recorded, and an error wrapping
// ErrCanceled is returned. Entries are always drained so the producer never
// blocks.
func (p *HasherPool) Run(ctx context.Context, entries <-chan FileEntry, agg *Aggregator) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		fatalOnce sync.Once
		fatal     error
	)
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatal = err
			cancel(err)
			if p.cfg.OnAbort != nil {
				p.cfg.OnAbort(err)
			}
		})
	}

	var wg sync.WaitGroup
	for id := range p.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range entries {
				if runCtx.Err() != nil {
					continue
				}
				p.hashOne(runCtx, id, entry, agg, abort)
			}
		}()
	}
	wg.Wait()

	if fatal != nil {
		return fatal
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return nil
}

func (p *HasherPool) hashOne(
	ctx context.Context,
	workerID int,
	entry FileEntry,
	agg *Aggregator,
	abort func(error),
) {
	st := p.cfg.Stats
	st.StartFile()
	emitEvent(p.cfg.Events, event.Event{
		Type:     event.FileStarted,
		Path:     entry.RelPath,
		Size:     entry.Size,
		WorkerID: workerID,
	})

	bufp := p.bufs.Get().(*[]byte) //nolint:forcetypeassert // pool only holds *[]byte
	digest, n, err := HashFile(ctx, entry.Path, HashOptions{
		Algorithm: p.cfg.Algorithm,
		Open:      p.cfg.Open,
		Limiter:   p.cfg.Limiter,
		Buf:       *bufp,
	})
	p.bufs.Put(bufp)
	st.FinishFile()
	st.AddBytesHashed(n)

	if err != nil {
		if ctx.Err() != nil {
			// Abandoned mid-read; the run as a whole reports the cancellation.
			return
		}
		fre := newFileReadError(entry.RelPath, err)
		if p.cfg.Policy == PolicyFailFast {
			abort(fre)
			return
		}
		agg.Add(HashResult{Path: entry.RelPath, Size: entry.Size, Err: fre})
		st.AddFilesFailed(1)
		p.log.Warn("hash failed", "path", entry.RelPath, "kind", fre.Kind.String(), "error", err)
		emitEvent(p.cfg.Events, event.Event{
			Type:     event.FileFailed,
			Path:     entry.RelPath,
			Size:     n,
			Error:    fre,
			WorkerID: workerID,
		})
		return
	}

	agg.Add(HashResult{Path: entry.RelPath, Digest: digest, Size: n})
	st.AddFilesHashed(1)
	emitEvent(p.cfg.Events, event.Event{
		Type:     event.FileHashed,
		Path:     entry.RelPath,
		Size:     n,
		Digest:   digest,
		WorkerID: workerID,
	})
}
