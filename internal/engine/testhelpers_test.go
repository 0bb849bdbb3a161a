package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeTree creates each relative path under root with the given content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// scanAll runs a scanner to completion and returns everything it produced.
func scanAll(t *testing.T, ctx context.Context, cfg ScannerConfig) ([]FileEntry, []error) {
	t.Helper()
	entries, errs := NewScanner(cfg).Scan(ctx)

	var (
		errList []error
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		for err := range errs {
			errList = append(errList, err)
		}
	}()

	var found []FileEntry
	for e := range entries {
		found = append(found, e)
	}
	<-done
	return found, errList
}

func relPaths(entries []FileEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.RelPath)
	}
	return out
}

// openCounter wraps openFile and records how many files are open at once.
// Each read sleeps briefly so workers overlap.
type openCounter struct {
	open atomic.Int64
	peak atomic.Int64
	hold time.Duration
}

func (c *openCounter) Open(path string) (io.ReadCloser, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, err
	}
	cur := c.open.Add(1)
	for {
		p := c.peak.Load()
		if cur <= p || c.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if c.hold > 0 {
		time.Sleep(c.hold)
	}
	return &countedFile{ReadCloser: rc, c: c}, nil
}

type countedFile struct {
	io.ReadCloser
	c    *openCounter
	once sync.Once
}

func (f *countedFile) Close() error {
	f.once.Do(func() { f.c.open.Add(-1) })
	return f.ReadCloser.Close()
}

// blockingReader never returns until ctx is done.
type blockingReader struct {
	ctx context.Context
}

func (b blockingReader) Read([]byte) (int, error) {
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func (blockingReader) Close() error { return nil }
