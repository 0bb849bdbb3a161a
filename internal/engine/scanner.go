package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/bamsammich/treehash/internal/filter"
)

// readDir lists one directory. Tests swap it to simulate unreadable
// subdirectories regardless of the uid running them.
var readDir = os.ReadDir

// DefaultExcludeDirs are skipped when ScannerConfig.ExcludeDirs is nil.
var DefaultExcludeDirs = []string{".git"}

// ScannerConfig controls discovery.
type ScannerConfig struct {
	Root string
	// ExcludeDirs names path components to drop: a matching directory is
	// pruned with its subtree and a matching file (a gitlink ".git" file,
	// say) is skipped. Nil means DefaultExcludeDirs; an empty non-nil slice
	// excludes nothing.
	ExcludeDirs    []string
	Filter         *filter.Chain
	FollowSymlinks bool
}

// FileEntry is one discovered regular file.
type FileEntry struct {
	Path    string // root joined
	RelPath string // root-relative, slash-separated
	Size    int64
}

// Scanner walks a directory tree on a single goroutine and emits every
// regular file below the root.
type Scanner struct {
	cfg     ScannerConfig
	exclude map[string]struct{}
	entries chan FileEntry
	errs    chan error
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScannerConfig) *Scanner {
	dirs := cfg.ExcludeDirs
	if dirs == nil {
		dirs = DefaultExcludeDirs
	}
	exclude := make(map[string]struct{}, len(dirs))
	for _, d := range dirs {
		if d != "" {
			exclude[d] = struct{}{}
		}
	}
	return &Scanner{
		cfg:     cfg,
		exclude: exclude,
		entries: make(chan FileEntry, 64),
		errs:    make(chan error, 8),
	}
}

// CheckRoot verifies that root exists and is a readable directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return &TreeAccessError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return &TreeAccessError{Path: root, Err: syscall.ENOTDIR}
	}
	f, err := os.Open(root)
	if err != nil {
		return &TreeAccessError{Path: root, Err: err}
	}
	defer f.Close()
	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return &TreeAccessError{Path: root, Err: err}
	}
	return nil
}

// Scan starts the walk and returns channels for entries and errors. Both
// close when the walk finishes; the caller must drain both. Errors are
// *TreeAccessError values for directories that could not be read.
func (s *Scanner) Scan(ctx context.Context) (<-chan FileEntry, <-chan error) {
	go func() {
		defer close(s.entries)
		defer close(s.errs)
		s.walk(ctx, s.cfg.Root, "")
	}()
	return s.entries, s.errs
}

func (s *Scanner) walk(ctx context.Context, dir, rel string) bool {
	entries, err := readDir(dir)
	if err != nil {
		return s.sendErr(ctx, &TreeAccessError{Path: dir, Err: err})
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return false
		}

		name := entry.Name()
		if _, skip := s.exclude[name]; skip {
			continue
		}
		path := filepath.Join(dir, name)
		relPath := name
		if rel != "" {
			relPath = rel + "/" + name
		}

		switch typ := entry.Type(); {
		case typ.IsDir():
			if s.cfg.Filter != nil && !s.cfg.Filter.Match(relPath, true) {
				continue
			}
			if !s.walk(ctx, path, relPath) {
				return false
			}

		case typ&os.ModeSymlink != 0:
			if !s.cfg.FollowSymlinks {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				// Dangling, or resolves to something other than a file.
				continue
			}
			if !s.emit(ctx, path, relPath, info.Size()) {
				return false
			}

		case typ.IsRegular():
			var size int64
			if info, err := entry.Info(); err == nil {
				size = info.Size()
			}
			if !s.emit(ctx, path, relPath, size) {
				return false
			}
		}
	}
	return true
}

func (s *Scanner) emit(ctx context.Context, path, relPath string, size int64) bool {
	if s.cfg.Filter != nil && !s.cfg.Filter.Match(relPath, false) {
		return true
	}
	select {
	case s.entries <- FileEntry{Path: path, RelPath: relPath, Size: size}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scanner) sendErr(ctx context.Context, err error) bool {
	select {
	case s.errs <- err:
		return true
	case <-ctx.Done():
		return false
	}
}

// Discover walks cfg.Root and returns every regular file. The first
// directory read failure is returned alongside whatever was found.
func Discover(ctx context.Context, cfg ScannerConfig) ([]FileEntry, error) {
	if err := CheckRoot(cfg.Root); err != nil {
		return nil, err
	}

	entries, errs := NewScanner(cfg).Scan(ctx)

	var (
		files    []FileEntry
		firstErr error
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		for err := range errs {
			if firstErr == nil {
				firstErr = err
			}
		}
	}()
	for e := range entries {
		files = append(files, e)
	}
	<-done

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return files, firstErr
}
