package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/time/rate"

	"github.com/bamsammich/treehash/internal/platform"
)

// DefaultChunkSize is the read size used when streaming a file into the hash.
const DefaultChunkSize = 8 * 1024

// Algorithm names a digest function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
	// XXH64 is not cryptographic. It is only suitable for change detection.
	XXH64 Algorithm = "xxh64"
)

// Algorithms lists the supported digest functions.
var Algorithms = []Algorithm{SHA256, BLAKE3, XXH64}

// ParseAlgorithm validates an algorithm name. Empty selects SHA256.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return SHA256, nil
	}
	for _, a := range Algorithms {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown hash algorithm %q (use sha256, blake3 or xxh64)", s)
}

// New returns a fresh hash accumulator for a.
func (a Algorithm) New() hash.Hash {
	switch a {
	case BLAKE3:
		return blake3.New()
	case XXH64:
		return xxhash.New()
	default:
		return sha256.New()
	}
}

// HexLen is the length of a hex-encoded digest produced by a.
func (a Algorithm) HexLen() int {
	return a.New().Size() * 2
}

// OpenFunc opens a file for hashing. Tests substitute it to observe how many
// files are open at once.
type OpenFunc func(path string) (io.ReadCloser, error)

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, errNotRegular
	}
	platform.AdviseSequential(f)
	return f, nil
}

// HashOptions controls a single streaming hash.
type HashOptions struct {
	Algorithm Algorithm
	ChunkSize int
	Open      OpenFunc
	Limiter   *rate.Limiter
	// Buf, when non-nil, is used as the read buffer instead of allocating one.
	Buf []byte
}

// HashFile streams the file at path through the configured hash in fixed-size
// chunks and returns the hex digest and the number of bytes read. Peak memory
// is one chunk regardless of file size. Cancelling ctx abandons the read.
func HashFile(ctx context.Context, path string, opts HashOptions) (string, int64, error) {
	open := opts.Open
	if open == nil {
		open = openFile
	}
	buf := opts.Buf
	if buf == nil {
		size := opts.ChunkSize
		if size <= 0 {
			size = DefaultChunkSize
		}
		buf = make([]byte, size)
	}

	rc, err := open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer rc.Close()

	var r io.Reader = &ctxReader{ctx: ctx, r: rc}
	if opts.Limiter != nil {
		r = &throttledReader{ctx: ctx, src: r, lim: opts.Limiter}
	}

	h := opts.Algorithm.New()
	n, err := io.CopyBuffer(h, onlyReader{r}, buf)
	if err != nil {
		return "", n, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ctxReader fails the next Read once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// onlyReader hides any WriterTo so io.CopyBuffer always reads through buf.
type onlyReader struct {
	io.Reader
}
