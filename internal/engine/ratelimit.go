package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxReadBurst bounds how many bytes one read may consume from the bucket.
const maxReadBurst = 1 << 20

// NewReadLimiter returns a token bucket shared by every hash worker so that
// their combined reads stay under bytesPerSec. It returns nil (unlimited)
// when bytesPerSec is not positive.
func NewReadLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int(min(bytesPerSec, maxReadBurst))
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// throttledReader charges every byte read against a shared limiter.
type throttledReader struct {
	ctx context.Context
	src io.Reader
	lim *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	// WaitN rejects requests above the burst.
	if burst := t.lim.Burst(); burst > 0 && len(p) > burst {
		p = p[:burst]
	}
	n, err := t.src.Read(p)
	if n == 0 {
		return 0, err
	}
	if werr := t.lim.WaitN(t.ctx, n); werr != nil {
		return n, werr
	}
	return n, err
}
