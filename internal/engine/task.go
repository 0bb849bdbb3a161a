package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// ErrCanceled is returned when the caller cancels a run before every
// discovered file produced a result.
var ErrCanceled = errors.New("run canceled")

// Policy selects how per-file failures propagate.
type Policy int

const (
	// PolicyIsolate records a failing file as a failure result and lets the
	// rest of the batch finish.
	PolicyIsolate Policy = iota
	// PolicyFailFast aborts the whole batch on the first failure and returns
	// no aggregation.
	PolicyFailFast
)

func (p Policy) String() string {
	switch p {
	case PolicyIsolate:
		return "isolate"
	case PolicyFailFast:
		return "fail-fast"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts "isolate" or "fail-fast" (also "failfast").
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "isolate":
		return PolicyIsolate, nil
	case "fail-fast", "failfast":
		return PolicyFailFast, nil
	default:
		return 0, fmt.Errorf("unknown error policy %q (use isolate or fail-fast)", s)
	}
}

// ErrorKind classifies a per-file failure.
type ErrorKind int

const (
	KindIO ErrorKind = iota
	KindNotFound
	KindPermission
	KindNotRegular
)

var kindNames = [...]string{
	KindIO:         "io",
	KindNotFound:   "not-found",
	KindPermission: "permission",
	KindNotRegular: "not-regular",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseErrorKind is the inverse of ErrorKind.String.
func ParseErrorKind(s string) (ErrorKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return ErrorKind(k), true
		}
	}
	return KindIO, false
}

// classify maps a filesystem error onto an ErrorKind.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, syscall.EISDIR), errors.Is(err, errNotRegular):
		return KindNotRegular
	default:
		return KindIO
	}
}

var errNotRegular = errors.New("not a regular file")

// TreeAccessError reports that the root, or a directory below it, could not
// be read.
type TreeAccessError struct {
	Path string
	Err  error
}

func (e *TreeAccessError) Error() string {
	return fmt.Sprintf("tree access %s: %v", e.Path, e.Err)
}

func (e *TreeAccessError) Unwrap() error { return e.Err }

// IncompleteTreeError reports that some subdirectories could not be read, so
// the files below them are missing from an otherwise complete result.
type IncompleteTreeError struct {
	Skipped []error // *TreeAccessError, one per unreadable directory
}

func (e *IncompleteTreeError) Error() string {
	msg := fmt.Sprintf("%d unreadable director", len(e.Skipped))
	if len(e.Skipped) == 1 {
		msg += "y"
	} else {
		msg += "ies"
	}
	if len(e.Skipped) > 0 {
		msg += ": " + e.Skipped[0].Error()
	}
	return msg
}

func (e *IncompleteTreeError) Unwrap() []error { return e.Skipped }

// FileReadError reports an open or read failure on a single file.
type FileReadError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

func newFileReadError(path string, err error) *FileReadError {
	return &FileReadError{Path: path, Kind: classify(err), Err: err}
}

// HashResult is the outcome for one discovered file. Exactly one of Digest
// or Err is set.
type HashResult struct {
	Path   string // root-relative, slash-separated
	Digest string // hex-encoded
	Size   int64
	Err    *FileReadError
}

// OK reports whether the file hashed successfully.
func (r HashResult) OK() bool {
	return r.Err == nil
}
