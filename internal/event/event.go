package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	ScanComplete
	ScanError
	FileStarted
	FileHashed
	FileFailed
)

var typeNames = [...]string{
	ScanStarted:  "ScanStarted",
	ScanComplete: "ScanComplete",
	ScanError:    "ScanError",
	FileStarted:  "FileStarted",
	FileHashed:   "FileHashed",
	FileFailed:   "FileFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event is a single progress notification from the engine. Sends are
// non-blocking, so a slow consumer may miss events.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // root-relative
	Digest    string // FileHashed only
	Size      int64  // bytes read
	Total     int64  // files discovered (ScanComplete)
	TotalSize int64  // bytes discovered (ScanComplete)
	Error     error
	WorkerID  int
}
