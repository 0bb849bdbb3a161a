package ui

import "github.com/bamsammich/treehash/internal/event"

// Event is re-exported so presenters read like the engine's vocabulary.
type Event = event.Event

const (
	ScanStarted  = event.ScanStarted
	ScanComplete = event.ScanComplete
	ScanError    = event.ScanError
	FileStarted  = event.FileStarted
	FileHashed   = event.FileHashed
	FileFailed   = event.FileFailed
)
