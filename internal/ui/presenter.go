package ui

import (
	"io"

	"github.com/bamsammich/treehash/internal/stats"
)

// Presenter consumes engine events and displays progress. Results themselves
// are written by ResultWriter once the run completes.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	ErrWriter  io.Writer
	Stats      *stats.Collector
	Workers    int
	Width      int
	IsTTY      bool
	Quiet      bool
	Verbose    bool
	NoProgress bool
}

// NewPresenter picks a presenter for the output environment.
//
//nolint:ireturn // presenter kind depends on the terminal
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return &plainPresenter{
			w:       cfg.ErrWriter,
			stats:   cfg.Stats,
			verbose: cfg.Verbose,
		}
	}
	width := cfg.Width
	if width <= 0 {
		width = 80
	}
	return &hudPresenter{
		w:       cfg.ErrWriter,
		stats:   cfg.Stats,
		workers: cfg.Workers,
		width:   width,
		busy:    make(map[int]bool),
	}
}
