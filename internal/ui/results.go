package ui

import (
	"bufio"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/bamsammich/treehash/internal/engine"
)

// Format selects how results are written.
type Format string

const (
	// FormatPlain writes "path: digest" lines.
	FormatPlain Format = "plain"
	// FormatSum writes "digest  path" lines readable by sha256sum -c and
	// b3sum -c. Failures go to the error writer.
	FormatSum Format = "sum"
	// FormatJSON writes one JSON object per file.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. Empty selects FormatPlain.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatPlain, nil
	case FormatPlain, FormatSum, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (use plain, sum or json)", s)
	}
}

// ResultWriter serializes a finished run. Output is ordered by path.
type ResultWriter struct {
	w      io.Writer
	errW   io.Writer
	format Format
	styles Styles
	color  bool
}

// NewResultWriter writes results to w and, for FormatSum, failures to errW.
// When color is true failure lines are styled.
func NewResultWriter(w, errW io.Writer, format Format, styles Styles, color bool) *ResultWriter {
	if errW == nil {
		errW = w
	}
	return &ResultWriter{w: w, errW: errW, format: format, styles: styles, color: color}
}

type jsonRecord struct {
	Path      string `json:"path"`
	Digest    string `json:"digest,omitempty"`
	Algorithm string `json:"algorithm"`
	Size      int64  `json:"size"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Write emits every result in path order.
func (rw *ResultWriter) Write(algo engine.Algorithm, results map[string]engine.HashResult) error {
	out := bufio.NewWriter(rw.w)
	sorted := engine.SortResults(results)

	var err error
	switch rw.format {
	case FormatJSON:
		err = rw.writeJSON(out, algo, sorted)
	case FormatSum:
		err = rw.writeSum(out, sorted)
	default:
		err = rw.writePlain(out, sorted)
	}
	if err != nil {
		return err
	}
	return out.Flush()
}

func (rw *ResultWriter) writePlain(w io.Writer, results []engine.HashResult) error {
	for _, r := range results {
		var line string
		if r.OK() {
			line = fmt.Sprintf("%s: %s", rw.style(rw.styles.Path, r.Path), r.Digest)
		} else {
			line = fmt.Sprintf("%s: %s", rw.style(rw.styles.Path, r.Path),
				rw.style(rw.styles.Failure, fmt.Sprintf("ERROR %s: %v", r.Err.Kind, r.Err.Err)))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (rw *ResultWriter) writeSum(w io.Writer, results []engine.HashResult) error {
	for _, r := range results {
		if !r.OK() {
			fmt.Fprintln(rw.errW, rw.style(rw.styles.Failure,
				fmt.Sprintf("treehash: %s: %s: %v", r.Path, r.Err.Kind, r.Err.Err)))
			continue
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", r.Digest, r.Path); err != nil {
			return err
		}
	}
	return nil
}

func (rw *ResultWriter) writeJSON(w io.Writer, algo engine.Algorithm, results []engine.HashResult) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		rec := jsonRecord{
			Path:      r.Path,
			Digest:    r.Digest,
			Algorithm: string(algo),
			Size:      r.Size,
		}
		if !r.OK() {
			rec.Kind = r.Err.Kind.String()
			rec.Error = r.Err.Err.Error()
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode %s: %w", r.Path, err)
		}
	}
	return nil
}
