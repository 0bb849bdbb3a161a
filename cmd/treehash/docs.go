package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

type docsOptions struct {
	dir    string
	format string
}

var docsOpts docsOptions

// docsCmd writes reference pages for every command; release packaging runs it.
var docsCmd = &cobra.Command{
	Use:    "gen-docs",
	Short:  "Write treehash man pages or markdown reference",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeDocs(cmd.Root(), docsOpts)
	},
}

func init() {
	docsCmd.Flags().StringVar(&docsOpts.dir, "dir", "docs", "directory to write pages into")
	docsCmd.Flags().StringVar(&docsOpts.format, "format", "man", "page format: man or markdown")
}

func writeDocs(root *cobra.Command, o docsOptions) error {
	var gen func() error
	switch o.format {
	case "man":
		hdr := &doc.GenManHeader{
			Title:   "TREEHASH",
			Section: "1",
			Source:  "treehash " + version,
			Manual:  "treehash manual",
		}
		gen = func() error { return doc.GenManTree(root, hdr, o.dir) }
	case "markdown", "md":
		gen = func() error { return doc.GenMarkdownTree(root, o.dir) }
	default:
		return fmt.Errorf("gen-docs: unsupported format %q", o.format)
	}

	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return fmt.Errorf("gen-docs: %w", err)
	}
	root.DisableAutoGenTag = true
	return gen()
}
