// Package output provides adapters for writing application output:
// the rendered dependency graph and the end-of-run summary.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Writer writes the run summary to the configured output destination.
// By default, it writes to stdout.
type Writer struct {
	out io.Writer
}

// NewWriter creates a new Writer that writes to stdout.
func NewWriter() *Writer {
	return &Writer{out: os.Stdout}
}

// NewWriterWithOutput creates a new Writer with a custom output destination.
// This is useful for testing.
func NewWriterWithOutput(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteSummary writes a single line describing the rendered graph.
func (w *Writer) WriteSummary(graph *domain.Graph, outputPath string) error {
	counts := graph.Summary()
	_, err := fmt.Fprintf(w.out, "%s: %d repositories, %d submodule links (%d stale, %d off branch)\n",
		outputPath, len(graph.Nodes()), graph.Len(), counts[domain.SyncStale], counts[domain.SyncOffBranch])
	return err
}
