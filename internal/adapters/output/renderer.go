package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/emicklei/dot"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// DefaultLayoutProgram is the Graphviz program used to lay out rendered graphs.
const DefaultLayoutProgram = "dot"

const dotExtension = "dot"

var (
	// ErrUnknownFormat indicates the output path has no extension to derive a format from.
	ErrUnknownFormat = errors.New("cannot determine output format from file extension")

	// ErrLayoutProgramNotFound indicates the layout program is not on PATH.
	ErrLayoutProgramNotFound = errors.New("layout program not found")
)

// Logger defines the logging interface for the renderer.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
}

// CommandRunner runs an external program with stdin attached.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) error
}

// GraphvizRenderer implements domain.Renderer. DOT output is written directly;
// every other format is produced by piping DOT through a Graphviz layout program.
type GraphvizRenderer struct {
	program    string
	stripOwner bool
	runner     CommandRunner
	logger     Logger
}

// NewGraphvizRenderer creates a renderer that shells out to program for non-DOT formats.
func NewGraphvizRenderer(program string, stripOwner bool, log Logger) *GraphvizRenderer {
	return NewGraphvizRendererWithRunner(program, stripOwner, execRunner{}, log)
}

// NewGraphvizRendererWithRunner creates a renderer with a custom command runner.
// This is useful for testing.
func NewGraphvizRendererWithRunner(program string, stripOwner bool, runner CommandRunner, log Logger) *GraphvizRenderer {
	if program == "" {
		program = DefaultLayoutProgram
	}
	return &GraphvizRenderer{
		program:    program,
		stripOwner: stripOwner,
		runner:     runner,
		logger:     log,
	}
}

// Render writes graph to outputPath in the format named by its extension.
func (r *GraphvizRenderer) Render(ctx context.Context, graph *domain.Graph, outputPath string) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(outputPath), "."))
	if format == "" {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, outputPath)
	}

	src := r.Encode(graph)

	if format == dotExtension {
		if err := os.WriteFile(outputPath, []byte(src), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outputPath, err)
		}
		return nil
	}

	r.logger.Debug(ctx, "running layout program", map[string]interface{}{
		"program": r.program,
		"format":  format,
		"output":  outputPath,
	})

	args := []string{"-T" + format, "-o", outputPath}
	if err := r.runner.Run(ctx, r.program, args, strings.NewReader(src)); err != nil {
		return fmt.Errorf("failed to render %s: %w", outputPath, err)
	}
	return nil
}

// Encode returns the DOT source for graph.
func (r *GraphvizRenderer) Encode(graph *domain.Graph) string {
	g := dot.NewGraph(dot.Directed)

	nodes := make(map[string]dot.Node)
	for _, ref := range graph.Nodes() {
		nodes[ref.Key()] = g.Node(ref.Key()).Label(ref.Display(r.stripOwner))
	}

	for _, e := range graph.Edges() {
		edge := g.Edge(nodes[e.Source.Key()], nodes[e.Dest.Key()])
		setAttr(edge, "label", e.Attributes.Label)
		setAttr(edge, "labelURL", e.Attributes.URL)
		setAttr(edge, "labeltooltip", e.Attributes.Tooltip)
		setAttr(edge, "color", e.Attributes.Color)
		setAttr(edge, "style", e.Attributes.Style)
	}

	return g.String()
}

func setAttr(e dot.Edge, key, value string) {
	if value != "" {
		e.Attr(key, value)
	}
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrLayoutProgramNotFound, name)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = stdin
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
