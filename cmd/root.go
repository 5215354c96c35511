// Package cmd provides the CLI commands for repograph.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
	"github.com/MyCarrier-DevOps/repograph/internal/usecases"
)

// DefaultOutputPath is where the graph is written when --output is not given.
const DefaultOutputPath = "repograph.svg"

// Environment variables read by the logger.
const (
	envLogLevel   = "LOG_LEVEL"
	envLogAppName = "LOG_APP_NAME"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// TokenPrompter asks the user for a GitHub token.
type TokenPrompter interface {
	PromptToken(ctx context.Context) (string, error)
}

// RenderOptions configures the renderer created by RendererFactory.
type RenderOptions struct {
	// LayoutProgram is the Graphviz program used for non-DOT output.
	LayoutProgram string

	// StripOwner drops the owner from node labels.
	StripOwner bool
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func() Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func() (*AppConfig, error)

	// TokenPrompterFactory creates the interactive token prompt. Nil disables prompting.
	TokenPrompterFactory func() TokenPrompter

	// HostFactory creates the hosting API client from the resolved configuration.
	HostFactory func(cfg *AppConfig, log Logger) (domain.RepositoryResolver, error)

	// LocalRepoFactory opens a local checkout as a traversal root.
	LocalRepoFactory func(path string, cfg *AppConfig, log Logger) (domain.Repository, error)

	// ParserFactory creates the .gitmodules parser for the configured host.
	ParserFactory func(cfg *AppConfig) domain.SubmoduleParser

	// BuilderFactory creates the graph builder.
	BuilderFactory func(
		host domain.RepositoryResolver,
		parser domain.SubmoduleParser,
		opts domain.BuildOptions,
		log Logger,
	) domain.GraphBuilder

	// RendererFactory creates the graph renderer.
	RendererFactory func(opts RenderOptions, log Logger) domain.Renderer

	// SummaryWriterFactory creates the writer for the end-of-run summary.
	SummaryWriterFactory func() domain.SummaryWriter

	// Stdout is the writer for standard output.
	Stdout io.Writer

	// Stderr is the writer for standard error (for warnings/errors).
	Stderr io.Writer
}

// AppConfig holds application configuration loaded by ConfigLoader.
type AppConfig struct {
	// Token is the GitHub token. The --token flag and the prompt override it.
	Token string

	// GitHubURL is the GitHub Enterprise server URL, empty for github.com.
	GitHubURL string

	// AppID, InstallationID and AppPrivateKey hold GitHub App credentials.
	AppID          int64
	InstallationID int64
	AppPrivateKey  []byte

	// MaxRetries bounds retries of transient GitHub API failures.
	MaxRetries int

	// Repositories and Organizations are roots used when none are given as flags.
	Repositories  []string
	Organizations []string

	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string
}

// rootOptions holds the command-line flags of a single command instance.
type rootOptions struct {
	token         string
	repos         []string
	orgs          []string
	locals        []string
	output        string
	layoutProgram string
	stripOrg      bool
	noStripOrg    bool
	expand        string
	maxDepth      int
	verbose       bool
}

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for repograph.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "repograph",
		Short: "Graph GitHub submodule dependencies and flag out-of-date pins",
		Long: `repograph walks the git submodules of GitHub repositories, recursively,
and renders the dependency graph with Graphviz.

Every edge is a submodule link. Links whose pinned commit is behind the
submodule's default branch are drawn red and labelled with the number of
commits behind; pins that are not on the default branch at all are drawn
red and dotted.

The GitHub token is taken from --token, GITHUB_API_TOKEN, the config file
or Vault, and is otherwise prompted for when stdin is a terminal.

Examples:
  # Graph every repository of an organization
  repograph --org my-org

  # Graph two repositories into a PNG
  repograph -r my-org/app -r my-org/api -o deps.png

  # Write DOT source instead of running Graphviz
  repograph -g my-org -o deps.dot

  # Start from a local checkout and re-expand shared submodules
  repograph --local . --expand always`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd, opts, deps)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.token, "token", "t", "",
		"GitHub token (defaults to GITHUB_API_TOKEN, config file, Vault, then a prompt)")
	flags.StringArrayVarP(&opts.repos, "repo", "r", nil,
		"Root repository as owner/name or GitHub URL (repeatable)")
	flags.StringArrayVarP(&opts.orgs, "org", "g", nil,
		"Root organization; every repository in it is a root (repeatable)")
	flags.StringArrayVar(&opts.locals, "local", nil,
		"Root local checkout path (repeatable)")
	flags.StringVarP(&opts.output, "output", "o", DefaultOutputPath,
		"Output file; the extension selects the format, .dot writes DOT source")
	flags.StringVarP(&opts.layoutProgram, "layout-program", "l", "dot",
		"Graphviz layout program used for non-DOT output")
	flags.BoolVar(&opts.stripOrg, "strip-org", true,
		"Strip the owner from node labels")
	flags.BoolVar(&opts.noStripOrg, "no-strip-org", false,
		"Keep the owner in node labels")
	flags.StringVar(&opts.expand, "expand", string(domain.ExpandOnce),
		"Expansion policy for shared submodules: once or always")
	flags.IntVar(&opts.maxDepth, "max-depth", 0,
		"Maximum submodule nesting depth to expand (0 means unlimited)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	rootCmd.MarkFlagsMutuallyExclusive("strip-org", "no-strip-org")

	return rootCmd
}

// runGraph executes graph discovery and rendering with injected dependencies.
func runGraph(cmd *cobra.Command, opts *rootOptions, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Get stderr for warnings
	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	policy, err := domain.ParseExpandPolicy(opts.expand)
	if err != nil {
		return err
	}
	if opts.maxDepth < 0 {
		return fmt.Errorf("--max-depth must not be negative, got %d", opts.maxDepth)
	}

	// Configuration is loaded before the logger so that its log settings,
	// including those from .env and the config file, reach the logger.
	cfg, cfgErr := deps.ConfigLoader()
	if cfgErr == nil {
		exportLogSettings(cfg, stderr)
	}

	// Set log level based on verbose flag (best-effort)
	if opts.verbose {
		if err := os.Setenv(envLogLevel, "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	if cfgErr != nil {
		log.Error(ctx, "failed to load configuration", cfgErr, nil)
		return fmt.Errorf("configuration error: %w", cfgErr)
	}

	sel := selection(opts, cfg)
	if sel.IsEmpty() {
		return domain.ErrNoRoots
	}

	log.Info(ctx, "starting repograph", map[string]interface{}{
		"organizations": sel.Organizations,
		"repositories":  sel.Repositories,
		"local":         sel.LocalPaths,
		"output":        opts.output,
		"expand":        string(policy),
		"max_depth":     opts.maxDepth,
	})

	resolveToken(ctx, opts, cfg, deps, log)

	host, err := deps.HostFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to create GitHub client", err, nil)
		return fmt.Errorf("github client error: %w", err)
	}

	parser := deps.ParserFactory(cfg)
	openLocal := func(path string) (domain.Repository, error) {
		return deps.LocalRepoFactory(path, cfg, log)
	}

	roots, err := usecases.NewRootResolver(host, parser, openLocal, log).Resolve(ctx, sel)
	if err != nil {
		log.Error(ctx, "failed to resolve roots", err, nil)
		return describe(err)
	}

	builder := deps.BuilderFactory(host, parser, domain.BuildOptions{
		Policy:   policy,
		MaxDepth: opts.maxDepth,
	}, log)

	graph, err := usecases.CollectGraph(builder.Walk(ctx, roots...))
	if err != nil {
		log.Error(ctx, "failed to build submodule graph", err, nil)
		return describe(err)
	}

	renderer := deps.RendererFactory(RenderOptions{
		LayoutProgram: opts.layoutProgram,
		StripOwner:    opts.stripOrg && !opts.noStripOrg,
	}, log)
	if err := renderer.Render(ctx, graph, opts.output); err != nil {
		log.Error(ctx, "failed to render graph", err, map[string]interface{}{
			"output": opts.output,
		})
		return fmt.Errorf("render error: %w", err)
	}

	if err := deps.SummaryWriterFactory().WriteSummary(graph, opts.output); err != nil {
		log.Error(ctx, "failed to write output", err, nil)
		return fmt.Errorf("output error: %w", err)
	}

	counts := graph.Summary()
	log.Info(ctx, "submodule graph complete", map[string]interface{}{
		"roots":      len(roots),
		"edges":      graph.Len(),
		"stale":      counts[domain.SyncStale],
		"off_branch": counts[domain.SyncOffBranch],
		"output":     opts.output,
	})

	return nil
}

// exportLogSettings publishes the configured log settings to the environment
// the logger is built from.
func exportLogSettings(cfg *AppConfig, stderr io.Writer) {
	settings := []struct{ key, value string }{
		{envLogLevel, cfg.LogLevel},
		{envLogAppName, cfg.LogAppName},
	}
	for _, s := range settings {
		if s.value == "" {
			continue
		}
		if err := os.Setenv(s.key, s.value); err != nil {
			writeWarningf(stderr, "warning: could not set %s: %v\n", s.key, err)
		}
	}
}

// selection returns the roots named on the command line, or the configured
// defaults when no root flag was given.
func selection(opts *rootOptions, cfg *AppConfig) domain.RootSelection {
	sel := domain.RootSelection{
		Organizations: opts.orgs,
		Repositories:  opts.repos,
		LocalPaths:    opts.locals,
	}
	if sel.IsEmpty() {
		sel.Organizations = cfg.Organizations
		sel.Repositories = cfg.Repositories
	}
	return sel
}

// resolveToken fills cfg.Token from the flag or, failing that, the prompt.
// GitHub App credentials take the place of a token. A failed prompt leaves
// the client unauthenticated.
func resolveToken(ctx context.Context, opts *rootOptions, cfg *AppConfig, deps *Dependencies, log Logger) {
	if opts.token != "" {
		cfg.Token = opts.token
		return
	}
	if cfg.Token != "" || cfg.AppID != 0 || deps.TokenPrompterFactory == nil {
		return
	}

	token, err := deps.TokenPrompterFactory().PromptToken(ctx)
	if err != nil {
		log.Warn(ctx, "no GitHub token available; continuing unauthenticated", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	cfg.Token = token
}

// describe turns fatal traversal errors into user-facing messages.
func describe(err error) error {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return fmt.Errorf("GitHub API rate limit exceeded; supply a token with --token: %w", err)
	case errors.Is(err, domain.ErrRepositoryNotFound):
		return fmt.Errorf("repository not found or not accessible with this token: %w", err)
	case errors.Is(err, domain.ErrOrganizationNotFound):
		return fmt.Errorf("organization not found or not accessible with this token: %w", err)
	case errors.Is(err, domain.ErrNoRemoteOrigin):
		return fmt.Errorf("no 'origin' remote configured; cannot determine repository name: %w", err)
	default:
		return err
	}
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer.
// This is a best-effort operation; errors are intentionally ignored
// because there is no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return
	}
}
