// Package main is the entry point for the repograph CLI application.
// repograph renders the git submodule dependency graph of GitHub repositories
// and highlights submodules pinned behind, or off, their default branch.
package main

import (
	"net/url"
	"os"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/MyCarrier-DevOps/repograph/cmd"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/git"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/github"
	logadapter "github.com/MyCarrier-DevOps/repograph/internal/adapters/logger"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/output"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/prompt"
	"github.com/MyCarrier-DevOps/repograph/internal/domain"
	"github.com/MyCarrier-DevOps/repograph/internal/infrastructure/config"
	"github.com/MyCarrier-DevOps/repograph/internal/usecases"
)

func main() {
	// Wire up production dependencies
	deps := &cmd.Dependencies{
		// Built on demand so that --verbose can raise LOG_LEVEL first.
		LoggerFactory: func() cmd.Logger {
			return logadapter.NewZapAdapter(logger.NewZapLoggerFromConfig())
		},

		ConfigLoader: func() (*cmd.AppConfig, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			return appConfigFrom(cfg), nil
		},

		TokenPrompterFactory: func() cmd.TokenPrompter {
			return prompt.NewTerminalPrompter()
		},

		HostFactory: func(cfg *cmd.AppConfig, log cmd.Logger) (domain.RepositoryResolver, error) {
			ghLog := withComponent(log, "github")
			client, err := github.NewClient(clientConfigFrom(cfg, logadapter.NewLeveledAdapter(ghLog)), ghLog)
			if err != nil {
				return nil, err
			}
			return client, nil
		},

		LocalRepoFactory: func(path string, cfg *cmd.AppConfig, log cmd.Logger) (domain.Repository, error) {
			repo, err := git.NewLocalRepository(path, withComponent(log, "git"), enterpriseHosts(cfg)...)
			if err != nil {
				return nil, err
			}
			return repo, nil
		},

		ParserFactory: func(cfg *cmd.AppConfig) domain.SubmoduleParser {
			return git.NewGitmodulesParser(enterpriseHosts(cfg)...)
		},

		BuilderFactory: func(
			host domain.RepositoryResolver,
			parser domain.SubmoduleParser,
			opts domain.BuildOptions,
			log cmd.Logger,
		) domain.GraphBuilder {
			builderLog := withComponent(log, "builder")
			return usecases.NewSubmoduleGraphBuilder(host, parser, usecases.NewClassifier(builderLog), opts, builderLog)
		},

		RendererFactory: func(opts cmd.RenderOptions, log cmd.Logger) domain.Renderer {
			return output.NewGraphvizRenderer(opts.LayoutProgram, opts.StripOwner, withComponent(log, "renderer"))
		},

		SummaryWriterFactory: func() domain.SummaryWriter {
			return output.NewWriter()
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}

// appConfigFrom maps the loaded configuration onto the command's view of it.
func appConfigFrom(cfg *config.Config) *cmd.AppConfig {
	return &cmd.AppConfig{
		Token:          cfg.Token,
		GitHubURL:      cfg.GitHubURL,
		AppID:          cfg.AppID,
		InstallationID: cfg.InstallationID,
		AppPrivateKey:  cfg.AppPrivateKey,
		MaxRetries:     cfg.MaxRetries,
		Repositories:   cfg.Repositories,
		Organizations:  cfg.Organizations,
		LogLevel:       cfg.LogLevel,
		LogAppName:     cfg.LogAppName,
	}
}

// clientConfigFrom builds the GitHub client settings.
func clientConfigFrom(cfg *cmd.AppConfig, httpLog *logadapter.LeveledAdapter) github.ClientConfig {
	cc := github.ClientConfig{
		Token:          cfg.Token,
		BaseURL:        cfg.GitHubURL,
		AppID:          cfg.AppID,
		InstallationID: cfg.InstallationID,
		AppPrivateKey:  cfg.AppPrivateKey,
		MaxRetries:     cfg.MaxRetries,
	}
	if httpLog != nil {
		cc.HTTPLogger = httpLog
	}
	return cc
}

// enterpriseHosts returns the GitHub Enterprise host whose repository URLs are
// followed in addition to github.com.
func enterpriseHosts(cfg *cmd.AppConfig) []string {
	if cfg == nil || cfg.GitHubURL == "" {
		return nil
	}
	u, err := url.Parse(cfg.GitHubURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{u.Hostname()}
}

// withComponent tags entries with the emitting component when the logger supports it.
func withComponent(log cmd.Logger, component string) cmd.Logger {
	if a, ok := log.(*logadapter.ZapAdapter); ok {
		return a.WithFields(map[string]any{"component": component})
	}
	return log
}
