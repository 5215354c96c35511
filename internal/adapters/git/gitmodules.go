package git

import (
	"bytes"

	gitconfig "github.com/go-git/go-git/v5/config"
	format "github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

const submoduleSection = "submodule"

// GitmodulesParser implements domain.SubmoduleParser on top of go-git's
// git-config decoder.
type GitmodulesParser struct {
	hosts []string
}

// NewGitmodulesParser creates a new GitmodulesParser. URLs on github.com are
// always extractable; hosts adds GitHub Enterprise servers.
func NewGitmodulesParser(hosts ...string) *GitmodulesParser {
	return &GitmodulesParser{hosts: hosts}
}

// ParseSubmodules parses the contents of a .gitmodules file.
// Declarations are returned in file order. A syntax error or any group missing
// its path or url fails the whole file with a *domain.ParseError.
func (p *GitmodulesParser) ParseSubmodules(data []byte) ([]domain.SubmoduleDeclaration, error) {
	cfg := format.New()
	if err := format.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return nil, &domain.ParseError{Err: err}
	}

	var decls []domain.SubmoduleDeclaration
	for _, section := range cfg.Sections {
		if !section.IsName(submoduleSection) {
			continue
		}
		for _, sub := range section.Subsections {
			m := &gitconfig.Submodule{
				Name: sub.Name,
				Path: sub.Options.Get("path"),
				URL:  sub.Options.Get("url"),
			}
			if err := m.Validate(); err != nil {
				return nil, &domain.ParseError{Module: sub.Name, Err: err}
			}
			decls = append(decls, domain.SubmoduleDeclaration{
				Name: m.Name,
				Path: m.Path,
				URL:  m.URL,
			})
		}
	}

	return decls, nil
}

// ExtractRef normalizes a submodule URL into an owner/name identifier.
func (p *GitmodulesParser) ExtractRef(url string) (domain.RepositoryRef, error) {
	return extractRepoName(url, p.hosts...)
}
