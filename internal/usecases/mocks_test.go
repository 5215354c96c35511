package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// mockLogger implements the Logger interface for testing and records warnings.
type mockLogger struct {
	warnings []string
}

func (m *mockLogger) Info(_ context.Context, _ string, _ map[string]interface{})  {}
func (m *mockLogger) Debug(_ context.Context, _ string, _ map[string]interface{}) {}
func (m *mockLogger) Warn(_ context.Context, msg string, _ map[string]interface{}) {
	m.warnings = append(m.warnings, msg)
}
func (m *mockLogger) Error(_ context.Context, _ string, _ error, _ map[string]interface{}) {}

// mockRepository implements domain.Repository for testing.
type mockRepository struct {
	ref        domain.RepositoryRef
	gitmodules *string
	pins       map[string]string
	head       string
	// comparisons maps a base commit to the comparison against head.
	comparisons map[string]*domain.CommitComparison

	readErr    error
	headErr    error
	compareErr error
	readCalls  int
}

func (m *mockRepository) Ref() domain.RepositoryRef { return m.ref }

func (m *mockRepository) ReadFile(_ context.Context, path string) ([]byte, error) {
	m.readCalls++
	if m.readErr != nil {
		return nil, m.readErr
	}
	if path != domain.GitmodulesPath || m.gitmodules == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
	}
	return []byte(*m.gitmodules), nil
}

func (m *mockRepository) PinnedCommit(_ context.Context, path string) (string, error) {
	sha, ok := m.pins[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
	}
	return sha, nil
}

func (m *mockRepository) HeadCommit(_ context.Context) (string, error) {
	if m.headErr != nil {
		return "", m.headErr
	}
	return m.head, nil
}

func (m *mockRepository) Compare(_ context.Context, base, head string) (*domain.CommitComparison, error) {
	if m.compareErr != nil {
		return nil, m.compareErr
	}
	if base == head {
		return &domain.CommitComparison{Status: domain.StatusIdentical}, nil
	}
	if cmp, ok := m.comparisons[base]; ok {
		return cmp, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrCommitNotFound, base)
}

// mockHost implements domain.RepositoryResolver over a fixed set of repositories.
type mockHost struct {
	repos        map[string]*mockRepository
	orgs         map[string][]string
	resolveErrs  map[string]error
	resolveCalls []string
}

func newMockHost(repos ...*mockRepository) *mockHost {
	h := &mockHost{
		repos:       make(map[string]*mockRepository),
		orgs:        make(map[string][]string),
		resolveErrs: make(map[string]error),
	}
	for _, r := range repos {
		h.repos[r.ref.Key()] = r
	}
	return h
}

func (h *mockHost) Resolve(_ context.Context, ref domain.RepositoryRef) (domain.Repository, error) {
	h.resolveCalls = append(h.resolveCalls, ref.String())
	if err, ok := h.resolveErrs[ref.Key()]; ok {
		return nil, err
	}
	repo, ok := h.repos[ref.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, ref)
	}
	return repo, nil
}

func (h *mockHost) ListOrganization(_ context.Context, org string) ([]domain.Repository, error) {
	names, ok := h.orgs[org]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrganizationNotFound, org)
	}
	var repos []domain.Repository
	for _, name := range names {
		repos = append(repos, h.repos[strings.ToLower(name)])
	}
	return repos, nil
}

// mockParser implements domain.SubmoduleParser.
// Each non-empty line of the file is "path url"; a line "!" makes the file malformed.
// URLs of the form "gh:owner/name" are extractable, everything else is not.
type mockParser struct{}

func (mockParser) ParseSubmodules(data []byte) ([]domain.SubmoduleDeclaration, error) {
	var decls []domain.SubmoduleDeclaration
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "!" {
			return nil, &domain.ParseError{Module: "broken", Err: errors.New("empty URL")}
		}
		path, url, _ := strings.Cut(line, " ")
		decls = append(decls, domain.SubmoduleDeclaration{Name: path, Path: path, URL: url})
	}
	return decls, nil
}

func (mockParser) ExtractRef(url string) (domain.RepositoryRef, error) {
	name, ok := strings.CutPrefix(url, "gh:")
	if !ok {
		return domain.RepositoryRef{}, fmt.Errorf("%w: %s", domain.ErrUnextractableName, url)
	}
	return domain.ParseRepositoryRef(name)
}

func ref(s string) domain.RepositoryRef {
	r, err := domain.ParseRepositoryRef(s)
	if err != nil {
		panic(err)
	}
	return r
}

func gitmodules(lines ...string) *string {
	s := strings.Join(lines, "\n")
	return &s
}

// leaf returns a repository without submodules whose head is head.
func leaf(name, head string) *mockRepository {
	return &mockRepository{ref: ref(name), head: head}
}
