package git

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// DefaultHost is accepted by every parser, in addition to any GitHub
// Enterprise host it is configured with.
const DefaultHost = "github.com"

// extractRepoName normalizes a GitHub remote URL into owner/name.
// Supported forms, for github.com and each of extraHosts:
//   - git@github.com:owner/name.git -> owner/name
//   - https://github.com/owner/name.git -> owner/name
//   - git://github.com/owner/name.git -> owner/name
//
// A trailing .git and surrounding slashes are optional. Every other host or
// scheme returns domain.ErrUnextractableName.
func extractRepoName(url string, extraHosts ...string) (domain.RepositoryRef, error) {
	url = strings.TrimSpace(url)

	path, ok := repoPath(url, append([]string{DefaultHost}, extraHosts...))
	if !ok {
		return domain.RepositoryRef{}, fmt.Errorf("%w: %s", domain.ErrUnextractableName, url)
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	path = strings.Trim(path, "/")

	ref, err := domain.ParseRepositoryRef(path)
	if err != nil {
		return domain.RepositoryRef{}, fmt.Errorf("%w: %s", domain.ErrUnextractableName, url)
	}
	return ref, nil
}

// repoPath returns the path part of url if it points at one of hosts.
func repoPath(url string, hosts []string) (string, bool) {
	for _, host := range hosts {
		if host == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(url, "git@"+host+":"); ok {
			return rest, true
		}
	}

	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "git://") {
		return "", false
	}
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return "", false
	}
	for _, host := range hosts {
		if host != "" && strings.EqualFold(ep.Host, host) {
			return ep.Path, true
		}
	}
	return "", false
}
