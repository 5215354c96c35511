package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

type testLogger struct{}

func (testLogger) Debug(context.Context, string, map[string]interface{}) {}
func (testLogger) Warn(context.Context, string, map[string]interface{})  {}

// newTestClient serves the API under /api/v3/ the way GitHub Enterprise does.
func newTestClient(t *testing.T, cfg ClientConfig) (*http.ServeMux, *httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = time.Millisecond
		cfg.RetryWaitMax = 5 * time.Millisecond
	}
	c, err := NewClient(cfg, testLogger{})
	require.NoError(t, err)
	return mux, srv, c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func serveNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, `{"message":"Not Found"}`)
}

func testRepo(c *Client) *Repository {
	return &Repository{client: c, ref: domain.RepositoryRef{Owner: "org", Name: "lib"}, defaultBranch: "main"}
}

func TestClient_Resolve(t *testing.T) {
	mux, _, c := newTestClient(t, ClientConfig{Token: "test-token"})
	var auth string
	mux.HandleFunc("GET /api/v3/repos/org/lib", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, `{"name":"Lib","full_name":"Org/Lib","default_branch":"trunk"}`)
	})

	repo, err := c.Resolve(context.Background(), domain.RepositoryRef{Owner: "org", Name: "lib"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", auth)
	assert.Equal(t, domain.RepositoryRef{Owner: "Org", Name: "Lib"}, repo.Ref(), "canonical name from the API")
	assert.Equal(t, "trunk", repo.(*Repository).DefaultBranch())
}

func TestClient_Resolve_NotFound(t *testing.T) {
	mux, _, c := newTestClient(t, ClientConfig{})
	mux.HandleFunc("GET /api/v3/repos/org/ghost", serveNotFound)

	repo, err := c.Resolve(context.Background(), domain.RepositoryRef{Owner: "org", Name: "ghost"})

	require.Error(t, err)
	assert.Nil(t, repo)
	assert.ErrorIs(t, err, domain.ErrRepositoryNotFound)
	assert.Contains(t, err.Error(), "org/ghost")
}

func TestClient_ListOrganization_Paginates(t *testing.T) {
	mux, srv, c := newTestClient(t, ClientConfig{})
	var perPage string
	mux.HandleFunc("GET /api/v3/orgs/org/repos", func(w http.ResponseWriter, r *http.Request) {
		perPage = r.URL.Query().Get("per_page")
		if r.URL.Query().Get("page") == "2" {
			writeJSON(w, http.StatusOK, `[{"name":"c","full_name":"org/c"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v3/orgs/org/repos?per_page=100&page=2>; rel="next"`, srv.URL))
		writeJSON(w, http.StatusOK, `[{"name":"a","full_name":"org/a"},{"name":"b","full_name":"org/b"}]`)
	})

	repos, err := c.ListOrganization(context.Background(), "org")

	require.NoError(t, err)
	assert.Equal(t, "100", perPage)
	require.Len(t, repos, 3)
	assert.Equal(t, "org/a", repos[0].Ref().String())
	assert.Equal(t, "org/c", repos[2].Ref().String())
}

func TestClient_ListOrganization_NotFound(t *testing.T) {
	mux, _, c := newTestClient(t, ClientConfig{})
	mux.HandleFunc("GET /api/v3/orgs/ghost/repos", serveNotFound)

	_, err := c.ListOrganization(context.Background(), "ghost")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestRepository_ReadFile(t *testing.T) {
	mux, _, c := newTestClient(t, ClientConfig{})
	content := "[submodule \"core\"]\n\tpath = libs/core\n\turl = git@github.com:org/core.git\n"
	mux.HandleFunc("GET /api/v3/repos/org/lib/contents/.gitmodules", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"type":"file","encoding":"base64","name":".gitmodules","path":".gitmodules","content":%q}`,
			base64.StdEncoding.EncodeToString([]byte(content))))
	})
	mux.HandleFunc("GET /api/v3/repos/org/lib/contents/missing", serveNotFound)

	got, err := testRepo(c).ReadFile(context.Background(), domain.GitmodulesPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	_, err = testRepo(c).ReadFile(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestRepository_PinnedCommit(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "submodule entry",
			status: http.StatusOK,
			body:   `{"type":"submodule","sha":"4f2a9c","name":"core","path":"libs/core","submodule_git_url":"git@github.com:org/core.git"}`,
			want:   "4f2a9c",
		},
		{
			name:    "regular file",
			status:  http.StatusOK,
			body:    `{"type":"file","sha":"blob","name":"core","path":"libs/core","encoding":"base64","content":""}`,
			wantErr: domain.ErrNotSubmodule,
		},
		{
			name:    "missing path",
			status:  http.StatusNotFound,
			body:    `{"message":"Not Found"}`,
			wantErr: domain.ErrFileNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _, c := newTestClient(t, ClientConfig{})
			mux.HandleFunc("GET /api/v3/repos/org/lib/contents/libs/core", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			got, err := testRepo(c).PinnedCommit(context.Background(), "libs/core")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepository_HeadCommit(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{name: "latest commit", status: http.StatusOK, body: `[{"sha":"head1"}]`, want: "head1"},
		{name: "no commits", status: http.StatusOK, body: `[]`, wantErr: domain.ErrEmptyHistory},
		{name: "empty repository", status: http.StatusConflict, body: `{"message":"Git Repository is empty."}`, wantErr: domain.ErrEmptyHistory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _, c := newTestClient(t, ClientConfig{})
			var perPage string
			mux.HandleFunc("GET /api/v3/repos/org/lib/commits", func(w http.ResponseWriter, r *http.Request) {
				perPage = r.URL.Query().Get("per_page")
				writeJSON(w, tt.status, tt.body)
			})

			got, err := testRepo(c).HeadCommit(context.Background())

			assert.Equal(t, "1", perPage)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepository_Compare(t *testing.T) {
	mux, _, c := newTestClient(t, ClientConfig{})
	mux.HandleFunc("GET /api/v3/repos/org/lib/compare/aaa...bbb", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"ahead","ahead_by":3,"behind_by":0,"total_commits":3,
			"permalink_url":"https://github.com/org/lib/compare/org:aaa...org:bbb"}`)
	})
	mux.HandleFunc("GET /api/v3/repos/org/lib/compare/gone...bbb", serveNotFound)

	got, err := testRepo(c).Compare(context.Background(), "aaa", "bbb")

	require.NoError(t, err)
	assert.Equal(t, &domain.CommitComparison{
		Status:       domain.StatusAhead,
		AheadBy:      3,
		TotalCommits: 3,
		PermalinkURL: "https://github.com/org/lib/compare/org:aaa...org:bbb",
	}, got)

	_, err = testRepo(c).Compare(context.Background(), "gone", "bbb")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCommitNotFound)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	mux, _, c := newTestClient(t, ClientConfig{MaxRetries: 2})
	var calls atomic.Int32
	mux.HandleFunc("GET /api/v3/repos/org/lib", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusBadGateway, `{"message":"Bad Gateway"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"name":"lib","full_name":"org/lib","default_branch":"main"}`)
	})

	repo, err := c.Resolve(context.Background(), domain.RepositoryRef{Owner: "org", Name: "lib"})

	require.NoError(t, err)
	assert.Equal(t, "org/lib", repo.Ref().String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	mux, _, c := newTestClient(t, ClientConfig{MaxRetries: 1})
	var calls atomic.Int32
	mux.HandleFunc("GET /api/v3/repos/org/lib", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, `{"message":"unavailable"}`)
	})

	_, err := c.Resolve(context.Background(), domain.RepositoryRef{Owner: "org", Name: "lib"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRepositoryNotFound)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RateLimited(t *testing.T) {
	mux, _, c := newTestClient(t, ClientConfig{})
	mux.HandleFunc("GET /api/v3/repos/org/lib", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		writeJSON(w, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)
	})

	_, err := c.Resolve(context.Background(), domain.RepositoryRef{Owner: "org", Name: "lib"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestClient_AppInstallationAuth(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	mux, _, c := newTestClient(t, ClientConfig{AppID: 42, InstallationID: 7, AppPrivateKey: keyPEM})
	mux.HandleFunc("POST /api/v3/app/installations/7/access_tokens", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, fmt.Sprintf(`{"token":"inst-token","expires_at":%q}`,
			time.Now().Add(time.Hour).UTC().Format(time.RFC3339)))
	})
	var auth string
	mux.HandleFunc("GET /api/v3/repos/org/lib", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, `{"name":"lib","full_name":"org/lib","default_branch":"main"}`)
	})

	_, err = c.Resolve(context.Background(), domain.RepositoryRef{Owner: "org", Name: "lib"})

	require.NoError(t, err)
	assert.Contains(t, auth, "inst-token")
}

func TestNewClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr error
	}{
		{name: "app without installation", cfg: ClientConfig{AppID: 1, AppPrivateKey: []byte("k")}, wantErr: ErrIncompleteAppCredentials},
		{name: "app without key", cfg: ClientConfig{AppID: 1, InstallationID: 2}, wantErr: ErrIncompleteAppCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg, testLogger{})

			require.Error(t, err)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("unparseable private key", func(t *testing.T) {
		c, err := NewClient(ClientConfig{AppID: 1, InstallationID: 2, AppPrivateKey: []byte("not a key")}, testLogger{})

		require.Error(t, err)
		assert.Nil(t, c)
		assert.Contains(t, err.Error(), "github app transport")
	})
}
