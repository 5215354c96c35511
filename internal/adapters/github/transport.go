package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
)

// DefaultMaxRetries is the number of retries for transient hosting API failures.
const DefaultMaxRetries = 3

// ErrIncompleteAppCredentials indicates GitHub App auth was requested without
// an installation id or private key.
var ErrIncompleteAppCredentials = errors.New("github app auth requires app id, installation id and private key")

// ClientConfig configures the hosting API client.
type ClientConfig struct {
	// Token is a personal access token. Ignored when AppID is set.
	Token string

	// BaseURL is a GitHub Enterprise server URL. Empty means api.github.com.
	BaseURL string

	// AppID, InstallationID and AppPrivateKey enable GitHub App installation auth.
	AppID          int64
	InstallationID int64
	AppPrivateKey  []byte

	// MaxRetries bounds retries of 5xx, 429 and connection failures.
	MaxRetries int

	// RetryWaitMin and RetryWaitMax bound the backoff. Zero uses the retryablehttp defaults.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// HTTPLogger receives retry diagnostics. Nil disables them.
	HTTPLogger retryablehttp.LeveledLogger
}

// usesApp reports whether GitHub App auth was requested.
func (c ClientConfig) usesApp() bool {
	return c.AppID != 0
}

// newRetryTransport returns the retrying base transport shared by every auth mode.
func newRetryTransport(cfg ClientConfig) http.RoundTripper {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.HTTPLogger != nil {
		rc.Logger = cfg.HTTPLogger
	} else {
		rc.Logger = nil
	}
	// Hand the final response back so the GitHub client can decode API errors.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &retryablehttp.RoundTripper{Client: rc}
}

// newAuthTransport wraps base with the configured authentication.
// The returned installation transport is non-nil only for GitHub App auth.
func newAuthTransport(cfg ClientConfig, base http.RoundTripper) (http.RoundTripper, *ghinstallation.Transport, error) {
	switch {
	case cfg.usesApp():
		if cfg.InstallationID == 0 || len(cfg.AppPrivateKey) == 0 {
			return nil, nil, ErrIncompleteAppCredentials
		}
		itr, err := ghinstallation.New(base, cfg.AppID, cfg.InstallationID, cfg.AppPrivateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create github app transport: %w", err)
		}
		return itr, itr, nil
	case cfg.Token != "":
		return &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
			Base:   base,
		}, nil, nil
	default:
		return base, nil, nil
	}
}
