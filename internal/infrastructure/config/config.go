// Package config provides configuration loading for the repograph application.
// Settings come from environment variables (optionally seeded from a .env file),
// an optional config file, and HashiCorp Vault for the GitHub token.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variable names.
const (
	// EnvGitHubToken is a GitHub personal access token.
	EnvGitHubToken = "GITHUB_API_TOKEN"

	// EnvGitHubURL is a GitHub Enterprise server URL (empty for github.com).
	EnvGitHubURL = "GITHUB_API_URL"

	// EnvGitHubAppID, EnvGitHubAppInstallationID and EnvGitHubAppPrivateKeyPath
	// select GitHub App installation auth instead of a token.
	EnvGitHubAppID             = "GITHUB_APP_ID"
	EnvGitHubAppInstallationID = "GITHUB_APP_INSTALLATION_ID"
	EnvGitHubAppPrivateKeyPath = "GITHUB_APP_PRIVATE_KEY_PATH"

	// EnvMaxRetries bounds retries of transient GitHub API failures.
	EnvMaxRetries = "REPOGRAPH_MAX_RETRIES"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"

	// EnvConfigFile is the path to an optional yaml, toml or json config file.
	EnvConfigFile = "REPOGRAPH_CONFIG"

	// EnvEnvFile is the dotenv file loaded before reading the environment.
	EnvEnvFile = "REPOGRAPH_ENV_FILE"

	// EnvVaultTokenPath is the path in Vault KV where the GitHub token is stored.
	EnvVaultTokenPath = "VAULT_GITHUB_TOKEN_PATH"

	// EnvVaultTokenMount is the Vault KV mount point (defaults to "secret").
	EnvVaultTokenMount = "VAULT_GITHUB_TOKEN_MOUNT"
)

// Default values.
const (
	DefaultLogLevel   = "info"
	DefaultLogAppName = "repograph"
	DefaultMaxRetries = 3
	DefaultVaultMount = "secret"
	DefaultEnvFile    = ".env"

	// VaultTokenKey is the key holding the token inside the Vault secret.
	VaultTokenKey = "token"
)

// Config file keys.
const (
	keyToken             = "token"
	keyGitHubURL         = "github_url"
	keyAppID             = "app_id"
	keyAppInstallationID = "app_installation_id"
	keyAppPrivateKeyPath = "app_private_key_path"
	keyMaxRetries        = "max_retries"
	keyRepos             = "repos"
	keyOrgs              = "orgs"
	keyLogLevel          = "log_level"
	keyLogAppName        = "log_app_name"
)

// Configuration errors.
var (
	// ErrConfigFileNotFound indicates REPOGRAPH_CONFIG names a missing file.
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrConfigFileInvalid indicates the config file could not be parsed.
	ErrConfigFileInvalid = errors.New("configuration file is invalid")

	// ErrEnvFileInvalid indicates an explicitly named dotenv file could not be loaded.
	ErrEnvFileInvalid = errors.New("failed to load env file")

	// ErrInvalidNumber indicates a numeric setting is not a valid non-negative integer.
	ErrInvalidNumber = errors.New("invalid numeric setting")

	// ErrIncompleteAppCredentials indicates only part of the GitHub App credentials were set.
	ErrIncompleteAppCredentials = errors.New(
		"github app auth requires GITHUB_APP_ID, GITHUB_APP_INSTALLATION_ID and GITHUB_APP_PRIVATE_KEY_PATH",
	)

	// ErrPrivateKeyNotFound indicates the GitHub App private key file could not be read.
	ErrPrivateKeyNotFound = errors.New("github app private key not found")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = errors.New("github token not found in Vault")

	// ErrVaultTokenMissing indicates the Vault secret has no usable "token" key.
	ErrVaultTokenMissing = errors.New("vault secret has no token key")
)

// VaultClient defines the interface for Vault operations.
// This interface allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault with AppRole auth.
// Uses VAULT_ADDRESS, VAULT_ROLE_ID and VAULT_SECRET_ID.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// Config holds all application configuration.
type Config struct {
	// Token is the GitHub token. Empty means unauthenticated or prompt.
	Token string

	// GitHubURL is the GitHub Enterprise server URL, empty for github.com.
	GitHubURL string

	// AppID, InstallationID and AppPrivateKey hold GitHub App credentials.
	// AppID is zero when App auth is not configured.
	AppID          int64
	InstallationID int64
	AppPrivateKey  []byte

	// MaxRetries bounds retries of transient GitHub API failures.
	MaxRetries int

	// Repositories and Organizations are default roots used when no
	// roots are given on the command line.
	Repositories  []string
	Organizations []string

	// LogLevel is the logging level (debug, info, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string
}

// Load loads the application configuration.
//
// Precedence, highest first: environment variables (including values seeded
// from REPOGRAPH_ENV_FILE or ./.env), the REPOGRAPH_CONFIG file, then Vault
// for the token when VAULT_GITHUB_TOKEN_PATH is set and no other token or
// GitHub App is configured.
func Load() (*Config, error) {
	return LoadWithVaultClient(context.Background(), nil)
}

// LoadWithVaultClient loads configuration using the provided VaultClient factory.
// If vaultClientFactory is nil, DefaultVaultClientFactory is used.
// This function enables dependency injection for testing.
func LoadWithVaultClient(ctx context.Context, vaultClientFactory VaultClientFactory) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v, err := newViper()
	if err != nil {
		return nil, err
	}

	maxRetries, err := parseNonNegative(v, keyMaxRetries, EnvMaxRetries)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Token:         strings.TrimSpace(v.GetString(keyToken)),
		GitHubURL:     strings.TrimSpace(v.GetString(keyGitHubURL)),
		MaxRetries:    int(maxRetries),
		Repositories:  v.GetStringSlice(keyRepos),
		Organizations: v.GetStringSlice(keyOrgs),
		LogLevel:      v.GetString(keyLogLevel),
		LogAppName:    v.GetString(keyLogAppName),
	}

	if err := loadAppCredentials(v, cfg); err != nil {
		return nil, err
	}

	if cfg.Token == "" && cfg.AppID == 0 {
		if path := os.Getenv(EnvVaultTokenPath); path != "" {
			token, err := loadTokenFromVault(ctx, vaultClientFactory, path)
			if err != nil {
				return nil, err
			}
			cfg.Token = token
		}
	}

	return cfg, nil
}

// loadEnvFile seeds the environment from a dotenv file. Existing variables win.
// A missing default file is not an error; a missing explicit file is.
func loadEnvFile() error {
	path := os.Getenv(EnvEnvFile)
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w %s: %w", ErrEnvFileInvalid, path, err)
	}
	return nil
}

// newViper binds every key to its environment variable and reads the optional config file.
func newViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault(keyMaxRetries, DefaultMaxRetries)
	v.SetDefault(keyLogLevel, DefaultLogLevel)
	v.SetDefault(keyLogAppName, DefaultLogAppName)

	bindings := map[string]string{
		keyToken:             EnvGitHubToken,
		keyGitHubURL:         EnvGitHubURL,
		keyAppID:             EnvGitHubAppID,
		keyAppInstallationID: EnvGitHubAppInstallationID,
		keyAppPrivateKeyPath: EnvGitHubAppPrivateKeyPath,
		keyMaxRetries:        EnvMaxRetries,
		keyLogLevel:          EnvLogLevel,
		keyLogAppName:        EnvLogAppName,
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	path := os.Getenv(EnvConfigFile)
	if path == "" {
		return v, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigFileInvalid, path, err)
	}

	return v, nil
}

// loadAppCredentials fills the GitHub App fields. Either all three settings
// are present or none are.
func loadAppCredentials(v *viper.Viper, cfg *Config) error {
	keyPath := strings.TrimSpace(v.GetString(keyAppPrivateKeyPath))
	appID, err := parseNonNegative(v, keyAppID, EnvGitHubAppID)
	if err != nil {
		return err
	}
	installationID, err := parseNonNegative(v, keyAppInstallationID, EnvGitHubAppInstallationID)
	if err != nil {
		return err
	}

	set := 0
	for _, present := range []bool{appID != 0, installationID != 0, keyPath != ""} {
		if present {
			set++
		}
	}
	switch set {
	case 0:
		return nil
	case 3:
	default:
		return ErrIncompleteAppCredentials
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPrivateKeyNotFound, keyPath, err)
	}

	cfg.AppID = appID
	cfg.InstallationID = installationID
	cfg.AppPrivateKey = key
	return nil
}

// parseNonNegative reads key as a non-negative integer. Unset means zero.
func parseNonNegative(v *viper.Viper, key, env string) (int64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, env, raw)
	}
	return n, nil
}

// loadTokenFromVault reads the GitHub token from Vault KV v2.
func loadTokenFromVault(ctx context.Context, vaultClientFactory VaultClientFactory, path string) (string, error) {
	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		return "", err
	}

	mount := os.Getenv(EnvVaultTokenMount)
	if mount == "" {
		mount = DefaultVaultMount
	}

	secretData, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return "", fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}

	token, ok := secretData[VaultTokenKey].(string)
	if !ok || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w at path %s", ErrVaultTokenMissing, path)
	}

	return strings.TrimSpace(token), nil
}
