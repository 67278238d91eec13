package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome         = "KRYPT_HOME"
	EnvRPC          = "KRYPT_RPC"
	EnvContract     = "KRYPT_CONTRACT"
	EnvWalletMode   = "KRYPT_WALLET_MODE"
	EnvWalletURL    = "KRYPT_WALLET_URL"
	EnvCacheBackend = "KRYPT_CACHE_BACKEND"
	EnvOutputFormat = "KRYPT_OUTPUT_FORMAT"
	EnvVerbose      = "KRYPT_VERBOSE"
	EnvLogLevel     = "KRYPT_LOG_LEVEL"
	EnvAPIListen    = "KRYPT_API_LISTEN"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvRPC); v != "" {
		cfg.Network.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvContract); v != "" {
		cfg.Network.Contract = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvWalletMode); v != "" {
		cfg.Wallet.Mode = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvWalletURL); v != "" {
		cfg.Wallet.ProviderURL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvCacheBackend); v != "" {
		cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvAPIListen); v != "" {
		cfg.API.Listen = strings.TrimSpace(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims whitespace and stray quotes left over from copy-paste.
func SanitizeURL(url string) string {
	return strings.Trim(strings.TrimSpace(url), `"'`)
}
