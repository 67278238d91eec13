// Package config provides configuration management for Krypt.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/krypt/internal/fileutil"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// Wallet modes.
const (
	WalletModeProvider = "provider"
	WalletModeKeystore = "keystore"
)

// Cache backends.
const (
	CacheBackendFile   = "file"
	CacheBackendBadger = "badger"
)

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version"`
	Home    string        `yaml:"home"`
	Network NetworkConfig `yaml:"network"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Cache   CacheConfig   `yaml:"cache"`
	API     APIConfig     `yaml:"api"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// NetworkConfig defines the node and ledger contract settings.
type NetworkConfig struct {
	RPC                string  `yaml:"rpc"`
	ChainID            int64   `yaml:"chain_id"`
	Contract           string  `yaml:"contract"`
	ConfirmPollSeconds int     `yaml:"confirm_poll_seconds"`
	RecordGasLimit     uint64  `yaml:"record_gas_limit"`
	RateLimit          float64 `yaml:"rate_limit"`
	RateBurst          int     `yaml:"rate_burst"`
}

// WalletConfig defines which wallet gateway is used and how it is reached.
type WalletConfig struct {
	Mode           string `yaml:"mode"`
	ProviderURL    string `yaml:"provider_url"`
	ProbeTimeoutMS int    `yaml:"probe_timeout_ms"`
	KeystoreDir    string `yaml:"keystore_dir"`
}

// CacheConfig defines the transaction counter cache backend.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// APIConfig defines the HTTP API settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, krypterr.WithDetails(krypterr.ErrConfigNotFound, map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, krypterr.Translate(krypterr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	invalid := func(field, value string) error {
		return krypterr.WithDetails(krypterr.ErrConfigInvalid, map[string]string{field: value})
	}

	switch c.Wallet.Mode {
	case WalletModeProvider, WalletModeKeystore:
	default:
		return invalid("wallet.mode", c.Wallet.Mode)
	}

	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendBadger:
	default:
		return invalid("cache.backend", c.Cache.Backend)
	}

	if c.Network.Contract != "" && !common.IsHexAddress(c.Network.Contract) {
		return invalid("network.contract", c.Network.Contract)
	}

	switch c.Output.DefaultFormat {
	case "auto", "text", "json":
	default:
		return invalid("output.default_format", c.Output.DefaultFormat)
	}

	if c.Network.RateLimit < 0 {
		return invalid("network.rate_limit", fmt.Sprintf("%g", c.Network.RateLimit))
	}

	return nil
}

// GetHome returns the krypt home directory path.
func (c *Config) GetHome() string {
	return expandHome(c.Home)
}

// GetRPC returns the node RPC URL.
func (c *Config) GetRPC() string {
	return c.Network.RPC
}

// GetContract returns the ledger contract address.
func (c *Config) GetContract() string {
	return c.Network.Contract
}

// ConfirmPoll returns the receipt polling interval.
func (c *Config) ConfirmPoll() time.Duration {
	if c.Network.ConfirmPollSeconds <= 0 {
		return time.Duration(DefaultConfirmPollSeconds) * time.Second
	}
	return time.Duration(c.Network.ConfirmPollSeconds) * time.Second
}

// ProbeTimeout returns the wallet availability probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	if c.Wallet.ProbeTimeoutMS <= 0 {
		return time.Duration(DefaultProbeTimeoutMS) * time.Millisecond
	}
	return time.Duration(c.Wallet.ProbeTimeoutMS) * time.Millisecond
}

// KeystorePath returns the directory holding the local keystore wallet.
func (c *Config) KeystorePath() string {
	if c.Wallet.KeystoreDir != "" {
		return c.resolve(c.Wallet.KeystoreDir)
	}
	return filepath.Join(c.GetHome(), "wallet")
}

// CachePath returns the location of the counter cache for the configured backend.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.resolve(c.Cache.Path)
	}
	if c.Cache.Backend == CacheBackendBadger {
		return filepath.Join(c.GetHome(), "cache", "badger")
	}
	return filepath.Join(c.GetHome(), "cache", "counter.json")
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// resolve expands ~ and anchors relative paths at the home directory.
func (c *Config) resolve(p string) string {
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.GetHome(), p)
}

// DefaultHome returns the default krypt home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".krypt"
	}
	return filepath.Join(home, ".krypt")
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
