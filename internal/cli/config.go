package cli

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/mrz1836/krypt/internal/config"
	"github.com/mrz1836/krypt/internal/output"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// configKey is one settable configuration value.
type configKey struct {
	get func(c *config.Config) string
	set func(c *config.Config, value string) error
}

// configKeys maps dot paths to configuration values.
//
//nolint:gochecknoglobals // Static lookup table
var configKeys = map[string]configKey{
	"network.rpc": {
		get: func(c *config.Config) string { return c.Network.RPC },
		set: func(c *config.Config, v string) error { c.Network.RPC = v; return nil },
	},
	"network.chain_id": {
		get: func(c *config.Config) string { return strconv.FormatInt(c.Network.ChainID, 10) },
		set: func(c *config.Config, v string) error { return parseInto(v, &c.Network.ChainID) },
	},
	"network.contract": {
		get: func(c *config.Config) string { return c.Network.Contract },
		set: func(c *config.Config, v string) error { c.Network.Contract = v; return nil },
	},
	"network.confirm_poll_seconds": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Network.ConfirmPollSeconds) },
		set: func(c *config.Config, v string) error { return parseInto(v, &c.Network.ConfirmPollSeconds) },
	},
	"network.record_gas_limit": {
		get: func(c *config.Config) string { return strconv.FormatUint(c.Network.RecordGasLimit, 10) },
		set: func(c *config.Config, v string) error { return parseInto(v, &c.Network.RecordGasLimit) },
	},
	"wallet.mode": {
		get: func(c *config.Config) string { return c.Wallet.Mode },
		set: func(c *config.Config, v string) error { c.Wallet.Mode = v; return nil },
	},
	"wallet.provider_url": {
		get: func(c *config.Config) string { return c.Wallet.ProviderURL },
		set: func(c *config.Config, v string) error { c.Wallet.ProviderURL = v; return nil },
	},
	"wallet.keystore_dir": {
		get: func(c *config.Config) string { return c.Wallet.KeystoreDir },
		set: func(c *config.Config, v string) error { c.Wallet.KeystoreDir = v; return nil },
	},
	"cache.backend": {
		get: func(c *config.Config) string { return c.Cache.Backend },
		set: func(c *config.Config, v string) error { c.Cache.Backend = v; return nil },
	},
	"cache.path": {
		get: func(c *config.Config) string { return c.Cache.Path },
		set: func(c *config.Config, v string) error { c.Cache.Path = v; return nil },
	},
	"api.listen": {
		get: func(c *config.Config) string { return c.API.Listen },
		set: func(c *config.Config, v string) error { c.API.Listen = v; return nil },
	},
	"output.default_format": {
		get: func(c *config.Config) string { return c.Output.DefaultFormat },
		set: func(c *config.Config, v string) error { c.Output.DefaultFormat = v; return nil },
	},
	"logging.level": {
		get: func(c *config.Config) string { return c.Logging.Level },
		set: func(c *config.Config, v string) error { c.Logging.Level = v; return nil },
	},
	"logging.file": {
		get: func(c *config.Config) string { return c.Logging.File },
		set: func(c *config.Config, v string) error { c.Logging.File = v; return nil },
	},
}

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify Krypt configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.krypt/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  krypt config init
  krypt config init --contract 0x...`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration, after environment overrides.

Example:
  krypt config show
  krypt config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configGetCmd gets one configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Print one configuration value by its dot path.

Examples:
  krypt config get network.contract
  krypt config get wallet.mode`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets one configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set one configuration value by its dot path and save the file.

Examples:
  krypt config set network.contract 0x...
  krypt config set wallet.mode keystore
  krypt config set cache.backend badger`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	configForce    bool
	configContract string
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configGetCmd, configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
	configInitCmd.Flags().StringVar(&configContract, "contract", "", "ledger contract address")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return krypterr.WithSuggestion(
			krypterr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home
	defaultCfg.Network.Contract = configContract
	if err := defaultCfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - network.rpc: node RPC endpoint")
	outln(w, "  - network.contract: ledger contract address")
	outln(w, "  - wallet.mode: provider or keystore")
	outln(w, "  - cache.backend: file or badger")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	values := make(map[string]string, len(configKeys))
	for path, key := range configKeys {
		values[path] = key.get(cfg)
	}

	return commandFormatter(cmd).Result(values, func(w io.Writer) error {
		t := output.NewTable("KEY", "VALUE")
		for _, path := range slices.Sorted(maps.Keys(values)) {
			t.AddRow(path, values[path])
		}
		return t.Render(w)
	})
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key, err := lookupConfigKey(args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), key.get(cfg))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]
	key, err := lookupConfigKey(path)
	if err != nil {
		return err
	}

	configPath := config.Path(cfg.Home)
	current, err := config.Load(configPath)
	if err != nil {
		if !krypterr.Is(err, krypterr.ErrConfigNotFound) {
			return err
		}
		current = config.Defaults()
		current.Home = cfg.Home
	}

	if err := key.set(current, value); err != nil {
		return krypterr.WithDetails(krypterr.ErrConfigInvalid, map[string]string{path: value})
	}
	if err := current.Validate(); err != nil {
		return err
	}
	if err := config.Save(current, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", path, value)
	return nil
}

func lookupConfigKey(path string) (configKey, error) {
	if key, ok := configKeys[path]; ok {
		return key, nil
	}

	err := krypterr.WithDetails(krypterr.ErrInvalidInput, map[string]string{"key": path})
	best, bestDist := "", 4
	for candidate := range configKeys {
		if d := levenshtein.ComputeDistance(path, candidate); d < bestDist || (d == bestDist && candidate < best) {
			best, bestDist = candidate, d
		}
	}
	if best != "" {
		err = krypterr.WithSuggestion(err, fmt.Sprintf("did you mean '%s'?", best))
	}
	return configKey{}, err
}

func parseInto[T int | int64 | uint64](s string, dst *T) error {
	var (
		v   T
		err error
	)
	switch p := any(&v).(type) {
	case *int:
		*p, err = strconv.Atoi(s)
	case *int64:
		*p, err = strconv.ParseInt(s, 10, 64)
	case *uint64:
		*p, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
