package config

// DefaultRPCURL is the default node endpoint.
// Uses the PublicNode Sepolia endpoint, which requires no API key.
const DefaultRPCURL = "https://ethereum-sepolia-rpc.publicnode.com"

// DefaultChainID is the Sepolia chain id.
const DefaultChainID = 11155111

// DefaultProviderURL is the local JSON-RPC endpoint of a provider wallet.
const DefaultProviderURL = "http://127.0.0.1:1248"

// Tuning defaults.
const (
	DefaultConfirmPollSeconds = 4
	DefaultProbeTimeoutMS     = 1500
	DefaultRateLimit          = 10
	DefaultRateBurst          = 20
	DefaultAPIListen          = "127.0.0.1:8750"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.krypt",
		Network: NetworkConfig{
			RPC:                DefaultRPCURL,
			ChainID:            DefaultChainID,
			Contract:           "",
			ConfirmPollSeconds: DefaultConfirmPollSeconds,
			RecordGasLimit:     0, // let the wallet estimate
			RateLimit:          DefaultRateLimit,
			RateBurst:          DefaultRateBurst,
		},
		Wallet: WalletConfig{
			Mode:           WalletModeProvider,
			ProviderURL:    DefaultProviderURL,
			ProbeTimeoutMS: DefaultProbeTimeoutMS,
		},
		Cache: CacheConfig{
			Backend: CacheBackendFile,
		},
		API: APIConfig{
			Listen: DefaultAPIListen,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.krypt/krypt.log",
		},
	}
}
