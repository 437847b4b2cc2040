package config

import "time"

// Default values.
const (
	DefaultChainID      = 1
	DefaultChainsFile   = "chains.json"
	DefaultFiatURL      = "https://min-api.cryptocompare.com/data/price"
	DefaultFiatCurrency = "USD"
	DefaultScryptN      = 1 << 18
	DefaultScryptP      = 1
	DefaultMaxInFlight  = 8
	DefaultRPCRate      = 10
	DefaultRPCBurst     = 20
	DefaultRPCTimeout   = 30 * time.Second
	DefaultReceiptPoll  = 4 * time.Second
	DefaultReceiptWait  = 10 * time.Minute
	DefaultGasTier      = "default"
	DefaultOutputFormat = "auto"
	DefaultLoggingLevel = "error"
	DefaultLogFile      = "satchel.log"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.satchel",
		Network: NetworkConfig{
			DefaultChainID:    DefaultChainID,
			ChainsFile:        DefaultChainsFile,
			RequestsPerSecond: DefaultRPCRate,
			Burst:             DefaultRPCBurst,
			Timeout:           DefaultRPCTimeout,
		},
		Security: SecurityConfig{
			ScryptN:    DefaultScryptN,
			ScryptP:    DefaultScryptP,
			MemoryLock: true,
		},
		Transfer: TransferConfig{
			GasTier:             DefaultGasTier,
			MaxInFlight:         DefaultMaxInFlight,
			ReceiptPollInterval: DefaultReceiptPoll,
			ReceiptTimeout:      DefaultReceiptWait,
		},
		Fiat: FiatConfig{
			Enabled:  true,
			URL:      DefaultFiatURL,
			Currency: DefaultFiatCurrency,
		},
		Output: OutputConfig{
			DefaultFormat: DefaultOutputFormat,
			Color:         "auto",
		},
		Logging: LoggingConfig{
			Level: DefaultLoggingLevel,
			File:  DefaultLogFile,
		},
	}
}
