package config

import (
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SATCHEL"

// EnvNoColor disables colored output when present, whatever its value.
const EnvNoColor = "NO_COLOR"

// environment lists the supported overrides. Unset variables leave the
// corresponding field nil.
type environment struct {
	Home         *string        `split_words:"true"`
	ChainID      *uint64        `split_words:"true"`
	ChainsFile   *string        `split_words:"true"`
	RPCRate      *float64       `split_words:"true"`
	RPCTimeout   *time.Duration `split_words:"true"`
	ScryptN      *int           `split_words:"true"`
	GasTier      *string        `split_words:"true"`
	FiatURL      *string        `split_words:"true"`
	FiatEnabled  *bool          `split_words:"true"`
	OutputFormat *string        `split_words:"true"`
	Verbose      *bool
	LogLevel     *string `split_words:"true"`
	LogFile      *string `split_words:"true"`
}

// ApplyEnvironment applies SATCHEL_* overrides to cfg.
//
//nolint:gocyclo // one branch per supported variable
func ApplyEnvironment(cfg *Config) error {
	var env environment
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return satchelerr.WithCause(satchelerr.ErrConfigInvalid, err)
	}

	if env.Home != nil {
		cfg.Home = strings.TrimSpace(*env.Home)
	}
	if env.ChainID != nil {
		cfg.Network.DefaultChainID = *env.ChainID
	}
	if env.ChainsFile != nil {
		cfg.Network.ChainsFile = strings.TrimSpace(*env.ChainsFile)
	}
	if env.RPCRate != nil {
		cfg.Network.RequestsPerSecond = *env.RPCRate
	}
	if env.RPCTimeout != nil {
		cfg.Network.Timeout = *env.RPCTimeout
	}
	if env.ScryptN != nil {
		cfg.Security.ScryptN = *env.ScryptN
	}
	if env.GasTier != nil {
		cfg.Transfer.GasTier = strings.ToLower(strings.TrimSpace(*env.GasTier))
	}
	if env.FiatURL != nil {
		cfg.Fiat.URL = strings.TrimSpace(*env.FiatURL)
	}
	if env.FiatEnabled != nil {
		cfg.Fiat.Enabled = *env.FiatEnabled
	}
	if env.OutputFormat != nil {
		cfg.Output.DefaultFormat = strings.ToLower(*env.OutputFormat)
	}
	if env.Verbose != nil {
		cfg.Output.Verbose = *env.Verbose
	}
	if env.LogLevel != nil {
		cfg.Logging.Level = strings.ToLower(*env.LogLevel)
	}
	if env.LogFile != nil {
		cfg.Logging.File = *env.LogFile
	}

	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
	return nil
}
