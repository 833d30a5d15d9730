// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/confidential/gateway"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/token"
)

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// AddFlags registers every configuration key on fs
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "path to a JSON configuration file")
	fs.String(LogLevelKey, defaultLogLevel, "log level")
	fs.Bool(MetricsEnabledKey, false, "print collected metrics on exit")
	fs.String(TokenNameKey, defaultTokenName, "token name")
	fs.String(TokenSymbolKey, defaultTokenSymbol, "token symbol")
	fs.Uint8(TokenDecimalsKey, token.DefaultDecimals, "token decimals")
	fs.Uint64(MaxTransferKey, ledger.DefaultMaxTransfer, "public cap on a single transfer, 0 disables it")
	fs.Int(MaxBatchSizeKey, token.DefaultMaxBatchSize, "maximum recipients of a batch mint")
	fs.Uint64(RateLimitBlocksKey, 0, "blocks between transfers of one sender, 0 disables it")
	fs.Int(DecryptCacheSizeKey, gateway.DefaultCacheSize, "number of cached plaintexts")
	fs.String(EngineSeedKey, "", "hex-encoded 32 byte engine seed")
}

// Build the viper instance. The config file is optional and may be provided
// via the command line flag or environment variable. All config keys may be
// provided via config file or environment variable.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	filename := v.GetString(ConfigFileKey)
	if filename == "" {
		filename = os.Getenv(ConfigFileEnvKey)
	}
	if filename == "" {
		return v, nil
	}
	v.SetConfigFile(filename)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}
	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(MetricsEnabledKey, false)
	v.SetDefault(TokenNameKey, defaultTokenName)
	v.SetDefault(TokenSymbolKey, defaultTokenSymbol)
	v.SetDefault(TokenDecimalsKey, token.DefaultDecimals)
	v.SetDefault(MaxTransferKey, ledger.DefaultMaxTransfer)
	v.SetDefault(MaxBatchSizeKey, token.DefaultMaxBatchSize)
	v.SetDefault(RateLimitBlocksKey, 0)
	v.SetDefault(DecryptCacheSizeKey, gateway.DefaultCacheSize)
}

// BuildConfig constructs the config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}
