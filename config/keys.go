// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Environment variable keys
	ConfigFileEnvKey = "CONFIG_FILE"

	// Top-level configuration keys
	LogLevelKey         = "log-level"
	MetricsEnabledKey   = "metrics-enabled"
	TokenNameKey        = "token-name"
	TokenSymbolKey      = "token-symbol"
	TokenDecimalsKey    = "token-decimals"
	MaxTransferKey      = "max-transfer"
	MaxBatchSizeKey     = "max-batch-size"
	RateLimitBlocksKey  = "rate-limit-blocks"
	DecryptCacheSizeKey = "decrypt-cache-size"
	EngineSeedKey       = "engine-seed"
)
