// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the ledger host configuration from flags, an
// optional JSON file and the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/token"
)

const (
	defaultLogLevel    = "info"
	defaultTokenName   = "Confidential Token"
	defaultTokenSymbol = "CTKN"
	maxDecimals        = 18
)

var (
	errEmptyName       = errors.New("token name must not be empty")
	errEmptySymbol     = errors.New("token symbol must not be empty")
	errDecimals        = errors.New("token decimals out of range")
	errBatchSize       = errors.New("max batch size must be positive")
	errCacheSize       = errors.New("decrypt cache size must be positive")
	errInvalidSeed     = errors.New("engine seed must be 32 hex-encoded bytes")
	errUnknownLogLevel = errors.New("unknown log level")
)

type Config struct {
	LogLevel         string `mapstructure:"log-level" json:"log-level"`
	MetricsEnabled   bool   `mapstructure:"metrics-enabled" json:"metrics-enabled"`
	TokenName        string `mapstructure:"token-name" json:"token-name"`
	TokenSymbol      string `mapstructure:"token-symbol" json:"token-symbol"`
	TokenDecimals    uint8  `mapstructure:"token-decimals" json:"token-decimals"`
	MaxTransfer      uint64 `mapstructure:"max-transfer" json:"max-transfer"`
	MaxBatchSize     int    `mapstructure:"max-batch-size" json:"max-batch-size"`
	RateLimitBlocks  uint64 `mapstructure:"rate-limit-blocks" json:"rate-limit-blocks"`
	DecryptCacheSize int    `mapstructure:"decrypt-cache-size" json:"decrypt-cache-size"`
	EngineSeed       string `mapstructure:"engine-seed" json:"engine-seed"`

	// derived
	seed [32]byte
}

func (c *Config) Validate() error {
	if _, err := log.ToLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, c.LogLevel)
	}
	if c.TokenName == "" {
		return errEmptyName
	}
	if c.TokenSymbol == "" {
		return errEmptySymbol
	}
	if c.TokenDecimals > maxDecimals {
		return fmt.Errorf("%w: %d > %d", errDecimals, c.TokenDecimals, maxDecimals)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: %d", errBatchSize, c.MaxBatchSize)
	}
	if c.DecryptCacheSize <= 0 {
		return fmt.Errorf("%w: %d", errCacheSize, c.DecryptCacheSize)
	}
	if c.EngineSeed != "" {
		raw := common.FromHex(c.EngineSeed)
		if len(raw) != len(c.seed) {
			return fmt.Errorf("%w: got %d bytes", errInvalidSeed, len(raw))
		}
		copy(c.seed[:], raw)
	}
	return nil
}

// Seed returns the engine key seed. It is all zeros unless one was set.
func (c *Config) Seed() [32]byte {
	return c.seed
}

// TokenConfig returns the token settings described by c
func (c *Config) TokenConfig() token.Config {
	opts := []ledger.Option{ledger.WithMaxTransfer(c.MaxTransfer)}
	if c.RateLimitBlocks > 0 {
		opts = append(opts, ledger.WithRateLimit(c.RateLimitBlocks))
	}
	return token.Config{
		Name:         c.TokenName,
		Symbol:       c.TokenSymbol,
		Decimals:     c.TokenDecimals,
		MaxBatchSize: c.MaxBatchSize,
		Ledger:       opts,
	}
}
