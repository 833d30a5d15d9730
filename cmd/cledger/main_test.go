// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/confidential/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestDemoCommand(t *testing.T) {
	require := require.New(t)

	out := execute(t, "demo", "--log-level=error", "--metrics-enabled")
	for i := range scenarios {
		require.Contains(out, scenarios[i].name)
	}
	require.Contains(out, "operations_total")
	require.Contains(out, "fhe_cost_total")
}

func TestDemoWithoutCap(t *testing.T) {
	require := require.New(t)

	out := execute(t, "demo", "--log-level=error", "--max-transfer=0")
	require.Contains(out, "scenario 6")
	require.NotContains(out, "operations_total")
}

func TestRunDemoCanceled(t *testing.T) {
	require := require.New(t)

	cfg := config.Config{
		LogLevel:         "info",
		TokenName:        "t",
		TokenSymbol:      "t",
		MaxBatchSize:     1,
		DecryptCacheSize: 1,
	}
	require.NoError(cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runDemo(ctx, log.NewNoOpLogger(), cfg, &bytes.Buffer{})
	require.ErrorIs(err, context.Canceled)
}

func TestConfigCommand(t *testing.T) {
	require := require.New(t)

	out := execute(t, "config", "--token-symbol=SHH", "--rate-limit-blocks=2")
	var cfg config.Config
	require.NoError(json.Unmarshal([]byte(out), &cfg))
	require.Equal("SHH", cfg.TokenSymbol)
	require.Equal(uint64(2), cfg.RateLimitBlocks)
}

func TestVersionCommand(t *testing.T) {
	require.Contains(t, execute(t, "version"), "cledger "+version)
}

func TestInvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"demo", "--max-batch-size=0"})
	require.Error(t, cmd.Execute())
}

func TestNewLogger(t *testing.T) {
	require := require.New(t)

	var out bytes.Buffer
	logger, err := newLogger(&out, "WARN")
	require.NoError(err)
	logger.Info("quiet")
	logger.Warn("loud")
	require.NotContains(out.String(), "quiet")
	require.Contains(out.String(), "loud")

	_, err = newLogger(&out, "crit")
	require.Error(err)
}
