// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/confidential/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cledger",
		Short: "Confidential ledger host",
		Long: `cledger hosts a confidential token ledger over an FHE engine.

Balances, allowances and error statuses are stored as ciphertext handles.
Guarded operations never revert on business failures; the outcome is
recorded as an encrypted status readable only by the caller.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newDemoCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cledger %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildDate)
		},
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.BuildViper(cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	return config.NewConfig(v)
}
