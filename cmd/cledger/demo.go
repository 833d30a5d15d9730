// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/config"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/gateway"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/lasterror"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/ops"
)

var (
	alice        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol        = common.HexToAddress("0x00000000000000000000000000000000000ca201")
	demoContract = common.HexToAddress("0x0200000000000000000000000000000000000010")
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the reference ledger scenarios",
		Long: `Run deposit, transfer, allowance and withdrawal scenarios against an
in-process engine and check every decrypted outcome.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), logger, cfg, cmd.OutOrStdout())
		},
	}
}

type scenario struct {
	name string
	run  func(d *demo) error
}

var scenarios = []scenario{
	{"deposit is unconditional", depositScenario},
	{"transfer within balance", transferScenario},
	{"transfer over balance fails silently", insufficientBalanceScenario},
	{"transferFrom over allowance fails silently", insufficientAllowanceScenario},
	{"sequential transfers", sequentialScenario},
	{"withdraw from a fresh entry", freshWithdrawScenario},
}

// demo runs scenarios against one environment. Every scenario gets a fresh
// ledger.
type demo struct {
	ctx     context.Context
	log     log.Logger
	cfg     config.Config
	env     *host.Env
	engine  *mock.Engine
	gateway *gateway.Gateway
	ledger  *ledger.Ledger
	cost    uint64
}

func runDemo(ctx context.Context, logger log.Logger, cfg config.Config, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	registry := prometheus.NewRegistry()
	engine := mock.New(logger, cfg.Seed())
	env := host.NewEnv(logger, engine, host.WithMetrics(host.NewMetrics(registry)))
	g, err := gateway.New(logger, env.ACL(), engine, cfg.DecryptCacheSize)
	if err != nil {
		return err
	}
	d := &demo{
		ctx:     ctx,
		log:     logger,
		cfg:     cfg,
		env:     env,
		engine:  engine,
		gateway: g,
	}

	for i, s := range scenarios {
		d.ledger = ledger.New(logger, cfg.TokenConfig().Ledger...)
		d.cost = 0
		if err := s.run(d); err != nil {
			return fmt.Errorf("scenario %d (%s): %w", i+1, s.name, err)
		}
		fmt.Fprintf(w, "scenario %d: %-44s ok  cost=%d\n", i+1, s.name, d.cost)
	}
	logger.Info("demo finished",
		log.Int("scenarios", len(scenarios)),
		log.Int("ciphertexts", engine.Len()),
	)

	if !cfg.MetricsEnabled {
		return nil
	}
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (d *demo) exec(caller common.Address, fn func(*host.Call) error) error {
	receipt, err := d.env.Execute(d.ctx, caller, demoContract, fn)
	d.cost += receipt.Cost
	return err
}

func (d *demo) input(c *host.Call, v uint64) (confidential.EUint64, error) {
	inputs, err := d.engine.EncryptInput(demoContract, c.Caller()).Add64(v).Encrypt()
	if err != nil {
		return confidential.EUint64{}, err
	}
	return ops.FromExternal[confidential.Uint64](c, inputs[0])
}

func (d *demo) deposit(who common.Address, v uint64) error {
	return d.exec(who, func(c *host.Call) error {
		amount, err := d.input(c, v)
		if err != nil {
			return err
		}
		return d.ledger.Deposit(c, amount)
	})
}

func (d *demo) transfer(from, to common.Address, v uint64) error {
	return d.exec(from, func(c *host.Call) error {
		amount, err := d.input(c, v)
		if err != nil {
			return err
		}
		return d.ledger.Transfer(c, to, amount)
	})
}

func (d *demo) approve(owner, spender common.Address, v uint64) error {
	return d.exec(owner, func(c *host.Call) error {
		amount, err := d.input(c, v)
		if err != nil {
			return err
		}
		return d.ledger.Approve(c, spender, amount)
	})
}

func (d *demo) transferFrom(spender, owner, to common.Address, v uint64) error {
	return d.exec(spender, func(c *host.Call) error {
		amount, err := d.input(c, v)
		if err != nil {
			return err
		}
		return d.ledger.TransferFrom(c, owner, to, amount)
	})
}

func (d *demo) withdraw(who common.Address, v uint64) (uint64, error) {
	var effective confidential.EUint64
	err := d.exec(who, func(c *host.Call) error {
		amount, err := d.input(c, v)
		if err != nil {
			return err
		}
		effective, err = d.ledger.Withdraw(c, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	return d.gateway.DecryptUint64(d.ctx, effective, who, demoContract)
}

func (d *demo) balance(who common.Address) (uint64, error) {
	var v confidential.EUint64
	err := d.exec(who, func(c *host.Call) error {
		var err error
		v, err = d.ledger.BalanceOf(c, who)
		return err
	})
	if err != nil {
		return 0, err
	}
	return d.gateway.DecryptUint64(d.ctx, v, who, demoContract)
}

func (d *demo) allowance(owner, spender common.Address) (uint64, error) {
	var v confidential.EUint64
	err := d.exec(owner, func(c *host.Call) error {
		var err error
		v, err = d.ledger.Allowance(c, owner, spender)
		return err
	})
	if err != nil {
		return 0, err
	}
	return d.gateway.DecryptUint64(d.ctx, v, owner, demoContract)
}

func (d *demo) status(who common.Address) (lasterror.Code, error) {
	var v confidential.EUint8
	err := d.exec(who, func(c *host.Call) error {
		var err error
		v, err = d.ledger.LastError(c, who)
		return err
	})
	if err != nil {
		return 0, err
	}
	code, err := d.gateway.DecryptUint8(d.ctx, v, who, demoContract)
	return lasterror.Code(code), err
}

func (d *demo) expectBalance(who common.Address, want uint64) error {
	got, err := d.balance(who)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("balance of %s is %d, expected %d", who, got, want)
	}
	return nil
}

func (d *demo) expectStatus(who common.Address, want lasterror.Code) error {
	got, err := d.status(who)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("status of %s is %q, expected %q", who, got, want)
	}
	return nil
}
