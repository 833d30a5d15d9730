// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"context"
	"math"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/lasterror"
	"github.com/luxfi/confidential/ops"
)

var (
	owner    = common.HexToAddress("0x1000000000000000000000000000000000000000")
	alice    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob      = common.HexToAddress("0x1000000000000000000000000000000000000002")
	contract = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func newTestToken(t *testing.T) (*Token, *host.Env, *mock.Engine) {
	t.Helper()
	engine := mock.New(log.NewNoOpLogger(), [32]byte{11})
	env := host.NewEnv(log.NewNoOpLogger(), engine)
	tok := New(log.NewNoOpLogger(), owner, Config{
		Name:         "Confidential USD",
		Symbol:       "cUSD",
		Decimals:     DefaultDecimals,
		MaxBatchSize: 3,
	})
	return tok, env, engine
}

func exec(env *host.Env, caller common.Address, fn func(*host.Call) error) error {
	_, err := env.Execute(context.Background(), caller, contract, fn)
	return err
}

// input encrypts v client side for the caller of c and verifies it
func input(c *host.Call, engine *mock.Engine, v uint64) (confidential.EUint64, error) {
	inputs, err := engine.EncryptInput(contract, c.Caller()).Add64(v).Encrypt()
	if err != nil {
		return confidential.EUint64{}, err
	}
	return ops.FromExternal[confidential.Uint64](c, inputs[0])
}

func balance(t *testing.T, tok *Token, env *host.Env, engine *mock.Engine, who common.Address) uint64 {
	t.Helper()
	var v confidential.EUint64
	require.NoError(t, exec(env, who, func(c *host.Call) error {
		var err error
		v, err = tok.BalanceOf(c, who)
		return err
	}))
	if v.IsNull() {
		return 0
	}
	plain, err := engine.Decrypt(v.Handle())
	require.NoError(t, err)
	return plain.Uint64()
}

func TestMetadata(t *testing.T) {
	require := require.New(t)

	tok, _, _ := newTestToken(t)
	require.Equal("Confidential USD", tok.Name())
	require.Equal("cUSD", tok.Symbol())
	require.Equal(uint8(6), tok.Decimals())
	require.Equal(owner, tok.Owner())
	require.Zero(tok.TotalSupply())
}

func TestMint(t *testing.T) {
	require := require.New(t)

	tok, env, engine := newTestToken(t)
	require.NoError(exec(env, owner, func(c *host.Call) error {
		return tok.Mint(c, alice, 1000)
	}))
	require.Equal(uint64(1000), tok.TotalSupply())
	require.Equal(uint64(1000), balance(t, tok, env, engine, alice))

	err := exec(env, alice, func(c *host.Call) error {
		return tok.Mint(c, alice, 1000)
	})
	require.ErrorIs(err, confidential.ErrNotOwner)
	require.Equal(uint64(1000), tok.TotalSupply())
}

func TestMintOverflow(t *testing.T) {
	require := require.New(t)

	tok, env, engine := newTestToken(t)
	require.NoError(exec(env, owner, func(c *host.Call) error {
		return tok.Mint(c, alice, math.MaxUint64)
	}))
	err := exec(env, owner, func(c *host.Call) error {
		return tok.Mint(c, bob, 1)
	})
	require.ErrorIs(err, confidential.ErrOverflow)
	require.Equal(uint64(math.MaxUint64), tok.TotalSupply())
	require.False(tok.HasBalance(bob))
	require.Equal(uint64(math.MaxUint64), balance(t, tok, env, engine, alice))
}

func TestBatchMint(t *testing.T) {
	tests := []struct {
		name       string
		recipients []common.Address
		amounts    []uint64
		wantErr    error
		wantSupply uint64
	}{
		{
			name:       "within bound",
			recipients: []common.Address{alice, bob, alice},
			amounts:    []uint64{10, 20, 30},
			wantSupply: 60,
		},
		{
			name:       "too large",
			recipients: []common.Address{alice, bob, alice, bob},
			amounts:    []uint64{1, 2, 3, 4},
			wantErr:    confidential.ErrBatchTooLarge,
		},
		{
			name:       "length mismatch",
			recipients: []common.Address{alice},
			amounts:    []uint64{1, 2},
			wantErr:    confidential.ErrInvalidInput,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			tok, env, engine := newTestToken(t)
			err := exec(env, owner, func(c *host.Call) error {
				return tok.BatchMint(c, test.recipients, test.amounts)
			})
			require.ErrorIs(err, test.wantErr)
			require.Equal(test.wantSupply, tok.TotalSupply())
			if test.wantErr == nil {
				require.Equal(uint64(40), balance(t, tok, env, engine, alice))
				require.Equal(uint64(20), balance(t, tok, env, engine, bob))
			}
		})
	}
}

func TestTransferKeepsSupply(t *testing.T) {
	require := require.New(t)

	tok, env, engine := newTestToken(t)
	require.NoError(exec(env, owner, func(c *host.Call) error {
		return tok.Mint(c, alice, 1000)
	}))
	for _, amount := range []uint64{300, 5000} {
		require.NoError(exec(env, alice, func(c *host.Call) error {
			v, err := input(c, engine, amount)
			if err != nil {
				return err
			}
			return tok.Transfer(c, bob, v)
		}))
		require.Equal(uint64(1000), tok.TotalSupply())
	}
	require.Equal(uint64(700), balance(t, tok, env, engine, alice))
	require.Equal(uint64(300), balance(t, tok, env, engine, bob))

	var status confidential.EUint8
	require.NoError(exec(env, alice, func(c *host.Call) error {
		var err error
		status, err = tok.LastError(c, alice)
		return err
	}))
	plain, err := engine.Decrypt(status.Handle())
	require.NoError(err)
	require.Equal(uint64(lasterror.InsufficientBalance), plain.Uint64())
}

func TestTransferOwnership(t *testing.T) {
	require := require.New(t)

	tok, env, _ := newTestToken(t)
	err := exec(env, alice, func(c *host.Call) error {
		return tok.TransferOwnership(c, alice)
	})
	require.ErrorIs(err, confidential.ErrNotOwner)

	err = exec(env, owner, func(c *host.Call) error {
		return tok.TransferOwnership(c, common.Address{})
	})
	require.ErrorIs(err, confidential.ErrInvalidInput)

	require.NoError(exec(env, owner, func(c *host.Call) error {
		return tok.TransferOwnership(c, alice)
	}))
	require.Equal(alice, tok.Owner())
	require.NoError(exec(env, alice, func(c *host.Call) error {
		return tok.Mint(c, bob, 1)
	}))
}

func TestNoUnbackedCredit(t *testing.T) {
	require := require.New(t)

	tok, _, _ := newTestToken(t)
	_, canDeposit := any(tok).(interface {
		Deposit(*host.Call, confidential.EUint64) error
	})
	require.False(canDeposit)
	_, canCredit := any(tok).(interface {
		Credit(*host.Call, common.Address, confidential.EUint64) error
	})
	require.False(canCredit)
}

func TestSupplyBacksBalances(t *testing.T) {
	require := require.New(t)

	tok, env, engine := newTestToken(t)
	require.NoError(exec(env, owner, func(c *host.Call) error {
		return tok.BatchMint(c, []common.Address{alice, bob}, []uint64{700, 300})
	}))
	require.NoError(exec(env, alice, func(c *host.Call) error {
		v, err := input(c, engine, 250)
		if err != nil {
			return err
		}
		return tok.Transfer(c, bob, v)
	}))

	// a foreign handle cannot be spent as an amount
	var aliceBalance confidential.EUint64
	require.NoError(exec(env, alice, func(c *host.Call) error {
		var err error
		aliceBalance, err = tok.BalanceOf(c, alice)
		return err
	}))
	err := exec(env, bob, func(c *host.Call) error {
		return tok.Transfer(c, bob, aliceBalance)
	})
	require.ErrorIs(err, confidential.ErrNotAuthorized)

	alicePlain := balance(t, tok, env, engine, alice)
	bobPlain := balance(t, tok, env, engine, bob)
	require.Equal(uint64(450), alicePlain)
	require.Equal(uint64(550), bobPlain)
	require.Equal(tok.TotalSupply(), alicePlain+bobPlain)
}
