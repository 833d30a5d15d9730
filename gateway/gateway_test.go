// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
)

var (
	alice    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob      = common.HexToAddress("0x1000000000000000000000000000000000000002")
	contract = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func newTestGateway(t *testing.T) (*Gateway, *host.Env) {
	t.Helper()
	engine := mock.New(log.NewNoOpLogger(), [32]byte{19})
	env := host.NewEnv(log.NewNoOpLogger(), engine)
	g, err := New(log.NewNoOpLogger(), env.ACL(), engine, 8)
	require.NoError(t, err)
	return g, env
}

// produce encrypts v and grants it to each principal in grantees
func produce(t *testing.T, env *host.Env, v uint64, grantees ...common.Address) confidential.EUint64 {
	t.Helper()
	var out confidential.EUint64
	_, err := env.Execute(context.Background(), alice, contract, func(c *host.Call) error {
		var err error
		if out, err = ops.EncryptUint64(c, v); err != nil {
			return err
		}
		for _, p := range grantees {
			if err := c.ACL().Allow(c.Contract(), out.Handle(), p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestUserDecrypt(t *testing.T) {
	require := require.New(t)

	g, env := newTestGateway(t)
	ctx := context.Background()
	v := produce(t, env, 1234, contract, alice)

	plain, err := g.DecryptUint64(ctx, v, alice, contract)
	require.NoError(err)
	require.Equal(uint64(1234), plain)

	// served from the cache
	plain, err = g.DecryptUint64(ctx, v, alice, contract)
	require.NoError(err)
	require.Equal(uint64(1234), plain)
	require.Equal(1, g.cache.Len())

	_, err = g.DecryptUint64(ctx, v, bob, contract)
	require.ErrorIs(err, confidential.ErrNotAuthorized)

	_, err = g.PublicUint64(ctx, v)
	require.ErrorIs(err, confidential.ErrNotAuthorized)
}

func TestUserDecryptRequiresContractGrant(t *testing.T) {
	require := require.New(t)

	g, env := newTestGateway(t)
	v := produce(t, env, 5, alice)

	_, err := g.DecryptUint64(context.Background(), v, alice, contract)
	require.ErrorIs(err, confidential.ErrNotAuthorized)
}

func TestDecryptNull(t *testing.T) {
	require := require.New(t)

	g, _ := newTestGateway(t)
	plain, err := g.DecryptUint64(context.Background(), confidential.EUint64{}, alice, contract)
	require.NoError(err)
	require.Zero(plain)
}

func TestPublicDecrypt(t *testing.T) {
	require := require.New(t)

	g, env := newTestGateway(t)
	var tally confidential.EUint64
	var winner confidential.EAddress
	_, err := env.Execute(context.Background(), alice, contract, func(c *host.Call) error {
		var err error
		if tally, err = ops.EncryptUint64(c, 77); err != nil {
			return err
		}
		if winner, err = ops.EncryptAddress(c, bob); err != nil {
			return err
		}
		if err := c.ACL().MakePubliclyDecryptable(c.Contract(), tally.Handle()); err != nil {
			return err
		}
		return c.ACL().MakePubliclyDecryptable(c.Contract(), winner.Handle())
	})
	require.NoError(err)

	ctx := context.Background()
	plain, err := g.PublicUint64(ctx, tally)
	require.NoError(err)
	require.Equal(uint64(77), plain)

	addr, err := g.PublicAddress(ctx, winner)
	require.NoError(err)
	require.Equal(bob, addr)
}

func TestCanceledContext(t *testing.T) {
	require := require.New(t)

	g, env := newTestGateway(t)
	v := produce(t, env, 1, contract, alice)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.UserDecrypt(ctx, v.Handle(), alice, contract)
	require.ErrorIs(err, context.Canceled)
	_, err = g.PublicDecrypt(ctx, v.Handle())
	require.ErrorIs(err, context.Canceled)
}
