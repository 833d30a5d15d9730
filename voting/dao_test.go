// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package voting

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/gateway"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
)

var (
	admin = common.HexToAddress("0x1000000000000000000000000000000000000000")
	alice = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x1000000000000000000000000000000000000002")
	carol = common.HexToAddress("0x1000000000000000000000000000000000000003")
	daoID = common.HexToAddress("0x5000000000000000000000000000000000000005")
)

type harness struct {
	t      *testing.T
	env    *host.Env
	engine *mock.Engine
	dao    *DAO
}

func newHarness(t *testing.T) *harness {
	engine := mock.New(log.NewNoOpLogger(), [32]byte{29})
	env := host.NewEnv(log.NewNoOpLogger(), engine)
	g, err := gateway.New(log.NewNoOpLogger(), env.ACL(), engine, 8)
	require.NoError(t, err)
	return &harness{
		t:      t,
		env:    env,
		engine: engine,
		dao:    NewDAO(log.NewNoOpLogger(), "council", admin, g),
	}
}

func (h *harness) exec(caller common.Address, fn func(*host.Call) error) error {
	_, err := h.env.Execute(context.Background(), caller, daoID, fn)
	return err
}

func (h *harness) mint(to common.Address, amount uint64) {
	require.NoError(h.t, h.exec(admin, func(c *host.Call) error {
		return h.dao.MintTokens(c, to, amount)
	}))
}

func (h *harness) propose(duration uint64) uint64 {
	var id uint64
	require.NoError(h.t, h.exec(admin, func(c *host.Call) error {
		var err error
		id, err = h.dao.CreateProposal(c, "raise the cap", duration)
		return err
	}))
	return id
}

func (h *harness) vote(who common.Address, id uint64, support uint8) error {
	return h.exec(who, func(c *host.Call) error {
		inputs, err := h.engine.EncryptInput(daoID, who).Add8(support).Encrypt()
		if err != nil {
			return err
		}
		ballot, err := ops.FromExternal[confidential.Uint8](c, inputs[0])
		if err != nil {
			return err
		}
		return h.dao.Vote(c, id, ballot)
	})
}

func (h *harness) finalize(id uint64) (uint64, uint64) {
	var yes, no confidential.EUint64
	require.NoError(h.t, h.exec(carol, func(c *host.Call) error {
		var err error
		yes, no, err = h.dao.Finalize(c, id)
		return err
	}))

	acl := h.env.ACL()
	require.True(h.t, acl.IsPubliclyDecryptable(yes.Handle()))
	require.True(h.t, acl.IsPubliclyDecryptable(no.Handle()))

	y, err := h.engine.Decrypt(yes.Handle())
	require.NoError(h.t, err)
	n, err := h.engine.Decrypt(no.Handle())
	require.NoError(h.t, err)
	return y.Uint64(), n.Uint64()
}

func TestWeightedTally(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.mint(alice, 100)
	h.mint(bob, 40)
	h.mint(carol, 25)
	require.Equal(uint64(165), h.dao.TotalSupply())

	id := h.propose(10)
	require.NoError(h.vote(alice, id, 1))
	require.NoError(h.vote(bob, id, 0))
	// any non-zero ballot is in favor
	require.NoError(h.vote(carol, id, 7))

	p, err := h.dao.Proposal(id)
	require.NoError(err)
	require.Equal(3, p.Voters)

	h.env.AdvanceBlocks(10)
	yes, no := h.finalize(id)
	require.Equal(uint64(125), yes)
	require.Equal(uint64(40), no)

	require.NoError(h.exec(admin, func(c *host.Call) error {
		return h.dao.SetResults(context.Background(), c, id, yes, no)
	}))
	p, err = h.dao.Proposal(id)
	require.NoError(err)
	require.True(p.Revealed)
	require.Equal(uint64(125), p.YesResult)
	require.Equal(uint64(40), p.NoResult)
}

func TestVoteWithoutTokens(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	id := h.propose(5)
	require.NoError(h.vote(bob, id, 1))
	require.True(h.dao.HasVoted(id, bob))

	h.env.AdvanceBlocks(5)
	yes, no := h.finalize(id)
	require.Zero(yes)
	require.Zero(no)
}

func TestVoteRules(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.mint(alice, 10)
	id := h.propose(10)

	require.NoError(h.vote(alice, id, 1))
	require.ErrorIs(h.vote(alice, id, 0), confidential.ErrAlreadyExists)
	require.ErrorIs(h.vote(alice, 9, 1), confidential.ErrNotFound)
	require.False(h.dao.HasVoted(id, bob))

	// finalizing early is rejected
	err := h.exec(carol, func(c *host.Call) error {
		_, _, err := h.dao.Finalize(c, id)
		return err
	})
	require.ErrorIs(err, confidential.ErrInvalidInput)

	// results need a finalized proposal
	err = h.exec(admin, func(c *host.Call) error {
		return h.dao.SetResults(context.Background(), c, id, 1, 0)
	})
	require.ErrorIs(err, confidential.ErrInvalidInput)

	h.env.AdvanceBlocks(10)
	require.ErrorIs(h.vote(bob, id, 1), confidential.ErrClosed)
	h.finalize(id)

	err = h.exec(carol, func(c *host.Call) error {
		_, _, err := h.dao.Finalize(c, id)
		return err
	})
	require.ErrorIs(err, confidential.ErrClosed)

	require.NoError(h.exec(admin, func(c *host.Call) error {
		return h.dao.SetResults(context.Background(), c, id, 10, 0)
	}))
	err = h.exec(admin, func(c *host.Call) error {
		return h.dao.SetResults(context.Background(), c, id, 10, 0)
	})
	require.ErrorIs(err, confidential.ErrClosed)
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*DAO, *host.Call) error
	}{
		{
			name: "mint",
			fn: func(d *DAO, c *host.Call) error {
				return d.MintTokens(c, alice, 1)
			},
		},
		{
			name: "create proposal",
			fn: func(d *DAO, c *host.Call) error {
				_, err := d.CreateProposal(c, "mine", 1)
				return err
			},
		},
		{
			name: "set results",
			fn: func(d *DAO, c *host.Call) error {
				return d.SetResults(context.Background(), c, 0, 1, 1)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := h.exec(alice, func(c *host.Call) error {
				return tt.fn(h.dao, c)
			})
			require.ErrorIs(t, err, confidential.ErrNotAdmin)
		})
	}
}

func TestRevertedVote(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.mint(alice, 10)
	id := h.propose(10)
	before, _, err := h.dao.Tallies(id)
	require.NoError(err)

	err = h.exec(alice, func(c *host.Call) error {
		inputs, err := h.engine.EncryptInput(daoID, alice).Add8(1).Encrypt()
		if err != nil {
			return err
		}
		ballot, err := ops.FromExternal[confidential.Uint8](c, inputs[0])
		if err != nil {
			return err
		}
		if err := h.dao.Vote(c, id, ballot); err != nil {
			return err
		}
		return confidential.ErrInvalidInput
	})
	require.ErrorIs(err, confidential.ErrInvalidInput)

	require.False(h.dao.HasVoted(id, alice))
	after, _, err := h.dao.Tallies(id)
	require.NoError(err)
	require.Equal(before.Handle(), after.Handle())

	// the reverted ballot does not count
	require.NoError(h.vote(alice, id, 0))
	h.env.AdvanceBlocks(10)
	yes, no := h.finalize(id)
	require.Zero(yes)
	require.Equal(uint64(10), no)
}

func TestTokenBalanceOf(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.mint(alice, 33)

	var balance confidential.EUint64
	require.NoError(h.exec(alice, func(c *host.Call) error {
		var err error
		balance, err = h.dao.TokenBalanceOf(c, alice)
		return err
	}))
	plain, err := h.engine.Decrypt(balance.Handle())
	require.NoError(err)
	require.Equal(uint64(33), plain.Uint64())

	err = h.exec(bob, func(c *host.Call) error {
		_, err := h.dao.TokenBalanceOf(c, alice)
		return err
	})
	require.ErrorIs(err, confidential.ErrNotAuthorized)
	require.Equal(uint64(0), h.dao.ProposalCount())
}

func TestVoteWithForeignBallot(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.mint(alice, 10)
	id := h.propose(10)

	// a ballot verified for alice, handed to carol
	var ballot confidential.EUint8
	require.NoError(h.exec(alice, func(c *host.Call) error {
		inputs, err := h.engine.EncryptInput(daoID, alice).Add8(1).Encrypt()
		if err != nil {
			return err
		}
		ballot, err = ops.FromExternal[confidential.Uint8](c, inputs[0])
		if err != nil {
			return err
		}
		return c.ACL().Allow(c.Contract(), ballot.Handle(), c.Contract())
	}))

	err := h.exec(carol, func(c *host.Call) error {
		return h.dao.Vote(c, id, ballot)
	})
	require.ErrorIs(err, confidential.ErrNotAuthorized)
	require.False(h.dao.HasVoted(id, carol))
	require.False(h.env.ACL().IsAllowed(ballot.Handle(), carol))
}

func TestResultsMustMatchDisclosure(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.mint(alice, 30)
	h.mint(bob, 12)
	id := h.propose(4)
	require.NoError(h.vote(alice, id, 1))
	require.NoError(h.vote(bob, id, 0))
	h.env.AdvanceBlocks(4)
	yes, no := h.finalize(id)

	tests := []struct {
		name    string
		yes, no uint64
	}{
		{name: "inflated yes", yes: yes + 1, no: no},
		{name: "swapped", yes: no, no: yes},
		{name: "zeroed", yes: 0, no: 0},
	}
	for _, tt := range tests {
		err := h.exec(admin, func(c *host.Call) error {
			return h.dao.SetResults(context.Background(), c, id, tt.yes, tt.no)
		})
		require.ErrorIs(err, confidential.ErrInvalidInput, tt.name)
	}
	p, err := h.dao.Proposal(id)
	require.NoError(err)
	require.False(p.Revealed)
	require.Zero(p.YesResult)

	require.NoError(h.exec(admin, func(c *host.Call) error {
		return h.dao.SetResults(context.Background(), c, id, 30, 12)
	}))
	p, err = h.dao.Proposal(id)
	require.NoError(err)
	require.True(p.Revealed)
	require.Equal(uint64(30), p.YesResult)
	require.Equal(uint64(12), p.NoResult)
}
