// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package voting runs token-weighted proposals over encrypted ballots. Each
// vote adds the voter's encrypted weight to exactly one of two encrypted
// tallies through select, so neither the ballot nor the weight is revealed.
// Finalizing a proposal publicly discloses the tallies; the admin then
// records the decrypted results, which must match the public decryption.
package voting

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/ops"
)

// Proposal is the public state of a proposal
type Proposal struct {
	ID        uint64
	Title     string
	Deadline  uint64
	Voters    int
	Finalized bool
	Revealed  bool
	YesResult uint64
	NoResult  uint64
}

type proposal struct {
	info   Proposal
	voters set.Set[common.Address]
	yes    confidential.EUint64
	no     confidential.EUint64
}

// Disclosure decrypts publicly disclosed values. *gateway.Gateway
// implements it.
type Disclosure interface {
	PublicUint64(ctx context.Context, v confidential.EUint64) (uint64, error)
}

// DAO holds governance token balances and proposals
type DAO struct {
	log        log.Logger
	name       string
	admin      common.Address
	disclosure Disclosure

	balances *ledger.Store[common.Address, confidential.Uint64]

	lock      sync.RWMutex
	supply    uint64
	proposals []*proposal
}

func NewDAO(log log.Logger, name string, admin common.Address, disclosure Disclosure) *DAO {
	return &DAO{
		log:        log,
		name:       name,
		admin:      admin,
		disclosure: disclosure,
		balances:   ledger.NewStore[common.Address, confidential.Uint64](),
	}
}

func (d *DAO) Name() string {
	return d.name
}

func (d *DAO) Admin() common.Address {
	return d.admin
}

// TotalSupply returns the public amount of governance tokens minted
func (d *DAO) TotalSupply() uint64 {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.supply
}

// ProposalCount returns the number of proposals created
func (d *DAO) ProposalCount() uint64 {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return uint64(len(d.proposals))
}

// MintTokens gives to a public amount of voting weight
func (d *DAO) MintTokens(c *host.Call, to common.Address, amount uint64) error {
	if err := d.onlyAdmin(c); err != nil {
		return err
	}

	d.lock.Lock()
	supply, err := confidential.AddUint64(d.supply, amount)
	if err != nil {
		d.lock.Unlock()
		return fmt.Errorf("failed to mint %d: %w", amount, err)
	}
	prev := d.supply
	d.supply = supply
	d.lock.Unlock()
	c.Journal().Append(func() {
		d.lock.Lock()
		defer d.lock.Unlock()
		d.supply = prev
	})

	balance, err := d.balances.Load(c, to, to)
	if err != nil {
		return err
	}
	updated, err := ops.AddScalar(c, balance, ops.U(amount))
	if err != nil {
		return err
	}
	return d.balances.Put(c, to, updated, to)
}

// TokenBalanceOf returns the voting weight of who. Only who may read it.
func (d *DAO) TokenBalanceOf(c *host.Call, who common.Address) (confidential.EUint64, error) {
	v, ok := d.balances.Get(who)
	if !ok {
		return confidential.EUint64{}, nil
	}
	if !c.ACL().IsAllowed(v.Handle(), c.Caller()) {
		return confidential.EUint64{}, fmt.Errorf("%w: %s may not read the weight of %s", confidential.ErrNotAuthorized, c.Caller(), who)
	}
	return v, nil
}

// CreateProposal opens a proposal that accepts votes for duration blocks
func (d *DAO) CreateProposal(c *host.Call, title string, duration uint64) (uint64, error) {
	if err := d.onlyAdmin(c); err != nil {
		return 0, err
	}
	deadline, err := confidential.AddUint64(c.Height(), duration)
	if err != nil {
		return 0, err
	}
	yes, err := ops.EncryptUint64(c, 0)
	if err != nil {
		return 0, err
	}
	no, err := ops.EncryptUint64(c, 0)
	if err != nil {
		return 0, err
	}
	if err := keep(c, yes, no); err != nil {
		return 0, err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	id := uint64(len(d.proposals))
	d.proposals = append(d.proposals, &proposal{
		info: Proposal{
			ID:       id,
			Title:    title,
			Deadline: deadline,
		},
		voters: set.NewSet[common.Address](0),
		yes:    yes,
		no:     no,
	})
	c.Journal().Append(func() {
		d.lock.Lock()
		defer d.lock.Unlock()
		d.proposals = d.proposals[:id]
	})
	d.log.Info("created proposal",
		log.Uint64("id", id),
		log.String("title", title),
		log.Uint64("deadline", deadline),
	)
	return id, nil
}

// Vote casts the caller's only ballot on proposal id. A non-zero support
// counts the caller's full weight in favor, zero counts it against.
func (d *DAO) Vote(c *host.Call, id uint64, support confidential.EUint8) error {
	if err := ops.CheckSender(c, support.Handle()); err != nil {
		return err
	}
	voter := c.Caller()

	d.lock.RLock()
	p, err := d.open(c, id)
	if err == nil && p.voters.Contains(voter) {
		err = fmt.Errorf("%w: %s already voted on proposal %d", confidential.ErrAlreadyExists, voter, id)
	}
	var yes, no confidential.EUint64
	if err == nil {
		yes, no = p.yes, p.no
	}
	d.lock.RUnlock()
	if err != nil {
		return err
	}

	weight, err := d.balances.Load(c, voter, voter)
	if err != nil {
		return err
	}
	inFavor, err := ops.NeScalar(c, support, ops.U(0))
	if err != nil {
		return err
	}
	zero, err := ops.EncryptUint64(c, 0)
	if err != nil {
		return err
	}
	yesDelta, err := ops.Select(c, inFavor, weight, zero)
	if err != nil {
		return err
	}
	noDelta, err := ops.Sub(c, weight, yesDelta)
	if err != nil {
		return err
	}
	newYes, err := ops.Add(c, yes, yesDelta)
	if err != nil {
		return err
	}
	newNo, err := ops.Add(c, no, noDelta)
	if err != nil {
		return err
	}
	if err := keep(c, newYes, newNo); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	p.voters.Add(voter)
	p.info.Voters++
	p.yes, p.no = newYes, newNo
	c.Journal().Append(func() {
		d.lock.Lock()
		defer d.lock.Unlock()
		p.voters.Remove(voter)
		p.info.Voters--
		p.yes, p.no = yes, no
	})
	return nil
}

// Finalize closes proposal id once its deadline has passed and makes both
// tallies publicly decryptable. Anyone may finalize.
func (d *DAO) Finalize(c *host.Call, id uint64) (confidential.EUint64, confidential.EUint64, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	p, err := d.get(id)
	if err != nil {
		return confidential.EUint64{}, confidential.EUint64{}, err
	}
	if p.info.Finalized {
		return confidential.EUint64{}, confidential.EUint64{}, fmt.Errorf("%w: proposal %d already finalized", confidential.ErrClosed, id)
	}
	if c.Height() < p.info.Deadline {
		return confidential.EUint64{}, confidential.EUint64{}, fmt.Errorf("%w: voting on proposal %d runs until %d", confidential.ErrInvalidInput, id, p.info.Deadline)
	}
	for _, tally := range []confidential.EUint64{p.yes, p.no} {
		if err := c.ACL().MakePubliclyDecryptable(c.Contract(), tally.Handle()); err != nil {
			return confidential.EUint64{}, confidential.EUint64{}, err
		}
	}
	p.info.Finalized = true
	c.Journal().Append(func() {
		d.lock.Lock()
		defer d.lock.Unlock()
		p.info.Finalized = false
	})
	d.log.Info("finalized proposal",
		log.Uint64("id", id),
		log.Int("voters", p.info.Voters),
	)
	return p.yes, p.no, nil
}

// SetResults records the publicly decrypted tallies of a finalized
// proposal. Results are rejected unless they equal the public decryption of
// the disclosed tallies, and can be set once.
func (d *DAO) SetResults(ctx context.Context, c *host.Call, id, yes, no uint64) error {
	if err := d.onlyAdmin(c); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	p, err := d.get(id)
	if err != nil {
		return err
	}
	if !p.info.Finalized {
		return fmt.Errorf("%w: proposal %d is not finalized", confidential.ErrInvalidInput, id)
	}
	if p.info.Revealed {
		return fmt.Errorf("%w: results of proposal %d already set", confidential.ErrClosed, id)
	}
	disclosedYes, err := d.disclosure.PublicUint64(ctx, p.yes)
	if err != nil {
		return err
	}
	disclosedNo, err := d.disclosure.PublicUint64(ctx, p.no)
	if err != nil {
		return err
	}
	if yes != disclosedYes || no != disclosedNo {
		d.log.Debug("rejecting results",
			log.Uint64("id", id),
			log.Uint64("yes", yes),
			log.Uint64("no", no),
		)
		return fmt.Errorf("%w: results %d/%d of proposal %d do not match the disclosed tallies", confidential.ErrInvalidInput, yes, no, id)
	}
	p.info.Revealed = true
	p.info.YesResult, p.info.NoResult = yes, no
	c.Journal().Append(func() {
		d.lock.Lock()
		defer d.lock.Unlock()
		p.info.Revealed = false
		p.info.YesResult, p.info.NoResult = 0, 0
	})
	return nil
}

// Proposal returns the public state of proposal id
func (d *DAO) Proposal(id uint64) (Proposal, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	p, err := d.get(id)
	if err != nil {
		return Proposal{}, err
	}
	return p.info, nil
}

// Tallies returns the encrypted yes and no tallies of proposal id
func (d *DAO) Tallies(id uint64) (confidential.EUint64, confidential.EUint64, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	p, err := d.get(id)
	if err != nil {
		return confidential.EUint64{}, confidential.EUint64{}, err
	}
	return p.yes, p.no, nil
}

// HasVoted reports whether who voted on proposal id
func (d *DAO) HasVoted(id uint64, who common.Address) bool {
	d.lock.RLock()
	defer d.lock.RUnlock()

	p, err := d.get(id)
	return err == nil && p.voters.Contains(who)
}

func (d *DAO) onlyAdmin(c *host.Call) error {
	if c.Caller() != d.admin {
		return fmt.Errorf("%w: %s", confidential.ErrNotAdmin, c.Caller())
	}
	return nil
}

// must be called with the lock held
func (d *DAO) get(id uint64) (*proposal, error) {
	if id >= uint64(len(d.proposals)) {
		return nil, fmt.Errorf("%w: proposal %d", confidential.ErrNotFound, id)
	}
	return d.proposals[id], nil
}

// must be called with the lock held
func (d *DAO) open(c *host.Call, id uint64) (*proposal, error) {
	p, err := d.get(id)
	if err != nil {
		return nil, err
	}
	if p.info.Finalized || c.Height() >= p.info.Deadline {
		return nil, fmt.Errorf("%w: voting on proposal %d is closed", confidential.ErrClosed, id)
	}
	return p, nil
}

// keep lets the contract compute on the tallies in later operations
func keep(c *host.Call, tallies ...confidential.EUint64) error {
	for _, tally := range tallies {
		if err := c.ACL().Allow(c.Contract(), tally.Handle(), c.Contract()); err != nil {
			return err
		}
	}
	return nil
}
