// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompile exposes a confidential token as a stateful precompile.
// Calldata is a 4 byte selector followed by rlp-encoded arguments; results
// are rlp-encoded as well. Encrypted results are returned as handles.
package precompile

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
	"github.com/luxfi/confidential/token"
)

// TokenPrecompileContract is the default precompile address
var TokenPrecompileContract = common.HexToAddress("0x0200000000000000000000000000000000000010")

// Gas costs for token operations. FHE work is charged on top at
// GasPerCostUnit per unit of the operation's metered cost.
const (
	ReadGas         = 2_600
	TransferGas     = 30_000
	ApproveGas      = 25_000
	MintGas         = 30_000
	BatchMintGas    = 30_000
	GasPerCostUnit  = 100
	SelectorLength  = 4
	maxOutputLength = 1024
)

var (
	ErrReadOnly        = errors.New("cannot modify state in read-only mode")
	ErrUnknownSelector = errors.New("unknown selector")
	ErrShortInput      = errors.New("input shorter than a selector")
)

// Selector returns the 4 byte selector of a method signature
func Selector(signature string) [SelectorLength]byte {
	var s [SelectorLength]byte
	copy(s[:], crypto.Keccak256([]byte(signature)))
	return s
}

var (
	NameSelector         = Selector("name()")
	SymbolSelector       = Selector("symbol()")
	DecimalsSelector     = Selector("decimals()")
	TotalSupplySelector  = Selector("totalSupply()")
	BalanceOfSelector    = Selector("balanceOf(address)")
	AllowanceSelector    = Selector("allowance(address,address)")
	LastErrorSelector    = Selector("getLastError()")
	TransferSelector     = Selector("transfer(address,bytes32,bytes)")
	ApproveSelector      = Selector("approve(address,bytes32,bytes)")
	TransferFromSelector = Selector("transferFrom(address,address,bytes32,bytes)")
	MintSelector         = Selector("mint(address,uint64)")
	BatchMintSelector    = Selector("batchMint(address[],uint64[])")
)

type (
	AddressArgs struct {
		Who common.Address
	}
	AllowanceArgs struct {
		Owner   common.Address
		Spender common.Address
	}
	TransferArgs struct {
		To         common.Address
		Ciphertext []byte
		Proof      []byte
	}
	ApproveArgs struct {
		Spender    common.Address
		Ciphertext []byte
		Proof      []byte
	}
	TransferFromArgs struct {
		Owner      common.Address
		To         common.Address
		Ciphertext []byte
		Proof      []byte
	}
	MintArgs struct {
		To     common.Address
		Amount uint64
	}
	BatchMintArgs struct {
		Recipients []common.Address
		Amounts    []uint64
	}
)

type method struct {
	gas     uint64
	mutates bool
	run     func(m *TokenModule, c *host.Call, args []byte) (any, error)
}

var methods = map[[SelectorLength]byte]method{
	NameSelector: {gas: ReadGas, run: func(m *TokenModule, _ *host.Call, _ []byte) (any, error) {
		return m.token.Name(), nil
	}},
	SymbolSelector: {gas: ReadGas, run: func(m *TokenModule, _ *host.Call, _ []byte) (any, error) {
		return m.token.Symbol(), nil
	}},
	DecimalsSelector: {gas: ReadGas, run: func(m *TokenModule, _ *host.Call, _ []byte) (any, error) {
		return m.token.Decimals(), nil
	}},
	TotalSupplySelector: {gas: ReadGas, run: func(m *TokenModule, _ *host.Call, _ []byte) (any, error) {
		return m.token.TotalSupply(), nil
	}},
	BalanceOfSelector: {gas: ReadGas, run: (*TokenModule).balanceOf},
	AllowanceSelector: {gas: ReadGas, run: (*TokenModule).allowance},
	LastErrorSelector: {gas: ReadGas, run: (*TokenModule).lastError},
	TransferSelector: {gas: TransferGas, mutates: true, run: (*TokenModule).transfer},
	ApproveSelector: {gas: ApproveGas, mutates: true, run: (*TokenModule).approve},
	TransferFromSelector: {gas: TransferGas, mutates: true, run: (*TokenModule).transferFrom},
	MintSelector: {gas: MintGas, mutates: true, run: (*TokenModule).mint},
	BatchMintSelector: {gas: BatchMintGas, mutates: true, run: (*TokenModule).batchMint},
}

// TokenModule dispatches precompile calls to a token. The module address
// is the contract identity the token executes as.
type TokenModule struct {
	log     log.Logger
	env     *host.Env
	token   *token.Token
	address common.Address
}

func NewTokenModule(log log.Logger, env *host.Env, tok *token.Token, address common.Address) *TokenModule {
	return &TokenModule{
		log:     log,
		env:     env,
		token:   tok,
		address: address,
	}
}

// Address returns the contract identity of the module
func (m *TokenModule) Address() common.Address {
	return m.address
}

// Run executes one call. The returned gas is charged whether or not the
// call succeeds.
func (m *TokenModule) Run(ctx context.Context, caller common.Address, input []byte, readOnly bool) ([]byte, uint64, error) {
	if len(input) < SelectorLength {
		return nil, 0, ErrShortInput
	}
	var selector [SelectorLength]byte
	copy(selector[:], input)
	meth, ok := methods[selector]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %x", ErrUnknownSelector, selector)
	}
	if readOnly && meth.mutates {
		return nil, meth.gas, ErrReadOnly
	}

	var result any
	receipt, err := m.env.Execute(ctx, caller, m.address, func(c *host.Call) error {
		var err error
		result, err = meth.run(m, c, input[SelectorLength:])
		return err
	})
	gas := meth.gas + receipt.Cost*GasPerCostUnit
	if err != nil {
		m.log.Debug("precompile call failed",
			log.Stringer("caller", caller),
			log.String("selector", fmt.Sprintf("%x", selector)),
			log.Err(err),
		)
		return nil, gas, err
	}
	if result == nil {
		return nil, gas, nil
	}
	ret, err := confidential.Codec.Marshal(confidential.CodecVersion, result)
	if err != nil {
		return nil, gas, fmt.Errorf("failed to encode result: %w", err)
	}
	if len(ret) > maxOutputLength {
		return nil, gas, fmt.Errorf("%w: output of %d bytes", confidential.ErrInvalidInput, len(ret))
	}
	return ret, gas, nil
}

func decode[T any](args []byte) (*T, error) {
	v := new(T)
	if _, err := confidential.Codec.Unmarshal(args, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (m *TokenModule) input(c *host.Call, ciphertext, proof []byte) (confidential.EUint64, error) {
	return ops.FromExternal[confidential.Uint64](c, fhe.Input{
		Ciphertext: ciphertext,
		Proof:      proof,
	})
}

func (m *TokenModule) balanceOf(c *host.Call, args []byte) (any, error) {
	a, err := decode[AddressArgs](args)
	if err != nil {
		return nil, err
	}
	v, err := m.token.BalanceOf(c, a.Who)
	if err != nil {
		return nil, err
	}
	return v.Handle().Bytes(), nil
}

func (m *TokenModule) allowance(c *host.Call, args []byte) (any, error) {
	a, err := decode[AllowanceArgs](args)
	if err != nil {
		return nil, err
	}
	v, err := m.token.Allowance(c, a.Owner, a.Spender)
	if err != nil {
		return nil, err
	}
	return v.Handle().Bytes(), nil
}

func (m *TokenModule) lastError(c *host.Call, _ []byte) (any, error) {
	v, err := m.token.LastError(c, c.Caller())
	if err != nil {
		return nil, err
	}
	return v.Handle().Bytes(), nil
}

func (m *TokenModule) transfer(c *host.Call, args []byte) (any, error) {
	a, err := decode[TransferArgs](args)
	if err != nil {
		return nil, err
	}
	amount, err := m.input(c, a.Ciphertext, a.Proof)
	if err != nil {
		return nil, err
	}
	return true, m.token.Transfer(c, a.To, amount)
}

func (m *TokenModule) approve(c *host.Call, args []byte) (any, error) {
	a, err := decode[ApproveArgs](args)
	if err != nil {
		return nil, err
	}
	amount, err := m.input(c, a.Ciphertext, a.Proof)
	if err != nil {
		return nil, err
	}
	return true, m.token.Approve(c, a.Spender, amount)
}

func (m *TokenModule) transferFrom(c *host.Call, args []byte) (any, error) {
	a, err := decode[TransferFromArgs](args)
	if err != nil {
		return nil, err
	}
	amount, err := m.input(c, a.Ciphertext, a.Proof)
	if err != nil {
		return nil, err
	}
	return true, m.token.TransferFrom(c, a.Owner, a.To, amount)
}

func (m *TokenModule) mint(c *host.Call, args []byte) (any, error) {
	a, err := decode[MintArgs](args)
	if err != nil {
		return nil, err
	}
	return true, m.token.Mint(c, a.To, a.Amount)
}

func (m *TokenModule) batchMint(c *host.Call, args []byte) (any, error) {
	a, err := decode[BatchMintArgs](args)
	if err != nil {
		return nil, err
	}
	return true, m.token.BatchMint(c, a.Recipients, a.Amounts)
}
