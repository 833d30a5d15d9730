// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package mock

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
)

// inputPayload is the plaintext layout of a mock input ciphertext
type inputPayload struct {
	Type     uint8
	Value    []byte
	Contract common.Address
	User     common.Address
	Index    uint64
}

// InputBuilder collects values a client encrypts for one call into one
// contract on behalf of one user.
type InputBuilder struct {
	engine   *Engine
	contract common.Address
	user     common.Address
	payloads []inputPayload
}

// EncryptInput starts an encrypted input bound to (contract, user)
func (e *Engine) EncryptInput(contract, user common.Address) *InputBuilder {
	return &InputBuilder{
		engine:   e,
		contract: contract,
		user:     user,
	}
}

// Add appends a value of type t
func (b *InputBuilder) Add(t confidential.Type, v *uint256.Int) *InputBuilder {
	value := truncate(v, t).Bytes32()
	b.payloads = append(b.payloads, inputPayload{
		Type:     uint8(t),
		Value:    value[:],
		Contract: b.contract,
		User:     b.user,
		Index:    uint64(len(b.payloads)),
	})
	return b
}

// AddBool appends an encrypted boolean
func (b *InputBuilder) AddBool(v bool) *InputBuilder {
	return b.Add(confidential.TypeBool, boolValue(v))
}

// Add8 appends an encrypted uint8
func (b *InputBuilder) Add8(v uint8) *InputBuilder {
	return b.Add(confidential.TypeUint8, uint256.NewInt(uint64(v)))
}

// Add64 appends an encrypted uint64
func (b *InputBuilder) Add64(v uint64) *InputBuilder {
	return b.Add(confidential.TypeUint64, uint256.NewInt(v))
}

// AddAddress appends an encrypted address
func (b *InputBuilder) AddAddress(addr common.Address) *InputBuilder {
	return b.Add(confidential.TypeAddress, AddressValue(addr))
}

// Encrypt seals every appended value
func (b *InputBuilder) Encrypt() ([]fhe.Input, error) {
	inputs := make([]fhe.Input, 0, len(b.payloads))
	for i := range b.payloads {
		ct, err := confidential.Codec.Marshal(confidential.CodecVersion, &b.payloads[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input %d: %w", i, err)
		}
		inputs = append(inputs, fhe.Input{
			Ciphertext: ct,
			Proof:      b.engine.seal(ct),
		})
	}
	return inputs, nil
}

func (e *Engine) seal(ct []byte) []byte {
	return crypto.Keccak256(e.sealKey, ct)
}

func (e *Engine) VerifyInput(in fhe.Input, contract, user common.Address) (confidential.Handle, error) {
	if !bytes.Equal(e.seal(in.Ciphertext), in.Proof) {
		return confidential.Handle{}, fhe.ErrInvalidProof
	}
	var p inputPayload
	if _, err := confidential.Codec.Unmarshal(in.Ciphertext, &p); err != nil {
		return confidential.Handle{}, fmt.Errorf("%w: %v", fhe.ErrInvalidCiphertext, err)
	}
	t := confidential.Type(p.Type)
	if !t.Valid() || len(p.Value) != 32 {
		return confidential.Handle{}, fhe.ErrInvalidCiphertext
	}
	if p.Contract != contract || p.User != user {
		e.log.Debug("rejecting input bound to another context",
			log.Stringer("contract", contract),
			log.Stringer("user", user),
		)
		return confidential.Handle{}, fhe.ErrInvalidProof
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	v := new(uint256.Int).SetBytes(p.Value)
	return e.store(fhe.OpVerify, t, truncate(v, t), [][]byte{in.Proof}, nil), nil
}
