// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mock implements fhe.Engine by keeping plaintexts next to the
// handles it hands out. It reproduces the engine's observable behavior
// (fresh handles, wrap-around arithmetic, bound inputs) without any
// cryptography and is meant for tests and local demos only.
package mock

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
)

var (
	_ fhe.Engine    = (*Engine)(nil)
	_ fhe.Decrypter = (*Engine)(nil)
)

type ciphertext struct {
	typ   confidential.Type
	value *uint256.Int
}

// preimage is hashed into every handle the engine produces. The nonce makes
// two evaluations of the same expression yield distinct handles.
type preimage struct {
	Op       uint8
	Type     uint8
	Operands [][]byte
	Scalar   []byte
	Nonce    uint64
}

// Engine is a plaintext-backed FHE engine
type Engine struct {
	log log.Logger

	lock    sync.RWMutex
	values  map[confidential.Handle]ciphertext
	nonce   uint64
	rng     *rand.ChaCha8
	sealKey []byte
}

// New returns an Engine whose randomness and input seal are derived from seed
func New(log log.Logger, seed [32]byte) *Engine {
	return &Engine{
		log:     log,
		values:  make(map[confidential.Handle]ciphertext),
		rng:     rand.NewChaCha8(seed),
		sealKey: crypto.Keccak256(seed[:], []byte("input-seal")),
	}
}

// Len returns the number of ciphertexts held
func (e *Engine) Len() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.values)
}

func (e *Engine) Trivial(v *uint256.Int, t confidential.Type) (confidential.Handle, error) {
	if !t.Valid() {
		return confidential.Handle{}, fmt.Errorf("%w: %s", fhe.ErrUnsupportedOp, t)
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.store(fhe.OpTrivial, t, truncate(v, t), nil, v), nil
}

func (e *Engine) Unary(op fhe.Op, a confidential.Handle) (confidential.Handle, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	ct, err := e.load(a)
	if err != nil {
		return confidential.Handle{}, err
	}
	if op != fhe.OpNot {
		return confidential.Handle{}, fmt.Errorf("%w: %s is not unary", fhe.ErrUnsupportedOp, op)
	}
	if ct.typ == confidential.TypeAddress {
		return confidential.Handle{}, fmt.Errorf("%w: %s on %s", fhe.ErrUnsupportedOp, op, ct.typ)
	}
	v := new(uint256.Int).Not(ct.value)
	return e.store(op, ct.typ, truncate(v, ct.typ), [][]byte{a.Bytes()}, nil), nil
}

func (e *Engine) Binary(op fhe.Op, a, b confidential.Handle) (confidential.Handle, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	x, err := e.load(a)
	if err != nil {
		return confidential.Handle{}, err
	}
	y, err := e.load(b)
	if err != nil {
		return confidential.Handle{}, err
	}
	// shift amounts are always euint8
	if op.IsShift() {
		if y.typ != confidential.TypeUint8 {
			return confidential.Handle{}, fmt.Errorf("%w: shift amount is %s", fhe.ErrIncompatibleCiphertexts, y.typ)
		}
	} else if x.typ != y.typ {
		return confidential.Handle{}, fmt.Errorf("%w: %s and %s", fhe.ErrIncompatibleCiphertexts, x.typ, y.typ)
	}
	t, v, err := evaluate(op, x.typ, x.value, y.value)
	if err != nil {
		return confidential.Handle{}, err
	}
	return e.store(op, t, v, [][]byte{a.Bytes(), b.Bytes()}, nil), nil
}

func (e *Engine) BinaryScalar(op fhe.Op, a confidential.Handle, b *uint256.Int) (confidential.Handle, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	x, err := e.load(a)
	if err != nil {
		return confidential.Handle{}, err
	}
	if b == nil {
		return confidential.Handle{}, fmt.Errorf("%w: nil scalar", fhe.ErrUnsupportedOp)
	}
	t, v, err := evaluate(op, x.typ, x.value, truncate(b, x.typ))
	if err != nil {
		return confidential.Handle{}, err
	}
	return e.store(op, t, v, [][]byte{a.Bytes()}, b), nil
}

func (e *Engine) Select(cond, a, b confidential.Handle) (confidential.Handle, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	c, err := e.load(cond)
	if err != nil {
		return confidential.Handle{}, err
	}
	if c.typ != confidential.TypeBool {
		return confidential.Handle{}, fmt.Errorf("%w: condition is %s", fhe.ErrIncompatibleCiphertexts, c.typ)
	}
	x, err := e.load(a)
	if err != nil {
		return confidential.Handle{}, err
	}
	y, err := e.load(b)
	if err != nil {
		return confidential.Handle{}, err
	}
	if x.typ != y.typ {
		return confidential.Handle{}, fmt.Errorf("%w: %s and %s", fhe.ErrIncompatibleCiphertexts, x.typ, y.typ)
	}
	v := y.value
	if !c.value.IsZero() {
		v = x.value
	}
	return e.store(fhe.OpSelect, x.typ, v.Clone(), [][]byte{cond.Bytes(), a.Bytes(), b.Bytes()}, nil), nil
}

func (e *Engine) Cast(a confidential.Handle, to confidential.Type) (confidential.Handle, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	x, err := e.load(a)
	if err != nil {
		return confidential.Handle{}, err
	}
	if x.typ == confidential.TypeAddress || to == confidential.TypeAddress || !to.Valid() {
		return confidential.Handle{}, fmt.Errorf("%w: cast %s to %s", fhe.ErrUnsupportedOp, x.typ, to)
	}
	v := x.value.Clone()
	if to == confidential.TypeBool {
		v = boolValue(!x.value.IsZero())
	}
	return e.store(fhe.OpCast, to, truncate(v, to), [][]byte{a.Bytes()}, uint256.NewInt(uint64(to))), nil
}

func (e *Engine) Rand(t confidential.Type, upperBound *uint256.Int) (confidential.Handle, error) {
	if !t.IsInteger() && t != confidential.TypeBool {
		return confidential.Handle{}, fmt.Errorf("%w: rand %s", fhe.ErrUnsupportedOp, t)
	}
	if upperBound != nil && (upperBound.IsZero() || !isPowerOfTwo(upperBound)) {
		return confidential.Handle{}, fmt.Errorf("%w: upper bound must be a non-zero power of two", fhe.ErrUnsupportedOp)
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	v := &uint256.Int{e.rng.Uint64(), e.rng.Uint64(), e.rng.Uint64(), e.rng.Uint64()}
	v = truncate(v, t)
	if upperBound != nil {
		v.Mod(v, upperBound)
	}
	return e.store(fhe.OpRand, t, v, nil, upperBound), nil
}

func (e *Engine) TypeOf(h confidential.Handle) (confidential.Type, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	ct, ok := e.values[h]
	return ct.typ, ok
}

// Decrypt returns the plaintext behind h. Callers are expected to have
// checked capabilities first.
func (e *Engine) Decrypt(h confidential.Handle) (*uint256.Int, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	ct, err := e.load(h)
	if err != nil {
		return nil, err
	}
	return ct.value.Clone(), nil
}

// load must be called with the lock held
func (e *Engine) load(h confidential.Handle) (ciphertext, error) {
	ct, ok := e.values[h]
	if !ok {
		return ciphertext{}, fmt.Errorf("%w: %s", fhe.ErrUnknownHandle, h)
	}
	return ct, nil
}

// store must be called with the write lock held
func (e *Engine) store(op fhe.Op, t confidential.Type, v *uint256.Int, operands [][]byte, scalar *uint256.Int) confidential.Handle {
	e.nonce++
	p := preimage{
		Op:       uint8(op),
		Type:     uint8(t),
		Operands: operands,
		Nonce:    e.nonce,
	}
	if scalar != nil {
		b := scalar.Bytes32()
		p.Scalar = b[:]
	}
	// preimage only holds rlp-encodable fields
	encoded, _ := confidential.Codec.Marshal(confidential.CodecVersion, &p)
	h := confidential.NewHandle(crypto.Keccak256(encoded), t)
	e.values[h] = ciphertext{typ: t, value: v}
	return h
}

func evaluate(op fhe.Op, t confidential.Type, x, y *uint256.Int) (confidential.Type, *uint256.Int, error) {
	if op.IsComparison() {
		return confidential.TypeBool, compare(op, x, y), nil
	}
	if t == confidential.TypeAddress {
		return t, nil, fmt.Errorf("%w: %s on %s", fhe.ErrUnsupportedOp, op, t)
	}
	if t == confidential.TypeBool {
		switch op {
		case fhe.OpAnd, fhe.OpOr, fhe.OpXor:
		default:
			return t, nil, fmt.Errorf("%w: %s on %s", fhe.ErrUnsupportedOp, op, t)
		}
	}

	z := new(uint256.Int)
	bits := t.Bits()
	switch op {
	case fhe.OpAdd:
		z.Add(x, y)
	case fhe.OpSub:
		z.Sub(x, y)
	case fhe.OpMul:
		z.Mul(x, y)
	case fhe.OpDiv:
		if y.IsZero() {
			return t, nil, fmt.Errorf("%w: division by zero", fhe.ErrUnsupportedOp)
		}
		z.Div(x, y)
	case fhe.OpRem:
		if y.IsZero() {
			return t, nil, fmt.Errorf("%w: division by zero", fhe.ErrUnsupportedOp)
		}
		z.Mod(x, y)
	case fhe.OpAnd:
		z.And(x, y)
	case fhe.OpOr:
		z.Or(x, y)
	case fhe.OpXor:
		z.Xor(x, y)
	case fhe.OpShl:
		z.Lsh(x, uint(y.Uint64()%uint64(bits)))
	case fhe.OpShr:
		z.Rsh(x, uint(y.Uint64()%uint64(bits)))
	case fhe.OpRotl:
		z = rotate(x, uint(y.Uint64()%uint64(bits)), bits)
	case fhe.OpRotr:
		n := uint(y.Uint64() % uint64(bits))
		z = rotate(x, (bits-n)%bits, bits)
	case fhe.OpMin:
		z.Set(x)
		if y.Lt(x) {
			z.Set(y)
		}
	case fhe.OpMax:
		z.Set(x)
		if y.Gt(x) {
			z.Set(y)
		}
	default:
		return t, nil, fmt.Errorf("%w: %s", fhe.ErrUnsupportedOp, op)
	}
	return t, truncate(z, t), nil
}

func compare(op fhe.Op, x, y *uint256.Int) *uint256.Int {
	var r bool
	switch op {
	case fhe.OpEq:
		r = x.Eq(y)
	case fhe.OpNe:
		r = !x.Eq(y)
	case fhe.OpLt:
		r = x.Lt(y)
	case fhe.OpLe:
		r = !x.Gt(y)
	case fhe.OpGt:
		r = x.Gt(y)
	case fhe.OpGe:
		r = !x.Lt(y)
	}
	return boolValue(r)
}

func rotate(x *uint256.Int, n, bits uint) *uint256.Int {
	if n == 0 {
		return x.Clone()
	}
	left := new(uint256.Int).Lsh(x, n)
	right := new(uint256.Int).Rsh(x, bits-n)
	return left.Or(left, right)
}

// truncate reduces v modulo 2^bits of t. It never aliases v.
func truncate(v *uint256.Int, t confidential.Type) *uint256.Int {
	z := v.Clone()
	bits := t.Bits()
	if bits >= 256 {
		return z
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), bits)
	mask.Sub(mask, uint256.NewInt(1))
	return z.And(z, mask)
}

func boolValue(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return new(uint256.Int)
}

func isPowerOfTwo(v *uint256.Int) bool {
	minusOne := new(uint256.Int).Sub(v, uint256.NewInt(1))
	return new(uint256.Int).And(v, minusOne).IsZero()
}

// AddressValue converts an address into the integer form the engine stores
func AddressValue(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(addr.Bytes())
}
