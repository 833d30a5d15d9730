// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package confidential

import "fmt"

// Scalar is implemented by the marker types that tag a Value with the
// plaintext type it decrypts to.
type Scalar interface {
	Type() Type
}

// Marker types. They carry no data.
type (
	Bool    struct{}
	Uint8   struct{}
	Uint16  struct{}
	Uint32  struct{}
	Uint64  struct{}
	Uint128 struct{}
	Uint256 struct{}
	Address struct{}
)

func (Bool) Type() Type    { return TypeBool }
func (Uint8) Type() Type   { return TypeUint8 }
func (Uint16) Type() Type  { return TypeUint16 }
func (Uint32) Type() Type  { return TypeUint32 }
func (Uint64) Type() Type  { return TypeUint64 }
func (Uint128) Type() Type { return TypeUint128 }
func (Uint256) Type() Type { return TypeUint256 }
func (Address) Type() Type { return TypeAddress }

// Integer is the set of encrypted unsigned integer types.
type Integer interface {
	Uint8 | Uint16 | Uint32 | Uint64 | Uint128 | Uint256
	Scalar
}

// Bitwise is the set of types accepting and/or/xor/not.
type Bitwise interface {
	Bool | Uint8 | Uint16 | Uint32 | Uint64 | Uint128 | Uint256
	Scalar
}

// Value is a typed ciphertext handle. The zero Value is uninitialized.
type Value[T Scalar] struct {
	handle Handle
}

type (
	EBool    = Value[Bool]
	EUint8   = Value[Uint8]
	EUint16  = Value[Uint16]
	EUint32  = Value[Uint32]
	EUint64  = Value[Uint64]
	EUint128 = Value[Uint128]
	EUint256 = Value[Uint256]
	EAddress = Value[Address]
)

// TypeOf returns the Type tagged by T
func TypeOf[T Scalar]() Type {
	var t T
	return t.Type()
}

// Wrap checks that h was stamped with T's type and returns it as a Value.
func Wrap[T Scalar](h Handle) (Value[T], error) {
	if h.IsZero() {
		return Value[T]{}, nil
	}
	if want := TypeOf[T](); h.Type() != want {
		return Value[T]{}, fmt.Errorf("%w: handle %s is %s, expected %s", ErrTypeMismatch, h, h.Type(), want)
	}
	return Value[T]{handle: h}, nil
}

// Handle returns the underlying ciphertext handle
func (v Value[T]) Handle() Handle {
	return v.handle
}

// IsNull reports whether v holds the null handle. It says nothing about
// the encrypted plaintext.
func (v Value[T]) IsNull() bool {
	return v.handle.IsZero()
}

func (v Value[T]) String() string {
	return fmt.Sprintf("%s(%s)", TypeOf[T](), v.handle)
}
