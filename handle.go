// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package confidential

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

const (
	// HandleLen is the length of a ciphertext handle
	HandleLen = 32

	// HandleVersion is written into the last byte of every handle
	HandleVersion byte = 0

	typeByte    = 30
	versionByte = 31
)

// Type identifies the plaintext type an encrypted value decrypts to.
type Type uint8

const (
	TypeBool Type = iota
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeUint128
	TypeUint256
	TypeAddress
)

var typeNames = [...]string{
	TypeBool:    "ebool",
	TypeUint8:   "euint8",
	TypeUint16:  "euint16",
	TypeUint32:  "euint32",
	TypeUint64:  "euint64",
	TypeUint128: "euint128",
	TypeUint256: "euint256",
	TypeAddress: "eaddress",
}

// Valid reports whether t is a known type
func (t Type) Valid() bool {
	return t <= TypeAddress
}

// Bits returns the plaintext bit width of t
func (t Type) Bits() uint {
	switch t {
	case TypeBool:
		return 1
	case TypeUint8:
		return 8
	case TypeUint16:
		return 16
	case TypeUint32:
		return 32
	case TypeUint64:
		return 64
	case TypeUint128:
		return 128
	case TypeUint256:
		return 256
	case TypeAddress:
		return 160
	default:
		return 0
	}
}

// IsInteger reports whether t is an unsigned integer type
func (t Type) IsInteger() bool {
	return t >= TypeUint8 && t <= TypeUint256
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("type(%d)", uint8(t))
	}
	return typeNames[t]
}

// Handle is an opaque reference to one encrypted scalar held by the FHE
// engine. The zero Handle is the null handle.
type Handle ids.ID

// NewHandle builds a handle from a digest, stamping the type and version bytes.
func NewHandle(digest []byte, t Type) Handle {
	var h Handle
	copy(h[:], digest)
	h[typeByte] = byte(t)
	h[versionByte] = HandleVersion
	return h
}

// HandleFromBytes parses a 32 byte handle
func HandleFromBytes(b []byte) (Handle, error) {
	if len(b) != HandleLen {
		return Handle{}, fmt.Errorf("%w: handle length %d, expected %d", ErrInvalidInput, len(b), HandleLen)
	}
	var h Handle
	copy(h[:], b)
	return h, nil
}

// IsZero reports whether h is the null handle
func (h Handle) IsZero() bool {
	return ids.ID(h) == ids.Empty
}

// Type returns the type stamped into the handle
func (h Handle) Type() Type {
	return Type(h[typeByte])
}

// ID returns the handle as an ids.ID
func (h Handle) ID() ids.ID {
	return ids.ID(h)
}

// Bytes returns a copy of the handle bytes
func (h Handle) Bytes() []byte {
	b := make([]byte, HandleLen)
	copy(b, h[:])
	return b
}

func (h Handle) String() string {
	return common.Hash(h).Hex()
}
