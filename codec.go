// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package confidential

import (
	"fmt"

	"github.com/luxfi/geth/rlp"
)

// CodecVersion is the only encoding version understood by Codec
const CodecVersion uint16 = 0

// CodecImpl serializes input ciphertexts, handle preimages and call payloads
type CodecImpl struct{}

// Codec is the default codec instance
var Codec = &CodecImpl{}

// Marshal serializes the value
func (c *CodecImpl) Marshal(version uint16, v interface{}) ([]byte, error) {
	if version != CodecVersion {
		return nil, fmt.Errorf("%w: unknown codec version %d", ErrInvalidInput, version)
	}
	return rlp.EncodeToBytes(v)
}

// Unmarshal deserializes the bytes
func (c *CodecImpl) Unmarshal(b []byte, v interface{}) (uint16, error) {
	if err := rlp.DecodeBytes(b, v); err != nil {
		return CodecVersion, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return CodecVersion, nil
}
