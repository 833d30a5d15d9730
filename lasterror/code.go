// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package lasterror

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/host"
	"github.com/luxfi/confidential/ops"
)

// Code is the plaintext of an encrypted status. The set is closed.
type Code uint8

const (
	None Code = iota
	InsufficientBalance
	AmountTooLarge
	SelfOperationDisallowed
	InsufficientAllowance
	RateLimited
	LimitExceeded
	InsufficientCollateral
)

var codeNames = [...]string{
	None:                    "none",
	InsufficientBalance:     "insufficient balance",
	AmountTooLarge:          "amount too large",
	SelfOperationDisallowed: "self operation disallowed",
	InsufficientAllowance:   "insufficient allowance",
	RateLimited:             "rate limited",
	LimitExceeded:           "limit exceeded",
	InsufficientCollateral:  "insufficient collateral",
}

// Valid reports whether c is a known code
func (c Code) Valid() bool {
	return c <= InsufficientCollateral
}

func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("code(%d)", uint8(c))
	}
	return codeNames[c]
}

// Encrypt trivially encrypts code
func Encrypt(c *host.Call, code Code) (confidential.EUint8, error) {
	return ops.Encrypt[confidential.Uint8](c, uint256.NewInt(uint64(code)))
}
