// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway is the only path from a ciphertext handle to its plaintext.
// It decrypts for a user only when both the user and the contract that
// produced the value hold grants on the handle, and for anyone once the
// handle was publicly disclosed.
package gateway

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/acl"
	"github.com/luxfi/confidential/cache"
	"github.com/luxfi/confidential/crypto/fhe"
)

// DefaultCacheSize is the default number of cached plaintexts
const DefaultCacheSize = 1024

type Gateway struct {
	log       log.Logger
	acl       *acl.Registry
	decrypter fhe.Decrypter
	cache     *cache.LRUCache[confidential.Handle, *uint256.Int]
}

func New(log log.Logger, registry *acl.Registry, decrypter fhe.Decrypter, cacheSize int) (*Gateway, error) {
	c, err := cache.NewLRUCache[confidential.Handle, *uint256.Int](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decryption cache: %w", err)
	}
	return &Gateway{
		log:       log,
		acl:       registry,
		decrypter: decrypter,
		cache:     c,
	}, nil
}

// UserDecrypt returns the plaintext of h for user. The null handle decrypts
// to zero.
func (g *Gateway) UserDecrypt(ctx context.Context, h confidential.Handle, user, contract common.Address) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return new(uint256.Int), nil
	}
	if !g.acl.IsAllowed(h, user) || !g.acl.IsAllowed(h, contract) {
		g.log.Debug("denying user decryption",
			log.Stringer("handle", h),
			log.Stringer("user", user),
			log.Stringer("contract", contract),
		)
		return nil, fmt.Errorf("%w: %s may not decrypt %s", confidential.ErrNotAuthorized, user, h)
	}
	return g.decrypt(h)
}

// PublicDecrypt returns the plaintext of a publicly disclosed handle
func (g *Gateway) PublicDecrypt(ctx context.Context, h confidential.Handle) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !g.acl.IsPubliclyDecryptable(h) {
		return nil, fmt.Errorf("%w: %s is not public", confidential.ErrNotAuthorized, h)
	}
	return g.decrypt(h)
}

func (g *Gateway) decrypt(h confidential.Handle) (*uint256.Int, error) {
	v, err := g.cache.Get(h, g.decrypter.Decrypt, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", h, err)
	}
	return v.Clone(), nil
}

// DecryptUint64 user-decrypts an euint64
func (g *Gateway) DecryptUint64(ctx context.Context, v confidential.EUint64, user, contract common.Address) (uint64, error) {
	plain, err := g.UserDecrypt(ctx, v.Handle(), user, contract)
	if err != nil {
		return 0, err
	}
	return plain.Uint64(), nil
}

// DecryptUint8 user-decrypts an euint8
func (g *Gateway) DecryptUint8(ctx context.Context, v confidential.EUint8, user, contract common.Address) (uint8, error) {
	plain, err := g.UserDecrypt(ctx, v.Handle(), user, contract)
	if err != nil {
		return 0, err
	}
	return uint8(plain.Uint64()), nil
}

// DecryptBool user-decrypts an ebool
func (g *Gateway) DecryptBool(ctx context.Context, v confidential.EBool, user, contract common.Address) (bool, error) {
	plain, err := g.UserDecrypt(ctx, v.Handle(), user, contract)
	if err != nil {
		return false, err
	}
	return !plain.IsZero(), nil
}

// PublicUint64 decrypts a disclosed euint64
func (g *Gateway) PublicUint64(ctx context.Context, v confidential.EUint64) (uint64, error) {
	plain, err := g.PublicDecrypt(ctx, v.Handle())
	if err != nil {
		return 0, err
	}
	return plain.Uint64(), nil
}

// PublicAddress decrypts a disclosed eaddress
func (g *Gateway) PublicAddress(ctx context.Context, v confidential.EAddress) (common.Address, error) {
	plain, err := g.PublicDecrypt(ctx, v.Handle())
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(plain.Bytes()), nil
}
