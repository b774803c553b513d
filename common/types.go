// Copyright 2024 The slimchain-go Authors
// This file is part of the slimchain-go library.
//
// The slimchain-go library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The slimchain-go library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the slimchain-go library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// H256Length is the size in bytes of a digest.
const H256Length = 32

// AddressLength is the size in bytes of an account address.
const AddressLength = 20

// H256 is a 32-byte digest. The zero value is distinguished and means
// "absent" wherever a hash is read from a branch that stores no value.
type H256 [H256Length]byte

// ZeroH256 is the distinguished zero digest.
var ZeroH256 = H256{}

// IsZero reports whether h is the zero digest.
func (h H256) IsZero() bool {
	return h == ZeroH256
}

func (h H256) Bytes() []byte { return h[:] }

func (h H256) String() string { return "0x" + hex.EncodeToString(h[:]) }

// ShardHash implements common.CacheKey so an H256 can key a ShardedCache.
func (h H256) ShardHash(shardMask int) int {
	return int(h[len(h)-1]) & shardMask
}

// BytesToH256 left-pads or truncates b to 32 bytes.
func BytesToH256(b []byte) H256 {
	var h H256
	if len(b) > H256Length {
		b = b[len(b)-H256Length:]
	}
	copy(h[H256Length-len(b):], b)
	return h
}

// BigToH256 converts a big.Int into its 32-byte big-endian representation.
func BigToH256(n *big.Int) H256 {
	return BytesToH256(n.Bytes())
}

// Big returns h interpreted as an unsigned big-endian integer.
func (h H256) Big() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// Address is a 20-byte account address.
type Address [AddressLength]byte

var ZeroAddress = Address{}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// BytesToAddress left-pads or truncates b to 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// FirstNibble returns the most significant 4 bits of the address, used by
// the shard partitioner.
func (a Address) FirstNibble() byte {
	return a[0] >> 4
}

// ShardHash folds the address into a small int key suitable for use with the
// shard-aware cache in this package (the CacheKey contract below).
func (a Address) ShardHash(shardMask int) int {
	return int(a[len(a)-1]) & shardMask
}

// Nonce is a strictly increasing per-account transaction counter.
type Nonce uint64

func (n Nonce) String() string { return fmt.Sprintf("%d", uint64(n)) }

// U256 is a 256-bit unsigned integer, backed by math/big but always
// normalized to fit in 32 bytes. It exists so that PoW difficulty/threshold
// arithmetic (spec §4.4) reads the same way it does in the teacher's PoW
// engine, without pulling in an unrelated fixed-width-integer dependency
// that no example in the corpus uses (see DESIGN.md).
type U256 struct {
	v *big.Int
}

// MaxU256 is 2**256 - 1.
var MaxU256 = NewU256FromBig(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

func NewU256(n uint64) U256 { return U256{v: new(big.Int).SetUint64(n)} }

func NewU256FromBig(n *big.Int) U256 { return U256{v: new(big.Int).Set(n)} }

func U256FromH256(h H256) U256 { return U256{v: h.Big()} }

func (u U256) Big() *big.Int { return new(big.Int).Set(u.v) }

func (u U256) Cmp(other U256) int { return u.v.Cmp(other.v) }

func (u U256) Div(other U256) U256 { return U256{v: new(big.Int).Div(u.v, other.v)} }

func (u U256) String() string { return u.v.String() }

// Digestible is implemented by every structural type in the data model;
// ToDigest returns the canonical H256 hash of the value.
type Digestible interface {
	ToDigest() H256
}
