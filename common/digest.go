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

import "golang.org/x/crypto/sha3"

// Keccak256 hashes the concatenation of data into a H256 digest. It is the
// single hashing primitive used throughout the trie, block header and
// consensus layers, matching go-ethereum/klaytn's choice of Keccak rather
// than NIST SHA3.
func Keccak256(data ...[]byte) H256 {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h H256
	d.Sum(h[:0])
	return h
}

// Keccak256Uint64 hashes the big-endian encoding of n, used for hashing
// scalar fields (nonces, heights, diffs) into a digest that feeds into a
// parent hash computation.
func Keccak256Uint64(n uint64) H256 {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(n >> (8 * i))
	}
	return Keccak256(buf[:])
}
