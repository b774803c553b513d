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

package trie

import "github.com/slimchain-go/slimchain/common"

// encodeNibbles renders a nibble segment with a leading terminator flag
// (hex-prefix style), so that a leaf segment and an extension segment with
// identical nibbles never collide on digest.
func encodeNibbles(n Nibbles, terminator bool) []byte {
	flag := byte(0)
	if terminator {
		flag = 1
	}
	out := make([]byte, 0, len(n)+2)
	out = append(out, flag, byte(len(n)%16))
	out = append(out, n...)
	return out
}

func leafHash(n Nibbles, valueHash common.H256) common.H256 {
	return common.Keccak256([]byte("leaf"), encodeNibbles(n, true), valueHash.Bytes())
}

func extensionHash(n Nibbles, childDigest common.H256) common.H256 {
	return common.Keccak256([]byte("ext"), encodeNibbles(n, false), childDigest.Bytes())
}

// branchHash hashes 16 child digests, where an absent child contributes the
// zero digest (invariant 2: a branch never stores a value of its own).
func branchHash(children [16]common.H256) common.H256 {
	buf := make([]byte, 0, len("branch")+16*common.H256Length)
	buf = append(buf, []byte("branch")...)
	for _, c := range children {
		buf = append(buf, c.Bytes()...)
	}
	return common.Keccak256(buf)
}
