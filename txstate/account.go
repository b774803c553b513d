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

// Package txstate implements the account/storage state model executed
// off-chain and verified on-chain through Merkle proofs (spec.md §4.1):
// the per-account AccountState, the TxWriteSetTrie a client materializes
// from a transaction's read/write set, and the account+storage trie diffs
// a storage shard reports back after execution.
package txstate

import (
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/wireformat"
)

// AccountState is everything the main trie commits to for one address; the
// trie itself only stores its digest (AccountState.ToDigest), matching how
// a LeafNode's ValueHash never holds the value itself.
type AccountState struct {
	Nonce       common.Nonce
	CodeHash    common.H256
	StorageRoot common.H256
}

// EmptyAccountState is what GetAccount should synthesize for an address the
// main trie has never seen, rather than treating "not found" as an error.
var EmptyAccountState = AccountState{}

func (a AccountState) ToDigest() common.H256 {
	enc := wireformat.NewEncoder()
	enc.WriteUvarint(uint64(a.Nonce))
	enc.WriteBytes(a.CodeHash.Bytes())
	enc.WriteBytes(a.StorageRoot.Bytes())
	return common.Keccak256(enc.Bytes())
}

func (a AccountState) Encode() []byte {
	enc := wireformat.NewEncoder()
	enc.WriteUvarint(uint64(a.Nonce))
	enc.WriteBytes(a.CodeHash.Bytes())
	enc.WriteBytes(a.StorageRoot.Bytes())
	return enc.Bytes()
}

func DecodeAccountState(b []byte) (AccountState, error) {
	dec := wireformat.NewDecoder(b)
	nonce, err := dec.ReadUvarint()
	if err != nil {
		return AccountState{}, err
	}
	codeHash, err := dec.ReadBytes()
	if err != nil {
		return AccountState{}, err
	}
	storageRoot, err := dec.ReadBytes()
	if err != nil {
		return AccountState{}, err
	}
	return AccountState{
		Nonce:       common.Nonce(nonce),
		CodeHash:    common.BytesToH256(codeHash),
		StorageRoot: common.BytesToH256(storageRoot),
	}, nil
}

// AccountLoader resolves an account digest (a main-trie leaf's ValueHash)
// back into the AccountState it commits to, the account-level analogue of
// trie.NodeLoader.
type AccountLoader interface {
	LoadAccount(hash common.H256) (AccountState, error)
}
