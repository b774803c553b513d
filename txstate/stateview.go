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

package txstate

import (
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/trie"
)

// StateView is the closed set of reads a transaction executor may perform
// against chain state while it runs: trie.NodeLoader for raw node lookups
// (following a partial trie down through a Hash stub) and AccountView for
// resolving an address straight to its AccountState, the same two-method
// surface the original's TxStateView trait exposes to a TxEngineWorker so a
// worker never needs to know how the main trie or the account store is
// actually persisted.
type StateView interface {
	trie.NodeLoader
	AccountView(addr common.Address) (AccountState, error)
}

// TrieStateView is the concrete StateView a storage shard hands to its
// executor: account digests are resolved by walking Root() through a shared
// ReadTrieContext, then turned into an AccountState via Accounts. Root is a
// func rather than a fixed trie so a long-lived TrieStateView can be reused
// across tasks even as the shard's main trie advances underneath it (see
// cmd/slimstorage's atomicTrie).
type TrieStateView struct {
	Loader   trie.NodeLoader
	Accounts AccountLoader
	Root     func() *trie.PartialTrie
}

func (v *TrieStateView) LoadNode(hash common.H256) (trie.SubTree, error) {
	return v.Loader.LoadNode(hash)
}

// AccountView resolves addr's current AccountState out of the main trie.
// An address the trie has never seen yields EmptyAccountState, matching how
// trie.Read treats a missing key as "absent" rather than an error.
func (v *TrieStateView) AccountView(addr common.Address) (AccountState, error) {
	ctx := trie.NewReadTrieContext(v.Loader)
	_, digest, err := ctx.Read(v.Root().Root(), addressNibbles(addr))
	if err != nil {
		return AccountState{}, err
	}
	if digest.IsZero() {
		return EmptyAccountState, nil
	}
	return v.Accounts.LoadAccount(digest)
}
