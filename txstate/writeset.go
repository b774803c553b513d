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
	"github.com/slimchain-go/slimchain/wireformat"
)

func addressNibbles(a common.Address) trie.Nibbles {
	return trie.BytesToNibbles(a.Bytes()).AsNibbles()
}

func storageKeyNibbles(k common.H256) trie.Nibbles {
	return trie.BytesToNibbles(k.Bytes()).AsNibbles()
}

// BuildAccountWriteSetTrie materializes, out of the main trie, the path to
// every address a transaction read or wrote (spec.md §4.1 step 3): each
// address is walked through a shared ReadTrieContext so the touched nodes
// accumulate into one rooted subtree rather than one per key. Nodes of base
// off those paths are kept as base has them, materialized or stubbed; the
// result is not pruned down to the touched paths.
func BuildAccountWriteSetTrie(loader trie.NodeLoader, base *trie.PartialTrie, addrs []common.Address) (*trie.PartialTrie, error) {
	ctx := trie.NewReadTrieContext(loader)
	root := base.Root()
	for _, a := range addrs {
		newRoot, _, err := ctx.Read(root, addressNibbles(a))
		if err != nil {
			return nil, err
		}
		root = newRoot
	}
	return trie.FromSubTree(root), nil
}

// BuildStorageWriteSetTrie does the same for one account's storage trie,
// given the set of storage keys the transaction touched.
func BuildStorageWriteSetTrie(loader trie.NodeLoader, base *trie.PartialTrie, keys []common.H256) (*trie.PartialTrie, error) {
	ctx := trie.NewReadTrieContext(loader)
	root := base.Root()
	for _, k := range keys {
		newRoot, _, err := ctx.Read(root, storageKeyNibbles(k))
		if err != nil {
			return nil, err
		}
		root = newRoot
	}
	return trie.FromSubTree(root), nil
}

// ReadWriteSet is what a client assembles before dispatching a transaction to
// a storage shard: the addresses and per-address storage keys the
// transaction is expected to touch, plus the partial (write-set) tries that
// let the shard verify those reads against the client's view of the chain
// without holding the full state.
type ReadWriteSet struct {
	Accounts     []common.Address
	AccountsTrie *trie.PartialTrie
	Storage      map[common.Address][]common.H256
	StorageTries map[common.Address]*trie.PartialTrie
}

// BuildReadWriteSet materializes the combined account and per-account
// storage write-set tries a TxProposal carries to its executing shard.
func BuildReadWriteSet(
	mainLoader trie.NodeLoader,
	mainRoot *trie.PartialTrie,
	storageLoader func(addr common.Address) trie.NodeLoader,
	storageRoot func(addr common.Address) *trie.PartialTrie,
	accounts []common.Address,
	storage map[common.Address][]common.H256,
) (*ReadWriteSet, error) {
	accTrie, err := BuildAccountWriteSetTrie(mainLoader, mainRoot, accounts)
	if err != nil {
		return nil, err
	}

	storageTries := make(map[common.Address]*trie.PartialTrie, len(storage))
	for addr, keys := range storage {
		st, err := BuildStorageWriteSetTrie(storageLoader(addr), storageRoot(addr), keys)
		if err != nil {
			return nil, err
		}
		storageTries[addr] = st
	}

	return &ReadWriteSet{
		Accounts:     accounts,
		AccountsTrie: accTrie,
		Storage:      storage,
		StorageTries: storageTries,
	}, nil
}

// Encode serializes a ReadWriteSet for the client/shard RPC round trip:
// the touched addresses and storage keys, followed by the write-set tries
// those addresses/keys resolve against (encoded, per trie.PartialTrieDiff's
// single-level convention, as the diff from an empty trie so nested Hash
// stubs are resolved lazily through RouteFetchNode rather than inlined).
func (ws *ReadWriteSet) Encode() []byte {
	enc := wireformat.NewEncoder()

	enc.WriteUvarint(uint64(len(ws.Accounts)))
	for _, a := range ws.Accounts {
		enc.WriteBytes(a.Bytes())
	}
	enc.WriteBytes(trie.Diff(trie.NewEmpty(), ws.AccountsTrie).Encode())

	enc.WriteUvarint(uint64(len(ws.Storage)))
	for addr, keys := range ws.Storage {
		enc.WriteBytes(addr.Bytes())
		enc.WriteUvarint(uint64(len(keys)))
		for _, k := range keys {
			enc.WriteBytes(k.Bytes())
		}
		st := ws.StorageTries[addr]
		if st == nil {
			st = trie.NewEmpty()
		}
		enc.WriteBytes(trie.Diff(trie.NewEmpty(), st).Encode())
	}

	return enc.Bytes()
}

// DecodeReadWriteSet parses the Encode format.
func DecodeReadWriteSet(b []byte) (*ReadWriteSet, error) {
	dec := wireformat.NewDecoder(b)

	accCount, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	accounts := make([]common.Address, 0, accCount)
	for i := uint64(0); i < accCount; i++ {
		raw, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, common.BytesToAddress(raw))
	}
	accDiffBytes, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	accDiff, err := trie.DecodeDiff(accDiffBytes)
	if err != nil {
		return nil, err
	}
	accTrie, err := trie.ApplyDiff(trie.NewEmpty(), accDiff)
	if err != nil {
		return nil, err
	}

	storageCount, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	storage := make(map[common.Address][]common.H256, storageCount)
	storageTries := make(map[common.Address]*trie.PartialTrie, storageCount)
	for i := uint64(0); i < storageCount; i++ {
		addrBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		addr := common.BytesToAddress(addrBytes)

		keyCount, err := dec.ReadUvarint()
		if err != nil {
			return nil, err
		}
		keys := make([]common.H256, 0, keyCount)
		for j := uint64(0); j < keyCount; j++ {
			raw, err := dec.ReadBytes()
			if err != nil {
				return nil, err
			}
			keys = append(keys, common.BytesToH256(raw))
		}
		storage[addr] = keys

		stDiffBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		stDiff, err := trie.DecodeDiff(stDiffBytes)
		if err != nil {
			return nil, err
		}
		st, err := trie.ApplyDiff(trie.NewEmpty(), stDiff)
		if err != nil {
			return nil, err
		}
		storageTries[addr] = st
	}

	return &ReadWriteSet{
		Accounts:     accounts,
		AccountsTrie: accTrie,
		Storage:      storage,
		StorageTries: storageTries,
	}, nil
}

// ApplyAccountWrite grafts addr's new digest onto t, the thin exported
// wrapper a storage shard uses to turn a post-execution AccountState into
// the updated write-set trie NewStateUpdate diffs against (addressNibbles
// stays unexported; this is the one write the outside world needs).
func ApplyAccountWrite(t *trie.PartialTrie, addr common.Address, newState AccountState) (*trie.PartialTrie, error) {
	return trie.WriteTrie(t, addressNibbles(addr), newState.ToDigest())
}
