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

// StateUpdate is the result a storage shard reports back after executing a
// transaction's read/write set: the main-trie diff (an address's account
// digest changing) plus, for every account whose storage the transaction
// touched, that account's own storage-trie diff. It is the Go analogue of
// the original's per-transaction state update record.
type StateUpdate struct {
	MainDiff     trie.PartialTrieDiff
	StorageDiffs map[common.Address]trie.PartialTrieDiff

	// Accounts carries the post-execution AccountState content for every
	// touched address, content-addressed by its own digest in MainDiff's
	// leaves. Trie diffs only ever move digests around; this is what lets a
	// storage shard's commit path turn "this leaf's ValueHash changed" back
	// into an AccountState it can persist with DBManager.PutAccount.
	Accounts map[common.Address]AccountState
}

// NewStateUpdate computes a StateUpdate from a pre- and post-execution view
// of the touched account/storage tries. preAccounts/postAccounts are the
// write-set account trie before and after execution; preStorage/postStorage
// mirror that per account; postAccountStates is the post-execution
// AccountState for every touched address, carried alongside the trie diff so
// a storage shard can persist account content once the block commits.
func NewStateUpdate(
	preAccounts, postAccounts *trie.PartialTrie,
	preStorage, postStorage map[common.Address]*trie.PartialTrie,
	postAccountStates map[common.Address]AccountState,
) *StateUpdate {
	storageDiffs := make(map[common.Address]trie.PartialTrieDiff, len(postStorage))
	for addr, post := range postStorage {
		pre, ok := preStorage[addr]
		if !ok {
			pre = trie.NewEmpty()
		}
		storageDiffs[addr] = trie.Diff(pre, post)
	}
	return &StateUpdate{
		MainDiff:     trie.Diff(preAccounts, postAccounts),
		StorageDiffs: storageDiffs,
		Accounts:     postAccountStates,
	}
}

// MergeStateUpdate unions two StateUpdates computed independently (by two
// workers racing on disjoint-but-possibly-overlapping read/write sets),
// requiring every overlapping path to agree — the multi-account analogue of
// trie.MergeDiff.
func MergeStateUpdate(a, b *StateUpdate) (*StateUpdate, error) {
	mainDiff, err := trie.MergeDiff(a.MainDiff, b.MainDiff)
	if err != nil {
		return nil, err
	}

	storageDiffs := make(map[common.Address]trie.PartialTrieDiff, len(a.StorageDiffs)+len(b.StorageDiffs))
	for addr, d := range a.StorageDiffs {
		storageDiffs[addr] = d
	}
	for addr, d := range b.StorageDiffs {
		existing, ok := storageDiffs[addr]
		if !ok {
			storageDiffs[addr] = d
			continue
		}
		merged, err := trie.MergeDiff(existing, d)
		if err != nil {
			return nil, err
		}
		storageDiffs[addr] = merged
	}

	accounts := make(map[common.Address]AccountState, len(a.Accounts)+len(b.Accounts))
	for addr, acc := range a.Accounts {
		accounts[addr] = acc
	}
	for addr, acc := range b.Accounts {
		accounts[addr] = acc
	}

	return &StateUpdate{MainDiff: mainDiff, StorageDiffs: storageDiffs, Accounts: accounts}, nil
}

// ApplyStateUpdate grafts a StateUpdate onto a client's view of the main
// trie and every affected account's storage trie.
func ApplyStateUpdate(mainTrie *trie.PartialTrie, storageTries map[common.Address]*trie.PartialTrie, update *StateUpdate) (*trie.PartialTrie, map[common.Address]*trie.PartialTrie, error) {
	newMain, err := trie.ApplyDiff(mainTrie, update.MainDiff)
	if err != nil {
		return nil, nil, err
	}

	newStorage := make(map[common.Address]*trie.PartialTrie, len(storageTries))
	for addr, t := range storageTries {
		newStorage[addr] = t
	}
	for addr, d := range update.StorageDiffs {
		base, ok := newStorage[addr]
		if !ok {
			base = trie.NewEmpty()
		}
		applied, err := trie.ApplyDiff(base, d)
		if err != nil {
			return nil, nil, err
		}
		newStorage[addr] = applied
	}

	return newMain, newStorage, nil
}

// TxProposal is what a storage shard hands back to a client once it has
// executed a transaction (spec.md §4.1 step 5 / §6's leader_tx_proposal
// RPC): the original payload, the read/write set the shard actually
// touched, and the main-trie diff (an address's account digest changing)
// the client folds into the BlockProposal it is assembling.
type TxProposal struct {
	TxHash  common.H256
	Payload []byte
	RWSet   *ReadWriteSet
	Diff    trie.PartialTrieDiff

	// StorageDiffs and Accounts mirror chain.BlockProposal's fields at
	// transaction scope: the one account this transaction touched gets a
	// storage-trie diff and its post-execution content, which an assembling
	// client folds (address by address) into the block-wide union it
	// eventually broadcasts.
	StorageDiffs map[common.Address]trie.PartialTrieDiff
	Accounts     map[common.Address]AccountState
}

// Encode serializes a proposal for the client/leader RPC round trip.
func (p *TxProposal) Encode() []byte {
	enc := wireformat.NewEncoder()
	enc.WriteBytes(p.TxHash.Bytes())
	enc.WriteBytes(p.Payload)
	enc.WriteBytes(p.RWSet.Encode())
	enc.WriteBytes(p.Diff.Encode())

	enc.WriteUvarint(uint64(len(p.StorageDiffs)))
	for addr, d := range p.StorageDiffs {
		enc.WriteBytes(addr.Bytes())
		enc.WriteBytes(d.Encode())
	}

	enc.WriteUvarint(uint64(len(p.Accounts)))
	for addr, acc := range p.Accounts {
		enc.WriteBytes(addr.Bytes())
		enc.WriteBytes(acc.Encode())
	}

	return enc.Bytes()
}

// DecodeTxProposal parses the Encode format.
func DecodeTxProposal(b []byte) (*TxProposal, error) {
	dec := wireformat.NewDecoder(b)
	hash, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	payload, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	rwsBytes, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	rws, err := DecodeReadWriteSet(rwsBytes)
	if err != nil {
		return nil, err
	}
	diffBytes, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	diff, err := trie.DecodeDiff(diffBytes)
	if err != nil {
		return nil, err
	}

	storageCount, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	storageDiffs := make(map[common.Address]trie.PartialTrieDiff, storageCount)
	for i := uint64(0); i < storageCount; i++ {
		addrBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		dBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		d, err := trie.DecodeDiff(dBytes)
		if err != nil {
			return nil, err
		}
		storageDiffs[common.BytesToAddress(addrBytes)] = d
	}

	accountCount, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	accounts := make(map[common.Address]AccountState, accountCount)
	for i := uint64(0); i < accountCount; i++ {
		addrBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		accBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		acc, err := DecodeAccountState(accBytes)
		if err != nil {
			return nil, err
		}
		accounts[common.BytesToAddress(addrBytes)] = acc
	}

	return &TxProposal{
		TxHash:       common.BytesToH256(hash),
		Payload:      payload,
		RWSet:        rws,
		Diff:         diff,
		StorageDiffs: storageDiffs,
		Accounts:     accounts,
	}, nil
}
