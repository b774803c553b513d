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

package chain

import (
	"sync"

	"gopkg.in/karalabe/cookiejar.v2/collections/prque"

	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/log"
	"github.com/slimchain-go/slimchain/trie"
	"github.com/slimchain-go/slimchain/txstate"
	"github.com/slimchain-go/slimchain/wireformat"
)

var commitLog = log.NewModuleLogger("chain/commit")

// ConsensusEngine verifies the consensus-specific part of a header
// (ConsensusData) against its predecessor. consensus/pow and consensus/raft
// each provide one; chain itself stays consensus-agnostic, exactly as
// spec.md §4.4 describes the two engines as pluggable.
type ConsensusEngine interface {
	VerifyConsensus(header, prev *BlockHeader) error
}

// BlockProposal is a candidate block together with everything needed to
// validate and, on success, commit it: the ordered list of transaction
// hashes it includes, and the trie diff that, applied to the previous
// block's state root, must reproduce Header.StateRoot.
type BlockProposal struct {
	Header *BlockHeader
	TxList []common.H256
	Diff   trie.PartialTrieDiff

	// StorageDiffs and Accounts are the union, across every transaction the
	// block includes, of the per-account storage-trie diffs and post-
	// execution account content a storage shard's worker reported (spec.md
	// §4.3). One BlockProposal goes to every shard; CommitBlockStorageNode
	// persists every entry it carries and does not filter them by which
	// shard owns the address.
	StorageDiffs map[common.Address]trie.PartialTrieDiff
	Accounts     map[common.Address]txstate.AccountState

	// TxPayloads, present on the storage-node commit path only, carries the
	// raw transaction bytes to persist alongside the block.
	TxPayloads map[common.H256][]byte
}

// Encode serializes a proposal for gossip and for the storage-node block
// import RPC: header, tx list, main diff, then the per-account storage
// diffs and account content every storage shard needs to advance its own
// view. TxPayloads is omitted - it is only ever populated on the local
// commit path and never needs to cross the wire in that form.
func (p *BlockProposal) Encode() []byte {
	enc := wireformat.NewEncoder()
	enc.WriteBytes(p.Header.Encode())
	enc.WriteUvarint(uint64(len(p.TxList)))
	for _, h := range p.TxList {
		enc.WriteBytes(h.Bytes())
	}
	enc.WriteBytes(p.Diff.Encode())

	enc.WriteUvarint(uint64(len(p.StorageDiffs)))
	for addr, diff := range p.StorageDiffs {
		enc.WriteBytes(addr.Bytes())
		enc.WriteBytes(diff.Encode())
	}

	enc.WriteUvarint(uint64(len(p.Accounts)))
	for addr, acc := range p.Accounts {
		enc.WriteBytes(addr.Bytes())
		enc.WriteBytes(acc.Encode())
	}

	return enc.Bytes()
}

// DecodeBlockProposal parses the Encode format.
func DecodeBlockProposal(b []byte) (*BlockProposal, error) {
	dec := wireformat.NewDecoder(b)
	hdrBytes, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	header, err := DecodeBlockHeader(hdrBytes)
	if err != nil {
		return nil, err
	}
	count, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	txList := make([]common.H256, 0, count)
	for i := uint64(0); i < count; i++ {
		h, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		txList = append(txList, common.BytesToH256(h))
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
		diffBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		d, err := trie.DecodeDiff(diffBytes)
		if err != nil {
			return nil, err
		}
		storageDiffs[common.BytesToAddress(addrBytes)] = d
	}

	accountCount, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	accounts := make(map[common.Address]txstate.AccountState, accountCount)
	for i := uint64(0); i < accountCount; i++ {
		addrBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		accBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		acc, err := txstate.DecodeAccountState(accBytes)
		if err != nil {
			return nil, err
		}
		accounts[common.BytesToAddress(addrBytes)] = acc
	}

	return &BlockProposal{
		Header:       header,
		TxList:       txList,
		Diff:         diff,
		StorageDiffs: storageDiffs,
		Accounts:     accounts,
	}, nil
}

func computeTxListHash(txs []common.H256) common.H256 {
	var buf []byte
	for _, h := range txs {
		buf = append(buf, h.Bytes()...)
	}
	return common.Keccak256(buf)
}

// ComputeTxListHash exposes computeTxListHash so a block proposer (currently
// only cmd/slimclient) can stamp BlockHeader.TxListHash consistently with
// what ValidateProposal will later recompute.
func ComputeTxListHash(txs []common.H256) common.H256 {
	return computeTxListHash(txs)
}

// ValidateProposal runs the §4.3 block-acceptance pipeline: height
// continuity, parent linkage, the transaction-list commitment, the
// consensus engine's own check, and finally that applying Diff to the
// parent's state root reproduces the header's claimed StateRoot. On success
// it returns the resulting state trie; the caller commits it alongside the
// header.
func ValidateProposal(prop *BlockProposal, prevHeader *BlockHeader, prevState *trie.PartialTrie, consensus ConsensusEngine) (*trie.PartialTrie, error) {
	if prop.Header.Height != prevHeader.Height+1 {
		return nil, common.Newf(common.KindHeightGap, "chain: expected block at height %d, got %d", prevHeader.Height+1, prop.Header.Height)
	}
	if prop.Header.PrevHash != prevHeader.Hash() {
		return nil, common.Newf(common.KindConsensusInvalid, "chain: block does not extend the current head")
	}
	if computeTxListHash(prop.TxList) != prop.Header.TxListHash {
		return nil, common.Newf(common.KindInvalidTx, "chain: tx list hash mismatch")
	}
	if err := consensus.VerifyConsensus(prop.Header, prevHeader); err != nil {
		return nil, err
	}

	newState, err := trie.ApplyDiff(prevState, prop.Diff)
	if err != nil {
		return nil, common.WrapKind(common.KindDiffApplyMismatch, err)
	}
	if newState.Digest() != prop.Header.StateRoot {
		return nil, common.Newf(common.KindDiffApplyMismatch, "chain: state root mismatch after applying diff")
	}
	return newState, nil
}

// CommitBlock is the client-role commit path (grounded on the original's
// commit_block): the client orders blocks and runs consensus but never
// executes transactions, so it only persists the header, the canonical
// height index, and the new head pointer.
func CommitBlock(db DBManager, prop *BlockProposal) error {
	if err := db.WriteHeader(prop.Header); err != nil {
		return err
	}
	if err := db.WriteCanonicalHash(prop.Header.Height, prop.Header.Hash()); err != nil {
		return err
	}
	if err := db.WriteHeadHash(prop.Header.Hash()); err != nil {
		return err
	}
	commitLog.Info("committed block", "height", prop.Header.Height, "hash", prop.Header.Hash())
	return nil
}

// CommitBlockStorageNode is the storage-role commit path (grounded on the
// original's commit_block_storage_node): in addition to the header and
// canonical index, a storage shard persists every transaction it executed
// and grafts the proposal's reported state update onto its own (per-shard)
// view of the state, keeping its local trie nodes and the header's
// StateRoot in lockstep. The update is read straight off prop rather than
// passed separately, since prop.StorageDiffs/Accounts is exactly the union
// of every shard's per-tx StateUpdate the assembling client collected.
func CommitBlockStorageNode(db DBManager, prop *BlockProposal, localState *trie.PartialTrie) (*trie.PartialTrie, error) {
	update := &txstate.StateUpdate{MainDiff: prop.Diff, StorageDiffs: prop.StorageDiffs, Accounts: prop.Accounts}
	newState, err := trie.ApplyDiff(localState, update.MainDiff)
	if err != nil {
		return nil, common.WrapKind(common.KindDiffApplyMismatch, err)
	}

	batch := db.NewBatch()
	for txHash, payload := range prop.TxPayloads {
		batch.Put(txKey(txHash), payload)
	}
	for _, n := range materializedNodes(update.MainDiff) {
		db.PutNodeBatch(batch, n)
	}
	for _, diff := range update.StorageDiffs {
		for _, n := range materializedNodes(diff) {
			db.PutNodeBatch(batch, n)
		}
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}
	for _, acc := range update.Accounts {
		if err := db.PutAccount(acc); err != nil {
			return nil, err
		}
	}

	if err := db.WriteHeader(prop.Header); err != nil {
		return nil, err
	}
	if err := db.WriteCanonicalHash(prop.Header.Height, prop.Header.Hash()); err != nil {
		return nil, err
	}
	if err := db.WriteHeadHash(prop.Header.Hash()); err != nil {
		return nil, err
	}
	commitLog.Info("committed block (storage node)", "height", prop.Header.Height, "hash", prop.Header.Hash())
	return newState, nil
}

// materializedNodes collects every non-stub node introduced by a diff's
// grafted replacements, so the storage shard persists exactly the nodes it
// newly built rather than re-encoding the whole trie.
func materializedNodes(diff trie.PartialTrieDiff) []trie.SubTree {
	var out []trie.SubTree
	for _, entry := range diff {
		collectMaterialized(entry.Node, &out)
	}
	return out
}

func collectMaterialized(n trie.SubTree, out *[]trie.SubTree) {
	switch v := n.(type) {
	case nil:
		return
	case *trie.HashNode:
		return
	case *trie.LeafNode:
		*out = append(*out, v)
	case *trie.ExtensionNode:
		*out = append(*out, v)
		collectMaterialized(v.Child, out)
	case *trie.BranchNode:
		*out = append(*out, v)
		for _, c := range v.Children {
			collectMaterialized(c, out)
		}
	}
}

func txKey(h common.H256) []byte { return append(append([]byte{}, []byte("t")...), h.Bytes()...) }

// PendingBlocks buffers out-of-order block proposals by height until the
// chain's head advances to meet them (spec.md §4.3: blocks may arrive from
// gossip before their parent does). It is a thin wrapper around
// karalabe/cookiejar's prque, the same bounded priority queue klaytn's txpool
// lineage uses for time-ordered eviction.
type PendingBlocks struct {
	mu       sync.Mutex
	q        *prque.Prque
	byHeight map[uint64]*BlockProposal
}

func NewPendingBlocks() *PendingBlocks {
	return &PendingBlocks{q: prque.New(), byHeight: make(map[uint64]*BlockProposal)}
}

// Push buffers prop, ordered so the lowest height pops first.
func (p *PendingBlocks) Push(prop *BlockProposal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := prop.Header.Height
	if _, exists := p.byHeight[h]; exists {
		return
	}
	p.byHeight[h] = prop
	p.q.Push(h, -float32(h))
}

// PopReady drains and returns every buffered proposal whose height is
// exactly the next expected one, in height order, given the current head
// height.
func (p *PendingBlocks) PopReady(headHeight uint64) []*BlockProposal {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ready []*BlockProposal
	next := headHeight + 1
	for !p.q.Empty() {
		item, _ := p.q.Pop()
		h := item.(uint64)
		prop, ok := p.byHeight[h]
		if !ok {
			continue
		}
		if h != next {
			// Not yet contiguous: put it back and stop.
			p.q.Push(h, -float32(h))
			break
		}
		delete(p.byHeight, h)
		ready = append(ready, prop)
		next++
	}
	return ready
}

// Len reports how many proposals are currently buffered.
func (p *PendingBlocks) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHeight)
}
