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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/storage/database"
	"github.com/slimchain-go/slimchain/trie"
	"github.com/slimchain-go/slimchain/txstate"
)

type acceptAllConsensus struct{}

func (acceptAllConsensus) VerifyConsensus(header, prev *BlockHeader) error { return nil }

func newTestDBManager(t *testing.T) DBManager {
	t.Helper()
	db, err := NewDBManager(database.NewMemDB(), 1, 64)
	require.NoError(t, err)
	return db
}

func oneLeafKey() trie.Nibbles {
	return trie.BytesToNibbles(common.BytesToAddress([]byte{0x01}).Bytes()).AsNibbles()
}

// buildProposal computes the diff that inserts one leaf into an otherwise
// empty trie and wraps it in a BlockProposal extending genesis.
func buildProposal(t *testing.T) (*BlockProposal, *trie.PartialTrie, *trie.PartialTrie) {
	t.Helper()
	genesisState := trie.NewEmpty()
	newState, err := trie.WriteTrie(genesisState, oneLeafKey(), common.Keccak256([]byte("account-1")))
	require.NoError(t, err)

	diff := trie.Diff(genesisState, newState)

	genesis := &BlockHeader{Height: 0, StateRoot: genesisState.Digest()}
	header := &BlockHeader{
		Height:     1,
		PrevHash:   genesis.Hash(),
		StateRoot:  newState.Digest(),
		TxListHash: computeTxListHash(nil),
		Timestamp:  1,
	}
	return &BlockProposal{Header: header, TxList: nil, Diff: diff}, genesisState, newState
}

func TestValidateProposalAcceptsWellFormedBlock(t *testing.T) {
	prop, genesisState, newState := buildProposal(t)
	genesis := &BlockHeader{Height: 0, StateRoot: genesisState.Digest()}

	result, err := ValidateProposal(prop, genesis, genesisState, acceptAllConsensus{})
	require.NoError(t, err)
	assert.Equal(t, newState.Digest(), result.Digest())
}

func TestValidateProposalRejectsHeightGap(t *testing.T) {
	prop, genesisState, _ := buildProposal(t)
	genesis := &BlockHeader{Height: 0, StateRoot: genesisState.Digest()}
	prop.Header.Height = 5

	_, err := ValidateProposal(prop, genesis, genesisState, acceptAllConsensus{})
	require.Error(t, err)
	kind, ok := common.ErrKind(err)
	require.True(t, ok)
	assert.Equal(t, common.KindHeightGap, kind)
}

func TestValidateProposalRejectsWrongParent(t *testing.T) {
	prop, genesisState, _ := buildProposal(t)
	genesis := &BlockHeader{Height: 0, StateRoot: genesisState.Digest()}
	prop.Header.PrevHash = common.Keccak256([]byte("not-the-parent"))

	_, err := ValidateProposal(prop, genesis, genesisState, acceptAllConsensus{})
	require.Error(t, err)
	kind, ok := common.ErrKind(err)
	require.True(t, ok)
	assert.Equal(t, common.KindConsensusInvalid, kind)
}

func TestValidateProposalRejectsTamperedStateRoot(t *testing.T) {
	prop, genesisState, _ := buildProposal(t)
	genesis := &BlockHeader{Height: 0, StateRoot: genesisState.Digest()}
	prop.Header.StateRoot = common.Keccak256([]byte("wrong-root"))

	_, err := ValidateProposal(prop, genesis, genesisState, acceptAllConsensus{})
	require.Error(t, err)
	kind, ok := common.ErrKind(err)
	require.True(t, ok)
	assert.Equal(t, common.KindDiffApplyMismatch, kind)
}

func TestCommitBlockPersistsHeaderCanonicalAndHead(t *testing.T) {
	db := newTestDBManager(t)
	prop, _, _ := buildProposal(t)

	require.NoError(t, CommitBlock(db, prop))

	head, ok, err := db.ReadHeadHash()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prop.Header.Hash(), head)

	canonical, ok, err := db.ReadCanonicalHash(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prop.Header.Hash(), canonical)

	stored, err := db.ReadHeader(prop.Header.Hash())
	require.NoError(t, err)
	assert.Equal(t, prop.Header.Height, stored.Height)
}

func TestBlockProposalEncodeDecodeRoundTrip(t *testing.T) {
	prop, _, _ := buildProposal(t)

	decoded, err := DecodeBlockProposal(prop.Encode())
	require.NoError(t, err)
	assert.Equal(t, prop.Header.Hash(), decoded.Header.Hash())
	assert.Equal(t, prop.Header.StateRoot, decoded.Header.StateRoot)
	assert.Len(t, decoded.TxList, len(prop.TxList))
}

func TestCommitBlockStorageNodeAdvancesLocalStateAndPersistsAccount(t *testing.T) {
	db := newTestDBManager(t)
	prop, genesisState, newState := buildProposal(t)

	acc := txstate.AccountState{Nonce: 1}
	addr := common.BytesToAddress([]byte{0x01})
	prop.Accounts = map[common.Address]txstate.AccountState{addr: acc}
	prop.TxPayloads = map[common.H256][]byte{common.Keccak256([]byte("tx-1")): []byte("payload")}

	result, err := CommitBlockStorageNode(db, prop, genesisState)
	require.NoError(t, err)
	assert.Equal(t, newState.Digest(), result.Digest())

	head, ok, err := db.ReadHeadHash()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prop.Header.Hash(), head)

	got, err := db.LoadAccount(acc.ToDigest())
	require.NoError(t, err)
	assert.Equal(t, acc, got)

	node, err := db.LoadNode(newState.Digest())
	require.NoError(t, err)
	assert.Equal(t, newState.Digest(), node.Digest())
}

func TestPendingBlocksBuffersOutOfOrderAndDrainsContiguousRun(t *testing.T) {
	p := NewPendingBlocks()

	mk := func(height uint64) *BlockProposal {
		return &BlockProposal{Header: &BlockHeader{Height: height}}
	}

	p.Push(mk(3))
	p.Push(mk(1))
	p.Push(mk(2))
	p.Push(mk(5))

	assert.Equal(t, 4, p.Len())

	ready := p.PopReady(0)
	require.Len(t, ready, 3)
	assert.Equal(t, uint64(1), ready[0].Header.Height)
	assert.Equal(t, uint64(2), ready[1].Header.Height)
	assert.Equal(t, uint64(3), ready[2].Header.Height)

	// height 4 is still missing, so 5 must stay buffered.
	assert.Equal(t, 1, p.Len())
	assert.Empty(t, p.PopReady(3))
}
