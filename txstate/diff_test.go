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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/trie"
)

func TestNewStateUpdateAndApplyRoundTrip(t *testing.T) {
	a1 := addr(0x01)
	preMain := trie.NewEmpty()
	preMain, err := trie.WriteTrie(preMain, addressNibbles(a1), common.Keccak256([]byte("account-1-v0")))
	require.NoError(t, err)

	postMain, err := trie.WriteTrie(preMain, addressNibbles(a1), common.Keccak256([]byte("account-1-v1")))
	require.NoError(t, err)

	k1 := common.Keccak256([]byte("slot-1"))
	preStorage := trie.NewEmpty()
	postStorage, err := trie.WriteTrie(preStorage, storageKeyNibbles(k1), common.Keccak256([]byte("value-1")))
	require.NoError(t, err)

	update := NewStateUpdate(
		preMain, postMain,
		map[common.Address]*trie.PartialTrie{a1: preStorage},
		map[common.Address]*trie.PartialTrie{a1: postStorage},
		nil,
	)

	newMain, newStorage, err := ApplyStateUpdate(preMain, map[common.Address]*trie.PartialTrie{a1: preStorage}, update)
	require.NoError(t, err)

	assert.Equal(t, postMain.Digest(), newMain.Digest())
	assert.Equal(t, postStorage.Digest(), newStorage[a1].Digest())
}

func TestMergeStateUpdateUnionsDisjointWrites(t *testing.T) {
	a1, a2 := addr(0x01), addr(0x02)
	base := buildMainTrie(t, a1, a2)

	main1, err := trie.WriteTrie(base, addressNibbles(a1), common.Keccak256([]byte("v1")))
	require.NoError(t, err)
	main2, err := trie.WriteTrie(base, addressNibbles(a2), common.Keccak256([]byte("v2")))
	require.NoError(t, err)

	u1 := NewStateUpdate(base, main1, nil, nil, nil)
	u2 := NewStateUpdate(base, main2, nil, nil, nil)

	merged, err := MergeStateUpdate(u1, u2)
	require.NoError(t, err)

	combined, err := trie.ApplyDiff(base, merged.MainDiff)
	require.NoError(t, err)

	v1, err := trie.Read(combined.Root(), addressNibbles(a1))
	require.NoError(t, err)
	assert.Equal(t, common.Keccak256([]byte("v1")), v1)

	v2, err := trie.Read(combined.Root(), addressNibbles(a2))
	require.NoError(t, err)
	assert.Equal(t, common.Keccak256([]byte("v2")), v2)
}

func TestMergeStateUpdateRejectsConflictingWrites(t *testing.T) {
	a1 := addr(0x01)
	base := trie.NewEmpty()

	main1, err := trie.WriteTrie(base, addressNibbles(a1), common.Keccak256([]byte("v1")))
	require.NoError(t, err)
	main2, err := trie.WriteTrie(base, addressNibbles(a1), common.Keccak256([]byte("v2")))
	require.NoError(t, err)

	u1 := NewStateUpdate(base, main1, nil, nil, nil)
	u2 := NewStateUpdate(base, main2, nil, nil, nil)

	_, err = MergeStateUpdate(u1, u2)
	require.Error(t, err)
	kind, ok := common.ErrKind(err)
	require.True(t, ok)
	assert.Equal(t, common.KindDiffApplyMismatch, kind)
}
