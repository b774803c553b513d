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

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

// buildMainTrie writes one account digest per address given, returning the
// fully-materialized trie (no Hash stubs, so no NodeLoader is needed to
// build a write-set out of it).
func buildMainTrie(t *testing.T, addrs ...common.Address) *trie.PartialTrie {
	t.Helper()
	tr := trie.NewEmpty()
	for _, a := range addrs {
		var err error
		tr, err = trie.WriteTrie(tr, addressNibbles(a), common.Keccak256(a.Bytes()))
		require.NoError(t, err)
	}
	return tr
}

func TestBuildAccountWriteSetTrieCoversTouchedAddresses(t *testing.T) {
	a1, a2, a3 := addr(0x01), addr(0x02), addr(0x03)
	main := buildMainTrie(t, a1, a2, a3)

	ws, err := BuildAccountWriteSetTrie(nil, main, []common.Address{a1, a3})
	require.NoError(t, err)

	v1, err := trie.Read(ws.Root(), addressNibbles(a1))
	require.NoError(t, err)
	assert.Equal(t, common.Keccak256(a1.Bytes()), v1)

	v3, err := trie.Read(ws.Root(), addressNibbles(a3))
	require.NoError(t, err)
	assert.Equal(t, common.Keccak256(a3.Bytes()), v3)
}

func TestBuildAccountWriteSetTrieEmptyAddressListYieldsBaseRoot(t *testing.T) {
	a1 := addr(0x01)
	main := buildMainTrie(t, a1)

	ws, err := BuildAccountWriteSetTrie(nil, main, nil)
	require.NoError(t, err)
	assert.Equal(t, main.Digest(), ws.Digest())
}

func TestBuildStorageWriteSetTrieCoversTouchedKeys(t *testing.T) {
	k1 := common.Keccak256([]byte("slot-1"))
	k2 := common.Keccak256([]byte("slot-2"))

	storage := trie.NewEmpty()
	var err error
	storage, err = trie.WriteTrie(storage, storageKeyNibbles(k1), common.Keccak256([]byte("value-1")))
	require.NoError(t, err)
	storage, err = trie.WriteTrie(storage, storageKeyNibbles(k2), common.Keccak256([]byte("value-2")))
	require.NoError(t, err)

	ws, err := BuildStorageWriteSetTrie(nil, storage, []common.H256{k1})
	require.NoError(t, err)

	v, err := trie.Read(ws.Root(), storageKeyNibbles(k1))
	require.NoError(t, err)
	assert.Equal(t, common.Keccak256([]byte("value-1")), v)
}

func TestBuildReadWriteSetAssemblesAccountAndStorageTries(t *testing.T) {
	a1 := addr(0x01)
	main := buildMainTrie(t, a1)

	k1 := common.Keccak256([]byte("slot-1"))
	storage := trie.NewEmpty()
	storage, err := trie.WriteTrie(storage, storageKeyNibbles(k1), common.Keccak256([]byte("value-1")))
	require.NoError(t, err)

	rws, err := BuildReadWriteSet(
		nil, main,
		func(common.Address) trie.NodeLoader { return nil },
		func(common.Address) *trie.PartialTrie { return storage },
		[]common.Address{a1},
		map[common.Address][]common.H256{a1: {k1}},
	)
	require.NoError(t, err)

	assert.Equal(t, []common.Address{a1}, rws.Accounts)
	assert.Contains(t, rws.StorageTries, a1)
	v, err := trie.Read(rws.StorageTries[a1].Root(), storageKeyNibbles(k1))
	require.NoError(t, err)
	assert.Equal(t, common.Keccak256([]byte("value-1")), v)
}
