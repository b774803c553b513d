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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimchain-go/slimchain/common"
)

func key(b byte) Nibbles {
	return BytesToNibbles(common.BytesToAddress([]byte{b}).Bytes()).AsNibbles()
}

func val(s string) common.H256 {
	return common.Keccak256([]byte(s))
}

// memLoader resolves stubs out of an in-memory map, standing in for a
// storage shard's node database in these tests.
type memLoader struct {
	nodes map[common.H256]SubTree
}

func newMemLoader() *memLoader { return &memLoader{nodes: make(map[common.H256]SubTree)} }

func (l *memLoader) put(n SubTree) { l.nodes[n.Digest()] = n }

func (l *memLoader) LoadNode(h common.H256) (SubTree, error) {
	n, ok := l.nodes[h]
	if !ok {
		return nil, ErrNeedLoad(h)
	}
	return n, nil
}

func buildTrie(t *testing.T, kvs map[byte]string) (*PartialTrie, *memLoader) {
	t.Helper()
	trie := NewEmpty()
	for k, v := range kvs {
		newRoot, err := Write(trie.root, key(k), val(v))
		require.NoError(t, err)
		trie = &PartialTrie{root: newRoot}
	}
	loader := newMemLoader()
	recordAll(trie.root, loader)
	return trie, loader
}

func recordAll(n SubTree, loader *memLoader) {
	switch v := n.(type) {
	case nil:
		return
	case *HashNode:
		return
	case *LeafNode:
		loader.put(v)
	case *ExtensionNode:
		loader.put(v)
		recordAll(v.Child, loader)
	case *BranchNode:
		loader.put(v)
		for _, c := range v.Children {
			recordAll(c, loader)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	kvs := map[byte]string{1: "a", 2: "b", 17: "c", 200: "d"}
	trie, _ := buildTrie(t, kvs)

	for k, v := range kvs {
		got, err := Read(trie.root, key(k))
		require.NoError(t, err)
		assert.Equal(t, val(v), got)
	}

	absent, err := Read(trie.root, key(99))
	require.NoError(t, err)
	assert.True(t, absent.IsZero())
}

func TestWriteOverwriteAndDelete(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b"})

	newRoot, err := Write(trie.root, key(1), val("a2"))
	require.NoError(t, err)
	got, err := Read(newRoot, key(1))
	require.NoError(t, err)
	assert.Equal(t, val("a2"), got)

	deleted, err := Write(newRoot, key(1), common.ZeroH256)
	require.NoError(t, err)
	got, err = Read(deleted, key(1))
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	stillThere, err := Read(deleted, key(2))
	require.NoError(t, err)
	assert.Equal(t, val("b"), stillThere)
}

func TestDeleteCollapsesBranch(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b"})
	newRoot, err := Write(trie.root, key(1), common.ZeroH256)
	require.NoError(t, err)

	// With key 1 gone, the branch the two leaves shared has only one child
	// left and must collapse (invariant 4): no BranchNode should remain
	// anywhere in the new trie.
	assertNoBranch(t, newRoot)

	got, err := Read(newRoot, key(2))
	require.NoError(t, err)
	assert.Equal(t, val("b"), got)

	gone, err := Read(newRoot, key(1))
	require.NoError(t, err)
	assert.True(t, gone.IsZero())
}

func assertNoBranch(t *testing.T, n SubTree) {
	t.Helper()
	switch v := n.(type) {
	case nil, *HashNode, *LeafNode:
		return
	case *ExtensionNode:
		assertNoBranch(t, v.Child)
	case *BranchNode:
		t.Fatalf("expected no branch nodes after collapse, found one with %d children", v.NumMaterializedChildren())
	}
}

func TestNeedLoadOnStub(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b"})
	stub := FromRootHash(trie.Digest())

	_, err := Read(stub.root, key(1))
	require.Error(t, err)
	h, ok := AsNeedLoad(err)
	require.True(t, ok)
	assert.Equal(t, trie.Digest(), h)
}

func TestPruneKeyPreservesDigest(t *testing.T) {
	trie, loader := buildTrie(t, map[byte]string{1: "a", 2: "b", 17: "c"})
	before := trie.Digest()

	pruned, err := trie.PruneKey(key(1), 1)
	require.NoError(t, err)
	assert.Equal(t, before, pruned.Digest())

	_, err = Read(pruned.root, key(1))
	require.Error(t, err)
	stub, ok := AsNeedLoad(err)
	require.True(t, ok)

	loaded, err := loader.LoadNode(stub)
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}

func TestPruneUnusedKeysPreservesDigestAndReads(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b", 17: "c"})
	before := trie.Digest()

	pruned, err := trie.PruneUnusedKeys([]Nibbles{key(1)})
	require.NoError(t, err)
	assert.Equal(t, before, pruned.Digest())

	got, err := Read(pruned.root, key(1))
	require.NoError(t, err)
	assert.Equal(t, val("a"), got)

	_, err = Read(pruned.root, key(2))
	require.Error(t, err)
	_, ok := AsNeedLoad(err)
	assert.True(t, ok)
}

func TestDiffApplyDiffRoundTrip(t *testing.T) {
	base, _ := buildTrie(t, map[byte]string{1: "a", 2: "b"})
	updatedRoot, err := Write(base.root, key(2), val("b2"))
	require.NoError(t, err)
	insertedRoot, err := Write(updatedRoot, key(17), val("c"))
	require.NoError(t, err)
	updated := &PartialTrie{root: insertedRoot}

	diff := Diff(base, updated)
	require.NotEmpty(t, diff)

	applied, err := ApplyDiff(base, diff)
	require.NoError(t, err)
	assert.Equal(t, updated.Digest(), applied.Digest())

	got, err := Read(applied.root, key(17))
	require.NoError(t, err)
	assert.Equal(t, val("c"), got)
}

func TestDiffIdenticalTriesIsEmpty(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b"})
	diff := Diff(trie, trie.Clone())
	assert.Empty(t, diff)
}

func TestMergeDiffAgreeingOverlap(t *testing.T) {
	// Keep the base's shape (Extension -> Branch) stable across both diffs
	// by already having three keys in distinct branch slots, so each diff
	// only rewrites the leaves it actually touches instead of the whole
	// root — otherwise the two diffs would never agree to merge on overlap.
	base, _ := buildTrie(t, map[byte]string{1: "a", 2: "b", 17: "c"})

	root1, err := Write(base.root, key(2), val("b2"))
	require.NoError(t, err)
	t1 := &PartialTrie{root: root1}

	root2, err := Write(base.root, key(2), val("b2"))
	require.NoError(t, err)
	root2, err = Write(root2, key(32), val("d"))
	require.NoError(t, err)
	t2 := &PartialTrie{root: root2}

	d1 := Diff(base, t1)
	d2 := Diff(base, t2)

	merged, err := MergeDiff(d1, d2)
	require.NoError(t, err)

	applied, err := ApplyDiff(base, merged)
	require.NoError(t, err)

	got2, err := Read(applied.root, key(2))
	require.NoError(t, err)
	assert.Equal(t, val("b2"), got2)

	got32, err := Read(applied.root, key(32))
	require.NoError(t, err)
	assert.Equal(t, val("d"), got32)

	got1, err := Read(applied.root, key(1))
	require.NoError(t, err)
	assert.Equal(t, val("a"), got1)
}

func TestMergeDiffConflictingOverlapErrors(t *testing.T) {
	base, _ := buildTrie(t, map[byte]string{1: "a"})
	root1, err := Write(base.root, key(2), val("b"))
	require.NoError(t, err)
	t1 := &PartialTrie{root: root1}

	root2, err := Write(base.root, key(2), val("conflict"))
	require.NoError(t, err)
	t2 := &PartialTrie{root: root2}

	d1 := Diff(base, t1)
	d2 := Diff(base, t2)

	_, err = MergeDiff(d1, d2)
	require.Error(t, err)
	kind, ok := common.ErrKind(err)
	require.True(t, ok)
	assert.Equal(t, common.KindDiffApplyMismatch, kind)
}

func TestReadTrieContextMaterializesTouchedPath(t *testing.T) {
	trie, loader := buildTrie(t, map[byte]string{1: "a", 2: "b", 17: "c"})
	stub := FromRootHash(trie.Digest())

	ctx := NewReadTrieContext(loader)
	newRoot, got, err := ctx.Read(stub.root, key(1))
	require.NoError(t, err)
	assert.Equal(t, val("a"), got)
	assert.NotEmpty(t, ctx.Touched)
	assert.Equal(t, trie.Digest(), newRoot.Digest())

	again, err := Read(newRoot, key(1))
	require.NoError(t, err)
	assert.Equal(t, val("a"), again)
}

func TestWriteThroughStubNeedsLoad(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b"})
	stub := FromRootHash(trie.Digest())

	_, err := Write(stub.root, key(1), val("a2"))
	require.Error(t, err)
	_, ok := AsNeedLoad(err)
	assert.True(t, ok)
}

func TestMissingBranches(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b", 17: "c"})
	pruned, err := trie.PruneKey(key(1), 1)
	require.NoError(t, err)

	missing := MissingBranches(pruned)
	assert.NotEmpty(t, missing)
}

func TestDiffMissingBranchesFillsWhatMaskCovers(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b", 17: "c"})
	pruned, err := trie.PruneKey(key(1), 1)
	require.NoError(t, err)
	require.NotEmpty(t, MissingBranches(pruned))

	diff, err := DiffMissingBranches(pruned, trie)
	require.NoError(t, err)
	require.NotEmpty(t, diff)

	filled, err := ApplyDiff(pruned, diff)
	require.NoError(t, err)
	assert.Equal(t, trie.Digest(), filled.Digest())
	assert.Empty(t, MissingBranches(filled))

	got, err := Read(filled.root, key(1))
	require.NoError(t, err)
	assert.Equal(t, val("a"), got)
}

func TestDiffMissingBranchesLeavesUncoveredStubsAlone(t *testing.T) {
	trie, _ := buildTrie(t, map[byte]string{1: "a", 2: "b", 17: "c"})
	pruned, err := trie.PruneKey(key(1), 1)
	require.NoError(t, err)

	stub := FromRootHash(trie.Digest()) // mask with nothing materialized at all
	diff, err := DiffMissingBranches(pruned, stub)
	require.NoError(t, err)
	assert.Empty(t, diff)
}
