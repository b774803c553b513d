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

// Package trie implements the partial hexary Patricia trie described in
// spec.md §4.2: a Merkle trie in which any subtree may be replaced by an
// opaque Hash stub without changing the root digest. It supports selective
// materialization, diff extraction/application, and pruning back to stubs.
package trie

import "github.com/slimchain-go/slimchain/common"

// PartialTrie is a possibly-partial view of a hexary Patricia trie. The
// zero value is not usable; construct one with NewEmpty, FromRootHash or
// FromSubTree.
type PartialTrie struct {
	root SubTree // nil means the empty trie (digest == common.ZeroH256)
}

// NewEmpty returns the empty trie.
func NewEmpty() *PartialTrie { return &PartialTrie{} }

// FromRootHash returns a trie that is entirely a single Hash stub: nothing
// beneath the root is materialized.
func FromRootHash(h common.H256) *PartialTrie {
	if h.IsZero() {
		return NewEmpty()
	}
	return &PartialTrie{root: NewHashNode(h)}
}

// FromSubTree wraps an already-built subtree as a trie root.
func FromSubTree(root SubTree) *PartialTrie { return &PartialTrie{root: root} }

// Root returns the trie's root SubTree, or nil for the empty trie.
func (t *PartialTrie) Root() SubTree { return t.root }

// Digest returns the trie's root hash. It is independent of how much of the
// trie is materialized vs. stubbed (invariant 1).
func (t *PartialTrie) Digest() common.H256 {
	if t.root == nil {
		return common.ZeroH256
	}
	return t.root.Digest()
}

// Clone returns a shallow copy of t; since every SubTree is immutable once
// built, sharing subtrees between the clone and the original is always
// safe — this is the "structural sharing" the original gets from
// reference-counted handles, here obtained for free from Go's garbage
// collector (see DESIGN.md's resolution of the arena-vs-refcounting open
// question).
func (t *PartialTrie) Clone() *PartialTrie { return &PartialTrie{root: t.root} }
