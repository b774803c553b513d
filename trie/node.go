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

import "github.com/slimchain-go/slimchain/common"

// SubTree is the sum type at the heart of the partial trie: every node is
// exactly one of Hash, Leaf, Extension or Branch. Go has no sum types, so
// the variants are modeled as an interface with a closed set of
// implementations, the same polymorphism idiom the teacher uses for
// AccountKey (blockchain/types/account_key.go): a small tagged interface
// rather than one struct with optional fields.
type SubTree interface {
	// Digest returns the node's content hash. For a Branch this is
	// memoized at construction (Design Notes option (a)); for the other
	// variants it is cheap enough to recompute on demand.
	Digest() common.H256

	// isSubTree is unexported so SubTree cannot be implemented outside
	// this package, keeping the sum type closed.
	isSubTree()
}

// HashNode is an opaque stub: a subtree whose content is known only by
// digest. Reading through one fails with ErrNeedLoad.
type HashNode struct {
	Hash common.H256
}

func NewHashNode(h common.H256) *HashNode { return &HashNode{Hash: h} }

func (n *HashNode) Digest() common.H256 { return n.Hash }
func (*HashNode) isSubTree()            {}

// LeafNode stores the key suffix remaining after the path from the root,
// plus the digest of the value (the value's own bytes live outside the
// trie; the trie only commits to their hash).
type LeafNode struct {
	Nibbles   NibbleBuf
	ValueHash common.H256
}

func NewLeafNode(nibbles Nibbles, valueHash common.H256) *LeafNode {
	return &LeafNode{Nibbles: nibbles.clone(), ValueHash: valueHash}
}

func (n *LeafNode) Digest() common.H256 { return leafHash(n.Nibbles.AsNibbles(), n.ValueHash) }
func (*LeafNode) isSubTree()            {}

// ExtensionNode shares a nibble prefix with exactly one child subtree.
// Invariant 3/4: extensions are never adjacent to another extension
// (segments are merged at construction time) and a branch with a single
// live child is always collapsed into one.
type ExtensionNode struct {
	Nibbles NibbleBuf
	Child   SubTree
}

func NewExtensionNode(nibbles Nibbles, child SubTree) SubTree {
	if len(nibbles) == 0 {
		return child
	}
	if childExt, ok := child.(*ExtensionNode); ok {
		merged := make(NibbleBuf, 0, len(nibbles)+len(childExt.Nibbles))
		merged = append(merged, nibbles...)
		merged = append(merged, childExt.Nibbles...)
		return &ExtensionNode{Nibbles: merged, Child: childExt.Child}
	}
	return &ExtensionNode{Nibbles: nibbles.clone(), Child: child}
}

func (n *ExtensionNode) Digest() common.H256 {
	return extensionHash(n.Nibbles.AsNibbles(), n.Child.Digest())
}
func (*ExtensionNode) isSubTree() {}

// BranchNode fans out over all 16 possible next nibbles. It never stores a
// value itself (invariant 2): a read that terminates on a branch resolves
// to the zero hash, meaning "absent".
type BranchNode struct {
	Children [16]SubTree
	digest   common.H256
}

// NewBranchNode builds a branch and eagerly memoizes its digest (Design
// Notes recommend eager computation over a lazily-populated mutable cache
// unless profiling says otherwise).
func NewBranchNode(children [16]SubTree) *BranchNode {
	b := &BranchNode{Children: children}
	b.digest = branchHash(b.childDigests())
	return b
}

func (b *BranchNode) childDigests() [16]common.H256 {
	var out [16]common.H256
	for i, c := range b.Children {
		if c != nil {
			out[i] = c.Digest()
		}
	}
	return out
}

func (b *BranchNode) Digest() common.H256 { return b.digest }
func (*BranchNode) isSubTree()            {}

// NumMaterializedChildren counts children that are not opaque Hash stubs,
// used by tests asserting materialization extent.
func (b *BranchNode) NumMaterializedChildren() int {
	n := 0
	for _, c := range b.Children {
		if c == nil {
			continue
		}
		if _, isHash := c.(*HashNode); !isHash {
			n++
		}
	}
	return n
}

// singleChild returns the index and subtree of the branch's only non-nil
// child, or (-1, nil) if it has zero or more-than-one children.
func (b *BranchNode) singleChild() (int, SubTree) {
	idx, found := -1, SubTree(nil)
	count := 0
	for i, c := range b.Children {
		if c != nil {
			count++
			idx, found = i, c
		}
	}
	if count == 1 {
		return idx, found
	}
	return -1, nil
}

func (n Nibbles) clone() NibbleBuf {
	out := make(NibbleBuf, len(n))
	copy(out, n)
	return out
}
