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
	"github.com/pkg/errors"
	"github.com/slimchain-go/slimchain/common"
)

// WriteTrieContext applies writes to a trie, optionally resolving Hash
// stubs it must look through via Loader. Keys in a single trie are assumed
// fixed-length (addresses or storage slots, never a prefix of one another),
// matching the domain this trie serves; a write that would make one key a
// strict prefix of another returns an error.
type WriteTrieContext struct {
	Loader NodeLoader
}

// Write applies a single write to root using the zero-value context (stubs
// along the path fail with ErrNeedLoad).
func Write(root SubTree, key Nibbles, value common.H256) (SubTree, error) {
	return (&WriteTrieContext{}).Write(root, key, value)
}

// WriteTrie is the *PartialTrie-level convenience wrapper around Write.
func WriteTrie(t *PartialTrie, key Nibbles, value common.H256) (*PartialTrie, error) {
	newRoot, err := Write(t.root, key, value)
	if err != nil {
		return nil, err
	}
	return &PartialTrie{root: newRoot}, nil
}

func (ctx *WriteTrieContext) WriteTrie(t *PartialTrie, key Nibbles, value common.H256) (*PartialTrie, error) {
	newRoot, err := ctx.Write(t.root, key, value)
	if err != nil {
		return nil, err
	}
	return &PartialTrie{root: newRoot}, nil
}

// Write inserts value at key beneath root (or removes the leaf if value is
// the zero hash), returning the new root.
func (ctx *WriteTrieContext) Write(root SubTree, key Nibbles, value common.H256) (SubTree, error) {
	switch n := root.(type) {
	case nil:
		if value.IsZero() {
			return nil, nil
		}
		return NewLeafNode(key, value), nil
	case *HashNode:
		if ctx.Loader == nil {
			return nil, ErrNeedLoad(n.Hash)
		}
		loaded, err := ctx.Loader.LoadNode(n.Hash)
		if err != nil {
			return nil, err
		}
		return ctx.Write(loaded, key, value)
	case *LeafNode:
		return ctx.writeLeaf(n, key, value)
	case *ExtensionNode:
		return ctx.writeExtension(n, key, value)
	case *BranchNode:
		return ctx.writeBranch(n, key, value)
	default:
		return nil, errors.Errorf("trie: unknown node type %T", root)
	}
}

func (ctx *WriteTrieContext) writeLeaf(n *LeafNode, key Nibbles, value common.H256) (SubTree, error) {
	if key.Compare(n.Nibbles.AsNibbles()) == 0 {
		if value.IsZero() {
			return nil, nil
		}
		return NewLeafNode(key, value), nil
	}
	if value.IsZero() {
		return n, nil
	}

	cpl := CommonPrefixLen(key, n.Nibbles.AsNibbles())
	if cpl == len(n.Nibbles) || cpl == len(key) {
		return nil, errors.New("trie: one key is a strict prefix of another; unsupported for this fixed-length keyspace")
	}

	var children [16]SubTree
	children[n.Nibbles[cpl]] = NewLeafNode(n.Nibbles.AsNibbles()[cpl+1:], n.ValueHash)
	children[key[cpl]] = NewLeafNode(key[cpl+1:], value)

	var result SubTree = NewBranchNode(children)
	if cpl > 0 {
		result = NewExtensionNode(key[:cpl], result)
	}
	return result, nil
}

func (ctx *WriteTrieContext) writeExtension(n *ExtensionNode, key Nibbles, value common.H256) (SubTree, error) {
	if rest, ok := key.StripPrefix(n.Nibbles.AsNibbles()); ok {
		newChild, err := ctx.Write(n.Child, rest, value)
		if err != nil {
			return nil, err
		}
		if newChild == nil {
			return nil, nil
		}
		return NewExtensionNode(n.Nibbles.AsNibbles(), newChild), nil
	}

	if value.IsZero() {
		return n, nil
	}

	cpl := CommonPrefixLen(key, n.Nibbles.AsNibbles())
	if cpl == len(key) {
		return nil, errors.New("trie: key is a strict prefix of an existing key; unsupported for this fixed-length keyspace")
	}

	var children [16]SubTree
	extRemainder := n.Nibbles.AsNibbles()[cpl+1:]
	children[n.Nibbles[cpl]] = NewExtensionNode(extRemainder, n.Child)
	children[key[cpl]] = NewLeafNode(key[cpl+1:], value)

	var result SubTree = NewBranchNode(children)
	if cpl > 0 {
		result = NewExtensionNode(key[:cpl], result)
	}
	return result, nil
}

func (ctx *WriteTrieContext) writeBranch(n *BranchNode, key Nibbles, value common.H256) (SubTree, error) {
	idx, rest, ok := key.SplitFirst()
	if !ok {
		if value.IsZero() {
			return n, nil
		}
		return nil, errors.New("trie: cannot write a value at a branch node; branches never store values")
	}

	children := n.Children
	child, err := ctx.Write(children[idx], rest, value)
	if err != nil {
		return nil, err
	}
	children[idx] = child
	return ctx.collapseBranch(children)
}

// collapseBranch enforces invariant 4: a branch with exactly one live
// child collapses into an extension (or, when that child is a leaf, fuses
// directly into a leaf with the branching nibble prepended).
func (ctx *WriteTrieContext) collapseBranch(children [16]SubTree) (SubTree, error) {
	count, lastIdx := 0, -1
	for i, c := range children {
		if c != nil {
			count++
			lastIdx = i
		}
	}

	switch count {
	case 0:
		return nil, nil
	case 1:
		child := children[lastIdx]
		if h, ok := child.(*HashNode); ok {
			if ctx.Loader == nil {
				return nil, ErrNeedLoad(h.Hash)
			}
			loaded, err := ctx.Loader.LoadNode(h.Hash)
			if err != nil {
				return nil, err
			}
			child = loaded
		}
		if leaf, ok := child.(*LeafNode); ok {
			merged := append(Nibbles{byte(lastIdx)}, leaf.Nibbles.AsNibbles()...)
			return NewLeafNode(merged, leaf.ValueHash), nil
		}
		return NewExtensionNode(Nibbles{byte(lastIdx)}, child), nil
	default:
		return NewBranchNode(children), nil
	}
}
