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

// Read looks up key in the trie rooted at root. It returns the zero hash
// ("absent") if the key is missing, and ErrNeedLoad if the traversal walks
// into an unmaterialized Hash stub — the caller must resolve the stub via a
// NodeLoader and retry.
func Read(root SubTree, key Nibbles) (common.H256, error) {
	node := root
	for {
		if node == nil {
			return common.ZeroH256, nil
		}
		switch n := node.(type) {
		case *HashNode:
			return common.ZeroH256, ErrNeedLoad(n.Hash)
		case *LeafNode:
			if key.Compare(n.Nibbles.AsNibbles()) == 0 {
				return n.ValueHash, nil
			}
			return common.ZeroH256, nil
		case *ExtensionNode:
			rest, ok := key.StripPrefix(n.Nibbles.AsNibbles())
			if !ok {
				return common.ZeroH256, nil
			}
			key = rest
			node = n.Child
		case *BranchNode:
			idx, rest, ok := key.SplitFirst()
			if !ok {
				// A key terminating on a branch resolves to "absent"
				// (invariant 2): branches never store a value.
				return common.ZeroH256, nil
			}
			key = rest
			node = n.Children[idx]
		default:
			return common.ZeroH256, nil
		}
	}
}

// ReadTrieContext reads through a trie while resolving Hash stubs via a
// NodeLoader, recording every node visited (including freshly-loaded ones).
// It is how the TxEngine materializes a TxWriteSetTrie: the recorded nodes
// are exactly the partial trie covering the read/write set (spec.md §4.1
// step 3).
type ReadTrieContext struct {
	Loader  NodeLoader
	Touched []SubTree
}

func NewReadTrieContext(loader NodeLoader) *ReadTrieContext {
	return &ReadTrieContext{Loader: loader}
}

// Read walks from root to key, resolving stubs through ctx.Loader and
// returning the (possibly rematerialized) node the walk started from so the
// caller can graft it back into its working trie.
func (ctx *ReadTrieContext) Read(root SubTree, key Nibbles) (SubTree, common.H256, error) {
	if root == nil {
		return nil, common.ZeroH256, nil
	}

	if h, ok := root.(*HashNode); ok {
		loaded, err := ctx.Loader.LoadNode(h.Hash)
		if err != nil {
			return nil, common.ZeroH256, err
		}
		root = loaded
	}
	ctx.Touched = append(ctx.Touched, root)

	switch n := root.(type) {
	case *LeafNode:
		if key.Compare(n.Nibbles.AsNibbles()) == 0 {
			return root, n.ValueHash, nil
		}
		return root, common.ZeroH256, nil
	case *ExtensionNode:
		rest, ok := key.StripPrefix(n.Nibbles.AsNibbles())
		if !ok {
			return root, common.ZeroH256, nil
		}
		child, value, err := ctx.Read(n.Child, rest)
		if err != nil {
			return nil, common.ZeroH256, err
		}
		return NewExtensionNode(n.Nibbles.AsNibbles(), child), value, nil
	case *BranchNode:
		idx, rest, ok := key.SplitFirst()
		if !ok {
			return root, common.ZeroH256, nil
		}
		children := n.Children
		child, value, err := ctx.Read(children[idx], rest)
		if err != nil {
			return nil, common.ZeroH256, err
		}
		children[idx] = child
		return NewBranchNode(children), value, nil
	default:
		return root, common.ZeroH256, nil
	}
}
