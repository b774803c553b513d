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

// PruneKey replaces everything below the first keptPrefixLen nibbles of key
// with a single Hash stub. The root digest is unchanged (invariant 1):
// pruning only changes how much of the trie is materialized.
func (t *PartialTrie) PruneKey(key Nibbles, keptPrefixLen int) (*PartialTrie, error) {
	root, err := pruneAt(t.root, key, keptPrefixLen)
	if err != nil {
		return nil, err
	}
	return &PartialTrie{root: root}, nil
}

func pruneAt(node SubTree, key Nibbles, depth int) (SubTree, error) {
	if node == nil {
		return nil, nil
	}
	if depth <= 0 {
		return NewHashNode(node.Digest()), nil
	}

	switch n := node.(type) {
	case *HashNode:
		return n, nil
	case *LeafNode:
		return n, nil
	case *ExtensionNode:
		consumed := len(n.Nibbles)
		if depth < consumed {
			// The prune point falls inside the extension's own nibble run;
			// an extension can't be split without changing its digest, so
			// the whole thing becomes a single stub.
			return NewHashNode(n.Digest()), nil
		}
		newChild, err := pruneAt(n.Child, key[consumed:], depth-consumed)
		if err != nil {
			return nil, err
		}
		return &ExtensionNode{Nibbles: n.Nibbles, Child: newChild}, nil
	case *BranchNode:
		if len(key) == 0 {
			return NewHashNode(n.Digest()), nil
		}
		idx, rest := key[0], key[1:]
		children := n.Children
		newChild, err := pruneAt(children[idx], rest, depth-1)
		if err != nil {
			return nil, err
		}
		children[idx] = newChild
		return &BranchNode{Children: children, digest: n.digest}, nil
	default:
		return nil, errors.Errorf("trie: unknown node type %T", node)
	}
}

// PruneUnusedKeys stubs out every materialized subtree that covers none of
// usedKeys, keeping full detail only along the paths those keys need. The
// stubs keep their subtrees' digests, so the root digest is unchanged.
func (t *PartialTrie) PruneUnusedKeys(usedKeys []Nibbles) (*PartialTrie, error) {
	root, err := pruneUnused(t.root, nil, usedKeys)
	if err != nil {
		return nil, err
	}
	return &PartialTrie{root: root}, nil
}

func pruneUnused(node SubTree, prefix Nibbles, usedKeys []Nibbles) (SubTree, error) {
	if node == nil {
		return nil, nil
	}

	switch n := node.(type) {
	case *HashNode:
		return n, nil
	case *LeafNode:
		full := appendNibbles(prefix, n.Nibbles.AsNibbles())
		if containsKey(usedKeys, full) {
			return n, nil
		}
		return NewHashNode(n.Digest()), nil
	case *ExtensionNode:
		childPrefix := appendNibbles(prefix, n.Nibbles.AsNibbles())
		if !anyKeyHasPrefix(usedKeys, childPrefix) {
			return NewHashNode(n.Digest()), nil
		}
		newChild, err := pruneUnused(n.Child, childPrefix, usedKeys)
		if err != nil {
			return nil, err
		}
		return &ExtensionNode{Nibbles: n.Nibbles, Child: newChild}, nil
	case *BranchNode:
		children := n.Children
		for i := range children {
			childPrefix := appendNibble(prefix, byte(i))
			if !anyKeyHasPrefix(usedKeys, childPrefix) {
				if children[i] != nil {
					children[i] = NewHashNode(children[i].Digest())
				}
				continue
			}
			newChild, err := pruneUnused(children[i], childPrefix, usedKeys)
			if err != nil {
				return nil, err
			}
			children[i] = newChild
		}
		return &BranchNode{Children: children, digest: n.digest}, nil
	default:
		return nil, errors.Errorf("trie: unknown node type %T", node)
	}
}

func containsKey(keys []Nibbles, key Nibbles) bool {
	for _, k := range keys {
		if k.Compare(key) == 0 {
			return true
		}
	}
	return false
}

func anyKeyHasPrefix(keys []Nibbles, prefix Nibbles) bool {
	for _, k := range keys {
		if _, ok := k.StripPrefix(prefix); ok {
			return true
		}
	}
	return false
}

// DiffMissingBranches implements spec.md §4.2's diff_missing_branches: base
// is a partial view of a trie (full of Hash stubs left by PruneKey/
// PruneUnusedKeys), mask is a more-materialized copy of that same logical
// trie - typically fetched from a storage shard in response to the stub
// hashes MissingBranches reported. The result is the diff that would graft
// mask's materialized content onto every one of base's stubs mask actually
// resolves. A stub mask itself leaves unresolved (mask is a HashNode at
// that path too) is left out of the diff entirely - nothing in mask covers
// it, so applying the returned diff can never fill in more than mask
// itself knows.
func DiffMissingBranches(base, mask *PartialTrie) (PartialTrieDiff, error) {
	out := make(PartialTrieDiff)
	if err := diffMissingBranchesNode(base.root, mask.root, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func diffMissingBranchesNode(baseN, maskN SubTree, path Nibbles, out PartialTrieDiff) error {
	switch bn := baseN.(type) {
	case nil:
		return nil
	case *HashNode:
		if maskN == nil {
			return nil
		}
		if _, ok := maskN.(*HashNode); ok {
			return nil // mask doesn't cover this branch either
		}
		if maskN.Digest() != bn.Hash {
			return common.Newf(common.KindDiffApplyMismatch, "trie: mask diverges from base at path %x", []byte(path))
		}
		entryPath := append(Nibbles{}, path...)
		out[pathKey(entryPath)] = diffEntry{Path: entryPath, Node: maskN}
		return nil
	case *LeafNode:
		return nil // base already holds the full value, nothing to fill
	case *ExtensionNode:
		var maskChild SubTree
		if me, ok := maskN.(*ExtensionNode); ok && me.Nibbles.AsNibbles().Compare(bn.Nibbles.AsNibbles()) == 0 {
			maskChild = me.Child
		}
		return diffMissingBranchesNode(bn.Child, maskChild, appendNibbles(path, bn.Nibbles.AsNibbles()), out)
	case *BranchNode:
		mb, _ := maskN.(*BranchNode)
		for i := 0; i < 16; i++ {
			var maskChild SubTree
			if mb != nil {
				maskChild = mb.Children[i]
			}
			if err := diffMissingBranchesNode(bn.Children[i], maskChild, appendNibble(path, byte(i)), out); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("trie: unknown node type %T", baseN)
	}
}

// MissingBranches walks t and returns the hash of every unresolved stub
// reachable from the root: the node set a client must fetch from a storage
// shard before it can apply a diff touching them (spec.md §5, node sync).
func MissingBranches(t *PartialTrie) []common.H256 {
	var out []common.H256
	var walk func(SubTree)
	walk = func(n SubTree) {
		switch v := n.(type) {
		case nil:
			return
		case *HashNode:
			out = append(out, v.Hash)
		case *LeafNode:
			return
		case *ExtensionNode:
			walk(v.Child)
		case *BranchNode:
			for _, c := range v.Children {
				walk(c)
			}
		}
	}
	walk(t.root)
	return out
}
