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
	"sort"

	"github.com/pkg/errors"
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/wireformat"
)

// PartialTrieDiff records, for every nibble path where two tries diverge,
// the replacement subtree that must be grafted onto a base trie to produce
// the new one. Entries are mutually exclusive: Diff never records both a
// path and one of its prefixes, since it stops descending the moment it
// finds a divergence.
type PartialTrieDiff map[string]diffEntry

type diffEntry struct {
	Path Nibbles
	Node SubTree // nil means the subtree at Path is removed entirely
}

func digestOf(n SubTree) common.H256 {
	if n == nil {
		return common.ZeroH256
	}
	return n.Digest()
}

// Diff computes the minimal set of subtree replacements that turns old into
// new. Both tries are walked together; recursion continues only where both
// sides present the same node shape (matching branches nibble-by-nibble, or
// extensions with identical prefixes) at the same path, so the recorded
// entries are exactly the points of structural divergence.
func Diff(old, new *PartialTrie) PartialTrieDiff {
	out := make(PartialTrieDiff)
	diffNode(old.root, new.root, nil, out)
	return out
}

func diffNode(oldN, newN SubTree, path Nibbles, out PartialTrieDiff) {
	if digestOf(oldN) == digestOf(newN) {
		return
	}

	if ob, ok := oldN.(*BranchNode); ok {
		if nb, ok := newN.(*BranchNode); ok {
			for i := 0; i < 16; i++ {
				diffNode(ob.Children[i], nb.Children[i], appendNibble(path, byte(i)), out)
			}
			return
		}
	}

	if oe, ok := oldN.(*ExtensionNode); ok {
		if ne, ok := newN.(*ExtensionNode); ok && oe.Nibbles.AsNibbles().Compare(ne.Nibbles.AsNibbles()) == 0 {
			diffNode(oe.Child, ne.Child, appendNibbles(path, oe.Nibbles.AsNibbles()), out)
			return
		}
	}

	entryPath := append(Nibbles{}, path...)
	out[pathKey(entryPath)] = diffEntry{Path: entryPath, Node: newN}
}

func appendNibble(path Nibbles, n byte) Nibbles {
	out := make(Nibbles, len(path)+1)
	copy(out, path)
	out[len(path)] = n
	return out
}

func appendNibbles(path Nibbles, suffix Nibbles) Nibbles {
	out := make(Nibbles, 0, len(path)+len(suffix))
	out = append(out, path...)
	out = append(out, suffix...)
	return out
}

func (d PartialTrieDiff) sortedEntries() []diffEntry {
	entries := make([]diffEntry, 0, len(d))
	for _, e := range d {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path.Compare(entries[j].Path) < 0
	})
	return entries
}

// ApplyDiff grafts every replacement in diff onto base, returning the
// resulting trie. base must be materialized at least along every diffed
// path; a Hash stub encountered along the way yields ErrNeedLoad.
func ApplyDiff(base *PartialTrie, diff PartialTrieDiff) (*PartialTrie, error) {
	root := base.root
	for _, e := range diff.sortedEntries() {
		newRoot, err := graftAt(root, e.Path, e.Node)
		if err != nil {
			return nil, err
		}
		root = newRoot
	}
	return &PartialTrie{root: root}, nil
}

func graftAt(base SubTree, path Nibbles, replacement SubTree) (SubTree, error) {
	if len(path) == 0 {
		return replacement, nil
	}

	switch n := base.(type) {
	case *BranchNode:
		idx, rest := path[0], path[1:]
		children := n.Children
		newChild, err := graftAt(children[idx], rest, replacement)
		if err != nil {
			return nil, err
		}
		children[idx] = newChild
		return NewBranchNode(children), nil
	case *ExtensionNode:
		rest, ok := path.StripPrefix(n.Nibbles.AsNibbles())
		if !ok {
			return nil, errors.New("trie: diff path does not align with base extension prefix")
		}
		newChild, err := graftAt(n.Child, rest, replacement)
		if err != nil {
			return nil, err
		}
		return NewExtensionNode(n.Nibbles.AsNibbles(), newChild), nil
	case *HashNode:
		return nil, ErrNeedLoad(n.Hash)
	default:
		return nil, errors.New("trie: diff path descends past a leaf or empty subtree in base")
	}
}

// MergeDiff unions two diffs computed against a common base. Where both
// define the same path, the replacements must agree (same resulting
// digest); anything else signals the two diffs were computed from
// incompatible writes to the same key range.
func MergeDiff(a, b PartialTrieDiff) (PartialTrieDiff, error) {
	out := make(PartialTrieDiff, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok {
			if digestOf(existing.Node) != digestOf(v.Node) {
				return nil, common.Newf(common.KindDiffApplyMismatch, "trie: conflicting diffs at path %x", []byte(v.Path))
			}
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Encode serializes a diff for the wire (used when a client gossips a
// block proposal's diff to its peers, or forwards one to a storage node):
// entry count, then for each entry the nibble path and its replacement
// node (an empty byte string for a removed subtree).
func (d PartialTrieDiff) Encode() []byte {
	enc := wireformat.NewEncoder()
	entries := d.sortedEntries()
	enc.WriteUvarint(uint64(len(entries)))
	for _, e := range entries {
		enc.WriteBytes([]byte(e.Path))
		if e.Node == nil {
			enc.WriteBytes(nil)
		} else {
			enc.WriteBytes(EncodeNode(e.Node))
		}
	}
	return enc.Bytes()
}

// DecodeDiff parses the Encode format.
func DecodeDiff(b []byte) (PartialTrieDiff, error) {
	dec := wireformat.NewDecoder(b)
	count, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	out := make(PartialTrieDiff, count)
	for i := uint64(0); i < count; i++ {
		pathBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		nodeBytes, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		var node SubTree
		if len(nodeBytes) > 0 {
			node, err = DecodeNode(nodeBytes)
			if err != nil {
				return nil, err
			}
		}
		path := Nibbles(pathBytes)
		out[pathKey(path)] = diffEntry{Path: path, Node: node}
	}
	return out, nil
}
