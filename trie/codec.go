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
	"github.com/slimchain-go/slimchain/wireformat"
)

// Node kind tags, the first byte of every encoded node.
const (
	kindHash byte = iota
	kindLeaf
	kindExtension
	kindBranch
)

// EncodeNode serializes a single node (not its descendants — children of a
// Branch/Extension are encoded as opaque Hash references) for storage under
// its digest in a content-addressed database, or for transfer as a single
// "missing branch" reply (spec.md §5 node sync).
func EncodeNode(n SubTree) []byte {
	enc := wireformat.NewEncoder()
	switch v := n.(type) {
	case *HashNode:
		enc.WriteBytes([]byte{kindHash})
		enc.WriteBytes(v.Hash.Bytes())
	case *LeafNode:
		enc.WriteBytes([]byte{kindLeaf})
		enc.WriteBytes(v.Nibbles.Bytes0Pad())
		enc.WriteUvarint(uint64(len(v.Nibbles)))
		enc.WriteBytes(v.ValueHash.Bytes())
	case *ExtensionNode:
		enc.WriteBytes([]byte{kindExtension})
		enc.WriteBytes(v.Nibbles.Bytes0Pad())
		enc.WriteUvarint(uint64(len(v.Nibbles)))
		enc.WriteBytes(v.Child.Digest().Bytes())
	case *BranchNode:
		enc.WriteBytes([]byte{kindBranch})
		for _, c := range v.Children {
			enc.WriteBool(c != nil)
			if c != nil {
				enc.WriteBytes(c.Digest().Bytes())
			}
		}
	}
	return enc.Bytes()
}

// DecodeNode parses a single EncodeNode payload. Extension/Branch children
// always decode as Hash stubs: the caller (typically a NodeLoader) resolves
// them lazily through further DecodeNode calls keyed by digest.
func DecodeNode(b []byte) (SubTree, error) {
	dec := wireformat.NewDecoder(b)
	kindBytes, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(kindBytes) != 1 {
		return nil, errors.New("trie: malformed node encoding: bad kind tag")
	}

	switch kindBytes[0] {
	case kindHash:
		raw, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		return NewHashNode(common.BytesToH256(raw)), nil
	case kindLeaf:
		packed, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		n, err := dec.ReadUvarint()
		if err != nil {
			return nil, err
		}
		valueRaw, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		return NewLeafNode(nibblesFromPadded(packed, int(n)), common.BytesToH256(valueRaw)), nil
	case kindExtension:
		packed, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		n, err := dec.ReadUvarint()
		if err != nil {
			return nil, err
		}
		childDigest, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		return NewExtensionNode(nibblesFromPadded(packed, int(n)), NewHashNode(common.BytesToH256(childDigest))), nil
	case kindBranch:
		var children [16]SubTree
		for i := 0; i < 16; i++ {
			present, err := dec.ReadBool()
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}
			raw, err := dec.ReadBytes()
			if err != nil {
				return nil, err
			}
			children[i] = NewHashNode(common.BytesToH256(raw))
		}
		return NewBranchNode(children), nil
	default:
		return nil, errors.Errorf("trie: unknown node kind tag %d", kindBytes[0])
	}
}

// Bytes0Pad packs a nibble sequence into bytes, zero-padding an odd-length
// run so EncodeNode never needs a special odd-length wire case; the true
// nibble count travels alongside as a varint.
func (n NibbleBuf) Bytes0Pad() []byte {
	padded := n
	if len(padded)%2 != 0 {
		padded = append(append(NibbleBuf{}, padded...), 0)
	}
	return padded.Bytes()
}

func nibblesFromPadded(packed []byte, n int) Nibbles {
	full := BytesToNibbles(packed)
	return full.AsNibbles()[:n]
}
