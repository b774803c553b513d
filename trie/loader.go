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
	"fmt"

	"github.com/slimchain-go/slimchain/common"
)

// NodeLoader resolves an opaque Hash stub into its materialized node,
// reading from whatever content-addressed store backs the trie (the
// state/<root> column family of spec.md §6). It is the named, external
// collaborator interface for "the embedded key-value database", which this
// specification treats as out of scope.
type NodeLoader interface {
	LoadNode(hash common.H256) (SubTree, error)
}

// NeedLoadError is returned by Read when the traversal reaches an
// unmaterialized Hash stub; the caller is expected to resolve it through a
// NodeLoader and retry (spec.md §4.2, §7: MissingTrieNode).
type NeedLoadError struct {
	Stub common.H256
}

func (e *NeedLoadError) Error() string {
	return fmt.Sprintf("trie: node %s needs to be loaded", e.Stub)
}

func ErrNeedLoad(stub common.H256) error {
	return common.WrapKind(common.KindMissingTrieNode, &NeedLoadError{Stub: stub})
}

// AsNeedLoad reports whether err is (or wraps) a NeedLoadError, returning
// the stub hash that must be resolved.
func AsNeedLoad(err error) (common.H256, bool) {
	type causer interface{ Cause() error }
	for err != nil {
		if nl, ok := err.(*NeedLoadError); ok {
			return nl.Stub, true
		}
		c, ok := err.(causer)
		if !ok {
			return common.H256{}, false
		}
		err = c.Cause()
	}
	return common.H256{}, false
}
