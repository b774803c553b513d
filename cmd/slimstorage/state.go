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

package main

import (
	"sync/atomic"

	"github.com/slimchain-go/slimchain/chain"
	"github.com/slimchain-go/slimchain/trie"
)

// trieHandle publishes this shard's main trie so RPC handlers and every
// txengine worker goroutine can read the latest committed view without a
// lock, and RouteBlockImport can swing it forward atomically once a block
// commits underneath in-flight executions.
type trieHandle struct {
	v atomic.Value // *trie.PartialTrie
}

func newTrieHandle(t *trie.PartialTrie) *trieHandle {
	h := &trieHandle{}
	h.Set(t)
	return h
}

func (h *trieHandle) Get() *trie.PartialTrie { return h.v.Load().(*trie.PartialTrie) }

func (h *trieHandle) Set(t *trie.PartialTrie) { h.v.Store(t) }

// headerHandle does the same for the shard's notion of the current head
// header.
type headerHandle struct {
	v atomic.Value // *chain.BlockHeader
}

func newHeaderHandle(hdr *chain.BlockHeader) *headerHandle {
	h := &headerHandle{}
	h.Set(hdr)
	return h
}

func (h *headerHandle) Get() *chain.BlockHeader { return h.v.Load().(*chain.BlockHeader) }

func (h *headerHandle) Set(hdr *chain.BlockHeader) { h.v.Store(hdr) }
