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

package chain

import (
	"encoding/binary"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/storage/database"
	"github.com/slimchain-go/slimchain/trie"
	"github.com/slimchain-go/slimchain/txstate"
)

var (
	nodePrefix      = []byte("n")
	headerPrefix    = []byte("h")
	canonicalPrefix = []byte("c")
	accountPrefix   = []byte("a")
	receiptPrefix   = []byte("r")
	headKey         = []byte("head")
)

// DBManager is the persisted-state contract spec.md §6 describes as column
// families, realized here as key-prefix namespaces over a single
// database.Database. It doubles as a trie.NodeLoader so the trie package
// never needs to know about the database schema.
type DBManager interface {
	trie.NodeLoader

	PutNode(n trie.SubTree) error
	PutNodeBatch(batch database.Batch, n trie.SubTree)

	WriteHeader(h *BlockHeader) error
	ReadHeader(hash common.H256) (*BlockHeader, error)

	WriteCanonicalHash(height uint64, hash common.H256) error
	ReadCanonicalHash(height uint64) (common.H256, bool, error)

	WriteHeadHash(hash common.H256) error
	ReadHeadHash() (common.H256, bool, error)

	PutAccount(a txstate.AccountState) error
	LoadAccount(hash common.H256) (txstate.AccountState, error)

	PutReceipt(txHash common.H256, receipt []byte) error
	ReadReceipt(txHash common.H256) ([]byte, error)

	NewBatch() database.Batch
	Close()
}

type dbManager struct {
	db        database.Database
	nodeCache *fastcache.Cache
	hdrCache  common.Cache
}

// NewDBManager wraps db with the node/header/height schema. nodeCacheMB
// sizes the raw-bytes node cache (VictoriaMetrics/fastcache, the same
// allocation-free cache go-ethereum-family nodes use for hot trie nodes);
// hdrCacheSize bounds the recent-header ARC cache.
func NewDBManager(db database.Database, nodeCacheMB, hdrCacheSize int) (DBManager, error) {
	hdrCache, err := common.NewCache(common.ARCConfig{CacheSize: hdrCacheSize})
	if err != nil {
		return nil, err
	}
	return &dbManager{
		db:        db,
		nodeCache: fastcache.New(nodeCacheMB * 1024 * 1024),
		hdrCache:  hdrCache,
	}, nil
}

func nodeKey(h common.H256) []byte { return append(append([]byte{}, nodePrefix...), h.Bytes()...) }

func headerKey(h common.H256) []byte { return append(append([]byte{}, headerPrefix...), h.Bytes()...) }

func canonicalKey(height uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return append(append([]byte{}, canonicalPrefix...), buf[:]...)
}

func accountKey(h common.H256) []byte { return append(append([]byte{}, accountPrefix...), h.Bytes()...) }

func receiptKey(h common.H256) []byte { return append(append([]byte{}, receiptPrefix...), h.Bytes()...) }

func (m *dbManager) LoadNode(hash common.H256) (trie.SubTree, error) {
	key := nodeKey(hash)
	if raw, ok := m.nodeCache.HasGet(nil, key); ok {
		return trie.DecodeNode(raw)
	}
	raw, err := m.db.Get(key)
	if err != nil {
		if err == database.ErrKeyNotFound {
			return nil, trie.ErrNeedLoad(hash)
		}
		return nil, err
	}
	m.nodeCache.Set(key, raw)
	return trie.DecodeNode(raw)
}

func (m *dbManager) PutNode(n trie.SubTree) error {
	raw := trie.EncodeNode(n)
	key := nodeKey(n.Digest())
	m.nodeCache.Set(key, raw)
	return m.db.Put(key, raw)
}

func (m *dbManager) PutNodeBatch(batch database.Batch, n trie.SubTree) {
	raw := trie.EncodeNode(n)
	key := nodeKey(n.Digest())
	m.nodeCache.Set(key, raw)
	batch.Put(key, raw)
}

func (m *dbManager) WriteHeader(h *BlockHeader) error {
	hash := h.Hash()
	if err := m.db.Put(headerKey(hash), h.Encode()); err != nil {
		return err
	}
	m.hdrCache.Add(hash, h)
	return nil
}

func (m *dbManager) ReadHeader(hash common.H256) (*BlockHeader, error) {
	if v, ok := m.hdrCache.Get(hash); ok {
		return v.(*BlockHeader), nil
	}
	raw, err := m.db.Get(headerKey(hash))
	if err != nil {
		return nil, err
	}
	h, err := DecodeBlockHeader(raw)
	if err != nil {
		return nil, err
	}
	m.hdrCache.Add(hash, h)
	return h, nil
}

func (m *dbManager) WriteCanonicalHash(height uint64, hash common.H256) error {
	return m.db.Put(canonicalKey(height), hash.Bytes())
}

func (m *dbManager) ReadCanonicalHash(height uint64) (common.H256, bool, error) {
	raw, err := m.db.Get(canonicalKey(height))
	if err == database.ErrKeyNotFound {
		return common.H256{}, false, nil
	}
	if err != nil {
		return common.H256{}, false, err
	}
	return common.BytesToH256(raw), true, nil
}

func (m *dbManager) WriteHeadHash(hash common.H256) error {
	return m.db.Put(headKey, hash.Bytes())
}

func (m *dbManager) ReadHeadHash() (common.H256, bool, error) {
	raw, err := m.db.Get(headKey)
	if err == database.ErrKeyNotFound {
		return common.H256{}, false, nil
	}
	if err != nil {
		return common.H256{}, false, err
	}
	return common.BytesToH256(raw), true, nil
}

// PutAccount persists a, keyed by its own digest so LoadAccount can resolve
// the ValueHash a main-trie leaf commits to back into the AccountState it
// stands for, the account-level analogue of PutNode/LoadNode.
func (m *dbManager) PutAccount(a txstate.AccountState) error {
	return m.db.Put(accountKey(a.ToDigest()), a.Encode())
}

func (m *dbManager) LoadAccount(hash common.H256) (txstate.AccountState, error) {
	raw, err := m.db.Get(accountKey(hash))
	if err != nil {
		if err == database.ErrKeyNotFound {
			return txstate.AccountState{}, common.Newf(common.KindMissingTrieNode, "account %s not found", hash)
		}
		return txstate.AccountState{}, err
	}
	return txstate.DecodeAccountState(raw)
}

func (m *dbManager) PutReceipt(txHash common.H256, receipt []byte) error {
	return m.db.Put(receiptKey(txHash), receipt)
}

func (m *dbManager) ReadReceipt(txHash common.H256) ([]byte, error) {
	raw, err := m.db.Get(receiptKey(txHash))
	if err == database.ErrKeyNotFound {
		return nil, common.Newf(common.KindMissingTrieNode, "receipt %s not found", txHash)
	}
	return raw, err
}

func (m *dbManager) NewBatch() database.Batch { return m.db.NewBatch() }

func (m *dbManager) Close() { m.db.Close() }
