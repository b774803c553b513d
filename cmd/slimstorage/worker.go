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
	"github.com/slimchain-go/slimchain/chain"
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/sharding"
	"github.com/slimchain-go/slimchain/trie"
	"github.com/slimchain-go/slimchain/txengine"
	"github.com/slimchain-go/slimchain/txstate"
	"github.com/slimchain-go/slimchain/txexec"
)

// shardWorker adapts this shard's trie state to txengine.Worker (spec.md
// §4.1 steps 2-5): it decodes the transaction the task carries, verifies
// the sharding partitioner actually routes it here, runs it against the
// task's StateView, and only then - from the writes txexec.Execute actually
// reports - builds the write-set trie and state update a client merges
// into a block proposal. It never reads a client-predeclared address list:
// the only address a task touches is the one the transaction itself names.
type shardWorker struct {
	db         chain.DBManager
	trieHandle *trieHandle
	shardIndex int
	numShards  int
}

func newShardWorker(db chain.DBManager, th *trieHandle, shardIndex, numShards int) *shardWorker {
	return &shardWorker{db: db, trieHandle: th, shardIndex: shardIndex, numShards: numShards}
}

func (w *shardWorker) Execute(task txengine.Task) (*txengine.Output, error) {
	tx, err := txexec.DecodeTx(task.TxPayload)
	if err != nil {
		return nil, err
	}
	if sharding.ShardFor(tx.Addr, w.numShards) != w.shardIndex {
		return nil, common.Newf(common.KindInvalidTx, "txworker: address %s is not owned by shard %d/%d", tx.Addr, w.shardIndex, w.numShards)
	}

	view := task.StateView
	if view == nil {
		view = &txstate.TrieStateView{Loader: w.db, Accounts: w.db, Root: w.trieHandle.Get}
	}

	result, err := txexec.Execute(tx, view)
	if err != nil {
		return nil, err
	}

	mainTrie := w.trieHandle.Get()
	preAccounts, err := txstate.BuildAccountWriteSetTrie(w.db, mainTrie, []common.Address{tx.Addr})
	if err != nil {
		return nil, err
	}
	postAccounts, err := txstate.ApplyAccountWrite(preAccounts, tx.Addr, result.Post)
	if err != nil {
		return nil, err
	}

	update := txstate.NewStateUpdate(
		preAccounts, postAccounts,
		map[common.Address]*trie.PartialTrie{tx.Addr: result.PreStorage},
		map[common.Address]*trie.PartialTrie{tx.Addr: result.PostStorage},
		map[common.Address]txstate.AccountState{tx.Addr: result.Post},
	)

	rws := &txstate.ReadWriteSet{
		Accounts:     []common.Address{tx.Addr},
		AccountsTrie: postAccounts,
		Storage:      map[common.Address][]common.H256{tx.Addr: {tx.Key}},
		StorageTries: map[common.Address]*trie.PartialTrie{tx.Addr: result.PostStorage},
	}

	return &txengine.Output{TaskID: task.ID, RWSet: rws, Receipt: result.Receipt, Update: update}, nil
}
