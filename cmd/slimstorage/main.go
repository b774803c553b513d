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

// Command slimstorage runs the storage-shard role of spec.md §3: it
// executes transactions touching the accounts its shard owns, reports the
// resulting state update back to the client, and persists committed trie
// nodes and block headers once the client's proposal is finalized.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/slimchain-go/slimchain/chain"
	cmdutils "github.com/slimchain-go/slimchain/cmd/utils"
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/log"
	"github.com/slimchain-go/slimchain/network"
	"github.com/slimchain-go/slimchain/storage/database"
	"github.com/slimchain-go/slimchain/trie"
	"github.com/slimchain-go/slimchain/txengine"
	"github.com/slimchain-go/slimchain/txstate"
)

var logger = log.NewModuleLogger("cmd/slimstorage")

func main() {
	app := cmdutils.NewApp("slimchain storage node: executes transactions for one shard")
	app.Flags = []cli.Flag{
		cmdutils.ConfigFileFlag,
		cmdutils.DataDirFlag,
		cmdutils.ShardIndexFlag,
		cmdutils.NumShardsFlag,
		cmdutils.RPCAddrFlag,
		cmdutils.GossipAddrFlag,
		cmdutils.TxEngineThreadsFlag,
		cmdutils.KafkaBrokersFlag,
		cmdutils.AdminAddrFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := cmdutils.LoadConfig(ctx)
	if err != nil {
		return err
	}

	db, err := database.Open(database.LevelDB, cfg.Storage.DataDir, cfg.Storage.NodeCacheSizeMB(), 0)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	dbManager, err := chain.NewDBManager(db, cfg.Storage.NodeCacheSizeMB(), cfg.Storage.HeaderCacheSize)
	if err != nil {
		return fmt.Errorf("opening chain database: %w", err)
	}
	defer dbManager.Close()

	head, ok, err := loadHead(dbManager)
	if err != nil {
		return err
	}
	mainTrie := trie.NewEmpty()
	if ok {
		root, err := dbManager.LoadNode(head.StateRoot)
		if err != nil {
			return fmt.Errorf("loading state root %s: %w", head.StateRoot, err)
		}
		mainTrie = trie.FromSubTree(root)
	}

	th := newTrieHandle(mainTrie)
	hh := newHeaderHandle(head)

	newTask := func(payload []byte) txengine.Task {
		cur := hh.Get()
		task := txengine.NewTask(cur.Height, cur.StateRoot, payload)
		task.StateView = &txstate.TrieStateView{Loader: dbManager, Accounts: dbManager, Root: th.Get}
		return task
	}

	threads := ctx.GlobalInt(cmdutils.TxEngineThreadsFlag.Name)
	engine := txengine.NewEngine(threads, func() txengine.Worker {
		return newShardWorker(dbManager, th, cfg.Shard.ShardIndex, cfg.Shard.NumShards)
	})
	defer engine.Shutdown()

	var bus *network.EventBus
	if cfg.EventBus.Enabled {
		bus, err = network.NewEventBus(network.KafkaConfig{Brokers: cfg.EventBus.Brokers, GroupID: cfg.EventBus.GroupID})
		if err != nil {
			return fmt.Errorf("starting event bus: %w", err)
		}
		defer bus.Close()
	}

	router, err := network.NewGossipRouter()
	if err != nil {
		return fmt.Errorf("starting gossip router: %w", err)
	}
	router.Subscribe(network.TopicNewTx, func(from network.PeerID, env *network.Envelope) {
		engine.PushTask(newTask(env.Payload))
	})

	server := network.NewServer()

	// RouteProposeTx is the storage side of spec.md §4.1 steps 2-5: execute
	// the transaction a client dispatched here, persist its receipt so
	// RouteFetchReceipt can serve it later, and hand back the TxProposal
	// (read/write set plus main-trie diff) the client folds into the block
	// it is assembling.
	server.Handle(network.RouteProposeTx, func(env *network.Envelope) ([]byte, error) {
		engine.PushTask(newTask(env.Payload))
		out := engine.PopOrWaitResult()

		txHash := common.Keccak256(env.Payload)
		if err := dbManager.PutReceipt(txHash, out.Receipt); err != nil {
			return nil, err
		}

		prop := &txstate.TxProposal{TxHash: txHash, Payload: env.Payload, RWSet: out.RWSet}
		if out.Update != nil {
			prop.Diff = out.Update.MainDiff
			prop.StorageDiffs = out.Update.StorageDiffs
			prop.Accounts = out.Update.Accounts
		}

		if bus != nil {
			bus.Publish(network.TopicStateUpdate, network.NewEnvelope(network.TopicStateUpdate, txHash.Bytes()))
		}

		reply := network.NewEnvelope(network.TopicStateUpdate, prop.Encode())
		return reply.Encode(), nil
	})

	// RouteFetchReceipt closes review comment #6: a previously-declared,
	// never-implemented route. It serves the receipt RouteProposeTx
	// persisted for a given transaction hash.
	server.Handle(network.RouteFetchReceipt, func(env *network.Envelope) ([]byte, error) {
		txHash := common.BytesToH256(env.Payload)
		receipt, err := dbManager.ReadReceipt(txHash)
		if err != nil {
			return nil, err
		}
		reply := network.NewEnvelope(network.TopicStateUpdate, receipt)
		return reply.Encode(), nil
	})

	// RouteBlockImport is the storage side of spec.md §4.3: once a client
	// finalizes a block, it broadcasts the BlockProposal to every storage
	// shard so each can run CommitBlockStorageNode and advance its own
	// (partial) view of the main trie in lockstep with the committed
	// header - the previously dead-code commit path this review flagged.
	server.Handle(network.RouteBlockImport, func(env *network.Envelope) ([]byte, error) {
		prop, err := chain.DecodeBlockProposal(env.Payload)
		if err != nil {
			return nil, err
		}
		newState, err := chain.CommitBlockStorageNode(dbManager, prop, th.Get())
		if err != nil {
			return nil, err
		}
		th.Set(newState)
		hh.Set(prop.Header)
		logger.Info("imported block", "height", prop.Header.Height, "hash", prop.Header.Hash())
		reply := network.NewEnvelope(network.TopicNewBlock, nil)
		return reply.Encode(), nil
	})

	if cfg.AdminAddr != "" {
		adminLn, err := network.NewAdminListener(cfg.AdminAddr)
		if err != nil {
			return fmt.Errorf("starting admin listener: %w", err)
		}
		defer adminLn.Close()
		go network.ServeAdmin(adminLn, func() string {
			return fmt.Sprintf("slimstorage shard=%d/%d height=%d workers=%d",
				cfg.Shard.ShardIndex, cfg.Shard.NumShards, hh.Get().Height, threads)
		})
	}

	logger.Info("slimstorage ready",
		"shard", cfg.Shard.ShardIndex,
		"shards", cfg.Shard.NumShards,
		"height", head.Height,
		"workers", threads,
		"eventbus", cfg.EventBus.Enabled,
		"admin", cfg.AdminAddr != "",
	)

	return server.ListenAndServe(cfg.RPCAddr)
}

func loadHead(db chain.DBManager) (*chain.BlockHeader, bool, error) {
	hash, ok, err := db.ReadHeadHash()
	if err != nil || !ok {
		return &chain.BlockHeader{}, false, err
	}
	head, err := db.ReadHeader(hash)
	if err != nil {
		return nil, false, err
	}
	return head, true, nil
}
