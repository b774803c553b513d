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

// Command slimclient runs the client role of spec.md §3: it accepts
// submitted transactions, routes each to the storage shard that owns it,
// assembles the resulting proposals into blocks, drives the selected
// consensus engine, and holds the main Address->account trie, delegating
// per-account storage execution to the storage shards over RPC.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli"

	"github.com/slimchain-go/slimchain/chain"
	cmdutils "github.com/slimchain-go/slimchain/cmd/utils"
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/consensus/pow"
	"github.com/slimchain-go/slimchain/consensus/raft"
	"github.com/slimchain-go/slimchain/log"
	"github.com/slimchain-go/slimchain/network"
	"github.com/slimchain-go/slimchain/sharding"
	"github.com/slimchain-go/slimchain/storage/database"
	"github.com/slimchain-go/slimchain/trie"
	"github.com/slimchain-go/slimchain/txexec"
	"github.com/slimchain-go/slimchain/txstate"
)

var logger = log.NewModuleLogger("cmd/slimclient")

func main() {
	app := cmdutils.NewApp("slimchain client node: orders blocks and runs consensus")
	app.Flags = []cli.Flag{
		cmdutils.ConfigFileFlag,
		cmdutils.DataDirFlag,
		cmdutils.ShardIndexFlag,
		cmdutils.NumShardsFlag,
		cmdutils.EngineModeFlag,
		cmdutils.RPCAddrFlag,
		cmdutils.GossipAddrFlag,
		cmdutils.MinerThreadsFlag,
		cmdutils.KafkaBrokersFlag,
		cmdutils.AdminAddrFlag,
		cmdutils.StorageAddrsFlag,
		cmdutils.LeaderAddrFlag,
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

	db, err := database.NewLevelDB(cfg.Storage.DataDir, cfg.Storage.NodeCacheSizeMB(), 0)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	dbManager, err := chain.NewDBManager(db, cfg.Storage.NodeCacheSizeMB(), cfg.Storage.HeaderCacheSize)
	if err != nil {
		return fmt.Errorf("opening chain database: %w", err)
	}
	defer dbManager.Close()

	headHash, ok, err := dbManager.ReadHeadHash()
	if err != nil {
		return err
	}

	var head *chain.BlockHeader
	var engine chain.ConsensusEngine
	var raftNode *raft.Node

	switch cfg.Engine.Mode {
	case "raft":
		genesis := pow.GenesisHeader(pow.Config{InitDiff: 0}, uint64(time.Now().Unix()), trie.NewEmpty().Digest())
		raftNode, err = raft.NewNode(cfg.Engine.Raft, dbManager, genesis)
		if err != nil {
			return fmt.Errorf("starting raft node: %w", err)
		}
		head = raftNode.FSM.Head()
	case "pow", "":
		eng := pow.NewEngine(cfg.Engine.PoW)
		engine = eng
		if !ok {
			head = pow.GenesisHeader(cfg.Engine.PoW, uint64(time.Now().Unix()), trie.NewEmpty().Digest())
			if err := dbManager.WriteHeader(head); err != nil {
				return err
			}
			if err := dbManager.WriteCanonicalHash(head.Height, head.Hash()); err != nil {
				return err
			}
			if err := dbManager.WriteHeadHash(head.Hash()); err != nil {
				return err
			}
		} else {
			head, err = dbManager.ReadHeader(headHash)
			if err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown engine mode %q", cfg.Engine.Mode)
	}

	pendingBlocks := chain.NewPendingBlocks()
	mainTrie := trie.NewEmpty()
	if root, err := dbManager.LoadNode(head.StateRoot); err == nil {
		mainTrie = trie.FromSubTree(root)
	}

	var bus *network.EventBus
	if cfg.EventBus.Enabled {
		bus, err = network.NewEventBus(network.KafkaConfig{Brokers: cfg.EventBus.Brokers, GroupID: cfg.EventBus.GroupID})
		if err != nil {
			return fmt.Errorf("starting event bus: %w", err)
		}
		defer bus.Close()
	}

	// stateMu guards mainTrie/head, now touched concurrently by the gossip
	// handler below, the block-assembly loop, and (indirectly, via
	// RouteFetchNode) RPC handlers.
	var stateMu sync.Mutex
	getState := func() (*trie.PartialTrie, *chain.BlockHeader) {
		stateMu.Lock()
		defer stateMu.Unlock()
		return mainTrie, head
	}
	setState := func(t *trie.PartialTrie, h *chain.BlockHeader) {
		stateMu.Lock()
		mainTrie, head = t, h
		stateMu.Unlock()
	}

	// pendingTx buffers TxProposals a shard has already executed, waiting to
	// be folded into the next block this client (or, in raft mode, the
	// leader) assembles.
	var pendingMu sync.Mutex
	var pendingTx []*txstate.TxProposal
	addPending := func(p *txstate.TxProposal) {
		pendingMu.Lock()
		pendingTx = append(pendingTx, p)
		pendingMu.Unlock()
	}
	drainPending := func() []*txstate.TxProposal {
		pendingMu.Lock()
		defer pendingMu.Unlock()
		batch := pendingTx
		pendingTx = nil
		return batch
	}

	storageClients := make([]*network.Client, len(cfg.StorageAddrs))
	for i, addr := range cfg.StorageAddrs {
		storageClients[i] = network.NewClient(addr)
	}

	// broadcastBlock is the client side of spec.md §4.3: every finalized
	// BlockProposal goes to every storage shard's RouteBlockImport so each
	// can run CommitBlockStorageNode, plus the event bus (in lieu of a peer
	// gossip transport - see DESIGN.md) for other observers.
	broadcastBlock := func(prop *chain.BlockProposal) {
		for _, c := range storageClients {
			go func(c *network.Client) {
				if _, err := c.Call(network.RouteBlockImport, network.NewEnvelope(network.TopicNewBlock, prop.Encode())); err != nil {
					logger.Warn("broadcasting block to storage shard failed", "err", err)
				}
			}(c)
		}
		if bus != nil {
			bus.Publish(network.TopicNewBlock, network.NewEnvelope(network.TopicNewBlock, prop.Encode()))
		}
	}

	router, err := network.NewGossipRouter()
	if err != nil {
		return fmt.Errorf("starting gossip router: %w", err)
	}
	router.Subscribe(network.TopicNewBlock, func(from network.PeerID, env *network.Envelope) {
		prop, err := chain.DecodeBlockProposal(env.Payload)
		if err != nil {
			logger.Warn("dropping malformed block gossip", "from", from, "err", err)
			return
		}
		pendingBlocks.Push(prop)
		curTrie, curHead := getState()
		for _, ready := range pendingBlocks.PopReady(curHead.Height) {
			if engine == nil {
				break // raft mode commits through FSM.Apply, not gossip
			}
			newRoot, err := chain.ValidateProposal(ready, curHead, curTrie, engine)
			if err != nil {
				logger.Warn("rejecting block proposal", "height", ready.Header.Height, "err", err)
				continue
			}
			if err := chain.CommitBlock(dbManager, ready); err != nil {
				logger.Error("commit failed", "height", ready.Header.Height, "err", err)
				continue
			}
			curTrie, curHead = newRoot, ready.Header
			if bus != nil {
				bus.Publish(network.TopicNewBlock, network.NewEnvelope(network.TopicNewBlock, ready.Encode()))
			}
		}
		setState(curTrie, curHead)
	})

	server := network.NewServer()
	server.Handle(network.RouteFetchNode, func(env *network.Envelope) ([]byte, error) {
		hash := common.BytesToH256(env.Payload)
		node, err := dbManager.LoadNode(hash)
		if err != nil {
			return nil, err
		}
		return trie.EncodeNode(node), nil
	})

	// RouteSubmitTx is the public tx-ingress endpoint of spec.md §2 step 5:
	// decode just enough of the transaction to learn which shard owns it
	// (sharding.ShardFor), dispatch it there for execution over
	// RouteProposeTx, and either hold the resulting TxProposal for this
	// client's own next block or forward it to the elected raft leader
	// (spec.md §6's leader_tx_proposal RPC).
	server.Handle(network.RouteSubmitTx, func(env *network.Envelope) ([]byte, error) {
		tx, err := txexec.DecodeTx(env.Payload)
		if err != nil {
			return nil, err
		}
		shardIdx := sharding.ShardFor(tx.Addr, cfg.Shard.NumShards)
		if shardIdx < 0 || shardIdx >= len(storageClients) {
			return nil, common.Newf(common.KindInvalidTx, "slimclient: no storage shard configured for shard index %d", shardIdx)
		}

		proposeEnv := network.NewEnvelope(network.TopicNewTx, env.Payload)
		respEnv, err := storageClients[shardIdx].Call(network.RouteProposeTx, proposeEnv)
		if err != nil {
			return nil, fmt.Errorf("dispatching tx to shard %d: %w", shardIdx, err)
		}
		prop, err := txstate.DecodeTxProposal(respEnv.Payload)
		if err != nil {
			return nil, err
		}

		if cfg.Engine.Mode == "raft" && raftNode != nil && !raftNode.IsLeader() {
			if cfg.Engine.LeaderRPCAddr == "" {
				return nil, common.Newf(common.KindConsensusInvalid, "slimclient: not the raft leader and no leader address configured")
			}
			fwdEnv := network.NewEnvelope(network.TopicStateUpdate, prop.Encode())
			if _, err := network.NewClient(cfg.Engine.LeaderRPCAddr).Call(network.RouteLeaderTxProposal, fwdEnv); err != nil {
				return nil, fmt.Errorf("forwarding tx proposal to leader: %w", err)
			}
		} else {
			addPending(prop)
		}

		reply := network.NewEnvelope(network.TopicStateUpdate, prop.TxHash.Bytes())
		return reply.Encode(), nil
	})

	// RouteLeaderTxProposal is the leader side of the forward above: accept
	// a proposal a follower collected and hold it for this node's own next
	// block, grounded on the original's forward_tx_proposal_to_leader.
	server.Handle(network.RouteLeaderTxProposal, func(env *network.Envelope) ([]byte, error) {
		prop, err := txstate.DecodeTxProposal(env.Payload)
		if err != nil {
			return nil, err
		}
		addPending(prop)
		reply := network.NewEnvelope(network.TopicStateUpdate, prop.TxHash.Bytes())
		return reply.Encode(), nil
	})

	if cfg.AdminAddr != "" {
		adminLn, err := network.NewAdminListener(cfg.AdminAddr)
		if err != nil {
			return fmt.Errorf("starting admin listener: %w", err)
		}
		defer adminLn.Close()
		go network.ServeAdmin(adminLn, func() string {
			_, curHead := getState()
			return fmt.Sprintf("slimclient shard=%d engine=%s height=%d", cfg.Shard.ShardIndex, cfg.Engine.Mode, curHead.Height)
		})
	}

	switch {
	case cfg.Engine.Mode == "raft" && raftNode != nil:
		go runRaftAssembleLoop(raftNode, drainPending, getState, setState, broadcastBlock)
	default:
		if threads := ctx.GlobalInt(cmdutils.MinerThreadsFlag.Name); threads > 0 {
			if threads > 1 {
				logger.Warn("pow.Miner runs exactly one mining goroutine regardless of miner.threads; see DESIGN.md", "requested", threads)
			}
			resultCh := make(chan *pow.Result, 1)
			miner := pow.NewMiner(resultCh)
			miner.Start()
			defer miner.Stop()
			logger.Info("starting pow miner")
			go runPowAssembleLoop(miner, resultCh, dbManager, drainPending, getState, setState, broadcastBlock)
		}
	}

	logger.Info("slimclient ready", "shard", cfg.Shard.ShardIndex, "engine", cfg.Engine.Mode, "height", head.Height, "admin", cfg.AdminAddr != "")

	return server.ListenAndServe(cfg.RPCAddr)
}

// assembleProposal folds a batch of already-executed TxProposals onto
// baseTrie/baseHead into a candidate BlockProposal, the client-side
// counterpart of the original's create_new_block: apply each transaction's
// main-trie diff in order, union the per-account storage diffs and account
// content every shard reported, and stamp a header whose StateRoot/
// TxListHash commit to the result. Returns a nil proposal (no error) if
// every tx in the batch had gone stale by the time it was folded in.
func assembleProposal(batch []*txstate.TxProposal, baseTrie *trie.PartialTrie, baseHead *chain.BlockHeader) (*chain.BlockProposal, *trie.PartialTrie, error) {
	newTrie := baseTrie
	storageDiffs := make(map[common.Address]trie.PartialTrieDiff)
	accounts := make(map[common.Address]txstate.AccountState)
	txList := make([]common.H256, 0, len(batch))
	txPayloads := make(map[common.H256][]byte, len(batch))

	for _, p := range batch {
		applied, err := trie.ApplyDiff(newTrie, p.Diff)
		if err != nil {
			logger.Warn("dropping stale tx proposal", "tx", p.TxHash, "err", err)
			continue
		}
		newTrie = applied
		txList = append(txList, p.TxHash)
		txPayloads[p.TxHash] = p.Payload
		for addr, d := range p.StorageDiffs {
			storageDiffs[addr] = d
		}
		for addr, a := range p.Accounts {
			accounts[addr] = a
		}
	}
	if len(txList) == 0 {
		return nil, nil, nil
	}

	header := &chain.BlockHeader{
		Height:     baseHead.Height + 1,
		PrevHash:   baseHead.Hash(),
		StateRoot:  newTrie.Digest(),
		TxListHash: chain.ComputeTxListHash(txList),
		Timestamp:  uint64(time.Now().Unix()),
	}
	prop := &chain.BlockProposal{
		Header:       header,
		TxList:       txList,
		Diff:         trie.Diff(baseTrie, newTrie),
		StorageDiffs: storageDiffs,
		Accounts:     accounts,
		TxPayloads:   txPayloads,
	}
	return prop, newTrie, nil
}

// runPowAssembleLoop is spec.md §4.4's PoW block-production path: every
// tick, drain whatever TxProposals have accumulated, assemble them into a
// candidate block, and hand it to miner. The single-goroutine miner (see
// consensus/pow.Miner) only ever has one task in flight, so inflight* is
// safe to read back without its own lock - this loop is the only writer.
func runPowAssembleLoop(
	miner *pow.Miner,
	resultCh <-chan *pow.Result,
	db chain.DBManager,
	drainPending func() []*txstate.TxProposal,
	getState func() (*trie.PartialTrie, *chain.BlockHeader),
	setState func(*trie.PartialTrie, *chain.BlockHeader),
	broadcastBlock func(*chain.BlockProposal),
) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var inflightProp *chain.BlockProposal
	var inflightTrie *trie.PartialTrie
	var inflightHead *chain.BlockHeader

	for {
		select {
		case <-ticker.C:
			if inflightProp != nil {
				continue // already mining a block
			}
			batch := drainPending()
			if len(batch) == 0 {
				continue
			}
			baseTrie, baseHead := getState()
			prop, newTrie, err := assembleProposal(batch, baseTrie, baseHead)
			if err != nil {
				logger.Warn("assembling block failed", "err", err)
				continue
			}
			if prop == nil {
				continue
			}
			inflightProp, inflightTrie, inflightHead = prop, newTrie, baseHead
			miner.Work() <- &pow.Task{Header: prop.Header, Prev: baseHead}

		case result := <-resultCh:
			if result == nil || inflightProp == nil {
				continue
			}
			prop, newTrie, baseHead := inflightProp, inflightTrie, inflightHead
			inflightProp, inflightTrie, inflightHead = nil, nil, nil

			prop.Header = result.Header
			if _, curHead := getState(); curHead.Hash() != baseHead.Hash() {
				logger.Warn("discarding stale mined block", "height", prop.Header.Height)
				continue
			}
			if err := chain.CommitBlock(db, prop); err != nil {
				logger.Error("commit failed", "height", prop.Header.Height, "err", err)
				continue
			}
			setState(newTrie, prop.Header)
			broadcastBlock(prop)
		}
	}
}

// runRaftAssembleLoop is spec.md §4.4's Raft block-production path: only
// the elected leader proposes (consensus/raft.Node.ProposeBlock), the
// same role split the original's multi-client Raft mode enforces; a
// follower just leaves pending proposals queued until it either becomes
// leader or forwards them (RouteSubmitTx already forwards to the leader's
// RouteLeaderTxProposal at submission time).
func runRaftAssembleLoop(
	raftNode *raft.Node,
	drainPending func() []*txstate.TxProposal,
	getState func() (*trie.PartialTrie, *chain.BlockHeader),
	setState func(*trie.PartialTrie, *chain.BlockHeader),
	broadcastBlock func(*chain.BlockProposal),
) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if !raftNode.IsLeader() {
			continue
		}
		batch := drainPending()
		if len(batch) == 0 {
			continue
		}
		baseTrie, baseHead := getState()
		prop, newTrie, err := assembleProposal(batch, baseTrie, baseHead)
		if err != nil {
			logger.Warn("assembling block failed", "err", err)
			continue
		}
		if prop == nil {
			continue
		}

		req := &raft.NewBlockRequest{Header: prop.Header, TxList: prop.TxList}
		committedHeader, err := raftNode.ProposeBlock(req, 5*time.Second)
		if err != nil {
			logger.Warn("raft propose failed", "err", err)
			continue
		}
		prop.Header = committedHeader
		setState(newTrie, prop.Header)
		broadcastBlock(prop)
	}
}
