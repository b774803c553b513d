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

package raft

import (
	"net"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/pkg/errors"

	"github.com/slimchain-go/slimchain/chain"
)

// Config mirrors the subset of the original's RaftConfig that matters to
// node bootstrap: the local Raft bind address and the cluster this node
// joins (or forms, if it's the only entry and Bootstrap is set).
type Config struct {
	NodeID       string
	BindAddr     string
	DataDir      string
	Bootstrap    bool
	Peers        []raft.Server
	SnapshotKeep int
}

// DefaultConfig matches hashicorp/raft's own DefaultConfig for timeouts,
// overriding only what the original tunes (snapshot retention count).
func DefaultConfig() Config {
	return Config{SnapshotKeep: 3}
}

// Node bundles the hashicorp/raft runtime with the FSM it drives, and is
// the handle the network layer uses to propose new blocks.
type Node struct {
	Raft *raft.Raft
	FSM  *FSM
}

// NewNode wires a raft.Raft instance backed by BoltDB log/stable stores
// (the store hashicorp/raft's own examples use) and a file snapshot store,
// applying cfg and bootstrapping a single-node cluster when cfg.Bootstrap
// is set.
func NewNode(cfg Config, db chain.DBManager, genesis *chain.BlockHeader) (*Node, error) {
	fsm := NewFSM(db, genesis)

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	logStore, err := raftboltdb.NewBoltStore(cfg.DataDir + "/raft-log.bolt")
	if err != nil {
		return nil, errors.Wrap(err, "raft: open log store")
	}
	stableStore, err := raftboltdb.NewBoltStore(cfg.DataDir + "/raft-stable.bolt")
	if err != nil {
		return nil, errors.Wrap(err, "raft: open stable store")
	}
	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, cfg.SnapshotKeep, nil)
	if err != nil {
		return nil, errors.Wrap(err, "raft: open snapshot store")
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, errors.Wrap(err, "raft: resolve bind address")
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, nil)
	if err != nil {
		return nil, errors.Wrap(err, "raft: create transport")
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, errors.Wrap(err, "raft: create raft instance")
	}

	if cfg.Bootstrap {
		servers := cfg.Peers
		if len(servers) == 0 {
			servers = []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}}
		}
		r.BootstrapCluster(raft.Configuration{Servers: servers})
	}

	return &Node{Raft: r, FSM: fsm}, nil
}

// ProposeBlock submits a NewBlockRequest to the Raft log. It must be called
// on the current leader; ErrNotLeader surfaces otherwise so the caller can
// forward the proposal (spec.md §4.4: non-leaders forward to the leader
// over the RPC layer rather than retrying locally).
func (n *Node) ProposeBlock(req *NewBlockRequest, timeout time.Duration) (*chain.BlockHeader, error) {
	future := n.Raft.Apply(req.Encode(), timeout)
	if err := future.Error(); err != nil {
		return nil, err
	}
	result, ok := future.Response().(*ApplyResult)
	if !ok {
		return nil, errors.New("raft: unexpected apply response type")
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return result.Header, nil
}

// IsLeader reports whether this node currently holds the Raft leadership.
func (n *Node) IsLeader() bool {
	return n.Raft.State() == raft.Leader
}
