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

// Package network implements the node-to-node transport described in
// spec.md §5: an RPC surface for client<->shard request/response traffic
// and a gossip layer for block/tx propagation, with message dedup so a
// node never reprocesses something it has already seen from another peer.
package network

import (
	"bytes"
	"io/ioutil"

	"github.com/klauspost/compress/zstd"
	uuid "github.com/satori/go.uuid"

	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/wireformat"
)

// Topic names the gossip channels a node subscribes to, mirrored from
// spec.md §5's transaction/block propagation paths.
type Topic string

const (
	TopicNewTx       Topic = "tx.new"
	TopicNewBlock    Topic = "block.new"
	TopicStateUpdate Topic = "state.update"
)

// Route names the RPC endpoints a client issues to a storage shard, or a
// storage shard issues to a client.
type Route string

const (
	RouteProposeTx     Route = "/tx/propose"
	RouteFetchNode     Route = "/trie/node"
	RouteFetchReceipt  Route = "/tx/receipt"
	RouteRaftAppend    Route = "/raft/append_entries"
	RouteRaftSnapshot  Route = "/raft/install_snapshot"
	RouteRaftVote      Route = "/raft/vote"

	// RouteSubmitTx is a client's public tx-ingress endpoint (spec.md §2
	// step 5): a caller posts a raw transaction, the client routes it to
	// the owning shard, collects the resulting TxProposal, and either
	// appends it to the block it is assembling or forwards it on to the
	// elected leader.
	RouteSubmitTx Route = "/tx/submit"

	// RouteLeaderTxProposal is how a non-leader client forwards a
	// collected txstate.TxProposal to the elected leader (spec.md §6's
	// leader_tx_proposal RPC), grounded on the original's
	// forward_tx_proposal_to_leader.
	RouteLeaderTxProposal Route = "/tx/leader_proposal"

	// RouteBlockImport is how a client broadcasts a finalized BlockProposal
	// to every storage shard so each can run CommitBlockStorageNode
	// (spec.md §4.3), grounded on the original's
	// broadcast_block_proposal_to_storage_node.
	RouteBlockImport Route = "/block/import"
)

// Envelope wraps every gossiped or RPC'd payload with a correlation ID (for
// request/response matching and logging). Its content digest is not stored
// in it; DedupKey computes it from the payload for use as the gossip dedup
// key, since two nodes relaying the same event should agree on its identity
// regardless of transport-level framing.
type Envelope struct {
	ID      uuid.UUID
	Topic   Topic
	Payload []byte
}

// NewEnvelope stamps payload with a fresh correlation ID.
func NewEnvelope(topic Topic, payload []byte) *Envelope {
	return &Envelope{ID: uuid.NewV4(), Topic: topic, Payload: payload}
}

// DedupKey is the content digest gossip dedup caches key on.
func (e *Envelope) DedupKey() common.H256 {
	return common.Keccak256(e.Payload)
}

func (e *Envelope) Encode() []byte {
	enc := wireformat.NewEncoder()
	enc.WriteBytes(e.ID.Bytes())
	enc.WriteBytes([]byte(e.Topic))
	enc.WriteBytes(compress(e.Payload))
	return enc.Bytes()
}

func DecodeEnvelope(b []byte) (*Envelope, error) {
	dec := wireformat.NewDecoder(b)
	idRaw, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(idRaw)
	if err != nil {
		return nil, err
	}
	topicRaw, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	payloadRaw, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	payload, err := decompress(payloadRaw)
	if err != nil {
		return nil, err
	}
	return &Envelope{ID: id, Topic: Topic(topicRaw), Payload: payload}, nil
}

// compress/decompress use zstd for gossip/RPC payloads, the same family of
// compressor (klauspost/compress) the teacher pulls in for its own wire
// payloads, sized for partial-trie diffs and block bodies rather than the
// tiny control messages a raw varint encoding already handles cheaply.
func compress(b []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return b
	}
	defer enc.Close()
	return enc.EncodeAll(b, nil)
}

func decompress(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var buf bytes.Buffer
	reader := dec.IOReadCloser(ioutil.NopCloser(bytes.NewReader(b)))
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
