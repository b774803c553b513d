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

// Package raft implements the multi-client consensus mode spec.md §4.4
// describes as an alternative to PoW: a Raft-replicated log of block
// proposals, committed in log order, backed by hashicorp/raft.
package raft

import (
	"io"
	"sync"

	"github.com/hashicorp/raft"
	"github.com/pkg/errors"

	"github.com/slimchain-go/slimchain/chain"
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/log"
	"github.com/slimchain-go/slimchain/wireformat"
)

var raftLog = log.NewModuleLogger("consensus/raft")

// NewBlockRequest is the log entry type this FSM applies: a fully-formed
// block proposal a client has already validated against its own local
// state and now wants the cluster to agree happened at a given log index.
type NewBlockRequest struct {
	Header *chain.BlockHeader
	TxList []common.H256
}

func (r *NewBlockRequest) Encode() []byte {
	enc := wireformat.NewEncoder()
	enc.WriteBytes(r.Header.Encode())
	enc.WriteUvarint(uint64(len(r.TxList)))
	for _, h := range r.TxList {
		enc.WriteBytes(h.Bytes())
	}
	return enc.Bytes()
}

func DecodeNewBlockRequest(b []byte) (*NewBlockRequest, error) {
	dec := wireformat.NewDecoder(b)
	headerRaw, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	header, err := chain.DecodeBlockHeader(headerRaw)
	if err != nil {
		return nil, err
	}
	n, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	txList := make([]common.H256, n)
	for i := range txList {
		raw, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		txList[i] = common.BytesToH256(raw)
	}
	return &NewBlockRequest{Header: header, TxList: txList}, nil
}

// ApplyResult is returned from FSM.Apply through raft.ApplyFuture.Response.
type ApplyResult struct {
	Header *chain.BlockHeader
	Err    error
}

// FSM is the hashicorp/raft state machine: every node in the cluster
// applies committed NewBlockRequest entries in identical order. Apply checks
// each entry's height and parent hash against the last applied header and
// persists the header, canonical hash and head pointer. It does not run
// chain.ValidateProposal or chain.CommitBlock, and a NewBlockRequest carries
// no state diff, so no state change is applied through the log.
type FSM struct {
	mu sync.Mutex

	db        chain.DBManager
	headState *chain.BlockHeader
}

// NewFSM builds an FSM rooted at genesis; headState tracks the last
// applied header so consecutive log entries can be validated for
// height/parent continuity exactly like the PoW path does.
func NewFSM(db chain.DBManager, genesis *chain.BlockHeader) *FSM {
	return &FSM{db: db, headState: genesis}
}

// Apply implements raft.FSM. A log entry that fails validation is not
// retried — Raft guarantees ordering and durability, not application-level
// correctness, so an invalid proposal simply never advances the head and
// is reported back to whichever node proposed it.
func (f *FSM) Apply(entry *raft.Log) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, err := DecodeNewBlockRequest(entry.Data)
	if err != nil {
		return &ApplyResult{Err: errors.Wrap(err, "raft: malformed log entry")}
	}

	if req.Header.Height != f.headState.Height+1 {
		return &ApplyResult{Err: common.Newf(common.KindHeightGap, "raft: expected height %d, got %d", f.headState.Height+1, req.Header.Height)}
	}
	if req.Header.PrevHash != f.headState.Hash() {
		return &ApplyResult{Err: common.Newf(common.KindConsensusInvalid, "raft: block does not extend the current head")}
	}

	if err := f.db.WriteHeader(req.Header); err != nil {
		return &ApplyResult{Err: err}
	}
	if err := f.db.WriteCanonicalHash(req.Header.Height, req.Header.Hash()); err != nil {
		return &ApplyResult{Err: err}
	}
	if err := f.db.WriteHeadHash(req.Header.Hash()); err != nil {
		return &ApplyResult{Err: err}
	}
	f.headState = req.Header

	raftLog.Info("applied block", "height", req.Header.Height, "hash", req.Header.Hash())
	return &ApplyResult{Header: req.Header}
}

// snapshot is the payload persisted by Snapshot/restored by Restore: just
// enough to resume applying the log from where it left off. The full state
// trie is recovered separately from chain.DBManager (which Raft's snapshot
// machinery does not own), matching the original's snapshot of
// (latest_block_header, state_root) rather than a trie dump.
type snapshot struct {
	Head *chain.BlockHeader
}

func (s *snapshot) Persist(sink raft.SnapshotSink) error {
	_, err := sink.Write(s.Head.Encode())
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *snapshot) Release() {}

// Snapshot implements raft.FSM.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &snapshot{Head: f.headState}, nil
}

// Restore implements raft.FSM.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	header, err := chain.DecodeBlockHeader(raw)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.headState = header
	return nil
}

// HeadHeight reports the last applied block's height, used by a node
// deciding whether to propose the next one.
func (f *FSM) HeadHeight() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headState.Height
}

// Head returns the last applied header.
func (f *FSM) Head() *chain.BlockHeader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headState
}
