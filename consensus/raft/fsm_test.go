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
	"bytes"
	"io"
	"testing"

	raftlib "github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimchain-go/slimchain/chain"
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/storage/database"
)

func newFSMDBManager(t *testing.T) chain.DBManager {
	t.Helper()
	db, err := chain.NewDBManager(database.NewMemDB(), 1, 64)
	require.NoError(t, err)
	return db
}

func TestFSMApplyAdvancesHeadOnValidEntry(t *testing.T) {
	genesis := &chain.BlockHeader{Height: 0, StateRoot: common.H256{}}
	fsm := NewFSM(newFSMDBManager(t), genesis)

	next := &chain.BlockHeader{Height: 1, PrevHash: genesis.Hash(), StateRoot: common.H256{}}
	req := &NewBlockRequest{Header: next}

	out := fsm.Apply(&raftlib.Log{Data: req.Encode()})
	res, ok := out.(*ApplyResult)
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, next.Hash(), fsm.Head().Hash())
	assert.Equal(t, uint64(1), fsm.HeadHeight())
}

func TestFSMApplyRejectsHeightGap(t *testing.T) {
	genesis := &chain.BlockHeader{Height: 0, StateRoot: common.H256{}}
	fsm := NewFSM(newFSMDBManager(t), genesis)

	skip := &chain.BlockHeader{Height: 2, PrevHash: genesis.Hash(), StateRoot: common.H256{}}
	req := &NewBlockRequest{Header: skip}

	out := fsm.Apply(&raftlib.Log{Data: req.Encode()})
	res := out.(*ApplyResult)
	require.Error(t, res.Err)
	kind, ok := common.ErrKind(res.Err)
	require.True(t, ok)
	assert.Equal(t, common.KindHeightGap, kind)
	assert.Equal(t, uint64(0), fsm.HeadHeight())
}

func TestFSMApplyRejectsWrongParent(t *testing.T) {
	genesis := &chain.BlockHeader{Height: 0, StateRoot: common.H256{}}
	fsm := NewFSM(newFSMDBManager(t), genesis)

	forked := &chain.BlockHeader{Height: 1, PrevHash: common.Keccak256([]byte("not-genesis")), StateRoot: common.H256{}}
	req := &NewBlockRequest{Header: forked}

	out := fsm.Apply(&raftlib.Log{Data: req.Encode()})
	res := out.(*ApplyResult)
	require.Error(t, res.Err)
	kind, ok := common.ErrKind(res.Err)
	require.True(t, ok)
	assert.Equal(t, common.KindConsensusInvalid, kind)
}

func TestFSMSnapshotAndRestoreRoundTrip(t *testing.T) {
	genesis := &chain.BlockHeader{Height: 0, StateRoot: common.H256{}}
	fsm := NewFSM(newFSMDBManager(t), genesis)

	next := &chain.BlockHeader{Height: 1, PrevHash: genesis.Hash(), StateRoot: common.H256{}}
	req := &NewBlockRequest{Header: next}
	res := fsm.Apply(&raftlib.Log{Data: req.Encode()}).(*ApplyResult)
	require.NoError(t, res.Err)

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, snap.Persist(&fakeSnapshotSink{Buffer: &buf}))

	restored := NewFSM(newFSMDBManager(t), genesis)
	require.NoError(t, restored.Restore(io.NopCloser(&buf)))
	assert.Equal(t, next.Hash(), restored.Head().Hash())
}

type fakeSnapshotSink struct {
	*bytes.Buffer
}

func (s *fakeSnapshotSink) ID() string       { return "test-snapshot" }
func (s *fakeSnapshotSink) Cancel() error    { return nil }
func (s *fakeSnapshotSink) Close() error     { return nil }
