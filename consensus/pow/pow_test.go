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

package pow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimchain-go/slimchain/chain"
	"github.com/slimchain-go/slimchain/common"
)

func genesis() *chain.BlockHeader {
	return GenesisHeader(Config{InitDiff: 1}, uint64(time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC).Unix()), common.ZeroH256)
}

func mineOne(t *testing.T, prev *chain.BlockHeader) *chain.BlockHeader {
	t.Helper()
	returnCh := make(chan *Result, 1)
	miner := NewMiner(returnCh)
	miner.Start()
	defer miner.Stop()

	miner.Work() <- &Task{
		Header: &chain.BlockHeader{
			Height:     prev.Height + 1,
			PrevHash:   prev.Hash(),
			StateRoot:  prev.StateRoot,
			TxListHash: common.ZeroH256,
		},
		Prev: prev,
	}

	select {
	case result := <-returnCh:
		require.NotNil(t, result)
		return result.Header
	case <-time.After(5 * time.Second):
		t.Fatal("mining timed out")
		return nil
	}
}

func TestVerifyConsensusAcceptsMinedBlock(t *testing.T) {
	prev := genesis()
	mined := mineOne(t, prev)
	assert.NoError(t, VerifyConsensus(mined, prev))
}

func TestVerifyConsensusRejectsTamperedDifficulty(t *testing.T) {
	prev := genesis()
	mined := mineOne(t, prev)

	data, err := DecodeConsensusData(mined.ConsensusData)
	require.NoError(t, err)
	data.Diff++
	mined.ConsensusData = data.Encode()

	assert.Error(t, VerifyConsensus(mined, prev))
}

func TestNonceIsValidRejectsHashAboveThreshold(t *testing.T) {
	// diff=2 sets the threshold at MaxU256/2: a hash with its top bit set
	// exceeds it, one with the top bit clear does not.
	above := common.H256{}
	above[0] = 0x80
	below := common.H256{}
	below[0] = 0x7f

	assert.False(t, nonceIsValid(above, 2))
	assert.True(t, nonceIsValid(below, 2))
}

func TestComputeDiffRetargetsTowardTenSecondBlocks(t *testing.T) {
	// A block mined well under 10s after its parent should raise
	// difficulty; one mined well over 10s after should lower it.
	fast := computeDiff(995, 990, 2048*10)
	slow := computeDiff(2000, 990, 2048*10)
	assert.Greater(t, fast, uint64(2048*10))
	assert.Less(t, slow, uint64(2048*10))
}

func TestNonceIsValidThresholdMonotonicInDifficulty(t *testing.T) {
	hash := common.Keccak256([]byte("some header"))
	// Whatever validates at a high difficulty must also validate at every
	// lower one, since the threshold only grows as difficulty shrinks.
	if nonceIsValid(hash, 1<<32) {
		assert.True(t, nonceIsValid(hash, 1))
	}
}
