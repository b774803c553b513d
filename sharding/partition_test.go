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

package sharding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slimchain-go/slimchain/common"
)

func TestShardForIsFirstNibbleModuloShardCount(t *testing.T) {
	addr := common.Address{0x3A}
	assert.Equal(t, int(0x3)%4, ShardFor(addr, 4))
}

func TestShardForSingleShardAlwaysZero(t *testing.T) {
	addr := common.BytesToAddress([]byte{0xFF})
	assert.Equal(t, 0, ShardFor(addr, 1))
}

func TestShardForZeroShardsIsZero(t *testing.T) {
	addr := common.BytesToAddress([]byte{0xFF})
	assert.Equal(t, 0, ShardFor(addr, 0))
}

func TestShardForIsDeterministicAcrossCalls(t *testing.T) {
	addr := common.BytesToAddress([]byte{0x7C})
	first := ShardFor(addr, 6)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ShardFor(addr, 6))
	}
}
