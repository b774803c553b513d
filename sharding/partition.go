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

// Package sharding implements the address-to-shard partitioner described in
// spec.md §3: every client and storage node must agree, without
// coordination, on which shard owns a given account.
package sharding

import "github.com/slimchain-go/slimchain/common"

// ShardFor returns the shard index owning addr, given the shard count in
// effect for the chain. The partitioner is deliberately simple (first
// address nibble modulo shard count) so clients and storage nodes never
// need to exchange a partition table; it is configured once at genesis
// alongside the shard count itself (config.ShardConfig).
func ShardFor(addr common.Address, numShards int) int {
	if numShards <= 0 {
		return 0
	}
	return int(addr.FirstNibble()) % numShards
}
