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

// Package metrics centralizes the rcrowley/go-metrics registrations used
// outside storage/database (which registers its own LevelDB-specific
// meters directly): block commit latency, transaction-engine throughput,
// and mining time, named so they all show up under one registry namespace
// per component.
package metrics

import "github.com/rcrowley/go-metrics"

var (
	BlockCommitTimer  = metrics.NewRegisteredTimer("chain/commit/time", nil)
	BlockHeightGauge  = metrics.NewRegisteredGauge("chain/commit/height", nil)
	MiningTimer       = metrics.NewRegisteredTimer("consensus/pow/mining/time", nil)
	TxExecutedCounter = metrics.NewRegisteredCounter("txengine/executed", nil)
	TxFailedCounter   = metrics.NewRegisteredCounter("txengine/failed", nil)
	TxQueueGauge      = metrics.NewRegisteredGauge("txengine/queue_depth", nil)
	GossipInCounter   = metrics.NewRegisteredCounter("network/gossip/in", nil)
	GossipOutCounter  = metrics.NewRegisteredCounter("network/gossip/out", nil)
)
