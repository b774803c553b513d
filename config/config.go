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

// Package config loads a node's TOML configuration file, the same
// naoina/toml-based scheme the teacher uses for its own node/service
// configs (cmd/ranger/config.go), adapted to this spec's PoW/Raft/shard/
// engine settings.
package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/alecthomas/units"
	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/slimchain-go/slimchain/consensus/pow"
	"github.com/slimchain-go/slimchain/consensus/raft"
)

// tomlSettings keeps TOML keys identical to Go struct field names, exactly
// as the teacher configures naoina/toml.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return errors.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// ShardConfig describes this node's place in the address space partition
// (spec.md §3): which shard it serves and how many shards the cluster runs.
type ShardConfig struct {
	ShardIndex int
	NumShards  int
}

// EngineConfig selects and configures the consensus engine: at most one of
// PoW or Raft is populated, matching the two mutually exclusive modes
// spec.md §4.4 describes.
type EngineConfig struct {
	Mode string // "pow" or "raft"
	PoW  pow.Config
	Raft raft.Config

	// LeaderRPCAddr is the elected raft leader's slimclient RPC address. A
	// non-leader client forwards collected TxProposals here (spec.md §6's
	// leader_tx_proposal RPC) rather than through raft's own log, since a
	// tx proposal is advisory input to block assembly, not a committed
	// entry. Unused outside "raft" mode.
	LeaderRPCAddr string
}

// StorageConfig sizes the on-disk caches chain.NewDBManager wires up;
// NodeCacheSize accepts human units ("512MB") the way alecthomas/units
// parses them, rather than requiring a raw megabyte integer in the TOML file.
type StorageConfig struct {
	DataDir         string
	NodeCacheSize   string
	HeaderCacheSize int
}

// NodeCacheSizeMB parses NodeCacheSize ("512MB", "1GB", ...) into megabytes
// for chain.NewDBManager, defaulting to 512MB on a malformed or empty value.
func (s StorageConfig) NodeCacheSizeMB() int {
	if s.NodeCacheSize == "" {
		return 512
	}
	parsed, err := units.ParseBase2Bytes(s.NodeCacheSize)
	if err != nil {
		return 512
	}
	return int(parsed / units.MiB)
}

// EventBusConfig configures the optional Kafka fan-out a node uses to
// publish block-commit and state-update notifications to observers outside
// the gossip mesh (auditors, a chaindata indexer). Enabled gates it: with
// Enabled false a node never dials a broker - most single-box test
// deployments leave it off.
type EventBusConfig struct {
	Enabled bool
	Brokers []string
	GroupID string
}

// Config is the top-level TOML document for both cmd/slimclient and
// cmd/slimstorage; each binary only reads the sub-sections it needs.
type Config struct {
	Shard    ShardConfig
	Engine   EngineConfig
	Storage  StorageConfig
	EventBus EventBusConfig

	RPCAddr    string
	GossipAddr string
	AdminAddr  string

	// StorageAddrs is every storage shard's RPC address, indexed by shard
	// index, so a client can route a submitted transaction to its owning
	// shard (sharding.ShardFor) and broadcast a finalized BlockProposal to
	// all of them on commit. A static table in place of the original's
	// dynamic NetworkRouteTable; see DESIGN.md.
	StorageAddrs []string
}

// DefaultConfig mirrors the original's sensible-defaults-plus-TOML-override
// pattern: callers start here and layer a file and then flags on top.
func DefaultConfig() Config {
	return Config{
		Shard:  ShardConfig{ShardIndex: 0, NumShards: 1},
		Engine: EngineConfig{Mode: "pow", PoW: pow.DefaultConfig},
		Storage: StorageConfig{
			DataDir:         "./data",
			NodeCacheSize:   "512MB",
			HeaderCacheSize: 4096,
		},
		RPCAddr:    "127.0.0.1:8645",
		GossipAddr: "127.0.0.1:8646",
	}
}

// Load reads and decodes a TOML config file on top of DefaultConfig(),
// matching the teacher's loadConfig (cmd/ranger/config.go): a missing field
// in the file simply leaves the default untouched, an unknown field is a
// hard decode error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return cfg, errors.Errorf("%s: %v", path, err)
		}
		return cfg, err
	}
	return cfg, nil
}

// Dump renders cfg back to TOML, for the dumpconfig-style diagnostic
// subcommand the teacher's CLI ships.
func Dump(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}
