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

// Package utils collects the cli.Flag definitions and config-loading glue
// shared by cmd/slimclient and cmd/slimstorage, the way the teacher's own
// cmd/utils/flags.go centralizes flags shared across its node binaries.
package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/slimchain-go/slimchain/config"
)

var (
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the node's database",
		Value: "./data",
	}
	ShardIndexFlag = cli.IntFlag{
		Name:  "shard.index",
		Usage: "Index of the shard this node serves",
		Value: 0,
	}
	NumShardsFlag = cli.IntFlag{
		Name:  "shard.count",
		Usage: "Total number of shards in the cluster",
		Value: 1,
	}
	EngineModeFlag = cli.StringFlag{
		Name:  "engine",
		Usage: `Consensus engine ("pow" or "raft")`,
		Value: "pow",
	}
	RPCAddrFlag = cli.StringFlag{
		Name:  "rpcaddr",
		Usage: "Listen address for the node's RPC server",
		Value: "127.0.0.1:8645",
	}
	GossipAddrFlag = cli.StringFlag{
		Name:  "gossipaddr",
		Usage: "Listen address for the node's gossip endpoint",
		Value: "127.0.0.1:8646",
	}
	MinerThreadsFlag = cli.IntFlag{
		Name:  "miner.threads",
		Usage: "Enables PoW mining when above 0 (0 disables mining); one mining goroutine runs whatever the value",
		Value: 0,
	}
	TxEngineThreadsFlag = cli.IntFlag{
		Name:  "txengine.threads",
		Usage: "Number of transaction execution workers (storage nodes only)",
		Value: 4,
	}
	KafkaBrokersFlag = cli.StringFlag{
		Name:  "eventbus.brokers",
		Usage: "Comma-separated Kafka broker addresses; enables the cross-process event bus",
	}
	AdminAddrFlag = cli.StringFlag{
		Name:  "admin.endpoint",
		Usage: "Local admin socket (unix path, or named pipe path on Windows); empty disables it",
	}
	StorageAddrsFlag = cli.StringFlag{
		Name:  "storage.addrs",
		Usage: "Comma-separated storage shard RPC addresses, indexed by shard index (client node only)",
	}
	LeaderAddrFlag = cli.StringFlag{
		Name:  "raft.leaderaddr",
		Usage: "RPC address of the elected raft leader, for forwarding tx proposals (raft engine only)",
	}
)

// NewApp creates a cli.App with the sane defaults every slimchain binary
// shares, mirroring the teacher's own cmd/utils.NewApp.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.Name = filepathBase(os.Args[0])
	app.Usage = usage
	app.Version = "0.1.0"
	return app
}

func filepathBase(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// LoadConfig layers a -config TOML file (if given) on top of
// config.DefaultConfig, then applies flag overrides, matching the
// teacher's file-then-flags precedence in cmd/ranger/config.go.
func LoadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.DefaultConfig()
	if path := ctx.GlobalString(ConfigFileFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("loading %s: %w", path, err)
		}
		cfg = loaded
	}

	if ctx.GlobalIsSet(DataDirFlag.Name) {
		cfg.Storage.DataDir = ctx.GlobalString(DataDirFlag.Name)
	}
	if ctx.GlobalIsSet(ShardIndexFlag.Name) {
		cfg.Shard.ShardIndex = ctx.GlobalInt(ShardIndexFlag.Name)
	}
	if ctx.GlobalIsSet(NumShardsFlag.Name) {
		cfg.Shard.NumShards = ctx.GlobalInt(NumShardsFlag.Name)
	}
	if ctx.GlobalIsSet(EngineModeFlag.Name) {
		cfg.Engine.Mode = ctx.GlobalString(EngineModeFlag.Name)
	}
	if ctx.GlobalIsSet(RPCAddrFlag.Name) {
		cfg.RPCAddr = ctx.GlobalString(RPCAddrFlag.Name)
	}
	if ctx.GlobalIsSet(GossipAddrFlag.Name) {
		cfg.GossipAddr = ctx.GlobalString(GossipAddrFlag.Name)
	}
	if ctx.GlobalIsSet(KafkaBrokersFlag.Name) {
		cfg.EventBus.Enabled = true
		cfg.EventBus.Brokers = strings.Split(ctx.GlobalString(KafkaBrokersFlag.Name), ",")
	}
	if ctx.GlobalIsSet(AdminAddrFlag.Name) {
		cfg.AdminAddr = ctx.GlobalString(AdminAddrFlag.Name)
	}
	if ctx.GlobalIsSet(StorageAddrsFlag.Name) {
		cfg.StorageAddrs = strings.Split(ctx.GlobalString(StorageAddrsFlag.Name), ",")
	}
	if ctx.GlobalIsSet(LeaderAddrFlag.Name) {
		cfg.Engine.LeaderRPCAddr = ctx.GlobalString(LeaderAddrFlag.Name)
	}
	return cfg, nil
}
