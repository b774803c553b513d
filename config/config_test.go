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

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeCacheSizeMBParsesHumanUnitsAndDefaults(t *testing.T) {
	assert.Equal(t, 512, StorageConfig{}.NodeCacheSizeMB())
	assert.Equal(t, 256, StorageConfig{NodeCacheSize: "256MB"}.NodeCacheSizeMB())
	assert.Equal(t, 512, StorageConfig{NodeCacheSize: "not-a-size"}.NodeCacheSizeMB())
}

func TestLoadOverlaysDefaultConfigFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")

	doc, err := Dump(Config{
		Shard:   ShardConfig{ShardIndex: 2, NumShards: 4},
		Engine:  DefaultConfig().Engine,
		Storage: DefaultConfig().Storage,
		RPCAddr: "127.0.0.1:9000",
	})
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(path, doc, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Shard.ShardIndex)
	assert.Equal(t, 4, cfg.Shard.NumShards)
	assert.Equal(t, "127.0.0.1:9000", cfg.RPCAddr)
}

func TestLoadSurfacesFileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultConfigIsInternallyConsistent(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "pow", cfg.Engine.Mode)
	assert.Equal(t, 1, cfg.Shard.NumShards)
	assert.NotEmpty(t, cfg.RPCAddr)
}
