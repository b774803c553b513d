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

// Package database wraps the embedded key-value engines (LevelDB, Badger)
// behind a single byte-oriented Database interface. It deliberately knows
// nothing about tries, blocks or accounts: chain.DBManager layers that
// schema on top, the same separation the teacher draws between
// storage/database (raw engines) and the chain package that reads/writes
// domain objects through it.
package database

import "errors"

// DBType names the underlying storage engine a node was configured with.
type DBType string

const (
	LevelDB DBType = "leveldb"
	Badger  DBType = "badger"
	MemDB   DBType = "memory"
)

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = errors.New("database: key not found")

// Database is the minimal key-value contract every engine in this package
// implements.
type Database interface {
	Type() DBType
	Put(key, value []byte) error
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	NewBatch() Batch
	Close()
}

// Batch buffers writes and flushes them in one call. The chain package
// stages trie nodes and transaction payloads in one; headers, the height
// index and the head pointer are written outside it.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	ValueSize() int
	Write() error
	Reset()
}

// Open constructs the configured engine. dir is ignored for MemDB.
func Open(kind DBType, dir string, cacheSizeMB, numHandles int) (Database, error) {
	switch kind {
	case LevelDB:
		return NewLevelDB(dir, cacheSizeMB, numHandles)
	case Badger:
		return NewBadgerDB(dir)
	case MemDB, "":
		return NewMemDB(), nil
	default:
		return nil, errors.New("database: unknown engine " + string(kind))
	}
}
