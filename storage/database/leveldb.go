// Copyright 2015 The go-ethereum Authors
// Copyright 2018 The klaytn Authors
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

package database

import (
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/slimchain-go/slimchain/log"
)

// OpenFileLimit is not read by NewLevelDB; the file-descriptor bound a
// LevelDB store gets is its numHandles argument (at least 16).
var OpenFileLimit = 64

type levelDB struct {
	fn string
	db *leveldb.DB

	compTimeMeter  metrics.Meter
	compReadMeter  metrics.Meter
	compWriteMeter metrics.Meter
	diskReadMeter  metrics.Meter
	diskWriteMeter metrics.Meter

	quitLock sync.Mutex
	quitChan chan chan error

	log log.Logger
}

func levelDBOptions(cacheSizeMB, numHandles int) *opt.Options {
	if cacheSizeMB < 16 {
		cacheSizeMB = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     cacheSizeMB / 2 * opt.MiB,
		WriteBuffer:            cacheSizeMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
}

// NewLevelDB opens (or creates) a LevelDB store at dir, recovering from a
// corrupted previous instance the same way go-ethereum's database layer
// does.
func NewLevelDB(dir string, cacheSizeMB, numHandles int) (Database, error) {
	l := log.New("engine", "leveldb", "dir", dir)

	db, err := leveldb.OpenFile(dir, levelDBOptions(cacheSizeMB, numHandles))
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, err
	}

	ldb := &levelDB{fn: dir, db: db, log: l}
	ldb.meter(3 * time.Second)
	return ldb, nil
}

func (db *levelDB) Type() DBType { return LevelDB }

func (db *levelDB) Put(key, value []byte) error { return db.db.Put(key, value, nil) }

func (db *levelDB) Has(key []byte) (bool, error) { return db.db.Has(key, nil) }

func (db *levelDB) Get(key []byte) ([]byte, error) {
	v, err := db.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (db *levelDB) Delete(key []byte) error { return db.db.Delete(key, nil) }

func (db *levelDB) Close() {
	db.quitLock.Lock()
	defer db.quitLock.Unlock()
	if db.quitChan != nil {
		errc := make(chan error)
		db.quitChan <- errc
		if err := <-errc; err != nil {
			db.log.Error("metrics collection failed on close", "err", err)
		}
		db.quitChan = nil
	}
	if err := db.db.Close(); err != nil {
		db.log.Error("failed to close leveldb", "err", err)
	}
}

// meter starts the background compaction/IO stats collector, registering
// five go-metrics meters the way the teacher's levelDB.Meter does, minus
// the opt-in prefix argument: this binary always wants the numbers.
func (db *levelDB) meter(refresh time.Duration) {
	db.compTimeMeter = metrics.NewRegisteredMeter("storage/leveldb/compaction/time", nil)
	db.compReadMeter = metrics.NewRegisteredMeter("storage/leveldb/compaction/read", nil)
	db.compWriteMeter = metrics.NewRegisteredMeter("storage/leveldb/compaction/write", nil)
	db.diskReadMeter = metrics.NewRegisteredMeter("storage/leveldb/disk/read", nil)
	db.diskWriteMeter = metrics.NewRegisteredMeter("storage/leveldb/disk/write", nil)

	db.quitLock.Lock()
	db.quitChan = make(chan chan error)
	db.quitLock.Unlock()

	go db.collect(refresh)
}

func (db *levelDB) collect(refresh time.Duration) {
	stats := new(leveldb.DBStats)
	var prevCompRead, prevCompWrite int64
	var prevCompTime time.Duration
	var prevRead, prevWrite uint64

	var errc chan error
	for {
		if err := db.db.Stats(stats); err != nil {
			break
		}

		var currCompRead, currCompWrite int64
		var currCompTime time.Duration
		for i := range stats.LevelDurations {
			currCompTime += stats.LevelDurations[i]
			currCompRead += stats.LevelRead[i]
			currCompWrite += stats.LevelWrite[i]
		}
		db.compTimeMeter.Mark(int64(currCompTime.Seconds() - prevCompTime.Seconds()))
		db.compReadMeter.Mark(currCompRead - prevCompRead)
		db.compWriteMeter.Mark(currCompWrite - prevCompWrite)
		prevCompTime, prevCompRead, prevCompWrite = currCompTime, currCompRead, currCompWrite

		db.diskReadMeter.Mark(int64(stats.IORead - prevRead))
		db.diskWriteMeter.Mark(int64(stats.IOWrite - prevWrite))
		prevRead, prevWrite = stats.IORead, stats.IOWrite

		select {
		case errc = <-db.quitChan:
			errc <- nil
			return
		case <-time.After(refresh):
		}
	}
	if errc == nil {
		errc = <-db.quitChan
	}
	errc <- nil
}

func (db *levelDB) NewBatch() Batch { return &ldbBatch{db: db.db, b: new(leveldb.Batch)} }

type ldbBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *ldbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

func (b *ldbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	return nil
}

func (b *ldbBatch) Write() error { return b.db.Write(b.b, nil) }

func (b *ldbBatch) ValueSize() int { return b.size }

func (b *ldbBatch) Reset() {
	b.b.Reset()
	b.size = 0
}
