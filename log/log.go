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

// Package log mirrors the structured, key/value logging API that
// go-ethereum/klaytn build on top of log15 (logger.Info("msg", "k", v, ...)),
// but is implemented on go.uber.org/zap, which is already part of the
// teacher's dependency set. A handful of named module loggers are handed
// out through NewModuleLogger, matching the `var logger =
// log.NewModuleLogger(log.StorageDatabase)` pattern seen throughout the
// teacher's storage and consensus packages.
package log

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module names. Each package that wants its own logger declares a constant
// here, the same way klaytn enumerates log.StorageDatabase,
// log.ConsensusIstanbulBackend, and so on.
const (
	Common         = "common"
	TxEngine       = "txengine"
	Trie           = "trie"
	TxState        = "txstate"
	Chain          = "chain"
	ConsensusPoW   = "consensus/pow"
	ConsensusRaft  = "consensus/raft"
	Network        = "network"
	StorageDB      = "storage/database"
)

// Logger is the structured logging contract used across slimchain-go.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{}) // logs at error level then os.Exit(1)
	With(ctx ...interface{}) Logger
}

var root *zap.SugaredLogger

func init() {
	levelColors := map[zapcore.Level]*color.Color{
		zapcore.DebugLevel: color.New(color.FgCyan),
		zapcore.InfoLevel:  color.New(color.FgGreen),
		zapcore.WarnLevel:  color.New(color.FgYellow),
		zapcore.ErrorLevel: color.New(color.FgRed),
	}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "t",
		LevelKey:       "lvl",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    coloredLevelEncoder(levelColors),
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})
	writer := zapcore.AddSync(colorable.NewColorableStdout())
	core := zapcore.NewCore(enc, writer, zapcore.DebugLevel)
	root = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
}

func coloredLevelEncoder(colors map[zapcore.Level]*color.Color) zapcore.LevelEncoder {
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		c, ok := colors[level]
		if !ok {
			enc.AppendString(level.CapitalString())
			return
		}
		enc.AppendString(c.Sprint(level.CapitalString()))
	}
}

type logger struct {
	s *zap.SugaredLogger
}

// New builds a Logger carrying ctx (alternating key, value pairs) on every
// subsequent call, the same contract as klaytn's log.New("database", file).
func New(ctx ...interface{}) Logger {
	return &logger{s: root.With(ctx...)}
}

// NewModuleLogger returns a Logger tagged with module, for use as a
// package-level `var logger = log.NewModuleLogger(log.Trie)`.
func NewModuleLogger(module string) Logger {
	return &logger{s: root.With("module", module)}
}

func (l *logger) With(ctx ...interface{}) Logger { return &logger{s: l.s.With(ctx...)} }

func (l *logger) Trace(msg string, ctx ...interface{}) { l.s.Debugw(msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.s.Debugw(msg, ctx...) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.s.Infow(msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.s.Warnw(msg, ctx...) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.s.Errorw(msg, ctx...) }

// Crit logs msg at error level, appends the full call stack (the same
// eager stack capture log15 does for its Crit records, via go-stack/stack -
// a teacher dependency zap itself has no use for, since zap's own caller
// tracking only ever records the immediate frame) and exits the process.
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.s.Errorw(msg, ctx...)
	fmt.Fprintf(os.Stderr, "fatal error, exiting\n%+v\n", stack.Trace().TrimRuntime())
	os.Exit(1)
}
