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

package common

import "github.com/pkg/errors"

// Kind classifies the error policies described in spec.md §7. Each
// subsystem raises its own Kind at the point of failure; there is no
// central dispatcher, matching how the teacher handles each error family at
// its own raise site.
type Kind int

const (
	KindInvalidTx Kind = iota
	KindMissingTrieNode
	KindDiffApplyMismatch
	KindConsensusInvalid
	KindHeightGap
	KindNetworkTimeout
	KindStorageFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidTx:
		return "InvalidTx"
	case KindMissingTrieNode:
		return "MissingTrieNode"
	case KindDiffApplyMismatch:
		return "DiffApplyMismatch"
	case KindConsensusInvalid:
		return "ConsensusInvalid"
	case KindHeightGap:
		return "HeightGap"
	case KindNetworkTimeout:
		return "NetworkTimeout"
	case KindStorageFailure:
		return "StorageFailure"
	default:
		return "Unknown"
	}
}

// KindedError pairs a classification with the underlying cause so callers
// can switch on Kind without string-matching error messages.
type KindedError struct {
	Kind  Kind
	cause error
}

func (e *KindedError) Error() string { return e.Kind.String() + ": " + e.cause.Error() }
func (e *KindedError) Cause() error  { return e.cause }
func (e *KindedError) Unwrap() error { return e.cause }

// WrapKind annotates cause with a Kind, matching the Rust source's
// `ensure!`/`bail!` idiom of tagging errors at the point they are raised.
func WrapKind(kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &KindedError{Kind: kind, cause: cause}
}

// Newf formats a new KindedError, the Go equivalent of the original's
// `bail!("...", args)`.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &KindedError{Kind: kind, cause: errors.Errorf(format, args...)}
}

// ErrKind reports the Kind of err if it (or something it wraps) is a
// KindedError, and false otherwise.
func ErrKind(err error) (Kind, bool) {
	var ke *KindedError
	for err != nil {
		if k, ok := err.(*KindedError); ok {
			ke = k
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ke == nil {
		return 0, false
	}
	return ke.Kind, true
}
