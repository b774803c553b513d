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

package txstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimchain-go/slimchain/common"
)

func TestAccountStateEncodeDecodeRoundTrip(t *testing.T) {
	a := AccountState{
		Nonce:       7,
		CodeHash:    common.Keccak256([]byte("code")),
		StorageRoot: common.Keccak256([]byte("storage-root")),
	}

	decoded, err := DecodeAccountState(a.Encode())
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}

func TestAccountStateToDigestDiffersOnAnyFieldChange(t *testing.T) {
	base := AccountState{Nonce: 1, CodeHash: common.Keccak256([]byte("a"))}
	changedNonce := base
	changedNonce.Nonce = 2
	changedCode := base
	changedCode.CodeHash = common.Keccak256([]byte("b"))

	assert.NotEqual(t, base.ToDigest(), changedNonce.ToDigest())
	assert.NotEqual(t, base.ToDigest(), changedCode.ToDigest())
}

func TestEmptyAccountStateDigestIsStable(t *testing.T) {
	assert.Equal(t, EmptyAccountState.ToDigest(), AccountState{}.ToDigest())
}
