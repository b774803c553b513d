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

// +build windows

package network

import (
	"net"

	npipe "gopkg.in/natefinch/npipe.v2"
)

// NewAdminListener opens the local management endpoint a node operator uses
// to inspect chain/consensus state out of band from the gossip/RPC ports.
// On Windows, TCP-less Unix sockets don't exist, so the teacher's go-ethereum
// lineage falls back to a named pipe; this mirrors that split exactly.
func NewAdminListener(endpoint string) (net.Listener, error) {
	return npipe.Listen(endpoint)
}
