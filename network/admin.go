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

package network

import (
	"net"

	"github.com/slimchain-go/slimchain/log"
)

var adminLog = log.NewModuleLogger("network/admin")

// ServeAdmin accepts connections on ln and, for each one, writes the single
// status line statusFn returns before closing it - a minimal out-of-band
// operator probe in the same spirit as the teacher's IPC admin endpoint,
// scaled down to what this spec actually needs: a one-shot status read
// rather than a full JSON-RPC surface.
func ServeAdmin(ln net.Listener, statusFn func() string) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			adminLog.Warn("admin listener closed", "err", err)
			return
		}
		go func() {
			defer conn.Close()
			conn.Write([]byte(statusFn() + "\n"))
		}()
	}
}
