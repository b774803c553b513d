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
	"bytes"
	"io/ioutil"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"

	"github.com/slimchain-go/slimchain/log"
)

var rpcLog = log.NewModuleLogger("network/rpc")

// Handler processes one decoded Envelope and returns the reply payload (or
// an error, mapped to a non-2xx status).
type Handler func(env *Envelope) ([]byte, error)

// Server is the RPC surface a client or storage shard exposes to the rest
// of the cluster: one route per Route constant, httprouter dispatching by
// exact path the same way the teacher's JSON-RPC HTTP server does
// (networks/rpc/http_test.go exercises the same router family).
type Server struct {
	router *httprouter.Router
}

func NewServer() *Server {
	return &Server{router: httprouter.New()}
}

// Handle registers handler for route, wrapping it with envelope
// decode/encode and error-to-status-code translation.
func (s *Server) Handle(route Route, handler Handler) {
	s.router.POST(string(route), func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		body, err := ioutil.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		env, err := DecodeEnvelope(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		reply, err := handler(env)
		if err != nil {
			rpcLog.Warn("rpc handler failed", "route", route, "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := w.Write(reply); err != nil {
			rpcLog.Warn("rpc reply write failed", "route", route, "err", err)
		}
	})
}

func (s *Server) ListenAndServe(addr string) error {
	rpcLog.Info("rpc server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Client issues requests against a peer's Server.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

func (c *Client) Call(route Route, env *Envelope) (*Envelope, error) {
	resp, err := c.http.Post(c.baseURL+string(route), "application/octet-stream", bytes.NewReader(env.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "network: rpc call")
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "network: rpc read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("network: rpc call to %s failed: %s", route, string(body))
	}
	return DecodeEnvelope(body)
}
