// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport implements the MCP wire transports: stdio subprocess,
// HTTP+SSE, and streamable HTTP.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// Transport moves opaque JSON-RPC messages between client and server. One
// message per Send/Receive; framing is the transport's concern.
type Transport interface {
	// Send delivers one message to the server.
	Send(ctx context.Context, message []byte) error

	// Receive blocks until the next server message arrives.
	Receive(ctx context.Context) ([]byte, error)

	// Close shuts the transport down and releases its resources.
	Close() error
}
