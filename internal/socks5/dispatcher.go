// Copyright 2019 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package socks5

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/halcyonnet/vsocks/internal/socksaddr"
	"github.com/halcyonnet/vsocks/transport"
)

// peekConn lets the dispatcher inspect the first byte of a connection
// without consuming it from whatever reads the handler does afterward.
type peekConn struct {
	transport.StreamConn
	br *bufio.Reader
}

func (c *peekConn) Read(b []byte) (int, error) { return c.br.Read(b) }

// Dispatch peeks the first byte of conn and routes it: 0x05 runs the SOCKS5
// [Handler], 0x04 is rejected explicitly (SOCKS4 is out of scope, spec.md
// Non-goals), a zero-byte peek is an unexpected EOF, and anything else is a
// protocol error. conn is always closed before Dispatch returns, whichever
// path is taken.
func Dispatch(ctx context.Context, conn transport.StreamConn, h *Handler) error {
	br := bufio.NewReader(conn)
	versionByte, err := br.Peek(1)
	if err != nil {
		conn.Close()
		if err == io.EOF {
			return fmt.Errorf("socks5: %w", io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("socks5: peeking version byte: %w", err)
	}

	switch versionByte[0] {
	case version5:
		return h.Serve(ctx, &peekConn{StreamConn: conn, br: br})
	case 0x04:
		conn.Close()
		return fmt.Errorf("%w: SOCKS4 is not supported", socksaddr.ErrProtocol)
	default:
		conn.Close()
		return fmt.Errorf("%w: unknown SOCKS version 0x%02x", socksaddr.ErrProtocol, versionByte[0])
	}
}
