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
	"context"
	"fmt"
	"log/slog"

	"github.com/halcyonnet/vsocks/internal/relay"
	"github.com/halcyonnet/vsocks/internal/socksaddr"
	"github.com/halcyonnet/vsocks/transport"
)

// Connector establishes the outbound connection for a CONNECT request's
// target. [outbound.Factory] satisfies this.
type Connector interface {
	Connect(ctx context.Context, target socksaddr.Spec) (transport.StreamConn, error)
}

// Handler drives one accepted connection through the SOCKS5 state machine:
// greeting, request, outbound connect, reply, relay.
type Handler struct {
	Connector Connector
}

// Serve runs the full state machine over conn until the connection closes or
// a protocol/IO error occurs. It always closes conn before returning.
func (h *Handler) Serve(ctx context.Context, conn transport.StreamConn) error {
	defer conn.Close()

	if err := readGreeting(conn); err != nil {
		return err
	}

	req, err := readRequest(conn)
	if err != nil {
		return err
	}

	if req.Command != CommandConnect {
		_ = writeReply(conn, ReplyCommandNotSupported, socksaddr.Spec{})
		return fmt.Errorf("socks5: unsupported command %s", req.Command)
	}

	outboundConn, dialErr := h.Connector.Connect(ctx, req.Target)
	if dialErr != nil {
		_ = writeReply(conn, ReplyFromDialError(dialErr), socksaddr.Spec{})
		return fmt.Errorf("socks5: connecting to %s: %w", req.Target.HostPort(), dialErr)
	}
	defer outboundConn.Close()

	bind, err := socksaddr.FromNetAddr(outboundConn.LocalAddr())
	if err != nil {
		bind = socksaddr.Spec{}
	}
	if err := writeReply(conn, ReplySucceeded, bind); err != nil {
		return err
	}

	slog.Debug("relaying connection", "target", req.Target.HostPort())
	aToB, bToA, err := relay.Bidirectional(conn, outboundConn)
	slog.Debug("relay finished", "target", req.Target.HostPort(), "client_to_target", aToB, "target_to_client", bToA)
	return err
}
