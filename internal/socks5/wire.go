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
	"fmt"
	"io"

	"github.com/halcyonnet/vsocks/internal/socksaddr"
)

const version5 = 0x05

// readGreeting consumes the client's version-identifier/method-selection
// message ([0x05, N, m₁…mₙ]) and replies unconditionally with no-auth
// ([0x05, 0x00]), matching the original this is grounded on
// (crates/socks/src/socks5.rs's handle_auth, which always offers NoAuth
// without inspecting the client's method list — see DESIGN.md for why this
// module keeps that behavior rather than the RFC-strict alternative of
// replying 0xFF when no-auth wasn't offered).
func readGreeting(rw io.ReadWriter) error {
	var header [2]byte
	if _, err := io.ReadFull(rw, header[:]); err != nil {
		return fmt.Errorf("socks5: reading greeting: %w", err)
	}
	if header[0] != version5 {
		return fmt.Errorf("%w: version 0x%02x", socksaddr.ErrProtocol, header[0])
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(rw, methods); err != nil {
		return fmt.Errorf("socks5: reading methods: %w", err)
	}
	if _, err := rw.Write([]byte{version5, 0x00}); err != nil {
		return fmt.Errorf("socks5: writing method selection: %w", err)
	}
	return nil
}

// Request is a parsed SOCKS5 CONNECT/BIND/UDP_ASSOCIATE request.
type Request struct {
	Command Command
	Target  socksaddr.Spec
}

// readRequest consumes a SOCKS5 request ([0x05, CMD, 0x00, ATYP, ADDR,
// PORT_be]).
func readRequest(r io.Reader) (Request, error) {
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Request{}, fmt.Errorf("socks5: reading request header: %w", err)
	}
	if header[0] != version5 {
		return Request{}, fmt.Errorf("%w: version 0x%02x", socksaddr.ErrProtocol, header[0])
	}
	cmd, err := ParseCommand(header[1])
	if err != nil {
		return Request{}, err
	}
	// header[2] is the reserved byte; ignored like the original.
	target, err := socksaddr.Read(r)
	if err != nil {
		return Request{}, fmt.Errorf("socks5: reading request address: %w", err)
	}
	return Request{Command: cmd, Target: target}, nil
}

// writeReply sends a SOCKS5 reply ([0x05, REP, 0x00, ATYP', BND_ADDR,
// BND_PORT_be]). bind is the local address of the established outbound
// connection; when reply is not ReplySucceeded, bind may be the zero value,
// in which case an unspecified IPv4 address is reported, matching how
// servers commonly report a failed CONNECT (RFC 1928 doesn't mandate a
// specific value here).
func writeReply(w io.Writer, reply Reply, bind socksaddr.Spec) error {
	if bind.Family == 0 {
		bind = socksaddr.Spec{Family: socksaddr.IPv4, IP: make([]byte, 4), Port: 0}
	}
	buf := []byte{version5, byte(reply), 0x00}
	buf, err := socksaddr.Append(buf, bind)
	if err != nil {
		return fmt.Errorf("socks5: encoding reply address: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("socks5: writing reply: %w", err)
	}
	return nil
}
