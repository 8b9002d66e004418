// Copyright 2024 Jigsaw Operations LLC
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

// Package outbound selects and establishes the egress transport for an
// accepted SOCKS5 CONNECT request: either a direct TCP connection to the
// requested address, or a VMess-encapsulated connection to a configured
// upstream server.
package outbound

import (
	"context"
	"fmt"

	"github.com/halcyonnet/vsocks/internal/socksaddr"
	"github.com/halcyonnet/vsocks/internal/vmess"
	"github.com/halcyonnet/vsocks/transport"
)

// ServerEndpoint identifies a VMess server this proxy forwards to.
type ServerEndpoint struct {
	Address string // host:port
	UserID  vmess.UserID
}

// Factory builds an [transport.StreamConn] to the target described by an
// accepted CONNECT request. When VMess is nil, every target is dialed
// directly; when set, every target is forwarded through that single VMess
// server, matching SPEC_FULL.md §7's single static outbound descriptor.
type Factory struct {
	// Direct dials a destination address directly. Required.
	Direct transport.StreamDialer
	// VMess, if set, routes every connection through this server instead of
	// dialing the target directly.
	VMess *ServerEndpoint
}

// Connect establishes the outbound connection for target, returning a
// [transport.StreamConn] ready for the relay to pump bytes through.
func (f *Factory) Connect(ctx context.Context, target socksaddr.Spec) (transport.StreamConn, error) {
	if f.VMess == nil {
		conn, err := f.Direct.Dial(ctx, target.HostPort())
		if err != nil {
			return nil, fmt.Errorf("outbound: direct dial to %s: %w", target.HostPort(), err)
		}
		return conn, nil
	}

	serverConn, err := f.Direct.Dial(ctx, f.VMess.Address)
	if err != nil {
		return nil, fmt.Errorf("outbound: dialing vmess server %s: %w", f.VMess.Address, err)
	}
	return vmess.NewStream(serverConn, f.VMess.UserID, target), nil
}
