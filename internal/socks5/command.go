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

	"github.com/halcyonnet/vsocks/internal/socksaddr"
)

// Command is a SOCKS5 request CMD field value.
type Command byte

const (
	CommandConnect      Command = 0x01
	CommandBind         Command = 0x02
	CommandUDPAssociate Command = 0x03
)

func (c Command) String() string {
	switch c {
	case CommandConnect:
		return "CONNECT"
	case CommandBind:
		return "BIND"
	case CommandUDPAssociate:
		return "UDP_ASSOCIATE"
	default:
		return fmt.Sprintf("command(0x%02x)", byte(c))
	}
}

// ParseCommand maps a wire CMD byte to a [Command], failing closed on values
// RFC 1928 doesn't define. The original this is grounded on
// (crates/socks/src/socks5.rs, `impl From<u8> for Command`) panics on an
// invalid byte; per the fail-closed rule this never panics, returning a
// protocol error instead.
func ParseCommand(b byte) (Command, error) {
	switch Command(b) {
	case CommandConnect, CommandBind, CommandUDPAssociate:
		return Command(b), nil
	default:
		return 0, fmt.Errorf("%w: command 0x%02x", socksaddr.ErrProtocol, b)
	}
}
