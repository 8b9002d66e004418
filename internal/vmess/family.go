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

// Package vmess implements the client side of the VMess request encoder: the
// AEAD key-derivation chain, the authentication identifier, the sealed
// request header, and the stream that prepends it to the first write.
package vmess

import (
	"fmt"

	"github.com/halcyonnet/vsocks/internal/socksaddr"
)

// Family is the VMess request header's address-family byte. These values are
// a different wire encoding from socksaddr.Family's SOCKS5 ATYP codes and
// must never be conflated (spec §4.4 note): VMess uses 1=IPv4, 2=Domain,
// 3=IPv6, while SOCKS5 uses 1=IPv4, 3=Domain, 4=IPv6.
type Family byte

const (
	FamilyIPv4   Family = 0x01
	FamilyDomain Family = 0x02
	FamilyIPv6   Family = 0x03
)

// FamilyFromSOCKS maps a parsed SOCKS5 address to the VMess family byte that
// describes the same kind of address.
func FamilyFromSOCKS(f socksaddr.Family) (Family, error) {
	switch f {
	case socksaddr.IPv4:
		return FamilyIPv4, nil
	case socksaddr.Domain:
		return FamilyDomain, nil
	case socksaddr.IPv6:
		return FamilyIPv6, nil
	default:
		return 0, fmt.Errorf("vmess: unknown socks5 address family %v", f)
	}
}
