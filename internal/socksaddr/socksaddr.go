// Copyright 2023 Jigsaw Operations LLC
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

// Package socksaddr provides the SOCKS5 DST.ADDR/BND.ADDR wire representation
// shared by the ingress handler and the outbound encoders.
package socksaddr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Family identifies which of the three SOCKS5 address encodings a Spec carries.
// It is distinct from [vmess.Family]: the wire byte values differ between the
// two protocols and must never be conflated (spec.md §4.4 note).
type Family byte

const (
	IPv4   Family = 0x01
	Domain Family = 0x03
	IPv6   Family = 0x04
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case Domain:
		return "domain"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(0x%02x)", byte(f))
	}
}

// ParseFamily maps a wire ATYP byte to a [Family], failing closed on any value
// RFC 1928 doesn't define. Unknown bytes are a protocol error, never a panic
// (spec.md §9).
func ParseFamily(b byte) (Family, error) {
	switch Family(b) {
	case IPv4, Domain, IPv6:
		return Family(b), nil
	default:
		return 0, fmt.Errorf("%w: address type 0x%02x", ErrProtocol, b)
	}
}

// ErrProtocol tags malformed-wire-data errors so callers can distinguish them
// from connectivity or I/O failures per spec.md §7.
var ErrProtocol = errors.New("socks5 protocol error")

// Spec is a parsed SOCKS5 address: exactly one of IP or Name is set.
type Spec struct {
	Family Family
	IP     net.IP // set when Family is IPv4 or IPv6
	Name   []byte // set when Family is Domain; opaque bytes, not guaranteed UTF-8
	Port   uint16
}

// HostPort renders the address as a "host:port" string suitable for dialing.
func (s Spec) HostPort() string {
	host := s.Name != nil
	var h string
	if host {
		h = string(s.Name)
	} else {
		h = s.IP.String()
	}
	return net.JoinHostPort(h, strconv.Itoa(int(s.Port)))
}

// Read parses a SOCKS5 address (ATYP, ADDR, PORT) from r. A domain length
// byte of 0 is rejected, matching spec.md §4.2's edge-case rule. Truncated
// input, whether cut inside a field or between two fields, surfaces
// io.ErrUnexpectedEOF.
func Read(r io.Reader) (_ Spec, err error) {
	defer func() {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
	}()
	var atyp [1]byte
	if _, err := io.ReadFull(r, atyp[:]); err != nil {
		return Spec{}, err
	}
	family, err := ParseFamily(atyp[0])
	if err != nil {
		return Spec{}, err
	}

	var spec Spec
	spec.Family = family
	switch family {
	case IPv4:
		ip := make(net.IP, net.IPv4len)
		if _, err := io.ReadFull(r, ip); err != nil {
			return Spec{}, err
		}
		spec.IP = ip
	case IPv6:
		ip := make(net.IP, net.IPv6len)
		if _, err := io.ReadFull(r, ip); err != nil {
			return Spec{}, err
		}
		spec.IP = ip
	case Domain:
		var lenByte [1]byte
		if _, err := io.ReadFull(r, lenByte[:]); err != nil {
			return Spec{}, err
		}
		n := int(lenByte[0])
		if n == 0 {
			return Spec{}, fmt.Errorf("%w: zero-length domain name", ErrProtocol)
		}
		name := make([]byte, n)
		if _, err := io.ReadFull(r, name); err != nil {
			return Spec{}, err
		}
		spec.Name = name
	}

	var portBytes [2]byte
	if _, err := io.ReadFull(r, portBytes[:]); err != nil {
		return Spec{}, err
	}
	spec.Port = binary.BigEndian.Uint16(portBytes[:])
	return spec, nil
}

// Append encodes the address in SOCKS5 wire form onto b and returns the
// extended slice.
func Append(b []byte, spec Spec) ([]byte, error) {
	switch spec.Family {
	case IPv4:
		ip4 := spec.IP.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("%w: not an IPv4 address: %v", ErrProtocol, spec.IP)
		}
		b = append(b, byte(IPv4))
		b = append(b, ip4...)
	case IPv6:
		ip6 := spec.IP.To16()
		if ip6 == nil {
			return nil, fmt.Errorf("%w: not an IPv6 address: %v", ErrProtocol, spec.IP)
		}
		b = append(b, byte(IPv6))
		b = append(b, ip6...)
	case Domain:
		if len(spec.Name) == 0 || len(spec.Name) > 255 {
			return nil, fmt.Errorf("%w: domain length %d out of range", ErrProtocol, len(spec.Name))
		}
		b = append(b, byte(Domain))
		b = append(b, byte(len(spec.Name)))
		b = append(b, spec.Name...)
	default:
		return nil, fmt.Errorf("%w: unknown address family %v", ErrProtocol, spec.Family)
	}
	b = binary.BigEndian.AppendUint16(b, spec.Port)
	return b, nil
}

// FromNetAddr builds a Spec from a dialed connection's local address, used to
// populate BND.ADDR/BND.PORT in the SOCKS5 reply (spec.md §4.2).
func FromNetAddr(addr net.Addr) (Spec, error) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return Spec{}, fmt.Errorf("invalid bind address %q: %w", addr.String(), err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid bind port %q: %w", portStr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return Spec{}, fmt.Errorf("bind address %q is not an IP", host)
	}
	if ip4 := ip.To4(); ip4 != nil {
		return Spec{Family: IPv4, IP: ip4, Port: uint16(port)}, nil
	}
	return Spec{Family: IPv6, IP: ip.To16(), Port: uint16(port)}, nil
}
