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

package socksaddr

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadAppend_RoundTripsIPv4(t *testing.T) {
	want := Spec{Family: IPv4, IP: net.IPv4(192, 168, 1, 1).To4(), Port: 8080}
	buf, err := Append(nil, want)
	require.NoError(t, err)

	got, err := Read(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, want.Family, got.Family)
	require.Equal(t, want.IP.To4(), got.IP.To4())
	require.Equal(t, want.Port, got.Port)
}

func TestReadAppend_RoundTripsIPv6(t *testing.T) {
	want := Spec{Family: IPv6, IP: net.ParseIP("2001:4860:4860::8888"), Port: 53}
	buf, err := Append(nil, want)
	require.NoError(t, err)

	got, err := Read(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, want.IP.To16(), got.IP.To16())
	require.Equal(t, want.Port, got.Port)
}

func TestReadAppend_RoundTripsDomain(t *testing.T) {
	want := Spec{Family: Domain, Name: []byte("example.com"), Port: 443}
	buf, err := Append(nil, want)
	require.NoError(t, err)

	got, err := Read(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Port, got.Port)
}

func TestRead_RejectsUnknownFamily(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{0xEE, 0x00, 0x00}))
	require.ErrorIs(t, err, ErrProtocol)
}

func TestRead_RejectsZeroLengthDomain(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{byte(Domain), 0x00, 0x00, 0x00}))
	require.ErrorIs(t, err, ErrProtocol)
}

func TestRead_TruncatedInputIsUnexpectedEOF(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{byte(IPv4), 1, 2}))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParseFamily(t *testing.T) {
	for _, b := range []byte{0x01, 0x03, 0x04} {
		_, err := ParseFamily(b)
		require.NoError(t, err)
	}
	_, err := ParseFamily(0x02)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestFromNetAddr(t *testing.T) {
	spec, err := FromNetAddr(&net.TCPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 1080})
	require.NoError(t, err)
	require.Equal(t, IPv4, spec.Family)
	require.Equal(t, uint16(1080), spec.Port)
}

func TestHostPort(t *testing.T) {
	s := Spec{Family: Domain, Name: []byte("example.com"), Port: 80}
	require.Equal(t, "example.com:80", s.HostPort())
}
