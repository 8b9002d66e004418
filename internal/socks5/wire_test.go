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
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyonnet/vsocks/internal/socksaddr"
)

type rwPair struct {
	*bytes.Buffer
	out *bytes.Buffer
}

func (p *rwPair) Write(b []byte) (int, error) { return p.out.Write(b) }

func TestReadGreeting_RepliesNoAuthRegardlessOfOfferedMethods(t *testing.T) {
	in := bytes.NewBuffer([]byte{0x05, 0x02, 0x00, 0x02}) // offers no-auth and user/pass
	out := &bytes.Buffer{}
	err := readGreeting(&rwPair{Buffer: in, out: out})
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x00}, out.Bytes())
}

func TestReadGreeting_RejectsWrongVersion(t *testing.T) {
	in := bytes.NewBuffer([]byte{0x04, 0x00})
	out := &bytes.Buffer{}
	err := readGreeting(&rwPair{Buffer: in, out: out})
	require.ErrorIs(t, err, socksaddr.ErrProtocol)
}

func TestReadRequest_ParsesConnectIPv4(t *testing.T) {
	buf := []byte{0x05, 0x01, 0x00, 0x01, 1, 2, 3, 4, 0x01, 0xBB}
	req, err := readRequest(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, CommandConnect, req.Command)
	require.Equal(t, socksaddr.IPv4, req.Target.Family)
	require.Equal(t, net.IPv4(1, 2, 3, 4).To4(), req.Target.IP.To4())
	require.Equal(t, uint16(443), req.Target.Port)
}

func TestReadRequest_RejectsUnknownCommand(t *testing.T) {
	buf := []byte{0x05, 0xEE, 0x00, 0x01, 1, 2, 3, 4, 0x00, 0x50}
	_, err := readRequest(bytes.NewReader(buf))
	require.ErrorIs(t, err, socksaddr.ErrProtocol)
}

func TestWriteReply_EncodesSuccessWithBindAddress(t *testing.T) {
	var out bytes.Buffer
	bind := socksaddr.Spec{Family: socksaddr.IPv4, IP: net.IPv4(10, 0, 0, 1), Port: 1080}
	err := writeReply(&out, ReplySucceeded, bind)
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x00, 0x00, 0x01, 10, 0, 0, 1, 0x04, 0x38}, out.Bytes())
}

func TestWriteReply_ZeroBindOnFailure(t *testing.T) {
	var out bytes.Buffer
	err := writeReply(&out, ReplyHostUnreachable, socksaddr.Spec{})
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0x00, 0x00}, out.Bytes())
}
