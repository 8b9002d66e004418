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

package vmess

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyonnet/vsocks/internal/socksaddr"
	"github.com/halcyonnet/vsocks/transport"
)

func TestStream_FirstWritePrependsSealedHeader(t *testing.T) {
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	userID, err := ParseUserID("231c2fc0-f8c4-4248-b098-21f0dd78c810")
	require.NoError(t, err)
	target := socksaddr.Spec{Family: socksaddr.IPv4, IP: net.IPv4(1, 1, 1, 1), Port: 80}

	stream := NewStream(client, userID, target)

	payload := []byte("GET / HTTP/1.1\r\n\r\n")
	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := io.ReadAtLeast(server, buf, 1)
		received <- buf[:n]
	}()

	n, err := stream.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	got := <-received
	// The envelope precedes the payload and is strictly longer than the
	// minimal AuthID+SealedLen+Nonce+SealedHeader floor.
	require.Greater(t, len(got), len(payload))
	require.Equal(t, payload, got[len(got)-len(payload):])

	require.NotZero(t, stream.Session().RequestBodyKey)
}

func TestStream_SecondWriteDoesNotResendHeader(t *testing.T) {
	client, server := transport.NewPipeStreamConns()
	defer client.Close()
	defer server.Close()

	userID, err := ParseUserID("231c2fc0-f8c4-4248-b098-21f0dd78c810")
	require.NoError(t, err)
	target := socksaddr.Spec{Family: socksaddr.IPv4, IP: net.IPv4(1, 1, 1, 1), Port: 80}
	stream := NewStream(client, userID, target)

	go func() {
		_, _ = stream.Write([]byte("first"))
		_, _ = stream.Write([]byte("second"))
	}()

	buf := make([]byte, 4096)
	n1, err := io.ReadAtLeast(server, buf, 1)
	require.NoError(t, err)
	first := append([]byte{}, buf[:n1]...)

	n2, err := io.ReadAtLeast(server, buf, 1)
	require.NoError(t, err)
	require.Equal(t, "second", string(buf[:n2]))
	require.Greater(t, len(first), len("first"))
}
