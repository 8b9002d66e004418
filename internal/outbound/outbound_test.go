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

package outbound

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyonnet/vsocks/internal/socksaddr"
	"github.com/halcyonnet/vsocks/internal/vmess"
	"github.com/halcyonnet/vsocks/transport"
)

type recordingDialer struct {
	addrs []string
}

func (d *recordingDialer) Dial(ctx context.Context, addr string) (transport.StreamConn, error) {
	d.addrs = append(d.addrs, addr)
	a, _ := transport.NewPipeStreamConns()
	return a, nil
}

func TestFactory_DirectDialsTargetDirectly(t *testing.T) {
	dialer := &recordingDialer{}
	f := &Factory{Direct: dialer}

	target := socksaddr.Spec{Family: socksaddr.IPv4, IP: net.IPv4(1, 2, 3, 4), Port: 80}
	conn, err := f.Connect(context.Background(), target)
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, []string{"1.2.3.4:80"}, dialer.addrs)
}

func TestFactory_VMessDialsServerNotTarget(t *testing.T) {
	dialer := &recordingDialer{}
	userID, err := vmess.ParseUserID("231c2fc0-f8c4-4248-b098-21f0dd78c810")
	require.NoError(t, err)
	f := &Factory{
		Direct: dialer,
		VMess:  &ServerEndpoint{Address: "vmess.example.com:443", UserID: userID},
	}

	target := socksaddr.Spec{Family: socksaddr.IPv4, IP: net.IPv4(1, 2, 3, 4), Port: 80}
	conn, err := f.Connect(context.Background(), target)
	require.NoError(t, err)
	require.IsType(t, &vmess.Stream{}, conn)
	require.Equal(t, []string{"vmess.example.com:443"}, dialer.addrs)
}
