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
	"context"
	"fmt"
	"sync"

	"github.com/halcyonnet/vsocks/internal/socksaddr"
	"github.com/halcyonnet/vsocks/transport"
)

// Stream is a [transport.StreamConn] that prepends the sealed VMess request
// prologue to the first write, then forwards subsequent writes unchanged.
// The read path is passed straight through: response decryption is out of
// scope (spec §9 Non-goal), so callers see the raw bytes returned by the
// upstream server.
type Stream struct {
	transport.StreamConn
	userID UserID
	target socksaddr.Spec

	once    sync.Once
	onceErr error
	session Session
}

var _ transport.StreamConn = (*Stream)(nil)

// NewStream wraps conn, an already-established connection to a VMess server,
// so that the first Write seals and sends the request header for target
// before any caller-supplied bytes.
func NewStream(conn transport.StreamConn, userID UserID, target socksaddr.Spec) *Stream {
	return &Stream{StreamConn: conn, userID: userID, target: target}
}

// Session returns the symmetric session fields negotiated for this stream.
// It is only valid after the first successful Write.
func (s *Stream) Session() Session {
	return s.session
}

func (s *Stream) sendHeader(payload []byte) error {
	envelope, h, err := BuildRequest(s.userID, s.target)
	if err != nil {
		return fmt.Errorf("vmess: building request header: %w", err)
	}
	session, err := NewSession(h)
	if err != nil {
		return fmt.Errorf("vmess: building session: %w", err)
	}
	if _, err := s.StreamConn.Write(append(envelope, payload...)); err != nil {
		return fmt.Errorf("vmess: writing request header: %w", err)
	}
	s.session = session
	return nil
}

// Write implements [io.Writer]. The first call seals the request header and
// sends it followed by b in a single write; later calls just forward b.
func (s *Stream) Write(b []byte) (int, error) {
	first := false
	s.once.Do(func() {
		first = true
		s.onceErr = s.sendHeader(b)
	})
	if s.onceErr != nil {
		return 0, s.onceErr
	}
	if first {
		return len(b), nil
	}
	return s.StreamConn.Write(b)
}

// Endpoint dials a VMess server and wraps the resulting connection in a
// [Stream] configured to request target once the first byte is written.
type Endpoint struct {
	// Base establishes the underlying TCP connection to the VMess server.
	Base   transport.StreamEndpoint
	UserID UserID
}

// Connect connects to the server through Base and returns a [*Stream] for
// target that has not yet sent the VMess request header. Its signature differs
// from [transport.StreamEndpoint]'s, so Endpoint does not implement that
// interface.
func (e *Endpoint) Connect(ctx context.Context, target socksaddr.Spec) (*Stream, error) {
	conn, err := e.Base.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("vmess: connecting to server: %w", err)
	}
	return NewStream(conn, e.UserID, target), nil
}
