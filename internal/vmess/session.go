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
	"crypto/rand"
	"fmt"
)

// Session holds the symmetric key material negotiated for one VMess
// connection: the request body key/IV sealed into the header (mirrored here
// so the stream can reference them) plus an independently drawn response
// body key/IV and the response verification byte, per spec §4.4's "Session
// construction". Body encryption itself is not performed under
// security=none, matching the source this spec is distilled from (spec §9);
// the fields are still generated and retained so a future implementation of
// full body framing has them available.
type Session struct {
	RequestBodyKey  [16]byte
	RequestBodyIV   [16]byte
	ResponseBodyKey [16]byte
	ResponseBodyIV  [16]byte
	V               byte
}

// NewSession draws a response body key/IV and packages them alongside the
// request header fields already generated for this connection.
func NewSession(h RequestHeader) (Session, error) {
	s := Session{
		RequestBodyKey: h.RequestBodyKey,
		RequestBodyIV:  h.RequestBodyIV,
		V:              h.V,
	}
	if _, err := rand.Read(s.ResponseBodyKey[:]); err != nil {
		return Session{}, fmt.Errorf("vmess: reading response body key: %w", err)
	}
	if _, err := rand.Read(s.ResponseBodyIV[:]); err != nil {
		return Session{}, fmt.Errorf("vmess: reading response body iv: %w", err)
	}
	return s, nil
}
