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

// Package relay copies bytes bidirectionally between two stream connections,
// shutting down each direction independently as its reader reaches EOF.
package relay

import (
	"errors"
	"io"

	"github.com/halcyonnet/vsocks/transport"
)

// bufferSize is the per-direction scratch buffer size.
const bufferSize = 16 * 1024

// ErrWriteZero is returned when a write to a direction's destination
// reports zero bytes written without an error, mirroring the write-zero
// failure mode of the bidirectional copy this package is grounded on.
var ErrWriteZero = errors.New("relay: write zero bytes")

// copyDirection reads from r until EOF, writing everything to w, then calls
// w.CloseWrite to propagate the shutdown downstream. It returns the number of
// bytes copied.
func copyDirection(w, r transport.StreamConn) (int64, error) {
	buf := make([]byte, bufferSize)
	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
			if written == 0 {
				return total, ErrWriteZero
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return total, rerr
		}
	}
	if err := w.CloseWrite(); err != nil {
		return total, err
	}
	return total, nil
}

// result carries one direction's outcome back from its goroutine.
type result struct {
	bytes int64
	err   error
}

// Bidirectional copies data between a and b in both directions concurrently.
// Each direction stops independently once its reader hits EOF, shutting down
// the write side of its destination. If both directions finish cleanly, it
// waits for both and returns (aToB, bToA) byte counts with a nil error. If
// either direction reports an error first, Bidirectional returns immediately
// with that error and does not wait for the other direction to finish — the
// still-running direction's byte count is not included in the return values
// in that case. The result channels are buffered so the lingering goroutine
// never blocks trying to report its outcome; it exits once its caller closes
// both connections, which is the caller's responsibility on any return from
// Bidirectional.
func Bidirectional(a, b transport.StreamConn) (aToB int64, bToA int64, err error) {
	aToBCh := make(chan result, 1)
	bToACh := make(chan result, 1)

	go func() {
		n, err := copyDirection(b, a)
		aToBCh <- result{n, err}
	}()
	go func() {
		n, err := copyDirection(a, b)
		bToACh <- result{n, err}
	}()

	var aToBDone, bToADone bool
	for !aToBDone || !bToADone {
		select {
		case r := <-aToBCh:
			aToB, aToBDone = r.bytes, true
			if r.err != nil {
				return aToB, bToA, r.err
			}
		case r := <-bToACh:
			bToA, bToADone = r.bytes, true
			if r.err != nil {
				return aToB, bToA, r.err
			}
		}
	}
	return aToB, bToA, nil
}
