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

const authIDKeyLabel = "AES Auth ID Encryption"

// buildAuthID packs (timestamp, random, crc32) into a 16-byte plaintext block
// and AES-128-ECB-encrypts it under a key derived from cmdKey, per spec §4.4.
// timestamp and random are parameters (rather than drawn internally) so tests
// can reproduce the literal §8 vector; production callers use newAuthID.
func buildAuthID(cmdKey [16]byte, timestamp uint64, random uint32) ([16]byte, error) {
	var plain [16]byte
	// timestamp occupies the first 8 bytes big-endian per the §8 vector
	// layout (timestamp_be, random, crc32_be); the vector's example value
	// 0x0000000064000000 shows the high 4 bytes are conventionally zero, but
	// the full 8-byte field is carried to match the field widths given.
	plain[0] = byte(timestamp >> 56)
	plain[1] = byte(timestamp >> 48)
	plain[2] = byte(timestamp >> 40)
	plain[3] = byte(timestamp >> 32)
	putUint32BE(plain[4:8], uint32(timestamp))
	putUint32BE(plain[8:12], random)
	checksum := crc32ISOHDLC(plain[:12])
	putUint32BE(plain[12:16], checksum)

	key := KDF(cmdKey[:], []byte(authIDKeyLabel))
	encrypted, err := aesECBEncryptBlock(key[:16], plain[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("vmess: encrypting AuthID: %w", err)
	}
	var out [16]byte
	copy(out[:], encrypted)
	return out, nil
}

// newAuthID draws a fresh timestamp and random value and builds an AuthID for
// a live request.
func newAuthID(cmdKey [16]byte) ([16]byte, error) {
	var randBuf [4]byte
	if _, err := rand.Read(randBuf[:]); err != nil {
		return [16]byte{}, fmt.Errorf("vmess: reading random bytes for AuthID: %w", err)
	}
	random := uint32(randBuf[0])<<24 | uint32(randBuf[1])<<16 | uint32(randBuf[2])<<8 | uint32(randBuf[3])
	return buildAuthID(cmdKey, uint64(nowUnix()), random)
}
