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
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKDF_AuthIDVector(t *testing.T) {
	userID, err := ParseUserID("231c2fc0-f8c4-4248-b098-21f0dd78c810")
	require.NoError(t, err)

	cmdKey := userID.CmdKey()
	got := KDF(cmdKey[:], []byte("AES Auth ID Encryption"))

	want, err := hex.DecodeString(
		"820df6db317d2228" +
			"9143c45d0eb54636" +
			"cdf772442e05f4c3" +
			"a554e56e7b278d3a")
	require.NoError(t, err)
	require.Len(t, want, 32)
	require.Equal(t, want, got[:])
}

func TestFNV1a32(t *testing.T) {
	require.Equal(t, uint32(0x811c9dc5), fnv1a32(nil))
	require.Equal(t, uint32(0xe40c292c), fnv1a32([]byte{0x61}))
}

func TestAuthIDPlaintextLayout(t *testing.T) {
	userID, err := ParseUserID("231c2fc0-f8c4-4248-b098-21f0dd78c810")
	require.NoError(t, err)
	cmdKey := userID.CmdKey()

	// timestamp=0x0000000064000000, random=0xDEADBEEF per the §8 vector; the
	// plaintext before CRC is 00 00 00 00 64 00 00 00 DE AD BE EF.
	authID, err := buildAuthID(cmdKey, 0x0000000064000000, 0xDEADBEEF)
	require.NoError(t, err)
	require.Len(t, authID, 16)

	// Decrypting with the derived key recovers the packed plaintext: the 12
	// bytes above followed by their CRC-32, big-endian.
	key := KDF(cmdKey[:], []byte("AES Auth ID Encryption"))
	block, err := aes.NewCipher(key[:16])
	require.NoError(t, err)
	var plain [16]byte
	block.Decrypt(plain[:], authID[:])
	wantPrefix := []byte{0x00, 0x00, 0x00, 0x00, 0x64, 0x00, 0x00, 0x00, 0xDE, 0xAD, 0xBE, 0xEF}
	require.Equal(t, wantPrefix, plain[:12])
	require.Equal(t, crc32.ChecksumIEEE(wantPrefix), binary.BigEndian.Uint32(plain[12:]))

	// The same inputs are deterministic.
	again, err := buildAuthID(cmdKey, 0x0000000064000000, 0xDEADBEEF)
	require.NoError(t, err)
	require.Equal(t, authID, again)
}

func TestKDFIsDeterministic(t *testing.T) {
	key := []byte("some-key-material")
	a := KDF(key, []byte("path-a"), []byte("path-b"))
	b := KDF(key, []byte("path-a"), []byte("path-b"))
	require.Equal(t, a, b)
	require.Len(t, a, 32)

	c := KDF(key, []byte("path-a"), []byte("path-c"))
	require.NotEqual(t, a, c)
}

func TestCRC32ISOHDLC(t *testing.T) {
	require.Equal(t, uint32(0), crc32ISOHDLC(nil))
	require.NotEqual(t, uint32(0), crc32ISOHDLC([]byte("vmess")))
}
