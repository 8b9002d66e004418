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
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
)

// kdfLabel is the fixed outermost HMAC key of the VMess AEAD key-derivation
// chain. Every KDF call is ultimately keyed from this string.
const kdfLabel = "VMess AEAD KDF"

// seedUUID is the fixed seed appended to a user id when deriving cmd_key.
// Despite the name it is never parsed as a UUID; only its ASCII bytes are
// used.
const seedUUID = "c48619fe-8f02-49e0-b9e9-edf763e17e21"

// KDF implements the nested-HMAC-SHA-256 construction the VMess AEAD scheme
// actually uses: each path label wraps the *hash function itself*, not just
// a running sum. Starting from plain SHA-256, kdfLabel becomes the key of an
// HMAC whose hash function is SHA-256; each entry in path then becomes the
// key of a further HMAC whose hash function is the previous layer; finally
// key is written as the message of the outermost HMAC. This mirrors
// `HMAC(hashFn = HMAC_{label}(...), key = nextLabel, msg = ...)` recursion
// from the real v2ray/xray KDF, not a sequential hash-of-hash fold — the two
// are structurally different constructions and do not produce the same
// output. The result is always 32 bytes; callers truncate to 16 (AES-128
// keys) or 12 (GCM nonces) as needed.
func KDF(key []byte, path ...[]byte) [32]byte {
	newHash := func() hash.Hash { return sha256.New() }
	newHash = wrapHMAC(newHash, []byte(kdfLabel))
	for _, label := range path {
		newHash = wrapHMAC(newHash, label)
	}
	mac := newHash()
	mac.Write(key)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// wrapHMAC returns a hash.Hash factory producing an HMAC keyed by key whose
// underlying hash function is parent — i.e. hmac.New(parent, key). Chaining
// these factories is how the VMess KDF nests one HMAC inside another's hash
// function rather than inside its message.
func wrapHMAC(parent func() hash.Hash, key []byte) func() hash.Hash {
	return func() hash.Hash {
		return hmac.New(parent, key)
	}
}

// CmdKey derives the 16-byte symmetric key identifying a VMess user,
// cmd_key(U) = MD5(U_bytes ∥ ASCII(seedUUID)), per spec §4.4.
func CmdKey(userID [16]byte) [16]byte {
	h := md5.New()
	h.Write(userID[:])
	h.Write([]byte(seedUUID))
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// aesECBEncryptBlock encrypts a single 16-byte block with AES-128 in ECB
// mode; VMess uses exactly one block per call (the AuthID plaintext), so a
// general ECB mode implementation is unnecessary.
func aesECBEncryptBlock(key, plaintext []byte) ([]byte, error) {
	if len(plaintext) != aes.BlockSize {
		return nil, fmt.Errorf("vmess: ECB block must be %d bytes, got %d", aes.BlockSize, len(plaintext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vmess: building AES cipher: %w", err)
	}
	out := make([]byte, aes.BlockSize)
	block.Encrypt(out, plaintext)
	return out, nil
}

// sealAESGCM seals plaintext with AES-128-GCM under key/nonce, with aad as
// associated data. key must be 16 bytes and nonce 12 bytes (the standard GCM
// nonce size), matching the truncations specified for the VMess header AEAD.
func sealAESGCM(key, nonce, aad, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vmess: building AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vmess: building GCM: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("vmess: nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// fnv1a32 computes the 32-bit FNV-1a hash used as the VMess header checksum.
func fnv1a32(data []byte) uint32 {
	const (
		offsetBasis uint32 = 0x811c9dc5
		prime       uint32 = 0x01000193
	)
	h := offsetBasis
	for _, b := range data {
		h ^= uint32(b)
		h *= prime
	}
	return h
}

// crc32ISOHDLC computes the CRC-32 (ISO-HDLC polynomial) checksum used inside
// the AuthID plaintext. This is the same polynomial as Go's crc32.IEEETable,
// kept as a named helper so callers don't need to know that equivalence.
func crc32ISOHDLC(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func putUint32BE(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

func putUint16BE(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}
