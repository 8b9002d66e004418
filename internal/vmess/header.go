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

	"github.com/halcyonnet/vsocks/internal/socksaddr"
)

// requestCommandTCP is the only VMess request command this client ever
// emits; Mux/UDP commands are out of scope (spec §9 Non-goals).
const requestCommandTCP = 0x01

// securityNone is the VMess security byte's low nibble value meaning no body
// encryption, the only security level this client supports (spec §9 Open
// Question, resolved in favor of the simplest option — see DESIGN.md).
const securityNone = 0x05

// RequestHeader holds the fields used to build the plaintext VMess request
// header H, in the order spec §4.4 lists them.
type RequestHeader struct {
	RequestBodyIV  [16]byte
	RequestBodyKey [16]byte
	V              byte
	Target         socksaddr.Spec
}

// buildPlaintext assembles H: version, body IV/key, V, option, security byte
// (with random padding length), reserved byte, command, port, address
// family/bytes, padding, and a trailing FNV-1a32 checksum of everything
// before it.
func buildPlaintext(h RequestHeader) ([]byte, error) {
	family, err := FamilyFromSOCKS(h.Target.Family)
	if err != nil {
		return nil, err
	}

	var paddingLenByte [1]byte
	if _, err := rand.Read(paddingLenByte[:]); err != nil {
		return nil, fmt.Errorf("vmess: reading random padding length: %w", err)
	}
	paddingLen := int(paddingLenByte[0] % 16)
	padding := make([]byte, paddingLen)
	if paddingLen > 0 {
		if _, err := rand.Read(padding); err != nil {
			return nil, fmt.Errorf("vmess: reading random padding: %w", err)
		}
	}

	buf := make([]byte, 0, 41+len(h.Target.Name)+paddingLen+4)
	buf = append(buf, 0x01) // version
	buf = append(buf, h.RequestBodyIV[:]...)
	buf = append(buf, h.RequestBodyKey[:]...)
	buf = append(buf, h.V)
	buf = append(buf, 0x00) // option: none
	buf = append(buf, byte(paddingLen<<4)|securityNone)
	buf = append(buf, 0x00) // reserved
	buf = append(buf, requestCommandTCP)

	var portBytes [2]byte
	putUint16BE(portBytes[:], h.Target.Port)
	buf = append(buf, portBytes[:]...)

	buf = append(buf, byte(family))
	switch family {
	case FamilyIPv4:
		ip4 := h.Target.IP.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("vmess: target family is IPv4 but address is %v", h.Target.IP)
		}
		buf = append(buf, ip4...)
	case FamilyIPv6:
		ip6 := h.Target.IP.To16()
		if ip6 == nil {
			return nil, fmt.Errorf("vmess: target family is IPv6 but address is %v", h.Target.IP)
		}
		buf = append(buf, ip6...)
	case FamilyDomain:
		if len(h.Target.Name) == 0 || len(h.Target.Name) > 255 {
			return nil, fmt.Errorf("vmess: domain length %d out of range", len(h.Target.Name))
		}
		buf = append(buf, byte(len(h.Target.Name)))
		buf = append(buf, h.Target.Name...)
	}

	buf = append(buf, padding...)

	checksum := fnv1a32(buf)
	var checksumBytes [4]byte
	putUint32BE(checksumBytes[:], checksum)
	buf = append(buf, checksumBytes[:]...)
	return buf, nil
}

// sealRequest builds the AEAD-sealed envelope AuthID ∥ SealedLen ∥ Nonce ∥
// SealedHeader for plaintext header h, authenticated under cmdKey, following
// the two-stage (length, then header) AES-128-GCM construction of spec §4.4.
func sealRequest(cmdKey [16]byte, authID [16]byte, plaintext []byte) ([]byte, error) {
	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("vmess: reading header nonce: %w", err)
	}

	lengthKey := KDF(cmdKey[:], []byte("VMess Header AEAD Key_Length"), authID[:], nonce[:])
	lengthNonce := KDF(cmdKey[:], []byte("VMess Header AEAD Nonce_Length"), authID[:], nonce[:])
	var lengthPlain [2]byte
	putUint16BE(lengthPlain[:], uint16(len(plaintext)))
	sealedLength, err := sealAESGCM(lengthKey[:16], lengthNonce[:12], authID[:], lengthPlain[:])
	if err != nil {
		return nil, fmt.Errorf("vmess: sealing header length: %w", err)
	}

	headerKey := KDF(cmdKey[:], []byte("VMess Header AEAD Key"), authID[:], nonce[:])
	headerNonce := KDF(cmdKey[:], []byte("VMess Header AEAD Nonce"), authID[:], nonce[:])
	sealedHeader, err := sealAESGCM(headerKey[:16], headerNonce[:12], authID[:], plaintext)
	if err != nil {
		return nil, fmt.Errorf("vmess: sealing header: %w", err)
	}

	envelope := make([]byte, 0, 16+len(sealedLength)+8+len(sealedHeader))
	envelope = append(envelope, authID[:]...)
	envelope = append(envelope, sealedLength...)
	envelope = append(envelope, nonce[:]...)
	envelope = append(envelope, sealedHeader...)
	return envelope, nil
}

// BuildRequest assembles the complete VMess request prologue for a new
// connection to target, under the user identified by userID: plaintext
// header construction, AuthID generation, and AEAD sealing. It returns the
// wire-ready envelope plus the session fields the caller should retain
// (RequestBodyKey/IV and the response verification byte V).
func BuildRequest(userID UserID, target socksaddr.Spec) ([]byte, RequestHeader, error) {
	var h RequestHeader
	if _, err := rand.Read(h.RequestBodyIV[:]); err != nil {
		return nil, RequestHeader{}, fmt.Errorf("vmess: reading request body IV: %w", err)
	}
	if _, err := rand.Read(h.RequestBodyKey[:]); err != nil {
		return nil, RequestHeader{}, fmt.Errorf("vmess: reading request body key: %w", err)
	}
	var vByte [1]byte
	if _, err := rand.Read(vByte[:]); err != nil {
		return nil, RequestHeader{}, fmt.Errorf("vmess: reading V byte: %w", err)
	}
	h.V = vByte[0]
	h.Target = target

	plaintext, err := buildPlaintext(h)
	if err != nil {
		return nil, RequestHeader{}, err
	}

	cmdKey := userID.CmdKey()
	authID, err := newAuthID(cmdKey)
	if err != nil {
		return nil, RequestHeader{}, err
	}

	envelope, err := sealRequest(cmdKey, authID, plaintext)
	if err != nil {
		return nil, RequestHeader{}, err
	}
	return envelope, h, nil
}
