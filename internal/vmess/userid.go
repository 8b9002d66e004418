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
	"fmt"

	"github.com/google/uuid"
)

// UserID is the 16-byte VMess user identifier, conventionally written as a
// UUID string in server configuration.
type UserID [16]byte

// ParseUserID parses a canonical UUID string (e.g.
// "231c2fc0-f8c4-4248-b098-21f0dd78c810") into a UserID.
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("vmess: invalid user id %q: %w", s, err)
	}
	return UserID(id), nil
}

// String renders the user id back as a canonical UUID string.
func (id UserID) String() string {
	return uuid.UUID(id).String()
}

// CmdKey derives this user's 16-byte symmetric command key.
func (id UserID) CmdKey() [16]byte {
	return CmdKey([16]byte(id))
}
