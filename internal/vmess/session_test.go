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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSession_CarriesRequestFieldsAndDrawsResponseFields(t *testing.T) {
	h := RequestHeader{
		RequestBodyIV:  [16]byte{1, 2, 3},
		RequestBodyKey: [16]byte{4, 5, 6},
		V:              0x7A,
	}
	s, err := NewSession(h)
	require.NoError(t, err)
	require.Equal(t, h.RequestBodyIV, s.RequestBodyIV)
	require.Equal(t, h.RequestBodyKey, s.RequestBodyKey)
	require.Equal(t, h.V, s.V)
	require.NotZero(t, s.ResponseBodyKey)
	require.NotZero(t, s.ResponseBodyIV)
}

func TestNewSession_ResponseFieldsAreIndependentPerCall(t *testing.T) {
	h := RequestHeader{}
	s1, err := NewSession(h)
	require.NoError(t, err)
	s2, err := NewSession(h)
	require.NoError(t, err)
	require.NotEqual(t, s1.ResponseBodyKey, s2.ResponseBodyKey)
	require.NotEqual(t, s1.ResponseBodyIV, s2.ResponseBodyIV)
}
