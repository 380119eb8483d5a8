// Tapdeck
// Copyright (c) 2026 The Tapdeck Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Tapdeck.
//
// Tapdeck is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tapdeck is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tapdeck.  If not, see <http://www.gnu.org/licenses/>.

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCID_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   string
		isNull bool
	}{
		{name: "string", input: `"abc-1"`, want: `"abc-1"`},
		{name: "number", input: `12345`, want: `12345`},
		{name: "null", input: `null`, want: `null`, isNull: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var id RPCID
			require.NoError(t, json.Unmarshal([]byte(tt.input), &id))
			assert.Equal(t, tt.want, id.String())
			assert.Equal(t, tt.isNull, id.IsNull())
			assert.False(t, id.IsAbsent())
		})
	}
}

func TestRPCID_RejectsStructured(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`{"a":1}`, `[1,2]`, ` [1]`} {
		var id RPCID
		require.ErrorIs(t, id.UnmarshalJSON([]byte(input)), ErrInvalidRPCID, input)
	}
}

func TestRPCID_InRequest(t *testing.T) {
	t.Parallel()

	var req RequestObject
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"version"}`), &req))
	assert.True(t, req.ID.IsAbsent())

	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":7,"method":"version"}`), &req))
	require.NotNil(t, req.ID)

	out, err := json.Marshal(ResponseObject{JSONRPC: "2.0", ID: *req.ID, Result: "ok"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":"ok"}`, string(out))
}

func TestRPCID_MarshalEmpty(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(RPCID{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
	strID := NewStringID("x")
	assert.Equal(t, `"x"`, strID.String())
	assert.Equal(t, "null", (*RPCID)(nil).String())
}
