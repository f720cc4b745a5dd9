// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2024 The Falco Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package table

import (
	"testing"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
	"github.com/stretchr/testify/require"
)

func TestHostTableCRUD(t *testing.T) {
	tbl := New("procs", abi.StateTypeUint64)

	_, err := tbl.Field("comm", abi.StateTypeString)
	require.NoError(t, err)

	r, err := tbl.CreateRow(uint64(42))
	require.NoError(t, err)
	require.NoError(t, tbl.WriteField(r, "comm", "bash"))

	got, ok := tbl.GetRow(uint64(42))
	require.True(t, ok)
	v, err := tbl.ReadField(got, "comm")
	require.NoError(t, err)
	require.Equal(t, "bash", v)

	// Normalized keys: looking up with a plain int must find the same row.
	got2, ok := tbl.GetRow(42)
	require.True(t, ok)
	require.Equal(t, got, got2)
}

func TestHostTableFieldTypeConflict(t *testing.T) {
	tbl := New("procs", abi.StateTypeUint64)
	_, err := tbl.Field("comm", abi.StateTypeString)
	require.NoError(t, err)

	_, err = tbl.Field("comm", abi.StateTypeUint64)
	require.Error(t, err)
}

func TestHostTableFieldRejectsNestedTable(t *testing.T) {
	tbl := New("procs", abi.StateTypeUint64)
	_, err := tbl.Field("children", abi.StateTypeTable)
	require.Error(t, err)
	require.True(t, pluginerr.Is(err, pluginerr.Descriptor))
}

func TestHostTableEraseInvalidatesRow(t *testing.T) {
	tbl := New("procs", abi.StateTypeUint64)
	_, _ = tbl.Field("comm", abi.StateTypeString)
	r, err := tbl.CreateRow(uint64(1))
	require.NoError(t, err)

	require.NoError(t, tbl.EraseRow(uint64(1)))

	_, err = tbl.ReadField(r, "comm")
	require.Error(t, err)

	_, ok := tbl.GetRow(uint64(1))
	require.False(t, ok)
}

func TestHostTableClearInvalidatesAllRows(t *testing.T) {
	tbl := New("procs", abi.StateTypeUint64)
	_, _ = tbl.Field("comm", abi.StateTypeString)
	r1, _ := tbl.CreateRow(uint64(1))
	r2, _ := tbl.CreateRow(uint64(2))

	tbl.Clear()

	_, err := tbl.ReadField(r1, "comm")
	require.Error(t, err)
	_, err = tbl.ReadField(r2, "comm")
	require.Error(t, err)

	count := 0
	tbl.IterRows(func(abi.Row) bool { count++; return true })
	require.Equal(t, 0, count)
}

func TestHostTableIterRows(t *testing.T) {
	tbl := New("procs", abi.StateTypeString)
	_, _ = tbl.Field("n", abi.StateTypeUint64)
	_, _ = tbl.CreateRow("a")
	_, _ = tbl.CreateRow("b")
	_, _ = tbl.CreateRow("c")

	seen := map[interface{}]bool{}
	tbl.IterRows(func(r abi.Row) bool {
		seen[r.(*row).key] = true
		return true
	})
	require.Len(t, seen, 3)
}

func TestHostTableIterRowsEarlyStop(t *testing.T) {
	tbl := New("procs", abi.StateTypeString)
	_, _ = tbl.CreateRow("a")
	_, _ = tbl.CreateRow("b")

	count := 0
	tbl.IterRows(func(abi.Row) bool {
		count++
		return false
	})
	require.Equal(t, 1, count)
}
