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

package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/plugintest"
	"github.com/cappellinsamuele/sinsp-plugin-host/table"
)

func parsingVTable() *plugintest.VTable {
	vt := sourcingVTable()
	vt.CapsVal = abi.Set(abi.CapParsing)
	vt.SourcingVal = nil
	return vt
}

func TestParsingAdapterMutatesOwnerBoundTable(t *testing.T) {
	vt := parsingVTable()
	var seenTables abi.TableAccess
	vt.ParsingVal = &plugintest.Parsing{
		ParseEventFunc: func(evt *abi.Event, tables abi.TableAccess) error {
			seenTables = tables
			return tables.AddTable(abi.TableInfo{Name: "procs", KeyType: abi.StateTypeUint64}, newFakeTableImpl())
		},
	}

	reg := table.NewRegistry()
	p, err := New(vt, reg)
	require.NoError(t, err)
	require.NoError(t, p.Init(""))

	evt := &abi.Event{SourceIdx: 0, SourceName: "dummy", Type: 5}
	require.NoError(t, p.Parsing().ParseEvent(evt))
	require.NotNil(t, seenTables)

	_, err = reg.GetTable("procs", abi.StateTypeUint64)
	require.NoError(t, err)
}

func TestParsingAdapterSilentlyRejectsUnsetSource(t *testing.T) {
	vt := parsingVTable()
	called := false
	vt.ParsingVal = &plugintest.Parsing{
		ParseEventFunc: func(evt *abi.Event, tables abi.TableAccess) error {
			called = true
			return nil
		},
	}

	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, p.Init(""))

	evt := &abi.Event{SourceIdx: -1}
	require.NoError(t, p.Parsing().ParseEvent(evt))
	require.False(t, called)
}

func TestParsingAdapterSilentlyRejectsIncompatibleSource(t *testing.T) {
	vt := parsingVTable()
	called := false
	vt.ParsingVal = &plugintest.Parsing{
		ParseEventSourcesVal: `["only_this"]`,
		ParseEventFunc: func(evt *abi.Event, tables abi.TableAccess) error {
			called = true
			return nil
		},
	}

	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, p.Init(""))

	evt := &abi.Event{SourceIdx: 0, SourceName: "other"}
	require.NoError(t, p.Parsing().ParseEvent(evt))
	require.False(t, called)
}
