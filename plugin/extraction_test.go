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

func extractionVTable() *plugintest.VTable {
	vt := sourcingVTable()
	vt.CapsVal = abi.Set(abi.CapExtraction)
	vt.SourcingVal = nil
	vt.ExtractionVal = &plugintest.Extraction{
		FieldsJSONVal: `[{"name":"dummy.field","type":"string","desc":"a field"}]`,
		ExtractFieldsFunc: func(evt *abi.Event, reqs []*abi.ExtractRequest) error {
			for _, r := range reqs {
				if r.Field == "dummy.field" {
					r.Result = "value"
				}
			}
			return nil
		},
	}
	return vt
}

func TestExtractionAdapterExtractsCompatibleEvent(t *testing.T) {
	vt := extractionVTable()
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, p.Init(""))

	req := &abi.ExtractRequest{Field: "dummy.field"}
	evt := &abi.Event{SourceIdx: 0, SourceName: "dummy", Type: 5}
	require.NoError(t, p.Extraction().ExtractFields(evt, []*abi.ExtractRequest{req}))
	require.Equal(t, "value", req.Result)
}

func TestExtractionAdapterSilentlyRejectsUnsetSource(t *testing.T) {
	vt := extractionVTable()
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, p.Init(""))

	req := &abi.ExtractRequest{Field: "dummy.field"}
	evt := &abi.Event{SourceIdx: -1, SourceName: "", Type: 0}
	require.NoError(t, p.Extraction().ExtractFields(evt, []*abi.ExtractRequest{req}))
	require.Nil(t, req.Result)
}

func TestExtractionAdapterSilentlyRejectsIncompatibleSource(t *testing.T) {
	vt := extractionVTable()
	vt.ExtractionVal.(*plugintest.Extraction).ExtractEventSourcesVal = `["only_this_source"]`
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, p.Init(""))

	req := &abi.ExtractRequest{Field: "dummy.field"}
	evt := &abi.Event{SourceIdx: 0, SourceName: "other_source", Type: 5}
	require.NoError(t, p.Extraction().ExtractFields(evt, []*abi.ExtractRequest{req}))
	require.Nil(t, req.Result)
}

func TestExtractionAdapterFields(t *testing.T) {
	vt := extractionVTable()
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, p.Init(""))

	cat := p.Extraction().Fields()
	require.Len(t, cat, 1)
	require.Equal(t, "dummy.field", cat[0].Name)
}
