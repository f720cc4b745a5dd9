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
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
	"github.com/cappellinsamuele/sinsp-plugin-host/plugintest"
	"github.com/cappellinsamuele/sinsp-plugin-host/table"
)

func sourcingVTable() *plugintest.VTable {
	return &plugintest.VTable{
		RequiredAPIVersionVal: "3.2.0",
		VersionVal:            "1.0.0",
		NameVal:                "dummy",
		DescriptionVal:        "a dummy sourcing plugin",
		ContactVal:            "nobody@example.com",
		CapsVal:               abi.Set(abi.CapSourcing),
		SourcingVal:           &plugintest.Sourcing{IDVal: 999, EventSourceVal: "dummy"},
	}
}

func TestNewReadsStaticInfo(t *testing.T) {
	vt := sourcingVTable()
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.Equal(t, "dummy", p.Name())
	require.Equal(t, "1.0.0", p.Version())
	require.True(t, p.Capabilities().Has(abi.CapSourcing))
	require.False(t, p.HasCapBroken())
	require.Equal(t, StateLoaded, p.State())
}

func TestValidateRejectsUnsupportedAPIVersion(t *testing.T) {
	vt := sourcingVTable()
	vt.RequiredAPIVersionVal = "99.0.0"
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	err = p.Validate()
	require.Error(t, err)
	require.True(t, pluginerr.Is(err, pluginerr.Load))
}

func TestValidateRejectsNoCapability(t *testing.T) {
	vt := sourcingVTable()
	vt.CapsVal = 0
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.Error(t, p.Validate())
}

func TestNewValidDestroysOnInvalidPlugin(t *testing.T) {
	vt := sourcingVTable()
	vt.RequiredAPIVersionVal = "0.1.0"
	_, err := NewValid(vt, table.NewRegistry())
	require.Error(t, err)
	require.True(t, vt.Destroyed)
}

func TestMalformedFieldJSONBreaksExtractionCapability(t *testing.T) {
	vt := sourcingVTable()
	vt.CapsVal = abi.Set(abi.CapSourcing | abi.CapExtraction)
	vt.ExtractionVal = &plugintest.Extraction{FieldsJSONVal: "not-json"}

	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.True(t, p.HasCapBroken())
	require.False(t, p.Capabilities().Has(abi.CapExtraction))
	require.Error(t, p.CapBrokenError())
}

func TestInitLifecycle(t *testing.T) {
	vt := sourcingVTable()
	initCalled := false
	vt.InitFunc = func(config string, tables abi.TableAccess) error {
		initCalled = true
		require.Equal(t, `{"x":1}`, config)
		require.Nil(t, tables)
		return nil
	}

	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, p.Init(`{"x":1}`))
	require.True(t, initCalled)
	require.Equal(t, StateInitialized, p.State())
	require.NotNil(t, p.Sourcing())
	require.Nil(t, p.Extraction())

	require.Error(t, p.Init(`{}`))
}

func TestInitValidatesAgainstSchema(t *testing.T) {
	vt := sourcingVTable()
	vt.HasInitSchemaVal = true
	vt.InitSchemaVal = `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`

	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	err = p.Init(`{}`)
	require.Error(t, err)
	require.True(t, pluginerr.Is(err, pluginerr.Schema))
}

func TestInitFailureCapturesLastErrorThenDestroys(t *testing.T) {
	vt := sourcingVTable()
	vt.LastErrorVal = "boom"
	vt.InitFunc = func(string, abi.TableAccess) error { return errTest }

	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	err = p.Init("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	require.True(t, vt.Destroyed)
}

func TestDestroyIsIdempotentAndReleasesOwnedTables(t *testing.T) {
	vt := sourcingVTable()
	vt.CapsVal = abi.Set(abi.CapSourcing | abi.CapExtraction)
	vt.ExtractionVal = &plugintest.Extraction{FieldsJSONVal: `[]`}

	reg := table.NewRegistry()
	p, err := New(vt, reg)
	require.NoError(t, err)
	require.NoError(t, p.Init(""))

	view := reg.ViewFor(p.Name())
	require.NoError(t, view.AddTable(abi.TableInfo{Name: "t", KeyType: abi.StateTypeUint64}, newFakeTableImpl()))

	p.Destroy()
	require.Equal(t, StateDestroyed, p.State())
	require.Nil(t, p.Sourcing())
	_, err = reg.GetTable("t", abi.StateTypeUint64)
	require.Error(t, err)

	p.Destroy() // idempotent
}

func TestBreakCapabilityLogsWarning(t *testing.T) {
	vt := sourcingVTable()
	vt.CapsVal = abi.Set(abi.CapSourcing | abi.CapExtraction)
	vt.ExtractionVal = &plugintest.Extraction{FieldsJSONVal: "not-json"}

	core, logs := observer.New(zap.WarnLevel)
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	p.SetLogger(zap.New(core))
	p.breakCapability(abi.CapExtraction, errTest)

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "capability broken", logs.All()[0].Message)
}

func TestLoggerDefaultsToNopWithoutSetLogger(t *testing.T) {
	vt := sourcingVTable()
	p, err := New(vt, table.NewRegistry())
	require.NoError(t, err)
	require.NotPanics(t, func() { p.logger().Info("no panic without SetLogger") })
}

type errString string

func (e errString) Error() string { return string(e) }

var errTest = errString("init failed")

type fakeTableImpl struct{}

func newFakeTableImpl() *fakeTableImpl { return &fakeTableImpl{} }

func (f *fakeTableImpl) Fields() []abi.FieldInfo                          { return nil }
func (f *fakeTableImpl) Field(name string, t abi.StateType) (abi.FieldInfo, error) {
	return abi.FieldInfo{Name: name, Type: t}, nil
}
func (f *fakeTableImpl) GetRow(key interface{}) (abi.Row, bool)  { return nil, false }
func (f *fakeTableImpl) IterRows(fn func(abi.Row) bool)          {}
func (f *fakeTableImpl) ReadField(r abi.Row, field string) (interface{}, error) {
	return nil, nil
}
func (f *fakeTableImpl) CreateRow(key interface{}) (abi.Row, error) { return key, nil }
func (f *fakeTableImpl) EraseRow(key interface{}) error             { return nil }
func (f *fakeTableImpl) WriteField(r abi.Row, field string, value interface{}) error {
	return nil
}
func (f *fakeTableImpl) Clear() {}
