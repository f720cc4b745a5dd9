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

func TestAddTableNameUniqueness(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddHostTable("proc", abi.StateTypeUint64)
	require.NoError(t, err)

	_, err = r.AddHostTable("proc", abi.StateTypeUint64)
	require.Error(t, err)
	require.True(t, pluginerr.Is(err, pluginerr.Compatibility))
}

func TestGetTableKeyTypeMismatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddHostTable("proc", abi.StateTypeUint64)
	require.NoError(t, err)

	_, err = r.GetTable("proc", abi.StateTypeString)
	require.Error(t, err)
	require.True(t, pluginerr.Is(err, pluginerr.Compatibility))

	got, err := r.GetTable("proc", abi.StateTypeUint64)
	require.NoError(t, err)
	require.Equal(t, "proc", got.Info().Name)
}

func TestAddHostTableRejectsTableKeyedByTable(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddHostTable("nested", abi.StateTypeTable)
	require.Error(t, err)
	require.True(t, pluginerr.Is(err, pluginerr.Descriptor))
}

func TestAddPluginTableRejectsTableKeyedByTable(t *testing.T) {
	r := NewRegistry()
	view := r.ViewFor("pluginA")
	err := view.AddTable(abi.TableInfo{Name: "nested", KeyType: abi.StateTypeTable}, newFakeImpl())
	require.Error(t, err)
	require.True(t, pluginerr.Is(err, pluginerr.Descriptor))
}

func TestGetTableUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.GetTable("nope", abi.StateTypeUint64)
	require.Error(t, err)
}

func TestListTablesSortedByName(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddHostTable("zzz", abi.StateTypeString)
	require.NoError(t, err)
	_, err = r.AddHostTable("aaa", abi.StateTypeString)
	require.NoError(t, err)

	got := r.ListTables()
	require.Len(t, got, 2)
	require.Equal(t, "aaa", got[0].Name)
	require.Equal(t, "zzz", got[1].Name)
}

func TestCrossPluginTableExchange(t *testing.T) {
	r := NewRegistry()

	// Plugin "A" publishes a table through its owner-bound view.
	viewA := r.ViewFor("pluginA")
	impl := newFakeImpl()
	err := viewA.AddTable(abi.TableInfo{Name: "proc", KeyType: abi.StateTypeUint64}, impl)
	require.NoError(t, err)

	// Plugin "B" consumes it through its own owner-bound view, getting the
	// exact same field catalog as A published (spec §8 scenario 6).
	viewB := r.ViewFor("pluginB")
	got, err := viewB.GetTable("proc", abi.StateTypeUint64)
	require.NoError(t, err)

	_, err = got.Field("pid", abi.StateTypeUint64)
	require.NoError(t, err)
	require.Equal(t, impl.fields["pid"], got.Fields()[0])

	// Destroying A must revoke access.
	r.ReleaseOwned("pluginA")
	_, err = viewB.GetTable("proc", abi.StateTypeUint64)
	require.Error(t, err)
}

// fakeImpl is a minimal abi.TableImplementation used to exercise the bridge.
type fakeImpl struct {
	fields map[string]abi.FieldInfo
	rows   map[interface{}]map[string]interface{}
}

func newFakeImpl() *fakeImpl {
	return &fakeImpl{fields: map[string]abi.FieldInfo{}, rows: map[interface{}]map[string]interface{}{}}
}

func (f *fakeImpl) Fields() []abi.FieldInfo {
	out := make([]abi.FieldInfo, 0, len(f.fields))
	for _, v := range f.fields {
		out = append(out, v)
	}
	return out
}

func (f *fakeImpl) Field(name string, t abi.StateType) (abi.FieldInfo, error) {
	if fi, ok := f.fields[name]; ok {
		return fi, nil
	}
	fi := abi.FieldInfo{Name: name, Type: t}
	f.fields[name] = fi
	return fi, nil
}

func (f *fakeImpl) GetRow(key interface{}) (abi.Row, bool) {
	_, ok := f.rows[key]
	return key, ok
}

func (f *fakeImpl) IterRows(fn func(abi.Row) bool) {
	for k := range f.rows {
		if !fn(k) {
			return
		}
	}
}

func (f *fakeImpl) ReadField(r abi.Row, field string) (interface{}, error) {
	return f.rows[r.(interface{})][field], nil
}

func (f *fakeImpl) CreateRow(key interface{}) (abi.Row, error) {
	f.rows[key] = map[string]interface{}{}
	return key, nil
}

func (f *fakeImpl) EraseRow(key interface{}) error {
	delete(f.rows, key)
	return nil
}

func (f *fakeImpl) WriteField(r abi.Row, field string, value interface{}) error {
	f.rows[r.(interface{})][field] = value
	return nil
}

func (f *fakeImpl) Clear() {
	f.rows = map[interface{}]map[string]interface{}{}
}
