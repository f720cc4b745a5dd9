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

// Package table implements the table registry and the table vtable bridge
// of spec §4.7/§4.8: a process-scoped directory of named, typed, in-memory
// relations that host code and plugins can read and write through the same
// abstraction, regardless of who actually owns the backing storage.
package table

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
)

// normalizeKey canonicalizes a key value to the representation used
// internally as a Go map key, so that callers passing e.g. int or int64 for
// a StateTypeInt64 column land on the same map slot.
func normalizeKey(t abi.StateType, key interface{}) (interface{}, error) {
	switch t {
	case abi.StateTypeString:
		s, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("table: key %v is not a string", key)
		}
		return s, nil
	case abi.StateTypeInt8, abi.StateTypeInt16, abi.StateTypeInt32, abi.StateTypeInt64:
		v, err := toInt64(key)
		if err != nil {
			return nil, err
		}
		return v, nil
	case abi.StateTypeUint8, abi.StateTypeUint16, abi.StateTypeUint32, abi.StateTypeUint64:
		v, err := toUint64(key)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("table: type %s cannot be used as a key", t)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("table: key %v is not an integer", v)
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case int:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	default:
		return 0, fmt.Errorf("table: key %v is not an unsigned integer", v)
	}
}

// row is the concrete Row handle for a hostTable. Erasing or clearing the
// table flips live to false, so any previously obtained Row becomes
// unusable, mirroring SPEC_FULL.md's row-invalidation note.
type row struct {
	key    interface{}
	values map[string]interface{}
	live   bool
}

// hostTable is an in-memory Table. It backs both host-registered tables and
// the storage behind the fields/reader/writer sub-vtables that plugins see
// (spec §4.8's four sub-vtables collapse to these four groups of methods).
type hostTable struct {
	mu     sync.RWMutex
	info   abi.TableInfo
	fields map[string]abi.FieldInfo
	rows   map[interface{}]*row
}

// New creates a host-native table with the given name and key type.
func New(name string, keyType abi.StateType) abi.Table {
	return &hostTable{
		info:   abi.TableInfo{Name: name, KeyType: keyType},
		fields: make(map[string]abi.FieldInfo),
		rows:   make(map[interface{}]*row),
	}
}

func (t *hostTable) Info() abi.TableInfo { return t.info }

func (t *hostTable) Fields() []abi.FieldInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]abi.FieldInfo, 0, len(t.fields))
	for _, f := range t.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Field looks up a field by name, creating it with the given state type if
// it does not yet exist (spec §4.8's fields sub-vtable). A pre-existing
// field with a different type is a CompatibilityError.
func (t *hostTable) Field(name string, st abi.StateType) (abi.FieldInfo, error) {
	if st == abi.StateTypeTable {
		return abi.FieldInfo{}, pluginerr.New(pluginerr.Descriptor, "", "table %q: field %q cannot be a nested table", t.info.Name, name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.fields[name]; ok {
		if f.Type != st {
			return abi.FieldInfo{}, pluginerr.New(pluginerr.Compatibility, "", "table %q: field %q has type %s, requested %s", t.info.Name, name, f.Type, st)
		}
		return f, nil
	}
	f := abi.FieldInfo{Name: name, Type: st}
	t.fields[name] = f
	return f, nil
}

func (t *hostTable) GetRow(key interface{}) (abi.Row, bool) {
	k, err := normalizeKey(t.info.KeyType, key)
	if err != nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[k]
	if !ok || !r.live {
		return nil, false
	}
	return r, true
}

func (t *hostTable) IterRows(fn func(abi.Row) bool) {
	t.mu.RLock()
	snapshot := make([]*row, 0, len(t.rows))
	for _, r := range t.rows {
		snapshot = append(snapshot, r)
	}
	t.mu.RUnlock()
	for _, r := range snapshot {
		if !r.live {
			continue
		}
		if !fn(r) {
			return
		}
	}
}

func (t *hostTable) ReadField(r abi.Row, field string) (interface{}, error) {
	rr, ok := r.(*row)
	if !ok || !rr.live {
		return nil, fmt.Errorf("table %q: row handle is no longer valid", t.info.Name)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.fields[field]; !ok {
		return nil, fmt.Errorf("table %q: unknown field %q", t.info.Name, field)
	}
	return rr.values[field], nil
}

func (t *hostTable) CreateRow(key interface{}) (abi.Row, error) {
	k, err := normalizeKey(t.info.KeyType, key)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	r := &row{key: k, values: make(map[string]interface{}), live: true}
	t.rows[k] = r
	return r, nil
}

func (t *hostTable) EraseRow(key interface{}) error {
	k, err := normalizeKey(t.info.KeyType, key)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rows[k]; ok {
		r.live = false
		delete(t.rows, k)
	}
	return nil
}

func (t *hostTable) WriteField(r abi.Row, field string, value interface{}) error {
	rr, ok := r.(*row)
	if !ok || !rr.live {
		return fmt.Errorf("table %q: row handle is no longer valid", t.info.Name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.fields[field]; !ok {
		return fmt.Errorf("table %q: unknown field %q", t.info.Name, field)
	}
	rr.values[field] = value
	return nil
}

func (t *hostTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.rows {
		r.live = false
	}
	t.rows = make(map[interface{}]*row)
}

// bridgeTable wraps a plugin-supplied abi.TableImplementation into an
// abi.Table, so it is indistinguishable from a hostTable to any consumer
// (spec §4.8).
type bridgeTable struct {
	info abi.TableInfo
	impl abi.TableImplementation
}

// Bridge wraps a plugin-owned table implementation into an abi.Table.
func Bridge(info abi.TableInfo, impl abi.TableImplementation) abi.Table {
	return &bridgeTable{info: info, impl: impl}
}

func (b *bridgeTable) Info() abi.TableInfo                     { return b.info }
func (b *bridgeTable) Fields() []abi.FieldInfo                 { return b.impl.Fields() }
func (b *bridgeTable) Field(n string, t abi.StateType) (abi.FieldInfo, error) {
	return b.impl.Field(n, t)
}
func (b *bridgeTable) GetRow(key interface{}) (abi.Row, bool)  { return b.impl.GetRow(key) }
func (b *bridgeTable) IterRows(fn func(abi.Row) bool)          { b.impl.IterRows(fn) }
func (b *bridgeTable) ReadField(r abi.Row, f string) (interface{}, error) {
	return b.impl.ReadField(r, f)
}
func (b *bridgeTable) CreateRow(key interface{}) (abi.Row, error) { return b.impl.CreateRow(key) }
func (b *bridgeTable) EraseRow(key interface{}) error             { return b.impl.EraseRow(key) }
func (b *bridgeTable) WriteField(r abi.Row, f string, v interface{}) error {
	return b.impl.WriteField(r, f, v)
}
func (b *bridgeTable) Clear() { b.impl.Clear() }
