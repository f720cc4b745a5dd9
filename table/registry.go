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
	"sort"
	"sync"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
)

type tableEntry struct {
	table abi.Table
	owner string // plugin name that published this table; "" for host-native
}

// Registry is the process-scoped map from table name to base_table handle
// described by spec §4.7. Per SPEC_FULL.md §5, it picks option (b): every
// operation is guarded by a mutex rather than assuming a single-dispatcher
// thread.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*tableEntry
}

// NewRegistry creates an empty table registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*tableEntry)}
}

// ListTables returns the name and key type of every registered table,
// sorted by name for deterministic output (SPEC_FULL.md §4.7).
func (r *Registry) ListTables() []abi.TableInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]abi.TableInfo, 0, len(r.tables))
	for _, e := range r.tables {
		out = append(out, e.table.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetTable returns the table registered under name, failing with a
// CompatibilityError if it does not exist or its key type differs from
// expectedKeyType (spec §4.7, §8 property 5).
func (r *Registry) GetTable(name string, expectedKeyType abi.StateType) (abi.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[name]
	if !ok {
		return nil, pluginerr.New(pluginerr.Compatibility, "", "table %q is not registered", name)
	}
	if e.table.Info().KeyType != expectedKeyType {
		return nil, pluginerr.New(pluginerr.Compatibility, "",
			"table %q has key type %s, requested %s", name, e.table.Info().KeyType, expectedKeyType)
	}
	return e.table, nil
}

// AddHostTable registers a new host-native, in-memory table. It is the
// entry point for host code (as opposed to a plugin) that wants to publish
// a table.
func (r *Registry) AddHostTable(name string, keyType abi.StateType) (abi.Table, error) {
	t := New(name, keyType)
	if err := r.addTable("", t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Registry) addTable(owner string, t abi.Table) error {
	info := t.Info()
	if info.KeyType == abi.StateTypeTable {
		return pluginerr.New(pluginerr.Descriptor, owner, "table %q: a table cannot be keyed by a nested table", info.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[info.Name]; exists {
		return pluginerr.New(pluginerr.Compatibility, owner, "table %q is already registered", info.Name)
	}
	r.tables[info.Name] = &tableEntry{table: t, owner: owner}
	return nil
}

// addPluginTable registers a plugin-owned table, bridging its vtable into
// an abi.Table (spec §4.7/§4.8). owner is the publishing plugin's name,
// used to tie the table's lifetime to the plugin descriptor (spec §3's
// Ownership note) via ReleaseOwned.
func (r *Registry) addPluginTable(owner string, info abi.TableInfo, impl abi.TableImplementation) error {
	return r.addTable(owner, Bridge(info, impl))
}

// ReleaseOwned drops every table published by owner, refusing further
// access to them (spec §4.8 Ownership: "the registry must refuse further
// access after that").
func (r *Registry) ReleaseOwned(owner string) {
	if owner == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.tables {
		if e.owner == owner {
			delete(r.tables, name)
		}
	}
}

// ViewFor returns an abi.TableAccess bound to owner: AddTable calls made
// through it are attributed to owner for lifecycle purposes, while
// ListTables/GetTable see the whole registry. This is the tables-access
// vtable handed to a plugin's Init/ParseEvent (spec §4.2, §4.6).
func (r *Registry) ViewFor(owner string) abi.TableAccess {
	return &ownerView{r: r, owner: owner}
}

type ownerView struct {
	r     *Registry
	owner string
}

func (v *ownerView) ListTables() []abi.TableInfo { return v.r.ListTables() }

func (v *ownerView) GetTable(name string, keyType abi.StateType) (abi.Table, error) {
	return v.r.GetTable(name, keyType)
}

func (v *ownerView) AddTable(info abi.TableInfo, impl abi.TableImplementation) error {
	return v.r.addPluginTable(v.owner, info, impl)
}
