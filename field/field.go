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

// Package field parses a plugin's field JSON declaration (spec §4.5) into a
// typed, flagged catalog consumable by the host's filter engine. It
// generalizes the teacher's sdk.FieldEntry (sdk.go), which only exposed a
// single ArgRequired bool, into the full flag set of spec §3.
package field

import (
	"encoding/json"
	"fmt"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
)

// Flag is one bit of a field's flag set (spec §3).
type Flag uint32

const (
	FlagIsList Flag = 1 << iota
	FlagArgAllowed
	FlagArgRequired
	FlagArgIndex
	FlagArgKey
	FlagTableOnly
	FlagInfo
	FlagConversation
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// rawEntry mirrors the on-the-wire JSON shape of a single field declaration.
type rawEntry struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Desc       string   `json:"desc"`
	Display    string   `json:"display,omitempty"`
	IsList     bool     `json:"isList,omitempty"`
	Properties []string `json:"properties,omitempty"`
	Arg        *struct {
		IsRequired bool `json:"isRequired,omitempty"`
		IsIndex    bool `json:"isIndex,omitempty"`
		IsKey      bool `json:"isKey,omitempty"`
	} `json:"arg,omitempty"`
}

// Entry is one parsed, validated field descriptor.
type Entry struct {
	Name    string
	Display string
	Desc    string
	Type    abi.FieldType
	Flags   Flag
}

// Catalog is the full, ordered set of fields a plugin exports. Order is
// preserved from the source JSON array, since it determines FieldID (spec
// §4.4: "id, as of its index in the list of fields returned by
// plugin_get_fields").
type Catalog []Entry

// ByName looks up a field by name, also returning its index (== FieldID).
func (c Catalog) ByName(name string) (int, *Entry, bool) {
	for i := range c {
		if c[i].Name == name {
			return i, &c[i], true
		}
	}
	return -1, nil, false
}

// propertyFlags maps the recognized `properties` JSON strings (spec §4.5);
// unrecognized values are silently ignored, as the spec requires.
var propertyFlags = map[string]Flag{
	"hidden":       FlagTableOnly,
	"info":         FlagInfo,
	"conversation": FlagConversation,
}

// Parse parses a plugin's field JSON document into a validated Catalog.
// pluginName is used only to decorate error messages (spec §7: "every error
// carries a string message prefixed with the plugin name").
func Parse(pluginName, doc string) (Catalog, error) {
	var raws []rawEntry
	if err := json.Unmarshal([]byte(doc), &raws); err != nil {
		return nil, pluginerr.Wrap(pluginerr.Descriptor, pluginName, err, "get_fields does not return a well-formed JSON array")
	}

	cat := make(Catalog, 0, len(raws))
	for i, r := range raws {
		entry, err := fromRaw(pluginName, i, r)
		if err != nil {
			return nil, err
		}
		cat = append(cat, entry)
	}
	return cat, nil
}

func fromRaw(pluginName string, index int, r rawEntry) (Entry, error) {
	if r.Name == "" {
		return Entry{}, pluginerr.New(pluginerr.Descriptor, pluginName, "field at index %d has an empty name", index)
	}
	if r.Desc == "" {
		return Entry{}, pluginerr.New(pluginerr.Descriptor, pluginName, "field %q has an empty description", r.Name)
	}
	ftype, ok := abi.ParseFieldType(r.Type)
	if !ok {
		return Entry{}, pluginerr.New(pluginerr.Descriptor, pluginName, "field %q declares unknown type %q", r.Name, r.Type)
	}

	var flags Flag
	if r.IsList {
		flags |= FlagIsList
	}
	for _, p := range r.Properties {
		if bit, ok := propertyFlags[p]; ok {
			flags |= bit
		}
	}
	if r.Arg != nil {
		flags |= FlagArgAllowed
		if r.Arg.IsIndex {
			flags |= FlagArgIndex
		}
		if r.Arg.IsKey {
			flags |= FlagArgKey
		}
		if r.Arg.IsRequired {
			flags |= FlagArgRequired
		}
	}

	if err := validateFlags(pluginName, r.Name, flags); err != nil {
		return Entry{}, err
	}

	return Entry{
		Name:    r.Name,
		Display: r.Display,
		Desc:    r.Desc,
		Type:    ftype,
		Flags:   flags,
	}, nil
}

// validateFlags enforces the closure invariants of spec §3 / §8 property 3:
//
//	ARG_REQUIRED => ARG_INDEX or ARG_KEY
//	ARG_INDEX or ARG_KEY => ARG_ALLOWED
func validateFlags(pluginName, fieldName string, flags Flag) error {
	if flags.Has(FlagArgRequired) && !flags.Has(FlagArgIndex) && !flags.Has(FlagArgKey) {
		return pluginerr.New(pluginerr.Descriptor, pluginName,
			"field %q has arg.isRequired set but declares neither isIndex nor isKey", fieldName)
	}
	if (flags.Has(FlagArgIndex) || flags.Has(FlagArgKey)) && !flags.Has(FlagArgAllowed) {
		return pluginerr.New(pluginerr.Descriptor, pluginName,
			"field %q declares isIndex/isKey without being arg-allowed", fieldName)
	}
	return nil
}

// Canonical re-emits the catalog as the canonical JSON form used by the
// field JSON round-trip law (spec §8). Re-parsing this output must yield an
// equal Catalog.
func Canonical(cat Catalog) (string, error) {
	raws := make([]rawEntry, 0, len(cat))
	for _, e := range cat {
		r := rawEntry{
			Name:    e.Name,
			Type:    e.Type.String(),
			Desc:    e.Desc,
			Display: e.Display,
			IsList:  e.Flags.Has(FlagIsList),
		}
		for name, bit := range propertyFlags {
			if e.Flags.Has(bit) {
				r.Properties = append(r.Properties, name)
			}
		}
		if e.Flags.Has(FlagArgAllowed) {
			r.Arg = &struct {
				IsRequired bool `json:"isRequired,omitempty"`
				IsIndex    bool `json:"isIndex,omitempty"`
				IsKey      bool `json:"isKey,omitempty"`
			}{
				IsRequired: e.Flags.Has(FlagArgRequired),
				IsIndex:    e.Flags.Has(FlagArgIndex),
				IsKey:      e.Flags.Has(FlagArgKey),
			}
		}
		raws = append(raws, r)
	}
	b, err := json.Marshal(raws)
	if err != nil {
		return "", fmt.Errorf("field: cannot marshal canonical form: %w", err)
	}
	return string(b), nil
}
