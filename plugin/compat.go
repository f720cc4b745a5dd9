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
	"encoding/json"

	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
)

// SyscallSource is the name of the host's built-in syscall event source,
// the one special-cased by the event-source compatibility set defaulting
// rule of spec §3.
const SyscallSource = "syscall"

// PluginEventType is the single event type code reserved for events
// produced by a sourcing plugin with no declared numeric id, used as the
// default event-type-code compatibility set (spec §3).
const PluginEventType uint32 = 322

// CompatSet is a plugin's advertised event-source/event-type compatibility
// declaration, used by the extraction and parsing adapters (spec §3,
// §4.5(a-d), §4.6).
type CompatSet struct {
	// Sources is the set of compatible event source names. An empty set
	// means "all sources".
	Sources map[string]bool
	// Codes is the set of compatible event type codes. After
	// resolveCompatSet has run it is either nil (the "all syscall events"
	// default, no code restriction) or a non-empty set.
	Codes map[uint32]bool
}

// SourceCompatible reports whether sourceName is in the compatibility set
// (an empty Sources set means "all sources").
func (c CompatSet) SourceCompatible(sourceName string) bool {
	if len(c.Sources) == 0 {
		return true
	}
	return c.Sources[sourceName]
}

// TypeCompatible reports whether typeCode is in the compatibility set. A
// nil Codes set (the "all syscall events" default) is compatible with any
// type code.
func (c CompatSet) TypeCompatible(typeCode uint32) bool {
	if c.Codes == nil {
		return true
	}
	return c.Codes[typeCode]
}

// resolveCompatSet parses the optional JSON arrays returned by a plugin's
// get_{extract,parse}_event_sources/types symbols and applies the
// defaulting rule of spec §3: if no codes are declared and the source set
// is compatible with the built-in syscall source, default to "all syscall
// events" (approximated here as "no code restriction" since this module
// does not model the syscall event-type enum); otherwise default to the
// single reserved plugin event code.
func resolveCompatSet(pluginName, sourcesJSON, typesJSON string) (CompatSet, error) {
	var sources []string
	if sourcesJSON != "" {
		if err := json.Unmarshal([]byte(sourcesJSON), &sources); err != nil {
			return CompatSet{}, pluginerr.Wrap(pluginerr.Descriptor, pluginName, err, "event sources declaration is not a well-formed JSON array")
		}
	}
	sourceSet := make(map[string]bool, len(sources))
	for _, s := range sources {
		sourceSet[s] = true
	}

	var codes []uint32
	if typesJSON != "" {
		if err := json.Unmarshal([]byte(typesJSON), &codes); err != nil {
			return CompatSet{}, pluginerr.Wrap(pluginerr.Descriptor, pluginName, err, "event types declaration is not a well-formed JSON array")
		}
	}

	codeSet := make(map[uint32]bool, len(codes))
	for _, c := range codes {
		codeSet[c] = true
	}

	if len(codeSet) == 0 {
		compatibleWithSyscalls := len(sourceSet) == 0 || sourceSet[SyscallSource]
		if compatibleWithSyscalls {
			// "all syscall events": no code restriction is applied, the
			// source-name check alone gates compatibility.
			codeSet = nil
		} else {
			codeSet = map[uint32]bool{PluginEventType: true}
		}
	}

	return CompatSet{Sources: sourceSet, Codes: codeSet}, nil
}
