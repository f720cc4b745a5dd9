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

// Package abi defines the plugin capability surface as plain Go interfaces.
// It is the seam the spec's design notes call for ("C vtable across FFI ->
// explicit boundary module"): everything in this package is pure Go and has
// no opinion about whether the implementation behind it is a dlopen'd
// shared library (see package cabi) or an in-process fake built for tests
// (see package plugintest, bound through plugin.New).
package abi

// Capability is a single bit in the capability set a plugin declares
// through plugin_get_capabilities.
type Capability uint32

const (
	CapSourcing   Capability = 1 << 0
	CapExtraction Capability = 1 << 1
	CapParsing    Capability = 1 << 2
	// CapBroken is not a real capability: it is set by the loader when a
	// declared capability's supporting data (e.g. a malformed field JSON
	// document) is corrupted, mirroring the teacher's CAP_BROKEN bit
	// (pkg/loader/loader.go).
	CapBroken Capability = 1 << 31
)

// Set is a bitset of Capability values.
type Set uint32

func (s Set) Has(c Capability) bool { return s&Set(c) != 0 }

func (s Set) String() string {
	out := ""
	add := func(name string) {
		if out != "" {
			out += "|"
		}
		out += name
	}
	if s.Has(CapSourcing) {
		add("sourcing")
	}
	if s.Has(CapExtraction) {
		add("extraction")
	}
	if s.Has(CapParsing) {
		add("parsing")
	}
	if s.Has(CapBroken) {
		add("broken")
	}
	if out == "" {
		return "none"
	}
	return out
}

// FieldType enumerates the value types a field descriptor or an extracted
// value may carry. Names and ordering follow spec §3's enumerated set.
type FieldType int

const (
	FieldTypeString FieldType = iota
	FieldTypeUint64
	FieldTypeBool
	FieldTypeRelTime
	FieldTypeAbsTime
	FieldTypeIPv4Addr
	FieldTypeIPv4Net
	FieldTypeIPv6Addr
	FieldTypeIPv6Net
	FieldTypeIPNet
)

var fieldTypeNames = map[string]FieldType{
	"string":     FieldTypeString,
	"uint64":     FieldTypeUint64,
	"bool":       FieldTypeBool,
	"reltime":    FieldTypeRelTime,
	"abstime":    FieldTypeAbsTime,
	"ipv4addr":   FieldTypeIPv4Addr,
	"ipv4net":    FieldTypeIPv4Net,
	"ipv6addr":   FieldTypeIPv6Addr,
	"ipv6net":    FieldTypeIPv6Net,
	"ipnet":      FieldTypeIPNet,
}

// ParseFieldType maps the declared type string of a field JSON entry to a
// FieldType, reporting whether it is one of the enumerated types of spec §3.
func ParseFieldType(s string) (FieldType, bool) {
	t, ok := fieldTypeNames[s]
	return t, ok
}

func (t FieldType) String() string {
	for name, v := range fieldTypeNames {
		if v == t {
			return name
		}
	}
	return "unknown"
}

// RC is the plugin call result code, mirroring ss_plugin_rc.
type RC int32

const (
	RCSuccess   RC = 0
	RCFailure   RC = 1
	RCTimeout   RC = -1
	RCEOF       RC = 6
	RCNotFound  RC = 4
	RCNotSupported RC = 9
)

// Event is the host's read-only view of a single event flowing through the
// pipeline, used by the extraction and parsing adapters. It carries just
// enough information for source/type compatibility filtering (spec §4.5(a-d))
// plus the raw payload a plugin-side extractor/parser would read.
type Event struct {
	Num        uint64
	Timestamp  uint64
	SourceIdx  int32 // < 0 means "unset"
	SourceName string
	Type       uint32
	Data       []byte
}

// SourceUnset reports whether the event's source index has not been resolved.
func (e *Event) SourceUnset() bool { return e.SourceIdx < 0 }

// GenericSourceID is the reserved numeric source id carried by events
// produced by a sourcing plugin that declares no id of its own (spec §4.3),
// mirroring libsinsp's reserved "generic plugin events" source.
const GenericSourceID uint32 = 0xFFFFFFFF
