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

package abi

// VTable is the full capability surface bound by the loader, either from a
// dlopen'd shared library (package cabi) or from an in-process fake used in
// tests. It groups the required symbols plus the three optional
// per-capability sub-vtables, which are nil when the corresponding
// Capability bit is not set.
type VTable interface {
	RequiredAPIVersion() string
	Version() string
	Name() string
	Description() string
	Contact() string

	// LastError returns the plugin-authored human-readable error message
	// for the most recent failing call, or "" if none is available.
	LastError() string

	Capabilities() Set

	// InitSchema returns the plugin's optional JSON Schema for its init
	// config, and whether one was provided at all.
	InitSchema() (schema string, ok bool)

	// Init initializes the plugin's internal state with the given config
	// string, already validated against InitSchema by the caller, and the
	// tables-access vtable (nil unless the plugin declares CapExtraction or
	// CapParsing). A non-nil error means initialization failed; the caller
	// is expected to call LastError() for diagnostic text and then
	// Destroy() regardless, mirroring the contract of spec §4.2 / §9's
	// resolved Open Question.
	Init(config string, tables TableAccess) error

	// Destroy releases the plugin's internal state. Must be idempotent.
	Destroy()

	// Sourcing returns the sourcing sub-vtable, or nil if CapSourcing is
	// not set.
	Sourcing() Sourcing
	// Extraction returns the extraction sub-vtable, or nil if
	// CapExtraction is not set.
	Extraction() Extraction
	// Parsing returns the parsing sub-vtable, or nil if CapParsing is not
	// set.
	Parsing() Parsing
}

// OpenParam is a single suggested value for the sourcing Open() parameter,
// as parsed from the plugin's list_open_params JSON array (spec §4.3).
type OpenParam struct {
	Value     string
	Desc      string
	Separator *rune
}

// BatchStatus reports the outcome of a NextBatch call beyond plain success.
type BatchStatus int

const (
	BatchOK BatchStatus = iota
	BatchTimeout
	BatchEOF
)

// SourceHandle represents one open event source session.
type SourceHandle interface {
	Close()
	NextBatch() ([]Event, BatchStatus, error)
	// Progress returns a human-readable progress string and a 0..100
	// percentage. ok is false if the plugin does not implement get_progress.
	Progress() (text string, percent float64, ok bool)
	// EventToString returns a human-readable rendering of evt. ok is false
	// if the plugin does not implement event_to_string.
	EventToString(evt *Event) (string, bool)
}

// Sourcing is the bound sourcing capability: get_id, get_event_source, open,
// close, next_batch, plus the optional get_progress/event_to_string/
// list_open_params symbols (spec §4.3, §6).
type Sourcing interface {
	ID() uint32
	EventSource() string
	Open(params string) (SourceHandle, error)
	// ListOpenParams returns the suggested open parameters. ok is false if
	// the plugin does not implement list_open_params.
	ListOpenParams() ([]OpenParam, bool, error)
}

// ExtractRequest is a single field extraction request/response slot, as
// echoed to the plugin and filled in by it (spec §4.4).
type ExtractRequest struct {
	FieldID    uint64
	Field      string
	ArgIndex   uint64
	ArgKey     string
	ArgPresent bool
	Type       FieldType
	IsList     bool

	// Result, set by the plugin on success. The concrete Go type stored
	// here follows the Type/IsList combination: string or []string for
	// FieldTypeString, uint64/[]uint64 for FieldTypeUint64 and the time
	// types, bool/[]bool for FieldTypeBool, []byte/[][]byte for the
	// network types. nil means "no value" (a silent rejection per spec §7,
	// distinct from an error).
	Result interface{}
}

// Extraction is the bound extraction capability: get_fields, extract_fields,
// plus the optional get_extract_event_sources/get_extract_event_types
// symbols (spec §4.4, §6).
type Extraction interface {
	// FieldsJSON returns the raw JSON field declaration document, as
	// returned by get_fields.
	FieldsJSON() string
	// ExtractEventSources returns the JSON array of compatible event
	// source names, or "" if get_extract_event_sources is not implemented.
	ExtractEventSources() string
	// ExtractEventTypes returns the JSON array of compatible event type
	// codes, or "" if get_extract_event_types is not implemented.
	ExtractEventTypes() string
	// ExtractFields fills in Result for each request it can satisfy for
	// evt, leaving Result nil for requests it cannot. Returns a non-nil
	// error only for a genuine plugin runtime failure, not for per-request
	// misses.
	ExtractFields(evt *Event, reqs []*ExtractRequest) error
}

// Parsing is the bound parsing capability: parse_event, plus the optional
// get_parse_event_sources/get_parse_event_types symbols (spec §4.6, §6).
type Parsing interface {
	ParseEventSources() string
	ParseEventTypes() string
	// ParseEvent mutates tables reachable through tables in response to
	// evt. A non-nil error is a genuine plugin runtime failure.
	ParseEvent(evt *Event, tables TableAccess) error
}

// TableAccess is the reader+writer surface handed to a plugin during
// ParseEvent and Init, bridging to the host's table registry (spec §4.6,
// §4.8). It is implemented by package table.
type TableAccess interface {
	ListTables() []TableInfo
	GetTable(name string, keyType StateType) (Table, error)
	AddTable(info TableInfo, impl TableImplementation) error
}

// StateType enumerates the scalar types usable as a table key or field,
// mirroring original_source/userspace/libsinsp/state/type_info.h.
type StateType int

const (
	StateTypeInt8 StateType = iota
	StateTypeInt16
	StateTypeInt32
	StateTypeInt64
	StateTypeUint8
	StateTypeUint16
	StateTypeUint32
	StateTypeUint64
	StateTypeString
	// StateTypeTable is modeled only so a nested-table column is rejected
	// with a clear DescriptorError instead of being silently misinterpreted
	// (SPEC_FULL.md Non-goals).
	StateTypeTable
)

func (t StateType) String() string {
	switch t {
	case StateTypeInt8:
		return "int8"
	case StateTypeInt16:
		return "int16"
	case StateTypeInt32:
		return "int32"
	case StateTypeInt64:
		return "int64"
	case StateTypeUint8:
		return "uint8"
	case StateTypeUint16:
		return "uint16"
	case StateTypeUint32:
		return "uint32"
	case StateTypeUint64:
		return "uint64"
	case StateTypeString:
		return "string"
	case StateTypeTable:
		return "table"
	default:
		return "unknown"
	}
}

// TableInfo is the name+key-type identity of a table, as returned by
// ListTables and required by AddTable/GetTable (spec §4.7).
type TableInfo struct {
	Name    string
	KeyType StateType
}

// FieldInfo describes one column of a table (spec §4.8's fields sub-vtable).
type FieldInfo struct {
	Name string
	Type StateType
}

// Row is an opaque handle to one table row, scoped to the Table it was
// obtained from.
type Row interface{}

// Table is the host-side, Go-native view of a table, used both for tables
// registered by the host and for tables bridged from a plugin's own vtable
// (spec §4.8's "host-native and plugin-provided tables are interchangeable").
type Table interface {
	Info() TableInfo
	Fields() []FieldInfo
	Field(name string, t StateType) (FieldInfo, error)

	GetRow(key interface{}) (Row, bool)
	IterRows(func(Row) bool)
	ReadField(row Row, field string) (interface{}, error)

	CreateRow(key interface{}) (Row, error)
	EraseRow(key interface{}) error
	WriteField(row Row, field string, value interface{}) error
	Clear()
}

// TableImplementation is what a plugin supplies when it publishes a table
// it owns (spec §3's "plugin-owned" table, §4.8's dual vtable wrapping).
// The host wraps it into a Table so that host code and other plugins can
// use it exactly like a host-native table.
type TableImplementation interface {
	Fields() []FieldInfo
	Field(name string, t StateType) (FieldInfo, error)
	GetRow(key interface{}) (Row, bool)
	IterRows(func(Row) bool)
	ReadField(row Row, field string) (interface{}, error)
	CreateRow(key interface{}) (Row, error)
	EraseRow(key interface{}) error
	WriteField(row Row, field string, value interface{}) error
	Clear()
}
