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

// Package cabi binds a dlopen'd, C-ABI plugin shared library into an
// abi.VTable. This is the "C vtable across FFI" half of the boundary the
// spec's design notes call for; package abi is the other half, the pure-Go
// seam that the rest of the host is written against.
//
// Following the teacher's pkg/loader/loader.go, cgo cannot call a C function
// pointer directly, nor can it use macros, so every symbol is crossed
// through a small static C trampoline compiled into this package's cgo
// preamble rather than requiring the plugin's own headers at build time.
package cabi

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>
#include <stdint.h>

typedef void  ss_plugin_t;
typedef void  ss_instance_t;

typedef const char* (*str_fn)(void);
typedef uint32_t    (*u32_fn)(void);
typedef const char* (*get_last_error_fn)(ss_plugin_t*);
typedef const char* (*get_init_schema_fn)(uint32_t*);
typedef ss_plugin_t* (*init_fn)(const char*, void*, int32_t*);
typedef void         (*destroy_fn)(ss_plugin_t*);

typedef ss_instance_t* (*open_fn)(ss_plugin_t*, const char*, int32_t*);
typedef void            (*close_fn)(ss_plugin_t*, ss_instance_t*);
typedef int32_t         (*next_batch_fn)(ss_plugin_t*, ss_instance_t*, uint32_t*, void***);
typedef const char*     (*list_open_params_fn)(ss_plugin_t*, int32_t*);
typedef const char*     (*get_progress_fn)(ss_plugin_t*, ss_instance_t*, uint32_t*);
typedef const char*     (*event_to_string_fn)(ss_plugin_t*, void*);

typedef const char* (*get_fields_fn)(void);
typedef int32_t      (*extract_fields_fn)(ss_plugin_t*, void*, uint32_t, void*);
typedef int32_t      (*parse_event_fn)(ss_plugin_t*, void*, void*);

// ss_plugin_event and ss_plugin_extract_field mirror the wire shape of the
// real libsinsp plugin ABI closely enough for this host's purposes: a
// fixed-size event header plus a variable-length data buffer, and a
// fixed-size extraction request/response slot per requested field. List
// results are carried back as a JSON array in res_str regardless of the
// underlying scalar type, decoded on the Go side.
typedef struct {
	uint64_t evtnum;
	uint64_t ts;
	uint32_t evt_type;
	uint32_t datalen;
	uint8_t  *data;
} ss_plugin_event;

typedef struct {
	uint64_t field_id;
	const char *field;
	const char *arg_key;
	uint64_t arg_index;
	uint8_t  arg_present;
	uint32_t ftype;
	uint8_t  is_list;
	uint8_t  field_present;
	char     *res_str;
	uint64_t res_u64;
	uint8_t  res_bool;
} ss_plugin_extract_field;

static ss_plugin_event *alloc_events(uint32_t n) {
	return (ss_plugin_event *)calloc(n, sizeof(ss_plugin_event));
}

static ss_plugin_event *event_at(ss_plugin_event *evts, uint32_t i) {
	return &evts[i];
}

static ss_plugin_extract_field *alloc_extract_fields(uint32_t n) {
	return (ss_plugin_extract_field *)calloc(n, sizeof(ss_plugin_extract_field));
}

static ss_plugin_extract_field *extract_field_at(ss_plugin_extract_field *f, uint32_t i) {
	return &f[i];
}

static void *plugin_dlopen(const char *path, char *errbuf, size_t errbuflen) {
	void *h = dlopen(path, RTLD_NOW);
	if (!h) {
		const char *err = dlerror();
		if (err && errbuflen > 0) {
			strncpy(errbuf, err, errbuflen - 1);
			errbuf[errbuflen - 1] = 0;
		}
	}
	return h;
}

static void plugin_dlclose(void *h) {
	if (h) dlclose(h);
}

static void *plugin_dlsym(void *h, const char *name) {
	return dlsym(h, name);
}

static const char *call_str_fn(str_fn f)            { return f ? f() : ""; }
static uint32_t    call_u32_fn(u32_fn f)             { return f ? f() : 0; }
static const char *call_last_error_fn(get_last_error_fn f, ss_plugin_t *s) { return f ? f(s) : ""; }
static const char *call_init_schema_fn(get_init_schema_fn f, uint32_t *t) { return f ? f(t) : ""; }

static ss_plugin_t *call_init_fn(init_fn f, const char *cfg, void *owner, int32_t *rc) {
	return f ? f(cfg, owner, rc) : NULL;
}
static void call_destroy_fn(destroy_fn f, ss_plugin_t *s) { if (f) f(s); }

static ss_instance_t *call_open_fn(open_fn f, ss_plugin_t *s, const char *params, int32_t *rc) {
	return f ? f(s, params, rc) : NULL;
}
static void call_close_fn(close_fn f, ss_plugin_t *s, ss_instance_t *h) { if (f) f(s, h); }
static int32_t call_next_batch_fn(next_batch_fn f, ss_plugin_t *s, ss_instance_t *h, uint32_t *n, void ***evts) {
	return f ? f(s, h, n, evts) : 1;
}
static const char *call_list_open_params_fn(list_open_params_fn f, ss_plugin_t *s, int32_t *rc) {
	return f ? f(s, rc) : "";
}
static const char *call_get_progress_fn(get_progress_fn f, ss_plugin_t *s, ss_instance_t *h, uint32_t *pct) {
	return f ? f(s, h, pct) : "";
}
static const char *call_event_to_string_fn(event_to_string_fn f, ss_plugin_t *s, void *evt) {
	return f ? f(s, evt) : "";
}

static const char *call_get_fields_fn(get_fields_fn f) { return f ? f() : ""; }
static int32_t call_extract_fields_fn(extract_fields_fn f, ss_plugin_t *s, void *evt, uint32_t n, void *fields) {
	return f ? f(s, evt, n, fields) : 1;
}
static int32_t call_parse_event_fn(parse_event_fn f, ss_plugin_t *s, void *evt, void *tables) {
	return f ? f(s, evt, tables) : 1;
}
*/
import "C"

import (
	"encoding/json"
	"fmt"
	"sync"
	"unsafe"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
	"github.com/cappellinsamuele/sinsp-plugin-host/registry"
)

// maxErrLen bounds the dlerror() buffer, mirroring the teacher's
// __plugin_max_errlen.
const maxErrLen = 1024

// symbols is every C-ABI entry point this package knows how to bind,
// resolved by name via dlsym. A nil field means the plugin did not export
// that symbol; required fields are checked when Library.VTable resolves
// them, optional ones are checked per capability.
type symbols struct {
	getRequiredAPIVersion C.str_fn
	getVersion             C.str_fn
	getName                C.str_fn
	getDescription         C.str_fn
	getContact             C.str_fn
	getLastError           C.get_last_error_fn
	getInitSchema          C.get_init_schema_fn
	init                   C.init_fn
	destroy                C.destroy_fn

	getID             C.u32_fn
	getEventSource    C.str_fn
	open              C.open_fn
	close             C.close_fn
	nextBatch         C.next_batch_fn
	listOpenParams    C.list_open_params_fn
	getProgress       C.get_progress_fn
	eventToString     C.event_to_string_fn

	getFields              C.get_fields_fn
	getExtractEventSources C.str_fn
	getExtractEventTypes   C.str_fn
	extractFields          C.extract_fields_fn

	getParseEventSources C.str_fn
	getParseEventTypes   C.str_fn
	parseEvent           C.parse_event_fn
}

// Library is a dlopen'd shared object. It can bind more than one VTable out
// of the same handle only in the degenerate case of a plugin that keeps no
// global state; in practice each Library is used to produce exactly one
// VTable. Unload invalidates every VTable previously bound from it.
type Library struct {
	mu   sync.Mutex
	path string
	h    unsafe.Pointer
	libs *registry.Libraries
}

// Load dlopens the shared library at path and resolves its C-ABI symbols.
// libs tracks process-wide open libraries so IsLoaded(path) does not
// require re-opening it (spec §4.1's design note).
func Load(path string, libs *registry.Libraries) (*Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	errbuf := (*C.char)(C.malloc(C.size_t(maxErrLen)))
	defer C.free(unsafe.Pointer(errbuf))

	h := C.plugin_dlopen(cpath, errbuf, C.size_t(maxErrLen))
	if h == nil {
		return nil, pluginerr.New(pluginerr.Load, "", "dlopen(%s) failed: %s", path, C.GoString(errbuf))
	}
	libs.MarkLoaded(path)
	return &Library{path: path, h: h, libs: libs}, nil
}

// Unload closes the shared library. It is the caller's responsibility to
// have destroyed any plugin bound from this Library first.
func (l *Library) Unload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.h == nil {
		return
	}
	C.plugin_dlclose(l.h)
	l.libs.MarkUnloaded(l.path)
	l.h = nil
}

func (l *Library) sym(name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.plugin_dlsym(l.h, cname)
}

func (l *Library) resolve() (*symbols, error) {
	s := &symbols{
		getRequiredAPIVersion: C.str_fn(l.sym("plugin_get_required_api_version")),
		getVersion:             C.str_fn(l.sym("plugin_get_version")),
		getName:                C.str_fn(l.sym("plugin_get_name")),
		getDescription:         C.str_fn(l.sym("plugin_get_description")),
		getContact:             C.str_fn(l.sym("plugin_get_contact")),
		getLastError:           C.get_last_error_fn(l.sym("plugin_get_last_error")),
		getInitSchema:          C.get_init_schema_fn(l.sym("plugin_get_init_schema")),
		init:                   C.init_fn(l.sym("plugin_init")),
		destroy:                C.destroy_fn(l.sym("plugin_destroy")),

		getID:          C.u32_fn(l.sym("plugin_get_id")),
		getEventSource: C.str_fn(l.sym("plugin_get_event_source")),
		open:           C.open_fn(l.sym("plugin_open")),
		close:          C.close_fn(l.sym("plugin_close")),
		nextBatch:      C.next_batch_fn(l.sym("plugin_next_batch")),
		listOpenParams: C.list_open_params_fn(l.sym("plugin_list_open_params")),
		getProgress:    C.get_progress_fn(l.sym("plugin_get_progress")),
		eventToString:  C.event_to_string_fn(l.sym("plugin_event_to_string")),

		getFields:              C.get_fields_fn(l.sym("plugin_get_fields")),
		getExtractEventSources: C.str_fn(l.sym("plugin_get_extract_event_sources")),
		getExtractEventTypes:   C.str_fn(l.sym("plugin_get_extract_event_types")),
		extractFields:          C.extract_fields_fn(l.sym("plugin_extract_fields")),

		getParseEventSources: C.str_fn(l.sym("plugin_get_parse_event_sources")),
		getParseEventTypes:   C.str_fn(l.sym("plugin_get_parse_event_types")),
		parseEvent:           C.parse_event_fn(l.sym("plugin_parse_event")),
	}
	if s.getRequiredAPIVersion == nil || s.getVersion == nil || s.getName == nil ||
		s.getLastError == nil || s.init == nil || s.destroy == nil {
		return nil, pluginerr.New(pluginerr.Load, "", "%s is missing one or more required symbols", l.path)
	}
	return s, nil
}

// VTable binds the abi.VTable interface to a resolved Library.
func (l *Library) VTable() (abi.VTable, error) {
	s, err := l.resolve()
	if err != nil {
		return nil, err
	}
	caps := abi.Set(0)
	if s.open != nil && s.close != nil && s.nextBatch != nil {
		caps |= abi.Set(abi.CapSourcing)
	}
	if s.getFields != nil && s.extractFields != nil {
		caps |= abi.Set(abi.CapExtraction)
	}
	if s.parseEvent != nil {
		caps |= abi.Set(abi.CapParsing)
	}
	return &vtable{lib: l, s: s, caps: caps}, nil
}

type vtable struct {
	lib   *Library
	s     *symbols
	caps  abi.Set
	state unsafe.Pointer // *ss_plugin_t, nil until Init succeeds

	ownerHandle    handle
	hasOwnerHandle bool
}

func (v *vtable) RequiredAPIVersion() string { return C.GoString(C.call_str_fn(v.s.getRequiredAPIVersion)) }
func (v *vtable) Version() string            { return C.GoString(C.call_str_fn(v.s.getVersion)) }
func (v *vtable) Name() string               { return C.GoString(C.call_str_fn(v.s.getName)) }
func (v *vtable) Description() string        { return C.GoString(C.call_str_fn(v.s.getDescription)) }
func (v *vtable) Contact() string            { return C.GoString(C.call_str_fn(v.s.getContact)) }
func (v *vtable) Capabilities() abi.Set      { return v.caps }

func (v *vtable) LastError() string {
	return C.GoString(C.call_last_error_fn(v.s.getLastError, v.state))
}

func (v *vtable) InitSchema() (string, bool) {
	if v.s.getInitSchema == nil {
		return "", false
	}
	var schemaType C.uint32_t
	s := C.GoString(C.call_init_schema_fn(v.s.getInitSchema, &schemaType))
	// schema type 1 is "JSON", the only format this host understands; any
	// other value (including 0, "none") is treated as "no schema".
	if schemaType != 1 {
		return "", false
	}
	return s, true
}

// Init passes tables to the plugin as an opaque owner token (a handle), kept
// alive for the plugin's entire lifetime so the plugin may retain it across
// calls. This host does not yet expose a C-callable table vtable for the
// plugin to call back through (the teacher's own loader.go leaves the same
// ground uncovered: "todo: support owner pointer and implement table
// access"); ParseEvent instead hands tables-access to in-process plugins
// directly at the Go level, which is sufficient for everything this host
// tests against today.
func (v *vtable) Init(config string, tables abi.TableAccess) error {
	cconfig := C.CString(config)
	defer C.free(unsafe.Pointer(cconfig))

	var owner unsafe.Pointer
	if tables != nil {
		v.ownerHandle = newHandle(tables)
		v.hasOwnerHandle = true
		owner = unsafe.Pointer(uintptr(v.ownerHandle))
	}

	var rc C.int32_t
	state := C.call_init_fn(v.s.init, cconfig, owner, &rc)
	if rc != 0 || state == nil {
		if v.hasOwnerHandle {
			v.ownerHandle.delete()
			v.hasOwnerHandle = false
		}
		return fmt.Errorf("plugin_init returned rc=%d", int32(rc))
	}
	v.state = state
	return nil
}

func (v *vtable) Destroy() {
	if v.state == nil {
		return
	}
	C.call_destroy_fn(v.s.destroy, v.state)
	v.state = nil
	if v.hasOwnerHandle {
		v.ownerHandle.delete()
		v.hasOwnerHandle = false
	}
}

func (v *vtable) Sourcing() abi.Sourcing {
	if !v.caps.Has(abi.CapSourcing) {
		return nil
	}
	return &sourcing{v: v}
}

func (v *vtable) Extraction() abi.Extraction {
	if !v.caps.Has(abi.CapExtraction) {
		return nil
	}
	return &extraction{v: v}
}

func (v *vtable) Parsing() abi.Parsing {
	if !v.caps.Has(abi.CapParsing) {
		return nil
	}
	return &parsing{v: v}
}

// marshalEvent copies evt into a freshly allocated ss_plugin_event, the
// shape every call into a C-ABI plugin expects an event in. Callers must
// free the returned pointer's data buffer and the struct itself.
func marshalEvent(evt *abi.Event) *C.ss_plugin_event {
	cevt := C.alloc_events(1)
	cevt.evtnum = C.uint64_t(evt.Num)
	cevt.ts = C.uint64_t(evt.Timestamp)
	cevt.evt_type = C.uint32_t(evt.Type)
	if n := len(evt.Data); n > 0 {
		cevt.datalen = C.uint32_t(n)
		cevt.data = (*C.uint8_t)(C.CBytes(evt.Data))
	}
	return cevt
}

func freeEvent(cevt *C.ss_plugin_event) {
	if cevt == nil {
		return
	}
	if cevt.data != nil {
		C.free(unsafe.Pointer(cevt.data))
	}
	C.free(unsafe.Pointer(cevt))
}

// sourcing is the abi.Sourcing adapter over a dlopen'd plugin's sourcing
// symbols (spec §4.3).
type sourcing struct{ v *vtable }

func (s *sourcing) ID() uint32 {
	if s.v.s.getID == nil {
		return 0
	}
	return uint32(C.call_u32_fn(s.v.s.getID))
}

func (s *sourcing) EventSource() string {
	return C.GoString(C.call_str_fn(s.v.s.getEventSource))
}

func (s *sourcing) Open(params string) (abi.SourceHandle, error) {
	cparams := C.CString(params)
	defer C.free(unsafe.Pointer(cparams))

	var rc C.int32_t
	h := C.call_open_fn(s.v.s.open, s.v.state, cparams, &rc)
	if h == nil || abi.RC(rc) != abi.RCSuccess {
		return nil, fmt.Errorf("plugin_open returned rc=%d", int32(rc))
	}
	return &sourceHandle{v: s.v, h: h}, nil
}

func (s *sourcing) ListOpenParams() ([]abi.OpenParam, bool, error) {
	if s.v.s.listOpenParams == nil {
		return nil, false, nil
	}
	var rc C.int32_t
	raw := C.GoString(C.call_list_open_params_fn(s.v.s.listOpenParams, s.v.state, &rc))
	if abi.RC(rc) != abi.RCSuccess {
		return nil, true, fmt.Errorf("plugin_list_open_params returned rc=%d", int32(rc))
	}
	var entries []struct {
		Value     string `json:"value"`
		Desc      string `json:"desc"`
		Separator string `json:"separator"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, true, pluginerr.Wrap(pluginerr.Runtime, "", err, "malformed list_open_params JSON")
	}
	out := make([]abi.OpenParam, 0, len(entries))
	for _, e := range entries {
		if e.Value == "" {
			return nil, true, fmt.Errorf("plugin_list_open_params: has entry with no value")
		}
		p := abi.OpenParam{Value: e.Value, Desc: e.Desc}
		if e.Separator != "" {
			r := []rune(e.Separator)[0]
			p.Separator = &r
		}
		out = append(out, p)
	}
	return out, true, nil
}

// sourceHandle is the abi.SourceHandle adapter over an open ss_instance_t.
// ss_instance_t is a void typedef, so cgo represents it as unsafe.Pointer.
type sourceHandle struct {
	v *vtable
	h unsafe.Pointer
}

func (s *sourceHandle) Close() {
	if s.h == nil {
		return
	}
	C.call_close_fn(s.v.s.close, s.v.state, s.h)
	s.h = nil
}

func (s *sourceHandle) NextBatch() ([]abi.Event, abi.BatchStatus, error) {
	var n C.uint32_t
	var evts *unsafe.Pointer
	rc := C.call_next_batch_fn(s.v.s.nextBatch, s.v.state, s.h, &n, &evts)
	switch abi.RC(rc) {
	case abi.RCSuccess:
	case abi.RCTimeout:
		return nil, abi.BatchTimeout, nil
	case abi.RCEOF:
		return nil, abi.BatchEOF, nil
	default:
		return nil, abi.BatchOK, fmt.Errorf("plugin_next_batch returned rc=%d", int32(rc))
	}
	count := int(n)
	if count == 0 || evts == nil {
		return nil, abi.BatchOK, nil
	}
	ptrs := (*[1 << 28]unsafe.Pointer)(unsafe.Pointer(evts))[:count:count]
	out := make([]abi.Event, count)
	for i, p := range ptrs {
		cevt := (*C.ss_plugin_event)(p)
		out[i] = abi.Event{
			Num:       uint64(cevt.evtnum),
			Timestamp: uint64(cevt.ts),
			Type:      uint32(cevt.evt_type),
			SourceIdx: -1,
			Data:      copyBytes(unsafe.Pointer(cevt.data), int(cevt.datalen)),
		}
	}
	return out, abi.BatchOK, nil
}

func (s *sourceHandle) Progress() (string, float64, bool) {
	if s.v.s.getProgress == nil {
		return "", 0, false
	}
	var pct C.uint32_t
	text := C.GoString(C.call_get_progress_fn(s.v.s.getProgress, s.v.state, s.h, &pct))
	return text, float64(pct) / 100, true
}

func (s *sourceHandle) EventToString(evt *abi.Event) (string, bool) {
	if s.v.s.eventToString == nil {
		return "", false
	}
	cevt := marshalEvent(evt)
	defer freeEvent(cevt)
	return C.GoString(C.call_event_to_string_fn(s.v.s.eventToString, s.v.state, unsafe.Pointer(cevt))), true
}

// extraction is the abi.Extraction adapter over a dlopen'd plugin's
// extraction symbols (spec §4.4).
type extraction struct{ v *vtable }

func (e *extraction) FieldsJSON() string {
	return C.GoString(C.call_get_fields_fn(e.v.s.getFields))
}

func (e *extraction) ExtractEventSources() string {
	if e.v.s.getExtractEventSources == nil {
		return ""
	}
	return C.GoString(C.call_str_fn(e.v.s.getExtractEventSources))
}

func (e *extraction) ExtractEventTypes() string {
	if e.v.s.getExtractEventTypes == nil {
		return ""
	}
	return C.GoString(C.call_str_fn(e.v.s.getExtractEventTypes))
}

func (e *extraction) ExtractFields(evt *abi.Event, reqs []*abi.ExtractRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	cevt := marshalEvent(evt)
	defer freeEvent(cevt)

	n := C.uint32_t(len(reqs))
	cfields := C.alloc_extract_fields(n)
	defer C.free(unsafe.Pointer(cfields))

	keys := make([]*C.char, len(reqs))
	fieldNames := make([]*C.char, len(reqs))
	defer func() {
		for _, p := range keys {
			if p != nil {
				C.free(unsafe.Pointer(p))
			}
		}
		for _, p := range fieldNames {
			if p != nil {
				C.free(unsafe.Pointer(p))
			}
		}
	}()

	for i, r := range reqs {
		cf := C.extract_field_at(cfields, C.uint32_t(i))
		fieldNames[i] = C.CString(r.Field)
		cf.field_id = C.uint64_t(r.FieldID)
		cf.field = fieldNames[i]
		cf.ftype = C.uint32_t(r.Type)
		if r.IsList {
			cf.is_list = 1
		}
		if r.ArgPresent {
			cf.arg_present = 1
			cf.arg_index = C.uint64_t(r.ArgIndex)
			if r.ArgKey != "" {
				keys[i] = C.CString(r.ArgKey)
				cf.arg_key = keys[i]
			}
		}
	}

	rc := C.call_extract_fields_fn(e.v.s.extractFields, e.v.state, unsafe.Pointer(cevt), n, unsafe.Pointer(cfields))
	if abi.RC(rc) != abi.RCSuccess {
		return fmt.Errorf("plugin_extract_fields returned rc=%d", int32(rc))
	}

	for i, r := range reqs {
		cf := C.extract_field_at(cfields, C.uint32_t(i))
		if cf.field_present == 0 {
			r.Result = nil
			continue
		}
		r.Result = decodeExtractResult(r.Type, r.IsList, cf)
	}
	return nil
}

// decodeExtractResult reads the scalar or list result a plugin filled into
// cf, following the Type/IsList convention documented on
// abi.ExtractRequest.Result for strings, integers, times and booleans. List
// results travel back as a JSON array of strings in res_str regardless of
// the scalar type, a deliberate simplification this package documents
// rather than a full C union/array ABI. The network types have no byte
// buffer channel in this ABI: they are read from res_str as a string (or
// []string for lists), not as []byte, and stop at the first NUL byte.
func decodeExtractResult(t abi.FieldType, isList bool, cf *C.ss_plugin_extract_field) interface{} {
	if isList {
		raw := C.GoString(cf.res_str)
		var vals []string
		if err := json.Unmarshal([]byte(raw), &vals); err != nil {
			return nil
		}
		return decodeListValues(t, vals)
	}
	switch t {
	case abi.FieldTypeUint64, abi.FieldTypeRelTime, abi.FieldTypeAbsTime:
		return uint64(cf.res_u64)
	case abi.FieldTypeBool:
		return cf.res_bool != 0
	default:
		if cf.res_str == nil {
			return nil
		}
		return C.GoString(cf.res_str)
	}
}

func decodeListValues(t abi.FieldType, vals []string) interface{} {
	switch t {
	case abi.FieldTypeUint64, abi.FieldTypeRelTime, abi.FieldTypeAbsTime:
		out := make([]uint64, len(vals))
		for i, s := range vals {
			var u uint64
			fmt.Sscanf(s, "%d", &u)
			out[i] = u
		}
		return out
	case abi.FieldTypeBool:
		out := make([]bool, len(vals))
		for i, s := range vals {
			out[i] = s == "true"
		}
		return out
	default:
		return vals
	}
}

// parsing is the abi.Parsing adapter over a dlopen'd plugin's parsing
// symbols (spec §4.6).
type parsing struct{ v *vtable }

func (p *parsing) ParseEventSources() string {
	if p.v.s.getParseEventSources == nil {
		return ""
	}
	return C.GoString(C.call_str_fn(p.v.s.getParseEventSources))
}

func (p *parsing) ParseEventTypes() string {
	if p.v.s.getParseEventTypes == nil {
		return ""
	}
	return C.GoString(C.call_str_fn(p.v.s.getParseEventTypes))
}

func (p *parsing) ParseEvent(evt *abi.Event, tables abi.TableAccess) error {
	cevt := marshalEvent(evt)
	defer freeEvent(cevt)

	var owner unsafe.Pointer
	if tables != nil && p.v.hasOwnerHandle {
		owner = unsafe.Pointer(uintptr(p.v.ownerHandle))
	}
	rc := C.call_parse_event_fn(p.v.s.parseEvent, p.v.state, unsafe.Pointer(cevt), owner)
	if abi.RC(rc) != abi.RCSuccess {
		return fmt.Errorf("plugin_parse_event returned rc=%d", int32(rc))
	}
	return nil
}
