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

// Package plugintest provides an in-process abi.VTable implementation
// driven entirely by Go function fields, so the plugin package and its
// callers can be exercised without a real dlopen'd shared library (spec
// §4.1: "accepts a pre-built capability vtable in-process, for tests").
package plugintest

import (
	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
)

// VTable is a fully scriptable abi.VTable. Every field has a zero-value
// default that behaves like a minimal, capability-less plugin; set only the
// fields a given test needs.
type VTable struct {
	RequiredAPIVersionVal string
	VersionVal            string
	NameVal                string
	DescriptionVal        string
	ContactVal            string
	LastErrorVal          string
	CapsVal               abi.Set

	InitSchemaVal    string
	HasInitSchemaVal bool

	InitFunc    func(config string, tables abi.TableAccess) error
	DestroyFunc func()

	SourcingVal   abi.Sourcing
	ExtractionVal abi.Extraction
	ParsingVal    abi.Parsing

	Destroyed bool
}

func (v *VTable) RequiredAPIVersion() string { return v.RequiredAPIVersionVal }
func (v *VTable) Version() string            { return v.VersionVal }
func (v *VTable) Name() string               { return v.NameVal }
func (v *VTable) Description() string        { return v.DescriptionVal }
func (v *VTable) Contact() string            { return v.ContactVal }
func (v *VTable) LastError() string          { return v.LastErrorVal }
func (v *VTable) Capabilities() abi.Set      { return v.CapsVal }

func (v *VTable) InitSchema() (string, bool) { return v.InitSchemaVal, v.HasInitSchemaVal }

func (v *VTable) Init(config string, tables abi.TableAccess) error {
	if v.InitFunc == nil {
		return nil
	}
	return v.InitFunc(config, tables)
}

func (v *VTable) Destroy() {
	v.Destroyed = true
	if v.DestroyFunc != nil {
		v.DestroyFunc()
	}
}

func (v *VTable) Sourcing() abi.Sourcing     { return v.SourcingVal }
func (v *VTable) Extraction() abi.Extraction { return v.ExtractionVal }
func (v *VTable) Parsing() abi.Parsing       { return v.ParsingVal }

// Sourcing is a fully scriptable abi.Sourcing.
type Sourcing struct {
	IDVal          uint32
	EventSourceVal string
	OpenFunc       func(params string) (abi.SourceHandle, error)
	OpenParamsVal  []abi.OpenParam
	HasOpenParams  bool
}

func (s *Sourcing) ID() uint32          { return s.IDVal }
func (s *Sourcing) EventSource() string { return s.EventSourceVal }

func (s *Sourcing) Open(params string) (abi.SourceHandle, error) {
	if s.OpenFunc == nil {
		return &SourceHandle{}, nil
	}
	return s.OpenFunc(params)
}

func (s *Sourcing) ListOpenParams() ([]abi.OpenParam, bool, error) {
	return s.OpenParamsVal, s.HasOpenParams, nil
}

// SourceHandle is a fully scriptable abi.SourceHandle that replays a fixed
// slice of batches, one per NextBatch call, then reports EOF.
type SourceHandle struct {
	Batches       [][]abi.Event
	next          int
	ClosedVal     bool
	ProgressText  string
	ProgressPct   float64
	HasProgress   bool
	EventStringFn func(evt *abi.Event) (string, bool)
}

func (h *SourceHandle) Close() { h.ClosedVal = true }

func (h *SourceHandle) NextBatch() ([]abi.Event, abi.BatchStatus, error) {
	if h.next >= len(h.Batches) {
		return nil, abi.BatchEOF, nil
	}
	b := h.Batches[h.next]
	h.next++
	return b, abi.BatchOK, nil
}

func (h *SourceHandle) Progress() (string, float64, bool) {
	return h.ProgressText, h.ProgressPct, h.HasProgress
}

func (h *SourceHandle) EventToString(evt *abi.Event) (string, bool) {
	if h.EventStringFn == nil {
		return "", false
	}
	return h.EventStringFn(evt)
}

// Extraction is a fully scriptable abi.Extraction.
type Extraction struct {
	FieldsJSONVal            string
	ExtractEventSourcesVal   string
	ExtractEventTypesVal     string
	ExtractFieldsFunc        func(evt *abi.Event, reqs []*abi.ExtractRequest) error
}

func (e *Extraction) FieldsJSON() string            { return e.FieldsJSONVal }
func (e *Extraction) ExtractEventSources() string   { return e.ExtractEventSourcesVal }
func (e *Extraction) ExtractEventTypes() string     { return e.ExtractEventTypesVal }

func (e *Extraction) ExtractFields(evt *abi.Event, reqs []*abi.ExtractRequest) error {
	if e.ExtractFieldsFunc == nil {
		return nil
	}
	return e.ExtractFieldsFunc(evt, reqs)
}

// Parsing is a fully scriptable abi.Parsing.
type Parsing struct {
	ParseEventSourcesVal string
	ParseEventTypesVal   string
	ParseEventFunc       func(evt *abi.Event, tables abi.TableAccess) error
}

func (p *Parsing) ParseEventSources() string { return p.ParseEventSourcesVal }
func (p *Parsing) ParseEventTypes() string   { return p.ParseEventTypesVal }

func (p *Parsing) ParseEvent(evt *abi.Event, tables abi.TableAccess) error {
	if p.ParseEventFunc == nil {
		return nil
	}
	return p.ParseEventFunc(evt, tables)
}
