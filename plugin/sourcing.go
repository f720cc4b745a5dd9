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
	"github.com/google/uuid"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
)

// SourcingAdapter is the event-sourcing capability adapter, present on
// Plugin.Sourcing() only once Init has succeeded and only if the plugin
// declared abi.CapSourcing (spec §3, §4.3). It mirrors the teacher's
// loader.Plugin.OpenParams, generalized to the full Open/Close/NextBatch
// session lifecycle.
type SourcingAdapter struct {
	p *Plugin
}

func newSourcingAdapter(p *Plugin) *SourcingAdapter {
	return &SourcingAdapter{p: p}
}

// ID returns the plugin's event source numeric id, or abi.GenericSourceID
// if the plugin declares none of its own (spec §4.3).
func (a *SourcingAdapter) ID() uint32 {
	if id := a.p.vt.Sourcing().ID(); id != 0 {
		return id
	}
	return abi.GenericSourceID
}

// EventSource returns the plugin's named event source.
func (a *SourcingAdapter) EventSource() string {
	return a.p.vt.Sourcing().EventSource()
}

// ListOpenParams returns the suggested values for Open's params argument.
// ok is false if the plugin does not implement list_open_params, mirroring
// loader.Plugin.OpenParams's "return an empty list, not an error" behavior
// for that case.
func (a *SourcingAdapter) ListOpenParams() ([]abi.OpenParam, bool, error) {
	params, ok, err := a.p.vt.Sourcing().ListOpenParams()
	if err != nil {
		return nil, false, pluginerr.Wrap(pluginerr.Runtime, a.p.name, err, "list_open_params failed")
	}
	return params, ok, nil
}

// Session is one open event-sourcing handle, bound to the adapter that
// opened it so Close/NextBatch/Progress/EventToString can decorate errors
// with the owning plugin's name. ID distinguishes concurrently open
// sessions of the same plugin in logs and diagnostics; it has no meaning to
// the plugin itself.
type Session struct {
	a  *SourcingAdapter
	h  abi.SourceHandle
	ID uuid.UUID
}

// Open starts a new event source session with the given params string
// (spec §4.3's open/close pair).
func (a *SourcingAdapter) Open(params string) (*Session, error) {
	h, err := a.p.vt.Sourcing().Open(params)
	if err != nil {
		return nil, pluginerr.Wrap(pluginerr.Runtime, a.p.name, err, "open failed")
	}
	return &Session{a: a, h: h, ID: uuid.New()}, nil
}

// Close releases the session. It is the caller's responsibility to call
// Close exactly once per successful Open.
func (s *Session) Close() {
	s.h.Close()
}

// NextBatch retrieves the next batch of events from this session, mapping
// abi.BatchTimeout/abi.BatchEOF into their own distinct return states
// rather than folding them into a generic error (spec §4.3).
func (s *Session) NextBatch() ([]abi.Event, abi.BatchStatus, error) {
	evts, status, err := s.h.NextBatch()
	if err != nil {
		return nil, status, pluginerr.Wrap(pluginerr.Runtime, s.a.p.name, err, "next_batch failed")
	}
	return evts, status, nil
}

// Progress returns a human-readable progress string and a 0..100
// percentage. ok is false if the plugin does not implement get_progress.
func (s *Session) Progress() (text string, percent float64, ok bool) {
	return s.h.Progress()
}

// EventToString returns a human-readable rendering of evt. ok is false if
// the plugin does not implement event_to_string.
func (s *Session) EventToString(evt *abi.Event) (string, bool) {
	return s.h.EventToString(evt)
}
