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

// Package filtercheck adapts a plugin's extraction capability to the
// filter engine's textual field-reference syntax (spec §4.4, §4.5): parsing
// "name[arg]" into a field lookup plus an optional index or key argument,
// enforcing each field's argument policy, and batching the requests of all
// checks passed to one Extract call into a single call into the plugin.
package filtercheck

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/field"
	"github.com/cappellinsamuele/sinsp-plugin-host/plugin"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
)

// Ref is a parsed textual field reference, before it has been resolved
// against any particular plugin's field catalog. Whether a present argument
// is an index or a key cannot be decided here: it depends on the target
// field's ARG_INDEX/ARG_KEY flags (spec §4.5), resolved later by Check.
type Ref struct {
	Name     string
	ArgText  string
	HasArg   bool
	IsIndex  bool
	ArgIndex uint64
}

// ParseRef parses the "name[arg]" syntax of spec §4.4: the argument, if
// present, is the raw text strictly between the first '[' and a matching
// final ']', carried verbatim in ArgText. ParseRef does not classify the
// argument as an index or a key; that disambiguation is flag-driven and
// happens in Check, once the target field's argument policy is known.
func ParseRef(ref string) (Ref, error) {
	open := strings.IndexByte(ref, '[')
	if open < 0 {
		if strings.IndexByte(ref, ']') >= 0 {
			return Ref{}, pluginerr.New(pluginerr.Argument, "", "field reference %q has an unmatched ']'", ref)
		}
		return Ref{Name: ref}, nil
	}
	if ref[len(ref)-1] != ']' {
		return Ref{}, pluginerr.New(pluginerr.Argument, "", "field reference %q has a trailing character after ']'", ref)
	}
	name := ref[:open]
	if name == "" {
		return Ref{}, pluginerr.New(pluginerr.Argument, "", "field reference %q has an empty field name", ref)
	}
	argText := ref[open+1 : len(ref)-1]
	if strings.IndexByte(argText, '[') >= 0 || strings.IndexByte(argText, ']') >= 0 {
		return Ref{}, pluginerr.New(pluginerr.Argument, "", "field reference %q has a malformed bracketed argument", ref)
	}
	if argText == "" {
		return Ref{}, pluginerr.New(pluginerr.Argument, "", "field reference %q has an empty bracketed argument", ref)
	}

	return Ref{Name: name, ArgText: argText, HasArg: true}, nil
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseIndexArg validates and parses a numeric index argument: all digits,
// no leading zero unless the value is exactly "0", and in uint64 range.
func parseIndexArg(argText string) (uint64, error) {
	if !isAllDigits(argText) {
		return 0, pluginerr.New(pluginerr.Argument, "", "argument %q is not a numeric index", argText)
	}
	if len(argText) > 1 && argText[0] == '0' {
		return 0, pluginerr.New(pluginerr.Argument, "", "numeric index argument %q starts with 0", argText)
	}
	idx, err := strconv.ParseUint(argText, 10, 64)
	if err != nil {
		return 0, pluginerr.Wrap(pluginerr.Argument, "", err, "numeric index argument %q is out of range", argText)
	}
	return idx, nil
}

// Check is a single resolved, ready-to-batch field check: the result of
// validating a Ref against one plugin's field catalog and argument policy.
type Check struct {
	fieldID int
	entry   *field.Entry
	ref     Ref
}

// Field returns the resolved catalog entry this check reads.
func (c *Check) Field() *field.Entry { return c.entry }

// Resolver binds a plugin's extraction adapter to the textual field syntax,
// caching per-event-source compatibility decisions so repeated Extract
// calls against a steady stream of same-source events do not re-evaluate
// the plugin's declared compatibility set every time (spec §4.5(a-d)).
type Resolver struct {
	p *plugin.Plugin

	mu           sync.RWMutex
	bySourceIdx  map[int32]bool
}

// New builds a Resolver over p's extraction adapter. p must already be
// initialized and declare the extraction capability.
func New(p *plugin.Plugin) *Resolver {
	return &Resolver{p: p, bySourceIdx: make(map[int32]bool)}
}

// Check parses ref and validates it against the plugin's field catalog and
// argument policy (spec §3, §8 property 3): ARG_REQUIRED implies the
// reference supplies an index or key argument, and an argument is only
// accepted at all if the field allows one.
func (r *Resolver) Check(ref string) (*Check, error) {
	parsed, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	ext := r.p.Extraction()
	if ext == nil {
		return nil, pluginerr.New(pluginerr.Compatibility, r.p.Name(), "plugin does not support field extraction")
	}
	idx, entry, ok := ext.Fields().ByName(parsed.Name)
	if !ok {
		return nil, pluginerr.New(pluginerr.Argument, r.p.Name(), "unknown field %q", parsed.Name)
	}

	if parsed.HasArg && !entry.Flags.Has(field.FlagArgAllowed) {
		return nil, pluginerr.New(pluginerr.Argument, r.p.Name(), "field %q does not accept an argument", parsed.Name)
	}
	if !parsed.HasArg && entry.Flags.Has(field.FlagArgRequired) {
		return nil, pluginerr.New(pluginerr.Argument, r.p.Name(), "field %q requires an argument", parsed.Name)
	}
	if parsed.HasArg {
		allowIndex := entry.Flags.Has(field.FlagArgIndex)
		allowKey := entry.Flags.Has(field.FlagArgKey)
		switch {
		case allowIndex && !allowKey:
			// Index-only: the argument must parse as a numeric index (spec
			// §4.5's digit/leading-zero/range validation applies here, not
			// during ParseRef, since it only applies once ARG_INDEX is known).
			n, err := parseIndexArg(parsed.ArgText)
			if err != nil {
				return nil, pluginerr.Wrap(pluginerr.Argument, r.p.Name(), err, "field %q requires a numeric index argument", parsed.Name)
			}
			parsed.IsIndex, parsed.ArgIndex = true, n
		case allowKey && !allowIndex:
			// Key-only: the raw substring is taken verbatim, including
			// anything that looks like digits (spec §4.5's ARG_KEY rule).
			parsed.IsIndex = false
		case allowIndex && allowKey:
			// Either is accepted: content disambiguates, same as a
			// plugin declaring both would expect from the filter engine.
			if n, err := parseIndexArg(parsed.ArgText); err == nil {
				parsed.IsIndex, parsed.ArgIndex = true, n
			} else {
				parsed.IsIndex = false
			}
		default:
			return nil, pluginerr.New(pluginerr.Argument, r.p.Name(), "field %q does not accept an index or key argument", parsed.Name)
		}
	}

	return &Check{fieldID: idx, entry: entry, ref: parsed}, nil
}

// sourceCompatible memoizes CompatibleWithEvent by source index, per spec's
// note that this filtering runs once per event per field check adapter and
// should not re-walk the declared compatibility set on every call once an
// event's source has been resolved.
func (r *Resolver) sourceCompatible(evt *abi.Event) bool {
	ext := r.p.Extraction()
	if ext == nil {
		return false
	}
	if evt.SourceUnset() {
		return ext.CompatibleWithEvent(evt)
	}
	r.mu.RLock()
	v, ok := r.bySourceIdx[evt.SourceIdx]
	r.mu.RUnlock()
	if ok {
		return v
	}
	v = ext.CompatibleWithEvent(evt)
	r.mu.Lock()
	r.bySourceIdx[evt.SourceIdx] = v
	r.mu.Unlock()
	return v
}

// Extract batches every check into a single call to the plugin's
// ExtractFields, returning one Result per check in the same order, nil for
// any check the plugin could not or would not satisfy for evt. A nil slot
// covers both an incompatible event (silent rejection, spec §7 scenario 1-2)
// and the plugin genuinely reporting no value for a compatible event.
func (r *Resolver) Extract(evt *abi.Event, checks []*Check) ([]interface{}, error) {
	results := make([]interface{}, len(checks))
	if !r.sourceCompatible(evt) {
		return results, nil
	}

	reqs := make([]*abi.ExtractRequest, len(checks))
	for i, c := range checks {
		reqs[i] = &abi.ExtractRequest{
			FieldID:    uint64(c.fieldID),
			Field:      c.entry.Name,
			ArgIndex:   c.ref.ArgIndex,
			ArgKey:     c.ref.ArgText,
			ArgPresent: c.ref.HasArg,
			Type:       c.entry.Type,
			IsList:     c.entry.Flags.Has(field.FlagIsList),
		}
	}
	if err := r.p.Extraction().ExtractFields(evt, reqs); err != nil {
		return nil, err
	}
	for i, req := range reqs {
		results[i] = req.Result
	}
	return results, nil
}
