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
	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/field"
)

// ExtractionAdapter is the field-extraction capability adapter, present on
// Plugin.Extraction() only once Init has succeeded and only if the plugin
// declared abi.CapExtraction (spec §3's conditionally-active sibling
// adapters, §4.4).
type ExtractionAdapter struct {
	p *Plugin
}

func newExtractionAdapter(p *Plugin) *ExtractionAdapter {
	return &ExtractionAdapter{p: p}
}

// Fields returns the plugin's field catalog, in declaration order (so index
// == FieldID, per spec §4.4).
func (a *ExtractionAdapter) Fields() field.Catalog {
	return a.p.fields
}

// CompatibleWithEvent reports whether evt's source/type would yield any
// extraction attempt at all, without calling into the plugin. The field
// check adapter uses this to silently reject a request instead of treating
// it as an error (spec §7 scenario 1-2, §4.5(a-d)).
func (a *ExtractionAdapter) CompatibleWithEvent(evt *abi.Event) bool {
	if evt.SourceUnset() {
		return false
	}
	return a.p.extractCompat.SourceCompatible(evt.SourceName) && a.p.extractCompat.TypeCompatible(evt.Type)
}

// ExtractFields fills in Result for every request it can satisfy out of
// evt, batched in a single call into the plugin the way plugin_extract_fields
// does (spec §4.4: "a batch of field/arg pairs in one call, amortizing the
// FFI crossing"). If evt is not compatible with this plugin's declared
// event sources/types, every Result is left nil and no error is returned:
// this is the silent-rejection path, not a fault.
func (a *ExtractionAdapter) ExtractFields(evt *abi.Event, reqs []*abi.ExtractRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	if !a.CompatibleWithEvent(evt) {
		return nil
	}
	return a.p.vt.Extraction().ExtractFields(evt, reqs)
}
