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

// Package plugin implements the host-side plugin lifecycle (spec §3, §4.2):
// loading a capability vtable, validating it against the supported API
// version range, initializing it with a config string and a tables-access
// vtable, and driving the sourcing, extraction and parsing adapters until
// Destroy.
package plugin

import (
	"errors"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/field"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
	"github.com/cappellinsamuele/sinsp-plugin-host/table"
)

// SupportedAPIVersions is the range of plugin API versions this host is
// willing to load, checked against a plugin's RequiredAPIVersion() during
// Validate (spec §4.1's loading-step/validation-step split).
var SupportedAPIVersions = mustConstraint(">= 3.0.0, < 4.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// State is a Plugin's position in the Loaded -> Initialized -> Destroyed
// lifecycle (spec §3).
type State int

const (
	StateLoaded State = iota
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Plugin is a loaded plugin bound to its capability vtable, mirroring the
// teacher's loader.Plugin (pkg/loader/loader.go) with the cgo handle replaced
// by the abi.VTable seam and the eight loose fields replaced by named state.
type Plugin struct {
	m sync.Mutex

	vt    abi.VTable
	state State

	name, version, requiredAPIVersion string
	description, contact              string

	caps         abi.Set
	capBrokenErr error

	initSchema    string
	hasInitSchema bool

	fields field.Catalog

	extractCompat CompatSet
	parseCompat   CompatSet

	validated bool
	validErr  error

	tables *table.Registry

	sourcing   *SourcingAdapter
	extraction *ExtractionAdapter
	parsing    *ParsingAdapter

	log *zap.Logger
}

// SetLogger attaches a structured logger used for lifecycle and capability
// events (capability breaks, Init/Destroy transitions). A Plugin logs
// nowhere until one is set.
func (p *Plugin) SetLogger(l *zap.Logger) {
	p.m.Lock()
	defer p.m.Unlock()
	p.log = l
}

func (p *Plugin) logger() *zap.Logger {
	if p.log == nil {
		return zap.NewNop()
	}
	return p.log
}

// New binds vt as a loaded-but-not-validated Plugin, reading its static
// descriptive data (name, version, capabilities, field catalog, init
// schema). It mirrors loader.NewPlugin: this step never fails on a stale or
// incompatible plugin, so callers can still inspect Info() on one; it only
// fails if the capability data itself is structurally unusable in a way that
// is not recoverable by tripping CapBroken (currently never, since every
// piece of static data here is validated individually below).
//
// tables is the table registry this plugin's Init/ParseEvent calls will be
// bound against; it may be shared by multiple plugins (spec §4.7's
// process-scoped registry).
func New(vt abi.VTable, tables *table.Registry) (*Plugin, error) {
	p := &Plugin{
		vt:                 vt,
		state:              StateLoaded,
		name:               vt.Name(),
		version:            vt.Version(),
		requiredAPIVersion: vt.RequiredAPIVersion(),
		description:        vt.Description(),
		contact:            vt.Contact(),
		caps:               vt.Capabilities(),
		tables:             tables,
	}

	if schema, ok := vt.InitSchema(); ok {
		p.initSchema = schema
		p.hasInitSchema = true
	}

	if p.caps.Has(abi.CapExtraction) {
		ext := vt.Extraction()
		if ext == nil {
			p.breakCapability(abi.CapExtraction, pluginerr.New(pluginerr.Load, p.name,
				"declares extraction capability but returns no extraction vtable"))
		} else if err := p.loadExtractionStatics(ext); err != nil {
			p.breakCapability(abi.CapExtraction, err)
		}
	}
	if p.caps.Has(abi.CapParsing) {
		par := vt.Parsing()
		if par == nil {
			p.breakCapability(abi.CapParsing, pluginerr.New(pluginerr.Load, p.name,
				"declares parsing capability but returns no parsing vtable"))
		} else if cs, err := resolveCompatSet(p.name, par.ParseEventSources(), par.ParseEventTypes()); err != nil {
			p.breakCapability(abi.CapParsing, err)
		} else {
			p.parseCompat = cs
		}
	}
	if p.caps.Has(abi.CapSourcing) {
		if vt.Sourcing() == nil {
			p.breakCapability(abi.CapSourcing, pluginerr.New(pluginerr.Load, p.name,
				"declares sourcing capability but returns no sourcing vtable"))
		}
	}

	return p, nil
}

func (p *Plugin) loadExtractionStatics(ext abi.Extraction) error {
	cat, err := field.Parse(p.name, ext.FieldsJSON())
	if err != nil {
		return err
	}
	p.fields = cat
	cs, err := resolveCompatSet(p.name, ext.ExtractEventSources(), ext.ExtractEventTypes())
	if err != nil {
		return err
	}
	p.extractCompat = cs
	return nil
}

// breakCapability clears bit from the declared capability set and sets
// CapBroken, accumulating err via pluginerr.Append, mirroring the teacher's
// CAP_BROKEN bit (pkg/loader/loader.go).
func (p *Plugin) breakCapability(bit abi.Capability, err error) {
	p.caps &^= abi.Set(bit)
	p.caps |= abi.Set(abi.CapBroken)
	p.capBrokenErr = pluginerr.Append(p.capBrokenErr, err)
	p.logger().Warn("capability broken",
		zap.String("plugin", p.name),
		zap.Stringer("capability", abi.Set(bit)),
		zap.Error(err))
}

// NewValid is New followed by Validate, destroying the vtable and returning
// an error if validation fails, mirroring loader.NewValidPlugin.
func NewValid(vt abi.VTable, tables *table.Registry) (*Plugin, error) {
	p, err := New(vt, tables)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		vt.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *Plugin) validate() error {
	if p.validated {
		return p.validErr
	}
	p.validated = true

	v, err := semver.NewVersion(p.requiredAPIVersion)
	if err != nil {
		p.validErr = pluginerr.Wrap(pluginerr.Load, p.name, err, "declares a malformed required API version %q", p.requiredAPIVersion)
		return p.validErr
	}
	if !SupportedAPIVersions.Check(v) {
		p.validErr = pluginerr.New(pluginerr.Load, p.name,
			"requires API version %s, which is not in the range supported by this host", p.requiredAPIVersion)
		return p.validErr
	}

	if p.caps&^abi.Set(abi.CapBroken) == 0 {
		p.validErr = pluginerr.New(pluginerr.Load, p.name, "supports no capability")
		if p.capBrokenErr != nil {
			p.validErr = pluginerr.Append(p.validErr, p.capBrokenErr)
		}
		return p.validErr
	}
	return nil
}

// Validate reports whether the plugin is well-formed and compatible with
// the API version range supported by this host (spec §4.1/§4.2's loading
// step vs. validation step split).
func (p *Plugin) Validate() error {
	p.m.Lock()
	defer p.m.Unlock()
	return p.validate()
}

// Name, Version, RequiredAPIVersion, Description and Contact expose the
// plugin's static identity (spec §3's Plugin type).
func (p *Plugin) Name() string               { return p.name }
func (p *Plugin) Version() string             { return p.version }
func (p *Plugin) RequiredAPIVersion() string  { return p.requiredAPIVersion }
func (p *Plugin) Description() string        { return p.description }
func (p *Plugin) Contact() string             { return p.contact }
func (p *Plugin) Capabilities() abi.Set       { return p.caps }
func (p *Plugin) HasCapBroken() bool          { return p.caps.Has(abi.CapBroken) }
func (p *Plugin) CapBrokenError() error       { return p.capBrokenErr }
func (p *Plugin) Fields() field.Catalog       { return p.fields }
func (p *Plugin) State() State {
	p.m.Lock()
	defer p.m.Unlock()
	return p.state
}

// Sourcing, Extraction and Parsing return this plugin's capability adapters,
// nil until Init succeeds and nil forever for a capability the plugin never
// declared (spec §3's sibling adapters, conditionally active).
func (p *Plugin) Sourcing() *SourcingAdapter     { return p.sourcing }
func (p *Plugin) Extraction() *ExtractionAdapter { return p.extraction }
func (p *Plugin) Parsing() *ParsingAdapter       { return p.parsing }

// Init validates config against the plugin's init schema (if any), builds
// the tables-access vtable this plugin is entitled to (nil unless it
// declares CapExtraction or CapParsing), and calls through to the plugin's
// own init. Init may be called at most once. On failure, per spec §9's
// resolved Open Question, the plugin's LastError() is captured before
// Destroy() is called regardless, so the caller gets a decorated error
// without having to call Destroy() itself.
func (p *Plugin) Init(config string) error {
	p.m.Lock()
	defer p.m.Unlock()

	if p.state == StateInitialized {
		return pluginerr.New(pluginerr.State, p.name, "plugin cannot be initialized twice")
	}
	if p.state == StateDestroyed {
		return pluginerr.New(pluginerr.State, p.name, "plugin has already been destroyed")
	}
	if err := p.validate(); err != nil {
		return pluginerr.Wrap(pluginerr.State, p.name, err, "plugin is not valid")
	}

	config, err := p.validateInitConfig(config)
	if err != nil {
		return err
	}

	var tableAccess abi.TableAccess
	if p.caps.Has(abi.CapExtraction) || p.caps.Has(abi.CapParsing) {
		tableAccess = p.tables.ViewFor(p.name)
	}

	if err := p.vt.Init(config, tableAccess); err != nil {
		lastErr := p.lastError()
		p.vt.Destroy()
		if lastErr != nil {
			err = pluginerr.Wrap(pluginerr.Init, p.name, err, "%s", lastErr.Error())
		} else {
			err = pluginerr.Wrap(pluginerr.Init, p.name, err, "initialization failed")
		}
		p.logger().Error("plugin init failed", zap.String("plugin", p.name), zap.Error(err))
		return err
	}

	p.state = StateInitialized
	if p.caps.Has(abi.CapSourcing) {
		p.sourcing = newSourcingAdapter(p)
	}
	if p.caps.Has(abi.CapExtraction) {
		p.extraction = newExtractionAdapter(p)
	}
	if p.caps.Has(abi.CapParsing) {
		p.parsing = newParsingAdapter(p)
	}
	p.logger().Info("plugin initialized",
		zap.String("plugin", p.name),
		zap.String("version", p.version),
		zap.Stringer("capabilities", p.caps))
	return nil
}

func (p *Plugin) validateInitConfig(config string) (string, error) {
	if !p.hasInitSchema {
		return config, nil
	}
	if len(config) == 0 {
		config = "{}"
	}
	schema := gojsonschema.NewStringLoader(p.initSchema)
	document := gojsonschema.NewStringLoader(config)
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return "", pluginerr.Wrap(pluginerr.Schema, p.name, err, "init config schema could not be evaluated")
	}
	if !result.Valid() {
		return "", pluginerr.New(pluginerr.Schema, p.name, "%s", result.Errors()[0].String())
	}
	return config, nil
}

// Destroy releases this plugin's internal state and revokes its access to
// any table it published, mirroring loader.Unload/destroy. It is idempotent:
// calling it more than once, or calling it before Init, is a no-op.
func (p *Plugin) Destroy() {
	p.m.Lock()
	defer p.m.Unlock()
	if p.state == StateDestroyed {
		return
	}
	// Nil out the capability adapters before releasing the state handle, so
	// a concurrent caller holding a stale adapter reference observes a
	// destroyed plugin instead of racing the underlying vtable's teardown.
	p.sourcing = nil
	p.extraction = nil
	p.parsing = nil
	if p.state == StateInitialized {
		p.vt.Destroy()
	}
	if p.tables != nil {
		p.tables.ReleaseOwned(p.name)
	}
	p.state = StateDestroyed
	p.logger().Info("plugin destroyed", zap.String("plugin", p.name))
}

func (p *Plugin) lastError() error {
	s := p.vt.LastError()
	if s == "" {
		return nil
	}
	return errors.New(s)
}
