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

// Package pluginerr implements the error taxonomy shared by every component
// of the plugin host: loader, capability adapters, the field-check adapter
// and the table registry. An error raised on behalf of a named plugin is
// prefixed with that name, so a caller juggling several loaded plugins can
// tell which one misbehaved; errors raised without a plugin name (e.g. by
// the table registry or ParseRef) carry no prefix.
package pluginerr

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Kind classifies an Error without requiring callers to match on distinct
// Go types. See spec §7 for the full taxonomy and propagation rules.
type Kind int

const (
	// Load covers symbol-missing, ABI-version-mismatch and dlopen failures.
	Load Kind = iota
	// Schema covers init config failing validation against the plugin's schema.
	Schema
	// Init covers plugin_init returning failure.
	Init
	// State covers an operation attempted while not initialized, or
	// initialized twice.
	State
	// Descriptor covers malformed field JSON, unknown field types and
	// invariant violations discovered while building a field catalog.
	Descriptor
	// Compatibility covers an undeclared capability, an event source/type
	// code mismatch, or a table key-type mismatch.
	Compatibility
	// Argument covers a malformed bracketed field argument.
	Argument
	// Runtime covers a plugin call returning non-success at runtime,
	// decorated with the plugin's get_last_error text.
	Runtime
)

func (k Kind) String() string {
	switch k {
	case Load:
		return "LoadError"
	case Schema:
		return "SchemaError"
	case Init:
		return "InitError"
	case State:
		return "StateError"
	case Descriptor:
		return "DescriptorError"
	case Compatibility:
		return "CompatibilityError"
	case Argument:
		return "ArgumentError"
	case Runtime:
		return "PluginRuntimeError"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type returned by every exported operation of
// this module. It carries the plugin name that caused it (empty for errors
// raised before a plugin name could be established, e.g. a dlopen failure)
// and the Kind that classifies it for programmatic handling.
type Error struct {
	Kind   Kind
	Plugin string
	Msg    string
	Cause  error
}

// New builds an Error of the given kind for the named plugin.
func New(kind Kind, plugin string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Plugin: plugin, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind for the named plugin, wrapping cause.
func Wrap(kind Kind, plugin string, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Plugin: plugin, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Plugin != "" {
		prefix = fmt.Sprintf("%s: %s", e.Plugin, prefix)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Msg, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Append aggregates a new error into an accumulator using go-multierror,
// preserving nil-safety: appending to or of a nil accumulator is fine, and
// appending a nil error is a no-op. This replaces the teacher's ad hoc
// string-concatenating errAppend helper (pkg/loader/loader.go) so multiple
// independent faults (e.g. several broken capabilities) keep their
// individual *Error identity instead of collapsing into one string.
func Append(acc error, err error) error {
	if err == nil {
		return acc
	}
	return multierror.Append(acc, err)
}
