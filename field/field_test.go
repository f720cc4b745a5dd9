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

package field

import (
	"testing"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/pluginerr"
	"github.com/stretchr/testify/require"
)

func TestParseValidCatalog(t *testing.T) {
	doc := `[
		{"name":"foo.bar","type":"string","desc":"bar of foo"},
		{"name":"foo.idx","type":"uint64","desc":"indexed thing","arg":{"isRequired":true,"isIndex":true}},
		{"name":"foo.key","type":"string","desc":"keyed thing","isList":true,"arg":{"isKey":true},"properties":["info","bogus"]}
	]`

	cat, err := Parse("myplugin", doc)
	require.NoError(t, err)
	require.Len(t, cat, 3)

	i, e, ok := cat.ByName("foo.idx")
	require.True(t, ok)
	require.Equal(t, 1, i)
	require.True(t, e.Flags.Has(FlagArgRequired))
	require.True(t, e.Flags.Has(FlagArgIndex))
	require.True(t, e.Flags.Has(FlagArgAllowed))

	_, e, ok = cat.ByName("foo.key")
	require.True(t, ok)
	require.True(t, e.Flags.Has(FlagArgKey))
	require.True(t, e.Flags.Has(FlagIsList))
	require.True(t, e.Flags.Has(FlagInfo))
	require.Equal(t, abi.FieldTypeString, e.Type)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse("myplugin", "not json")
	require.Error(t, err)
	require.True(t, pluginerr.Is(err, pluginerr.Descriptor))
}

func TestParseRejectsEmptyName(t *testing.T) {
	_, err := Parse("myplugin", `[{"name":"","type":"string","desc":"d"}]`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty name")
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse("myplugin", `[{"name":"f","type":"bogus","desc":"d"}]`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown type")
}

func TestParseRejectsRequiredWithoutIndexOrKey(t *testing.T) {
	_, err := Parse("myplugin", `[{"name":"f","type":"string","desc":"d","arg":{"isRequired":true}}]`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "neither isIndex nor isKey")
}

func TestCanonicalRoundTrip(t *testing.T) {
	doc := `[
		{"name":"a","type":"string","desc":"x","display":"A"},
		{"name":"b","type":"uint64","desc":"y","isList":true,"arg":{"isIndex":true,"isRequired":true}},
		{"name":"c","type":"ipv4net","desc":"z","arg":{"isKey":true},"properties":["conversation"]}
	]`
	cat, err := Parse("p", doc)
	require.NoError(t, err)

	canon, err := Canonical(cat)
	require.NoError(t, err)

	cat2, err := Parse("p", canon)
	require.NoError(t, err)

	require.Equal(t, cat, cat2)
}
