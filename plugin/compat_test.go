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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveCompatSetDefaultsToAllSyscallEvents(t *testing.T) {
	cs, err := resolveCompatSet("p", "", "")
	require.NoError(t, err)
	require.True(t, cs.SourceCompatible(SyscallSource))
	require.True(t, cs.SourceCompatible("anything"))
	require.True(t, cs.TypeCompatible(1))
	require.True(t, cs.TypeCompatible(9999))
}

func TestResolveCompatSetDefaultsToPluginEventType(t *testing.T) {
	cs, err := resolveCompatSet("p", `["my_source"]`, "")
	require.NoError(t, err)
	require.True(t, cs.SourceCompatible("my_source"))
	require.False(t, cs.SourceCompatible(SyscallSource))
	require.True(t, cs.TypeCompatible(PluginEventType))
	require.False(t, cs.TypeCompatible(7))
}

func TestResolveCompatSetExplicitCodes(t *testing.T) {
	cs, err := resolveCompatSet("p", `["syscall"]`, `[1,2,3]`)
	require.NoError(t, err)
	require.True(t, cs.TypeCompatible(1))
	require.False(t, cs.TypeCompatible(4))
}

func TestResolveCompatSetRejectsMalformedJSON(t *testing.T) {
	_, err := resolveCompatSet("p", "not-json", "")
	require.Error(t, err)
	_, err = resolveCompatSet("p", "", "not-json")
	require.Error(t, err)
}
