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

package cabi

import (
	"reflect"
	"unsafe"
)

// aliasBytes exposes size bytes of a C-owned buffer as a []byte without a
// copy, the way the teacher's bytesReadWriter (bytes.go) aliases a C buffer
// for safe Go-side access. The slice is only valid for as long as the
// plugin guarantees the buffer is alive; callers that need to retain the
// data past the current call must copy it out explicitly.
func aliasBytes(buffer unsafe.Pointer, size int) []byte {
	if buffer == nil || size <= 0 {
		return nil
	}
	var b []byte
	h := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	h.Data = uintptr(buffer)
	h.Len = size
	h.Cap = size
	return b
}

// copyBytes is like aliasBytes but returns an owned copy, for data the
// caller needs to outlive the current call into the plugin (spec §4.3's
// event batch must remain valid until the next NextBatch call, which this
// package satisfies by copying eagerly).
func copyBytes(buffer unsafe.Pointer, size int) []byte {
	aliased := aliasBytes(buffer, size)
	if aliased == nil {
		return nil
	}
	out := make([]byte, len(aliased))
	copy(out, aliased)
	return out
}
