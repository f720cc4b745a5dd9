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
	"fmt"
	"sync/atomic"
	"unsafe"
)

// handle is an alternative implementation of cgo.Handle (runtime/cgo),
// adapted from the teacher's pkg/cgo/handle.go. It lets this package pass a
// Go value (the table.Registry owner view passed to plugin_init) across the
// FFI boundary as an opaque uintptr-sized token that a C-ABI plugin can hold
// onto and pass back into a later call without ever seeing a real Go pointer.
//
// The handle space is capped at maxHandle, which is plenty for this host's
// usage: one handle per initialized plugin for the tables-access vtable.
type handle uintptr

const (
	maxHandle          = 4096 - 1
	maxNewHandleRounds = 20
)

var (
	handles  [maxHandle + 1]unsafe.Pointer
	noHandle unsafe.Pointer = nil
)

func newHandle(v interface{}) handle {
	rounds := 0
	for h := uintptr(1); ; h++ {
		if atomic.CompareAndSwapPointer(&handles[h], noHandle, unsafe.Pointer(&v)) {
			return handle(h)
		}
		if h < maxHandle {
			continue
		}
		h = uintptr(0)
		if rounds < maxNewHandleRounds {
			rounds++
			continue
		}
		panic(fmt.Sprintf("cabi: could not obtain a new handle after round #%d", rounds))
	}
}

func (h handle) value() interface{} {
	if h > maxHandle || atomic.LoadPointer(&handles[h]) == noHandle {
		panic(fmt.Sprintf("cabi: misuse (value) of an invalid handle %d", h))
	}
	return *(*interface{})(atomic.LoadPointer(&handles[h]))
}

func (h handle) delete() {
	if h > maxHandle || atomic.LoadPointer(&handles[h]) == noHandle {
		panic(fmt.Sprintf("cabi: misuse (delete) of an invalid handle %d", h))
	}
	atomic.StorePointer(&handles[h], noHandle)
}
