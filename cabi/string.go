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

/*
#include <string.h>
*/
import "C"
import (
	"reflect"
	"unsafe"
)

// goString exposes a NUL-terminated C string as a Go string without
// copying it, avoiding the allocation C.GoString performs for short-lived
// reads, adapted from the teacher's root-level string.go. The result
// aliases the C buffer and is only valid while that buffer is alive.
func goString(charPtr unsafe.Pointer) string {
	if charPtr == nil {
		return ""
	}
	n := int(C.strlen((*C.char)(charPtr)))
	var res string
	(*reflect.StringHeader)(unsafe.Pointer(&res)).Data = uintptr(charPtr)
	(*reflect.StringHeader)(unsafe.Pointer(&res)).Len = n
	return res
}
