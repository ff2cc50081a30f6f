// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import "reflect"

// absentType is the unexported type of the Absent sentinel. Being a zero-size
// struct it compares equal only to itself.
type absentType struct{}

// Absent is the sentinel standing for "structurally present, but carrying no
// value": the slot a filtered-out leaf leaves behind. Filter and Partition
// produce it; using Absent in a sub-tree position is a classification error.
var Absent = absentType{}

var absentGoType = reflect.TypeOf(Absent)

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(absentType)
	return ok
}

func (absentType) String() string { return "Absent" }
