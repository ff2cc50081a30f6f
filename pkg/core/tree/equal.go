// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import "reflect"

// HasTreeEqual is implemented by leaf types that define their own equality,
// like *tensors.Tensor. Equal prefers it over reflect.DeepEqual.
type HasTreeEqual interface {
	TreeEqual(other any) bool
}

// Equal reports whether a and b are equal trees: identical structure
// descriptor and equal leaves, slot by slot. Absent only equals Absent.
// It panics if either tree cannot be flattened, since comparing unflattenable
// values is a programming error.
func Equal(a, b any) bool {
	aLeaves, aDef := MustFlatten(a)
	bLeaves, bDef := MustFlatten(b)
	if aDef != bDef {
		return false
	}
	for i, aLeaf := range aLeaves {
		if !leafEqual(aLeaf, bLeaves[i]) {
			return false
		}
	}
	return true
}

func leafEqual(a, b any) bool {
	if IsAbsent(a) || IsAbsent(b) {
		return IsAbsent(a) && IsAbsent(b)
	}
	if eq, ok := a.(HasTreeEqual); ok {
		return eq.TreeEqual(b)
	}
	return reflect.DeepEqual(a, b)
}
