// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import "reflect"

// Module is the embeddable base that opts a struct into tree traversal. Embed
// it by value, exactly once, directly in the module struct:
//
//	type BatchNorm struct {
//		tree.Module
//		Scale *tensors.Tensor `tree:"param"`
//		Mean  *tensors.Tensor `tree:"batchstat"`
//	}
//
// It carries the per-instance init-once flag used by Init. The flag is captured
// into the structure descriptor and restored by Unflatten, so rebuilt copies
// don't re-initialize.
type Module struct {
	initialized bool
}

// treeModule anchors module identification: only pointers to structs embedding
// Module satisfy the marker interface, and since the method is unexported the
// interface cannot be implemented any other way.
func (m *Module) treeModule() *Module { return m }

// Initialized reports whether Init already ran for this instance.
func (m *Module) Initialized() bool { return m.initialized }

// moduleMarker matches pointers to structs that embed Module.
type moduleMarker interface {
	treeModule() *Module
}

// IsModule reports whether v is a module, that is, a pointer to a struct
// embedding tree.Module.
func IsModule(v any) bool {
	_, ok := v.(moduleMarker)
	return ok
}

var (
	moduleBaseType = reflect.TypeOf(Module{})
	markerType     = reflect.TypeOf((*moduleMarker)(nil)).Elem()
)

// isModuleType reports whether t is a concrete module pointer type.
func isModuleType(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Implements(markerType)
}

// isModuleValueType reports whether t is a module struct held by value.
func isModuleValueType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != moduleBaseType && reflect.PointerTo(t).Implements(markerType)
}
