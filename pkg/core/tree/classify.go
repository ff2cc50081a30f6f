// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"reflect"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/modtree/modtree/pkg/core/kinds"
	"github.com/modtree/modtree/pkg/support/xsync"
)

// fieldInfo is the classification of one participating struct field.
type fieldInfo struct {
	index int
	name  string
	kind  kinds.Kind
}

// structInfo is the per-type classification of a module struct: which fields
// participate and with which kind, in declaration order.
type structInfo struct {
	typ       reflect.Type // The module struct type (not the pointer to it).
	baseIndex int          // Field index of the embedded Module.
	fields    []fieldInfo
}

// classifyResult caches the classification outcome per type. Errors are cached
// too: classification is deterministic, a broken type stays broken.
type classifyResult struct {
	info *structInfo
	err  error
}

var classifyCache xsync.SyncMap[reflect.Type, classifyResult]

// classifyModuleType returns the field classification of the module struct type
// t, computing and caching it on first use. t is the struct type, not the
// pointer to it.
func classifyModuleType(t reflect.Type) (*structInfo, error) {
	if result, found := classifyCache.Load(t); found {
		return result.info, result.err
	}
	info, err := classifyStruct(t)
	result, _ := classifyCache.LoadOrStore(t, classifyResult{info: info, err: err})
	return result.info, result.err
}

func classifyStruct(t reflect.Type) (*structInfo, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrClassification, "module type %s is not a struct", t)
	}
	info := &structInfo{typ: t, baseIndex: -1}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == moduleBaseType {
			if info.baseIndex >= 0 {
				return nil, errors.Wrapf(ErrClassification, "type %s embeds tree.Module more than once", t)
			}
			info.baseIndex = i
			continue
		}
		tag, hasTag := f.Tag.Lookup("tree")
		if f.PkgPath != "" {
			// Unexported fields never participate, and tagging one is a
			// mistake worth flagging.
			if hasTag {
				return nil, errors.Wrapf(ErrClassification, "type %s: tree tag on unexported field %q", t, f.Name)
			}
			continue
		}
		if f.Type == moduleBaseType || f.Type == reflect.PointerTo(moduleBaseType) {
			return nil, errors.Wrapf(ErrClassification,
				"type %s, field %q: tree.Module must be embedded by value, not held as a field", t, f.Name)
		}
		if isModuleValueType(f.Type) {
			if f.Anonymous {
				return nil, errors.Wrapf(ErrClassification,
					"type %s embeds module %s; only tree.Module may be embedded, compose modules as named pointer fields",
					t, f.Type)
			}
			return nil, errors.Wrapf(ErrClassification,
				"type %s, field %q: holds module %s by value; modules must be held by pointer", t, f.Name, f.Type)
		}
		var kind kinds.Kind
		if hasTag {
			var err error
			kind, err = kinds.ParseTag(tag)
			if err != nil {
				return nil, errors.Wrapf(ErrClassification, "type %s, field %q: %v", t, f.Name, err)
			}
			if err = checkTaggedType(t, f, kind); err != nil {
				return nil, err
			}
		} else {
			kind = defaultKind(f.Type)
		}
		info.fields = append(info.fields, fieldInfo{index: i, name: f.Name, kind: kind})
	}
	if info.baseIndex < 0 {
		return nil, errors.Wrapf(ErrClassification, "type %s does not embed tree.Module", t)
	}
	klog.V(2).Infof("tree: classified %s, %d participating fields", t, len(info.fields))
	return info, nil
}

// checkTaggedType rejects tag/type combinations that can never hold a valid
// value, so the mistake surfaces at the type and not at some later value walk.
func checkTaggedType(t reflect.Type, f reflect.StructField, kind kinds.Kind) error {
	switch kind.Class() {
	case kinds.SubTreeClass:
		if !canHoldSubTree(f.Type) {
			return errors.Wrapf(ErrClassification,
				"type %s, field %q: tagged subtree but type %s cannot hold modules", t, f.Name, f.Type)
		}
	case kinds.ParamClass, kinds.StateClass:
		if holdsModules(f.Type) {
			return errors.Wrapf(ErrClassification,
				"type %s, field %q: tagged %s but type %s holds modules; use subtree or drop the tag",
				t, f.Name, kind, f.Type)
		}
	}
	return nil
}

// defaultKind classifies untagged fields by their declared type: types that
// lead to modules are sub-trees, everything else is static metadata.
func defaultKind(ft reflect.Type) kinds.Kind {
	if leadsToModules(ft) {
		return kinds.SubTree
	}
	return kinds.Static
}

// leadsToModules reports whether the declared type can only hold modules or
// containers of modules.
func leadsToModules(ft reflect.Type) bool {
	if isModuleType(ft) {
		return true
	}
	if _, registered := containerHandlers.Load(ft); registered {
		return true
	}
	switch ft.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return leadsToModules(ft.Elem())
	}
	return false
}

// holdsModules is leadsToModules without the registered-container case: a
// registered container's elements are dynamic, so a leaf-kind tag on one is
// legal and checked per element at the value walk.
func holdsModules(ft reflect.Type) bool {
	if isModuleType(ft) {
		return true
	}
	switch ft.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return holdsModules(ft.Elem())
	}
	return false
}

// canHoldSubTree reports whether a value of type ft could hold modules:
// interface types always qualify, the rest is checked structurally.
func canHoldSubTree(ft reflect.Type) bool {
	if isModuleType(ft) || ft.Kind() == reflect.Interface {
		return true
	}
	if _, registered := containerHandlers.Load(ft); registered {
		return true
	}
	switch ft.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return canHoldSubTree(ft.Elem())
	}
	return false
}
