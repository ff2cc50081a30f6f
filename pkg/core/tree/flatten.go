// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/pkg/errors"

	"github.com/modtree/modtree/pkg/core/kinds"
	"github.com/modtree/modtree/pkg/support/sets"
	"github.com/modtree/modtree/pkg/support/xslices"
)

// Flatten walks root in deterministic pre-order -- struct fields in declaration
// order, slice and array elements by index, map entries sorted by formatted
// key -- and returns the ordered leaf values plus the interned structure
// descriptor.
//
// root must be a module (a pointer to a struct embedding Module), a container
// leading to modules, or a *Partial. Static fields are captured by value into
// the descriptor and don't appear among the leaves. Absent values keep their
// leaf slots. Flattening the same value twice yields the same leaves and the
// identical (pointer-equal) descriptor.
func Flatten(root any) (leaves []any, def *TreeDef, err error) {
	if p, ok := root.(*Partial); ok {
		// Filter, Partition, Unflatten and Merge always pair leaves with a
		// descriptor; only a hand-built zero value (or typed nil) lacks one.
		if p == nil || p.def == nil {
			return nil, nil, errors.Wrapf(ErrReconstruction, "Partial without a structure descriptor")
		}
		return p.Leaves(), p.def, nil
	}
	if root == nil {
		return nil, nil, errors.Wrapf(ErrClassification, "cannot flatten a nil root")
	}
	w := &walker{onPath: sets.Make[uintptr]()}
	def, err = w.walk("", reflect.ValueOf(root), kinds.SubTree)
	if err != nil {
		return nil, nil, err
	}
	return w.leaves, def, nil
}

// FlattenWithPaths is Flatten also returning the path of each leaf, e.g.
// "layers[1].W" or "stats[mean]".
func FlattenWithPaths(root any) (leaves []any, paths []string, def *TreeDef, err error) {
	leaves, def, err = Flatten(root)
	if err != nil {
		return nil, nil, nil, err
	}
	return leaves, def.Paths(), def, nil
}

// Leaves returns the ordered leaf values of root.
func Leaves(root any) ([]any, error) {
	leaves, _, err := Flatten(root)
	return leaves, err
}

// Paths returns the path of every leaf slot of root.
func Paths(root any) ([]string, error) {
	_, def, err := Flatten(root)
	if err != nil {
		return nil, err
	}
	return def.Paths(), nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// displayPath makes the root's empty path printable in error messages.
func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

// walker accumulates leaves while building the descriptor. onPath carries the
// module pointers of the current descent: sharing a module twice in a tree
// (a diamond) is fine, containing itself is not.
type walker struct {
	leaves []any
	onPath sets.Set[uintptr]
}

// walk descends into v, which hangs off a field edge of kind edge (the
// implicit edge above the root is SubTree), and returns the interned
// descriptor of the sub-tree.
func (w *walker) walk(path string, v reflect.Value, edge kinds.Kind) (*TreeDef, error) {
	if !v.IsValid() {
		// Untyped nil, e.g. a nil any field.
		if edge.Class() == kinds.SubTreeClass {
			return nil, errors.Wrapf(ErrClassification, "nil value in sub-tree position at %q", displayPath(path))
		}
		w.leaves = append(w.leaves, nil)
		return leafDef, nil
	}
	if v.Kind() == reflect.Interface {
		return w.walk(path, v.Elem(), edge)
	}
	t := v.Type()
	if t == absentGoType {
		if edge.Class() == kinds.SubTreeClass {
			return nil, errors.Wrapf(ErrClassification, "Absent in sub-tree position at %q", displayPath(path))
		}
		w.leaves = append(w.leaves, Absent)
		return leafDef, nil
	}
	if handler, registered := containerHandlers.Load(t); registered {
		return w.walkContainer(path, v, edge, handler)
	}
	if isModuleType(t) {
		if edge.Class() != kinds.SubTreeClass {
			return nil, errors.Wrapf(ErrClassification,
				"module %s under %s-kind field at %q; modules only live under sub-tree fields",
				t, edge, displayPath(path))
		}
		if v.IsNil() {
			return newNilDef(t), nil
		}
		ptr := v.Pointer()
		if w.onPath.Has(ptr) {
			return nil, errors.Wrapf(ErrClassification,
				"cycle detected: module %s at %q contains itself", t, displayPath(path))
		}
		w.onPath.Insert(ptr)
		def, err := w.walkModule(path, v)
		w.onPath.Delete(ptr)
		return def, err
	}
	if isModuleValueType(t) {
		return nil, errors.Wrapf(ErrClassification,
			"module %s by value at %q; modules must be held by pointer", t, displayPath(path))
	}
	switch t.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return newNilDef(t), nil
		}
		return w.walkElems(sliceClass, path, v, edge)
	case reflect.Array:
		return w.walkElems(arrayClass, path, v, edge)
	case reflect.Map:
		if v.IsNil() {
			return newNilDef(t), nil
		}
		return w.walkMap(path, v, edge)
	}
	// Anything else is a leaf value.
	if edge.Class() == kinds.SubTreeClass {
		return nil, errors.Wrapf(ErrClassification,
			"value of type %s in sub-tree position at %q; leaves need a leaf-kind tag (param, state, ...) on their field",
			t, displayPath(path))
	}
	w.leaves = append(w.leaves, v.Interface())
	return leafDef, nil
}

func (w *walker) walkModule(path string, v reflect.Value) (*TreeDef, error) {
	t := v.Type().Elem()
	info, err := classifyModuleType(t)
	if err != nil {
		return nil, errors.WithMessagef(err, "at %q", displayPath(path))
	}
	elem := v.Elem()
	base := v.Interface().(moduleMarker).treeModule()
	var statics []staticEntry
	var children []childEntry
	for _, f := range info.fields {
		fv := elem.Field(f.index)
		if f.kind.Class() == kinds.StaticClass {
			statics = append(statics, staticEntry{index: f.index, name: f.name, value: fv.Interface()})
			continue
		}
		childDef, err := w.walk(joinPath(path, f.name), fv, f.kind)
		if err != nil {
			return nil, err
		}
		children = append(children, childEntry{index: f.index, name: f.name, kind: f.kind, def: childDef})
	}
	return newModuleDef(t, base.initialized, statics, children), nil
}

func (w *walker) walkElems(class nodeClass, path string, v reflect.Value, edge kinds.Kind) (*TreeDef, error) {
	elems := make([]*TreeDef, v.Len())
	for i := range elems {
		elemDef, err := w.walk(fmt.Sprintf("%s[%d]", path, i), v.Index(i), edge)
		if err != nil {
			return nil, err
		}
		elems[i] = elemDef
	}
	return newElemsDef(class, v.Type(), elems), nil
}

func (w *walker) walkMap(path string, v reflect.Value, edge kinds.Kind) (*TreeDef, error) {
	mapKeys, keyStrs, err := sortedMapKeys(v)
	if err != nil {
		return nil, errors.WithMessagef(err, "at %q", displayPath(path))
	}
	keys := make([]any, len(mapKeys))
	elems := make([]*TreeDef, len(mapKeys))
	for i, k := range mapKeys {
		keys[i] = k.Interface()
		elemDef, err := w.walk(path+"["+keyStrs[i]+"]", v.MapIndex(k), edge)
		if err != nil {
			return nil, err
		}
		elems[i] = elemDef
	}
	return newMapDef(v.Type(), keys, keyStrs, elems), nil
}

func (w *walker) walkContainer(path string, v reflect.Value, edge kinds.Kind, handler containerHandler) (*TreeDef, error) {
	containerElems, aux, err := handler.flatten(v.Interface())
	if err != nil {
		return nil, errors.Wrapf(err, "flattening container %s at %q", v.Type(), displayPath(path))
	}
	elems := make([]*TreeDef, len(containerElems))
	for i, containerElem := range containerElems {
		elemDef, err := w.walk(fmt.Sprintf("%s[%d]", path, i), reflect.ValueOf(containerElem), edge)
		if err != nil {
			return nil, err
		}
		elems[i] = elemDef
	}
	return newContainerDef(v.Type(), aux, elems), nil
}

// sortedMapKeys returns v's keys plus their formatted form, sorted
// lexicographically by the formatted key. Only string and integer keys are
// supported, anything else has no canonical order.
func sortedMapKeys(v reflect.Value) ([]reflect.Value, []string, error) {
	mapKeys := v.MapKeys()
	keyStrs := make([]string, len(mapKeys))
	for i, k := range mapKeys {
		ks, err := formatMapKey(k)
		if err != nil {
			return nil, nil, err
		}
		keyStrs[i] = ks
	}
	order := xslices.Iota(0, len(mapKeys))
	slices.SortFunc(order, func(i, j int) int { return cmp.Compare(keyStrs[i], keyStrs[j]) })
	sortedKeys := make([]reflect.Value, len(mapKeys))
	sortedStrs := make([]string, len(mapKeys))
	for out, idx := range order {
		sortedKeys[out] = mapKeys[idx]
		sortedStrs[out] = keyStrs[idx]
	}
	return sortedKeys, sortedStrs, nil
}

func formatMapKey(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", errors.Wrapf(ErrClassification,
		"unsupported map key type %s, only string and integer keys are allowed", k.Type())
}
