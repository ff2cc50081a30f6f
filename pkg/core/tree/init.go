// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/modtree/modtree/pkg/core/kinds"
	"github.com/modtree/modtree/pkg/support/sets"
)

// Initializer is implemented by modules with one-time setup logic, typically
// drawing initial parameter values. Init runs the hook at most once per
// instance; flatten/unflatten round-trips never re-run it.
type Initializer interface {
	TreeInit() error
}

// Init walks the modules of root depth-first, children before parents, and for
// each module not yet initialized runs its Initializer hook (when implemented)
// and marks it initialized. Modules already initialized are skipped but their
// sub-trees are still visited, so grafting fresh children under an initialized
// parent works.
//
// Init mutates root in place and belongs to the construction phase, before the
// tree is snapshotted with Flatten. The initialized flag is part of the
// structure, so trees flattened before and after Init have different
// descriptors.
func Init(root any) error {
	if p, ok := root.(*Partial); ok {
		return errors.Wrapf(ErrClassification, "cannot Init a partial tree (%s)", p)
	}
	if root == nil {
		return errors.Wrapf(ErrClassification, "cannot Init a nil root")
	}
	w := &initWalker{onPath: sets.Make[uintptr]()}
	return w.walk("", reflect.ValueOf(root))
}

type initWalker struct {
	onPath sets.Set[uintptr]
}

// walk descends only through sub-tree edges: statics and leaf-kind fields
// cannot legally contain modules.
func (w *initWalker) walk(path string, v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() == reflect.Interface {
		return w.walk(path, v.Elem())
	}
	t := v.Type()
	if handler, registered := containerHandlers.Load(t); registered {
		containerElems, _, err := handler.flatten(v.Interface())
		if err != nil {
			return errors.Wrapf(err, "flattening container %s at %q", t, displayPath(path))
		}
		for i, containerElem := range containerElems {
			if err := w.walk(fmt.Sprintf("%s[%d]", path, i), reflect.ValueOf(containerElem)); err != nil {
				return err
			}
		}
		return nil
	}
	if isModuleType(t) {
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if w.onPath.Has(ptr) {
			return errors.Wrapf(ErrClassification,
				"cycle detected: module %s at %q contains itself", t, displayPath(path))
		}
		w.onPath.Insert(ptr)
		err := w.walkModule(path, v)
		w.onPath.Delete(ptr)
		return err
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := w.walk(fmt.Sprintf("%s[%d]", path, i), v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		mapKeys, keyStrs, err := sortedMapKeys(v)
		if err != nil {
			return errors.WithMessagef(err, "at %q", displayPath(path))
		}
		for i, k := range mapKeys {
			if err := w.walk(path+"["+keyStrs[i]+"]", v.MapIndex(k)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *initWalker) walkModule(path string, v reflect.Value) error {
	info, err := classifyModuleType(v.Type().Elem())
	if err != nil {
		return errors.WithMessagef(err, "at %q", displayPath(path))
	}
	elem := v.Elem()
	for _, f := range info.fields {
		if f.kind.Class() != kinds.SubTreeClass {
			continue
		}
		if err := w.walk(joinPath(path, f.name), elem.Field(f.index)); err != nil {
			return err
		}
	}
	base := v.Interface().(moduleMarker).treeModule()
	if base.initialized {
		return nil
	}
	if initializer, ok := v.Interface().(Initializer); ok {
		if err := initializer.TreeInit(); err != nil {
			return errors.WithMessagef(err, "initializing module at %q", displayPath(path))
		}
	}
	base.initialized = true
	return nil
}
