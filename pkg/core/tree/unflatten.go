// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/modtree/modtree/pkg/support/xslices"
)

// Unflatten rebuilds a tree from a structure descriptor and its ordered
// leaves, the exact inverse of Flatten. When every leaf holds a value it
// returns the materialized tree (typically the module pointer); when any leaf
// is Absent the tree exists only in partial form and it returns a *Partial.
//
// Statics and init-once flags are restored from the descriptor. Unflatten
// never runs initialization hooks. The leaves slice is not retained.
func Unflatten(def *TreeDef, leaves []any) (any, error) {
	if def == nil {
		return nil, errors.Wrapf(ErrReconstruction, "nil TreeDef")
	}
	if len(leaves) != def.numLeaves {
		return nil, errors.Wrapf(ErrReconstruction,
			"%d leaves provided, but the structure has %d leaf slots", len(leaves), def.numLeaves)
	}
	for _, leaf := range leaves {
		if IsAbsent(leaf) {
			return &Partial{def: def, leaves: xslices.Copy(leaves)}, nil
		}
	}
	pos := 0
	v, err := materialize(def, leaves, &pos)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// materialize rebuilds the value described by def, consuming leaves from *pos
// onward. A nil leaf comes back as an invalid reflect.Value, the caller zeroes
// the slot.
func materialize(def *TreeDef, leaves []any, pos *int) (reflect.Value, error) {
	switch def.class {
	case leafClass:
		leaf := leaves[*pos]
		*pos++
		if leaf == nil {
			return reflect.Value{}, nil
		}
		return reflect.ValueOf(leaf), nil

	case nilClass:
		return reflect.Zero(def.typ), nil

	case moduleClass:
		ptr := reflect.New(def.typ)
		elem := ptr.Elem()
		for _, s := range def.statics {
			if err := setSlot(elem.Field(s.index), reflect.ValueOf(s.value)); err != nil {
				return reflect.Value{}, errors.WithMessagef(err, "restoring static %s.%s", def.typ, s.name)
			}
		}
		ptr.Interface().(moduleMarker).treeModule().initialized = def.initialized
		for _, c := range def.children {
			v, err := materialize(c.def, leaves, pos)
			if err != nil {
				return reflect.Value{}, err
			}
			if err = setSlot(elem.Field(c.index), v); err != nil {
				return reflect.Value{}, errors.WithMessagef(err, "rebuilding %s.%s", def.typ, c.name)
			}
		}
		return ptr, nil

	case sliceClass:
		s := reflect.MakeSlice(def.typ, len(def.elems), len(def.elems))
		if err := materializeElems(s, def, leaves, pos); err != nil {
			return reflect.Value{}, err
		}
		return s, nil

	case arrayClass:
		a := reflect.New(def.typ).Elem()
		if err := materializeElems(a, def, leaves, pos); err != nil {
			return reflect.Value{}, err
		}
		return a, nil

	case mapClass:
		m := reflect.MakeMapWithSize(def.typ, len(def.elems))
		for i, e := range def.elems {
			v, err := materialize(e, leaves, pos)
			if err != nil {
				return reflect.Value{}, err
			}
			slot := reflect.New(def.typ.Elem()).Elem()
			if err = setSlot(slot, v); err != nil {
				return reflect.Value{}, errors.WithMessagef(err, "rebuilding %s[%s]", def.typ, def.keyStrs[i])
			}
			m.SetMapIndex(reflect.ValueOf(def.keys[i]), slot)
		}
		return m, nil

	case containerClass:
		handler, registered := containerHandlers.Load(def.typ)
		if !registered {
			return reflect.Value{}, errors.Wrapf(ErrReconstruction,
				"no container handler registered for %s", def.typ)
		}
		containerElems := make([]any, len(def.elems))
		for i, e := range def.elems {
			v, err := materialize(e, leaves, pos)
			if err != nil {
				return reflect.Value{}, err
			}
			if v.IsValid() {
				containerElems[i] = v.Interface()
			}
		}
		rebuilt, err := handler.unflatten(def.statics[0].value, containerElems)
		if err != nil {
			return reflect.Value{}, errors.Wrapf(err, "rebuilding container %s", def.typ)
		}
		return reflect.ValueOf(rebuilt), nil
	}
	return reflect.Value{}, errors.Wrapf(ErrReconstruction, "corrupt TreeDef node class %d", def.class)
}

func materializeElems(target reflect.Value, def *TreeDef, leaves []any, pos *int) error {
	for i, e := range def.elems {
		v, err := materialize(e, leaves, pos)
		if err != nil {
			return err
		}
		if err = setSlot(target.Index(i), v); err != nil {
			return errors.WithMessagef(err, "rebuilding %s[%d]", def.typ, i)
		}
	}
	return nil
}

// setSlot assigns v into target, zeroing it when v is invalid (a nil leaf).
func setSlot(target reflect.Value, v reflect.Value) error {
	if !v.IsValid() {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	if !v.Type().AssignableTo(target.Type()) {
		return errors.Wrapf(ErrReconstruction,
			"leaf of type %s is not assignable to slot of type %s", v.Type(), target.Type())
	}
	target.Set(v)
	return nil
}
