// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"github.com/pkg/errors"

	"github.com/modtree/modtree/pkg/core/kinds"
)

// The Must variants panic instead of returning an error, for model
// construction code where a failure is a bug, not a condition to handle.

// MustFlatten is Flatten, panicking on error.
func MustFlatten(root any) ([]any, *TreeDef) {
	leaves, def, err := Flatten(root)
	if err != nil {
		panic(errors.WithMessagef(err, "tree.MustFlatten(%T)", root))
	}
	return leaves, def
}

// MustUnflatten is Unflatten, panicking on error.
func MustUnflatten(def *TreeDef, leaves []any) any {
	root, err := Unflatten(def, leaves)
	if err != nil {
		panic(errors.WithMessagef(err, "tree.MustUnflatten"))
	}
	return root
}

// MustFilter is Filter, panicking on error.
func MustFilter(root any, pred kinds.Predicate) *Partial {
	p, err := Filter(root, pred)
	if err != nil {
		panic(errors.WithMessagef(err, "tree.MustFilter(%T)", root))
	}
	return p
}

// MustMerge is Merge, panicking on error.
func MustMerge(operands ...any) any {
	root, err := Merge(operands...)
	if err != nil {
		panic(errors.WithMessagef(err, "tree.MustMerge"))
	}
	return root
}

// MustInit is Init, panicking on error.
func MustInit(root any) {
	if err := Init(root); err != nil {
		panic(errors.WithMessagef(err, "tree.MustInit(%T)", root))
	}
}
