// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"fmt"

	"github.com/modtree/modtree/pkg/support/xslices"
)

// Partial is a tree in partial form: a structure descriptor plus its ordered
// leaves, some of which may be Absent. Filter always returns its result as a
// *Partial; Unflatten and Merge return one whenever absent slots remain,
// because typed module fields cannot hold the Absent sentinel.
//
// A Partial flattens like any tree, to the same descriptor as the tree it was
// derived from, so it participates in Filter, Merge and Equal normally.
type Partial struct {
	def    *TreeDef
	leaves []any
}

// Def returns the structure descriptor.
func (p *Partial) Def() *TreeDef { return p.def }

// Leaves returns a copy of the leaf slots, Absent ones included.
func (p *Partial) Leaves() []any { return xslices.Copy(p.leaves) }

// Present returns how many leaf slots hold a value.
func (p *Partial) Present() int {
	count := 0
	for _, leaf := range p.leaves {
		if !IsAbsent(leaf) {
			count++
		}
	}
	return count
}

// String implements fmt.Stringer. Safe on a nil receiver.
func (p *Partial) String() string {
	if p == nil {
		return "Partial(nil)"
	}
	return fmt.Sprintf("Partial(%d/%d leaves present)", p.Present(), len(p.leaves))
}
