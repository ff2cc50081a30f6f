// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"github.com/modtree/modtree/pkg/core/kinds"
	"github.com/modtree/modtree/pkg/support/xslices"
)

// Filter returns a same-structure projection of root in which every leaf whose
// kind doesn't satisfy pred is replaced by Absent. Statics and structure are
// untouched: the result carries root's exact (pointer-equal) descriptor.
// Already-absent slots stay absent, so filtering composes by conjunction --
// Filter(Filter(t, p), q) equals Filter(t, kinds.And(p, q)) -- and filtering
// twice with the same predicate changes nothing.
func Filter(root any, pred kinds.Predicate) (*Partial, error) {
	leaves, def, err := Flatten(root)
	if err != nil {
		return nil, err
	}
	leafKinds := def.LeafKinds()
	for i, leaf := range leaves {
		if IsAbsent(leaf) {
			continue
		}
		if !pred(leafKinds[i]) {
			leaves[i] = Absent
		}
	}
	return &Partial{def: def, leaves: leaves}, nil
}

// Partition splits root into the sub-tree matching pred and the complementary
// rest. Merging the two halves rebuilds root exactly:
//
//	match, rest, _ := tree.Partition(model, kinds.Params)
//	same := tree.MustMerge(match, rest)
func Partition(root any, pred kinds.Predicate) (match, rest *Partial, err error) {
	leaves, def, err := Flatten(root)
	if err != nil {
		return nil, nil, err
	}
	leafKinds := def.LeafKinds()
	restLeaves := xslices.Copy(leaves)
	for i, leaf := range leaves {
		if IsAbsent(leaf) {
			continue
		}
		if pred(leafKinds[i]) {
			restLeaves[i] = Absent
		} else {
			leaves[i] = Absent
		}
	}
	return &Partial{def: def, leaves: leaves}, &Partial{def: def, leaves: restLeaves}, nil
}
