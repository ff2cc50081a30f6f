// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import "github.com/pkg/errors"

// Merge combines trees of identical structure: every operand must flatten to
// the same (pointer-equal) descriptor, or Merge fails with
// ErrStructureMismatch. Per leaf slot the last operand holding a non-Absent
// value wins, so later operands override earlier ones; slots absent in every
// operand stay absent.
//
// The result is the materialized tree when all slots end up filled, otherwise
// a *Partial. Merging a partition rebuilds the original:
// Merge(Filter(t, p), Filter(t, kinds.Not(p))) equals t.
func Merge(operands ...any) (any, error) {
	if len(operands) == 0 {
		return nil, errors.Errorf("tree.Merge requires at least one operand")
	}
	merged, def, err := Flatten(operands[0])
	if err != nil {
		return nil, errors.WithMessagef(err, "Merge operand 0")
	}
	for i, operand := range operands[1:] {
		leaves, operandDef, err := Flatten(operand)
		if err != nil {
			return nil, errors.WithMessagef(err, "Merge operand %d", i+1)
		}
		if operandDef != def {
			return nil, errors.Wrapf(ErrStructureMismatch,
				"Merge operand %d has structure %s, previous operands have %s", i+1, operandDef, def)
		}
		for slot, leaf := range leaves {
			if !IsAbsent(leaf) {
				merged[slot] = leaf
			}
		}
	}
	return Unflatten(def, merged)
}
