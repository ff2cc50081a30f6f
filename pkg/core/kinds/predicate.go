// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package kinds

// Predicate selects kinds, typically to drive tree filtering.
type Predicate func(Kind) bool

// Of returns a predicate matching every kind that IsA target.
// Of(State) matches State, BatchStat, Rng and user refinements of State;
// Of(BatchStat) matches only BatchStat.
func Of(target Kind) Predicate {
	return func(k Kind) bool { return k.IsA(target) }
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(k Kind) bool { return !p(k) }
}

// And returns the conjunction of the given predicates.
// With no arguments it matches everything.
func And(ps ...Predicate) Predicate {
	return func(k Kind) bool {
		for _, p := range ps {
			if !p(k) {
				return false
			}
		}
		return true
	}
}

// Or returns the disjunction of the given predicates.
// With no arguments it matches nothing.
func Or(ps ...Predicate) Predicate {
	return func(k Kind) bool {
		for _, p := range ps {
			if p(k) {
				return true
			}
		}
		return false
	}
}

// Ready-made predicates for the built-in kinds.
var (
	Params     = Of(Param)
	States     = Of(State)
	BatchStats = Of(BatchStat)
	Rngs       = Of(Rng)
)
