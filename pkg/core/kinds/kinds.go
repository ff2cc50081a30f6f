// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

// Package kinds defines the vocabulary of field kinds used to annotate module fields.
//
// A kind tells the tree machinery what a field holds: trainable parameters (Param),
// mutable state (State and its refinements BatchStat and Rng), nested sub-modules
// (SubTree) or plain metadata captured into the structure descriptor (Static).
//
// Kinds are attached to field declarations with the `tree:"..."` struct tag and are
// fixed per type. See package tree for how they are consumed.
//
// Refinements make the taxonomy extensible without losing structural matching:
// BatchStat is State refined with "batch", so a predicate selecting State also
// selects BatchStat, while a predicate selecting BatchStat only selects that
// refinement. User-defined refinements (e.g. `tree:"state:ema"`) behave the same way.
package kinds

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Class is the base classification of a field kind.
type Class int8

const (
	// InvalidClass is the zero value, not a valid classification.
	InvalidClass Class = iota

	// StaticClass fields are metadata: captured by value into the structure
	// descriptor and never emitted as leaves.
	StaticClass

	// ParamClass fields hold trainable values.
	ParamClass

	// StateClass fields hold values mutated across calls (running statistics,
	// random-number generator state, caches).
	StateClass

	// SubTreeClass fields hold nested modules (or containers of modules).
	SubTreeClass
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case StaticClass:
		return "static"
	case ParamClass:
		return "param"
	case StateClass:
		return "state"
	case SubTreeClass:
		return "subtree"
	}
	return "invalid"
}

// Kind is the classification of one module field: a base Class plus an optional
// refinement name. The zero value is invalid.
//
// Kind is a small value type, comparable with ==.
type Kind struct {
	class      Class
	refinement string
}

// The built-in kinds. BatchStat and Rng refine State, so filters selecting all
// of State also select them.
var (
	Static  = Kind{class: StaticClass}
	Param   = Kind{class: ParamClass}
	State   = Kind{class: StateClass}
	SubTree = Kind{class: SubTreeClass}

	// BatchStat marks statistics accumulated during training, like the running
	// mean and variance of a batch-normalization layer.
	BatchStat = State.Refine("batch")

	// Rng marks random-number generator state.
	Rng = State.Refine("rng")
)

// Class returns the base classification of the kind.
func (k Kind) Class() Class { return k.class }

// Refinement returns the refinement name, or "" if the kind is unrefined.
func (k Kind) Refinement() string { return k.refinement }

// IsRefined returns whether the kind carries a refinement name.
func (k Kind) IsRefined() bool { return k.refinement != "" }

// Valid returns whether the kind has a valid classification.
// The zero Kind is not valid.
func (k Kind) Valid() bool { return k.class != InvalidClass }

// Refine returns a refinement of the kind with the given name.
// Only Param and State can be refined; it panics otherwise, and on names that
// are empty or contain ":".
func (k Kind) Refine(name string) Kind {
	if k.class != ParamClass && k.class != StateClass {
		exceptions.Panicf("kinds: cannot refine %q kinds", k.class)
	}
	if k.refinement != "" {
		exceptions.Panicf("kinds: %q is already refined", k)
	}
	if name == "" || strings.Contains(name, ":") {
		exceptions.Panicf("kinds: invalid refinement name %q", name)
	}
	return Kind{class: k.class, refinement: name}
}

// IsA reports whether k matches target: the classes must be equal, and target's
// refinement must be empty (matching every refinement of the class) or equal to
// k's. So BatchStat.IsA(State) is true, but State.IsA(BatchStat) is false.
func (k Kind) IsA(target Kind) bool {
	if k.class != target.class {
		return false
	}
	return target.refinement == "" || target.refinement == k.refinement
}

// String returns the struct-tag spelling of the kind: "param", "state",
// "batchstat", "rng", "static", "subtree" or the generic "class:refinement"
// form for user refinements. ParseTag inverts it.
func (k Kind) String() string {
	switch k {
	case BatchStat:
		return "batchstat"
	case Rng:
		return "rng"
	}
	if k.refinement == "" {
		return k.class.String()
	}
	return k.class.String() + ":" + k.refinement
}

// ParseTag converts the value of a `tree:"..."` struct tag to a Kind.
// It accepts the built-in names (param, state, batchstat, rng, static, subtree)
// and the refinement forms "param:<name>" and "state:<name>".
func ParseTag(tag string) (Kind, error) {
	switch tag {
	case "param":
		return Param, nil
	case "state":
		return State, nil
	case "batchstat":
		return BatchStat, nil
	case "rng":
		return Rng, nil
	case "static":
		return Static, nil
	case "subtree":
		return SubTree, nil
	}
	if base, refinement, found := strings.Cut(tag, ":"); found && refinement != "" && !strings.Contains(refinement, ":") {
		switch base {
		case "param":
			return Param.Refine(refinement), nil
		case "state":
			return State.Refine(refinement), nil
		}
	}
	return Kind{}, errors.Errorf("invalid field kind tag %q: valid tags are param, state, batchstat, rng, static, subtree, param:<name> and state:<name>", tag)
}
