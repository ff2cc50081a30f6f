// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

// Package tree turns ordinary Go structs into flat, immutable trees of leaves
// that a functional numerical engine can traverse, transform and rebuild.
//
// Modules are structs embedding Module whose fields are annotated with kinds
// (package kinds) through the `tree:"..."` struct tag:
//
//	type Linear struct {
//		tree.Module
//		W *tensors.Tensor `tree:"param"`
//		B *tensors.Tensor `tree:"param"`
//		InFeatures  int
//		OutFeatures int
//	}
//
// Untagged fields default to static metadata, or to sub-trees when their
// declared type leads to modules (module pointers, slices/arrays/maps of
// modules). Unexported fields never participate. Kind assignment is fixed per
// type and validated once, at the first Flatten involving the type.
//
// Flatten converts a module tree into its ordered leaves plus an interned
// *TreeDef structure descriptor; Unflatten inverts it. Filter projects a tree
// by leaf kind, replacing excluded leaves with the Absent sentinel; Merge
// recombines trees of identical structure. The typical training-step split:
//
//	params, states, err := tree.Partition(model, kinds.Params)
//	// ... the engine transforms params' leaves ...
//	model2 := tree.MustMerge(states, updatedParams).(*MyModel)
//
// Since typed module fields cannot hold the Absent sentinel, trees with absent
// leaves exist in partial form (*Partial): Filter always returns one, and
// Unflatten and Merge return one whenever absent slots remain. A *Partial
// flattens to the same descriptor as the tree it was filtered from, which is
// what makes the partition/merge round-trip exact.
//
// All operations are pure over immutable snapshots. The only process-wide
// mutable state (per-type classifications, descriptor interning, container
// handlers) is write-once-then-read-only and safe for concurrent use.
package tree
