// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import "github.com/pkg/errors"

// The error classes of the package. Operations wrap these with context, so
// callers can test against them with errors.Is.
var (
	// ErrClassification indicates a module declaration or a value that doesn't
	// fit its field kind. Declaration errors surface at the first Flatten (or
	// Init) involving the offending type and are cached with it; value errors
	// (a module under a leaf-kind field, a plain value in sub-tree position, an
	// unsupported map key, a cycle) surface at every Flatten that hits them.
	ErrClassification = errors.New("classification error")

	// ErrStructureMismatch indicates Merge received trees whose structure
	// descriptors differ.
	ErrStructureMismatch = errors.New("structure mismatch")

	// ErrReconstruction indicates Unflatten could not rebuild a tree: wrong
	// leaf count for the descriptor, a leaf value not assignable to its slot,
	// or a container type whose handler is gone. These are contract
	// violations, not expected user errors.
	ErrReconstruction = errors.New("reconstruction error")
)
