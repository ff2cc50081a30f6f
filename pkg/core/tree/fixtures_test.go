// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree_test

import (
	"k8s.io/klog/v2"

	"github.com/modtree/modtree/pkg/core/tensors"
	. "github.com/modtree/modtree/pkg/core/tree"
)

func init() {
	klog.InitFlags(nil)
}

// constTensor builds a float32 tensor filled with value, the cheapest way to
// get distinguishable leaves in tests.
func constTensor(value float32, dimensions ...int) *tensors.Tensor {
	return tensors.FromScalarAndDimensions(value, dimensions...)
}

// Linear is the workhorse test module: two params and two statics.
type Linear struct {
	Module
	W *tensors.Tensor `tree:"param"`
	B *tensors.Tensor `tree:"param"`

	InFeatures  int
	OutFeatures int
}

func (l *Linear) TreeInit() error {
	if l.W == nil {
		l.W = constTensor(0.1, l.OutFeatures, l.InFeatures)
	}
	if l.B == nil {
		l.B = constTensor(0, l.OutFeatures)
	}
	return nil
}

func newLinear(in, out int) *Linear {
	return &Linear{
		W:           constTensor(0.5, out, in),
		B:           constTensor(0, out),
		InFeatures:  in,
		OutFeatures: out,
	}
}

// BatchNorm mixes params with batch statistics.
type BatchNorm struct {
	Module
	Scale  *tensors.Tensor `tree:"param"`
	Offset *tensors.Tensor `tree:"param"`
	Mean   *tensors.Tensor `tree:"batchstat"`
	Var    *tensors.Tensor `tree:"batchstat"`

	Features int
	Momentum float64
}

func newBatchNorm(features int) *BatchNorm {
	return &BatchNorm{
		Scale:    constTensor(1, features),
		Offset:   constTensor(0, features),
		Mean:     constTensor(0, features),
		Var:      constTensor(1, features),
		Features: features,
		Momentum: 0.99,
	}
}

// Dropout carries an rng-kind leaf.
type Dropout struct {
	Module
	Seed *tensors.Tensor `tree:"rng"`
	Rate float64
}

// MLP composes sub-modules through a slice and plain pointer fields, untagged:
// their types lead to modules, so they default to sub-trees.
type MLP struct {
	Module
	Layers []*Linear
	Norm   *BatchNorm
	Drop   *Dropout
	Name   string
}

// newMLP builds the standard 9-leaf test model:
// Layers[0].{W,B}, Layers[1].{W,B}, Norm.{Scale,Offset,Mean,Var}, Drop.Seed.
func newMLP() *MLP {
	return &MLP{
		Layers: []*Linear{newLinear(4, 8), newLinear(8, 2)},
		Norm:   newBatchNorm(2),
		Drop:   &Dropout{Seed: constTensor(42), Rate: 0.5},
		Name:   "mlp",
	}
}

// mlpPaths is the flatten order of newMLP's leaves.
var mlpPaths = []string{
	"Layers[0].W", "Layers[0].B",
	"Layers[1].W", "Layers[1].B",
	"Norm.Scale", "Norm.Offset", "Norm.Mean", "Norm.Var",
	"Drop.Seed",
}
