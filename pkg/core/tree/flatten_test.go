// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree_test

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modtree/modtree/pkg/core/kinds"
	"github.com/modtree/modtree/pkg/core/tensors"
	. "github.com/modtree/modtree/pkg/core/tree"
)

func TestFlattenRoundTrip(t *testing.T) {
	model := newMLP()
	leaves, def, err := Flatten(model)
	require.NoError(t, err)
	require.Equal(t, 9, len(leaves))
	assert.Equal(t, 9, def.NumLeaves())

	// Leaves are carried by reference, in deterministic pre-order.
	assert.Same(t, model.Layers[0].W, leaves[0])
	assert.Same(t, model.Layers[1].B, leaves[3])
	assert.Same(t, model.Drop.Seed, leaves[8])

	rebuilt, err := Unflatten(def, leaves)
	require.NoError(t, err)
	mlp2, ok := rebuilt.(*MLP)
	require.True(t, ok, "Unflatten returned %T", rebuilt)

	// Same leaves, restored statics, a fresh instance.
	assert.NotSame(t, model, mlp2)
	assert.Same(t, model.Layers[0].W, mlp2.Layers[0].W)
	assert.Same(t, model.Norm.Var, mlp2.Norm.Var)
	assert.Equal(t, "mlp", mlp2.Name)
	assert.Equal(t, 4, mlp2.Layers[0].InFeatures)
	assert.Equal(t, 0.99, mlp2.Norm.Momentum)
	assert.True(t, Equal(model, mlp2))

	// And it flattens back to the identical descriptor.
	_, def2, err := Flatten(mlp2)
	require.NoError(t, err)
	assert.Same(t, def, def2)
}

func TestDescriptorInterning(t *testing.T) {
	// Different instances, different leaf values, same structure: one descriptor.
	_, def1, err := Flatten(newMLP())
	require.NoError(t, err)
	m2 := newMLP()
	m2.Layers[0].W = constTensor(99, 8, 4)
	_, def2, err := Flatten(m2)
	require.NoError(t, err)
	assert.Same(t, def1, def2)

	// Statics are part of the structure.
	m3 := newMLP()
	m3.Name = "other"
	_, def3, err := Flatten(m3)
	require.NoError(t, err)
	assert.NotSame(t, def1, def3)

	m4 := newMLP()
	m4.Layers[1].OutFeatures = 3
	_, def4, err := Flatten(m4)
	require.NoError(t, err)
	assert.NotSame(t, def1, def4)

	// So is the container shape.
	m5 := newMLP()
	m5.Layers = m5.Layers[:1]
	_, def5, err := Flatten(m5)
	require.NoError(t, err)
	assert.NotSame(t, def1, def5)
}

func TestLeafKindsAndPaths(t *testing.T) {
	model := newMLP()
	leaves, paths, def, err := FlattenWithPaths(model)
	require.NoError(t, err)
	assert.Equal(t, 9, len(leaves))
	assert.Equal(t, mlpPaths, paths)

	leafKinds := def.LeafKinds()
	require.Equal(t, 9, len(leafKinds))
	for i := 0; i < 6; i++ {
		assert.Equal(t, kinds.Param, leafKinds[i], "leaf %s", paths[i])
	}
	assert.Equal(t, kinds.BatchStat, leafKinds[6])
	assert.Equal(t, kinds.BatchStat, leafKinds[7])
	assert.Equal(t, kinds.Rng, leafKinds[8])

	onlyPaths, err := Paths(model)
	require.NoError(t, err)
	assert.Equal(t, mlpPaths, onlyPaths)

	onlyLeaves, err := Leaves(model)
	require.NoError(t, err)
	assert.Equal(t, leaves, onlyLeaves)
}

type layerDict struct {
	Module
	Children map[string]*Linear
}

type statTable struct {
	Module
	Stats map[int]*tensors.Tensor `tree:"state"`
}

type arrayPair struct {
	Module
	Pair [2]*tensors.Tensor `tree:"param"`
}

type optSlots struct {
	Module
	Moments []any `tree:"state"`
	Step    int
}

func TestMapContainers(t *testing.T) {
	dict := &layerDict{Children: map[string]*Linear{
		"zeta":  newLinear(2, 2),
		"alpha": newLinear(2, 2),
		"mid":   newLinear(2, 2),
	}}
	paths, err := Paths(dict)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Children[alpha].W", "Children[alpha].B",
		"Children[mid].W", "Children[mid].B",
		"Children[zeta].W", "Children[zeta].B",
	}, paths)

	leaves, def, err := Flatten(dict)
	require.NoError(t, err)
	assert.Same(t, dict.Children["alpha"].W, leaves[0])
	rebuilt, err := Unflatten(def, leaves)
	require.NoError(t, err)
	assert.Same(t, dict.Children["zeta"].B, rebuilt.(*layerDict).Children["zeta"].B)

	// Integer keys order by their formatted (lexicographic) form: 1, 10, 2.
	table := &statTable{Stats: map[int]*tensors.Tensor{
		1:  constTensor(1),
		2:  constTensor(2),
		10: constTensor(10),
	}}
	paths, err = Paths(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"Stats[1]", "Stats[10]", "Stats[2]"}, paths)
}

func TestArrayAndAnyContainers(t *testing.T) {
	pair := &arrayPair{Pair: [2]*tensors.Tensor{constTensor(1, 3), constTensor(2, 3)}}
	leaves, def, err := Flatten(pair)
	require.NoError(t, err)
	require.Equal(t, 2, len(leaves))
	assert.Equal(t, []kinds.Kind{kinds.Param, kinds.Param}, def.LeafKinds())
	rebuilt, err := Unflatten(def, leaves)
	require.NoError(t, err)
	assert.Same(t, pair.Pair[1], rebuilt.(*arrayPair).Pair[1])

	// Leaves of any type inside an any-typed container.
	slots := &optSlots{Moments: []any{constTensor(0, 4), constTensor(0, 4), 3}, Step: 7}
	leaves, def, err = Flatten(slots)
	require.NoError(t, err)
	require.Equal(t, 3, len(leaves))
	assert.Equal(t, 3, leaves[2])
	assert.Equal(t, []kinds.Kind{kinds.State, kinds.State, kinds.State}, def.LeafKinds())
	rebuilt, err = Unflatten(def, leaves)
	require.NoError(t, err)
	assert.Equal(t, 7, rebuilt.(*optSlots).Step)
	assert.Equal(t, 3, rebuilt.(*optSlots).Moments[2])
}

func TestNilHandling(t *testing.T) {
	// Nil module child: structural, contributes no leaves, round-trips.
	model := newMLP()
	model.Norm = nil
	model.Drop = nil
	leaves, def, err := Flatten(model)
	require.NoError(t, err)
	assert.Equal(t, 4, len(leaves))
	rebuilt, err := Unflatten(def, leaves)
	require.NoError(t, err)
	assert.Nil(t, rebuilt.(*MLP).Norm)

	// But it changes the structure.
	_, fullDef, err := Flatten(newMLP())
	require.NoError(t, err)
	assert.NotSame(t, fullDef, def)

	// Typed-nil leaf under a leaf-kind field is a regular leaf.
	l := newLinear(2, 2)
	l.B = nil
	leaves, def, err = Flatten(l)
	require.NoError(t, err)
	require.Equal(t, 2, len(leaves))
	var nilTensor *tensors.Tensor
	assert.Equal(t, nilTensor, leaves[1])
	rebuilt, err = Unflatten(def, leaves)
	require.NoError(t, err)
	assert.Nil(t, rebuilt.(*Linear).B)
	assert.True(t, Equal(l, rebuilt))

	// A nil leaf slot in an any container round-trips as nil too.
	slots := &optSlots{Moments: []any{nil}}
	leaves, def, err = Flatten(slots)
	require.NoError(t, err)
	require.Equal(t, 1, len(leaves))
	assert.Nil(t, leaves[0])
	rebuilt, err = Unflatten(def, leaves)
	require.NoError(t, err)
	assert.Nil(t, rebuilt.(*optSlots).Moments[0])

	// Nil and empty containers are different structures.
	_, nilDef, err := Flatten(&layerDict{})
	require.NoError(t, err)
	_, emptyDef, err := Flatten(&layerDict{Children: map[string]*Linear{}})
	require.NoError(t, err)
	assert.NotSame(t, nilDef, emptyDef)
}

type chain struct {
	Module
	Next *chain
	Tag  string
}

func TestSharingAndCycles(t *testing.T) {
	// Diamond sharing is legal: the shared module flattens once per path.
	shared := newLinear(2, 2)
	dict := &layerDict{Children: map[string]*Linear{"a": shared, "b": shared}}
	leaves, _, err := Flatten(dict)
	require.NoError(t, err)
	require.Equal(t, 4, len(leaves))
	assert.Same(t, leaves[0], leaves[2])

	// A module containing itself is not.
	a := &chain{Tag: "a"}
	a.Next = a
	_, _, err = Flatten(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClassification))
	assert.Contains(t, err.Error(), "cycle")

	b := &chain{Tag: "b"}
	c := &chain{Tag: "c", Next: b}
	b.Next = c
	_, _, err = Flatten(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClassification))

	// The same chain without the loop is fine.
	d := &chain{Tag: "d", Next: &chain{Tag: "e"}}
	_, def, err := Flatten(d)
	require.NoError(t, err)
	assert.Equal(t, 0, def.NumLeaves())
}

type anyHolder struct {
	Module
	Child any `tree:"subtree"`
}

func TestFlattenErrors(t *testing.T) {
	_, _, err := Flatten(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClassification))

	_, _, err = Flatten(42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClassification))
	assert.Contains(t, err.Error(), "<root>")

	// Plain value, nil and Absent in sub-tree position.
	for _, child := range []any{42, nil, Absent} {
		_, _, err = Flatten(&anyHolder{Child: child})
		require.Error(t, err, "child %v", child)
		assert.True(t, errors.Is(err, ErrClassification), "child %v", child)
		assert.Contains(t, err.Error(), "Child")
	}

	// Map keys must be strings or integers.
	bad := &struct {
		Module
		ByScale map[float64]*tensors.Tensor `tree:"state"`
	}{ByScale: map[float64]*tensors.Tensor{0.5: constTensor(1)}}
	_, _, err = Flatten(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClassification))
	assert.Contains(t, err.Error(), "map key")
}

func TestPartialWithoutDescriptor(t *testing.T) {
	// Partials come out of Filter, Partition, Unflatten and Merge; a
	// hand-built one carries no descriptor and must fail cleanly, not crash
	// the consumers of the descriptor.
	for name, p := range map[string]*Partial{"zero value": {}, "typed nil": nil} {
		_, _, err := Flatten(p)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrReconstruction), name)
		assert.Contains(t, err.Error(), "descriptor", name)
	}

	_, err := Filter(&Partial{}, kinds.Params)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconstruction))

	_, _, err = Partition(&Partial{}, kinds.Params)
	require.Error(t, err)

	_, _, _, err = FlattenWithPaths(&Partial{})
	require.Error(t, err)

	err = exceptions.TryCatch[error](func() { Equal(&Partial{}, newMLP()) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconstruction))
}

func TestUnflattenErrors(t *testing.T) {
	leaves, def, err := Flatten(newMLP())
	require.NoError(t, err)

	_, err = Unflatten(def, leaves[:len(leaves)-1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconstruction))

	_, err = Unflatten(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconstruction))

	// A leaf that doesn't fit its slot.
	badLeaves := append([]any{}, leaves...)
	badLeaves[0] = "not a tensor"
	_, err = Unflatten(def, badLeaves)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconstruction))
	assert.Contains(t, err.Error(), "assignable")
}

func TestUnflattenWithAbsentGivesPartial(t *testing.T) {
	leaves, def, err := Flatten(newMLP())
	require.NoError(t, err)
	leaves[0] = Absent
	rebuilt, err := Unflatten(def, leaves)
	require.NoError(t, err)
	partial, ok := rebuilt.(*Partial)
	require.True(t, ok, "Unflatten returned %T", rebuilt)
	assert.Same(t, def, partial.Def())
	assert.Equal(t, 8, partial.Present())

	// A Partial re-flattens to the same descriptor and leaves.
	leaves2, def2, err := Flatten(partial)
	require.NoError(t, err)
	assert.Same(t, def, def2)
	assert.Equal(t, leaves, leaves2)
	assert.True(t, IsAbsent(leaves2[0]))
}

func TestAbsentSentinel(t *testing.T) {
	assert.True(t, IsAbsent(Absent))
	assert.False(t, IsAbsent(nil))
	assert.False(t, IsAbsent(0))
	assert.Equal(t, "Absent", Absent.String())
}

func TestModulePredicates(t *testing.T) {
	assert.True(t, IsModule(&Linear{}))
	assert.True(t, IsModule(&MLP{}))
	assert.False(t, IsModule(Linear{}))
	assert.False(t, IsModule(42))
	assert.False(t, IsModule(nil))
	assert.False(t, (&Linear{}).Initialized())
}
