// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"reflect"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/modtree/modtree/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromShape(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Float32, 2, 3))
	require.True(t, tensor.Ok())
	assert.Equal(t, dtypes.Float32, tensor.DType())
	assert.Equal(t, 2, tensor.Rank())
	assert.Equal(t, 6, tensor.Size())
	assert.Equal(t, 6*4, int(tensor.Memory()))
	ConstFlatData(tensor, func(flat []float32) {
		require.Len(t, flat, 6)
		for _, v := range flat {
			assert.Equal(t, float32(0), v)
		}
	})
	require.Panics(t, func() { FromShape(shapes.Invalid()) })
}

func TestFromScalar(t *testing.T) {
	tensor := FromScalar(float32(3.5))
	require.True(t, tensor.IsScalar())
	assert.Equal(t, float32(3.5), ToScalar[float32](tensor))

	// Go int is stored as int64 (or int32 on 32-bit platforms).
	intTensor := FromScalar(5)
	assert.Equal(t, dtypes.FromGoType(reflect.TypeOf(int(0))), intTensor.DType())
	assert.EqualValues(t, 5, intTensor.Value())
}

func TestFromScalarAndDimensions(t *testing.T) {
	tensor := FromScalarAndDimensions(float64(1.5), 2, 2)
	assert.Equal(t, [][]float64{{1.5, 1.5}, {1.5, 1.5}}, tensor.Value())

	intTensor := FromScalarAndDimensions(7, 3)
	flatAny := intTensor.Value()
	switch flat := flatAny.(type) {
	case []int64:
		assert.Equal(t, []int64{7, 7, 7}, flat)
	case []int32:
		assert.Equal(t, []int32{7, 7, 7}, flat)
	default:
		t.Fatalf("unexpected flat type %T", flatAny)
	}
}

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, tensor.Value())
	require.Panics(t, func() { FromFlatDataAndDimensions([]float32{1, 2, 3}, 2, 3) })
}

func TestFromValue(t *testing.T) {
	tensor := FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	assert.Equal(t, "(Float32)[2 3]", tensor.Shape().String())
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, tensor.Value())

	scalar := FromValue(true)
	assert.Equal(t, true, ToScalar[bool](scalar))

	ints := FromValue([][]int{{1, 2}, {3, 4}})
	assert.Equal(t, 4, ints.Size())
	if ints.DType() == dtypes.Int64 {
		assert.Equal(t, [][]int64{{1, 2}, {3, 4}}, ints.Value())
	}

	// Irregular and empty shapes are rejected.
	require.Panics(t, func() { FromValue([][]float32{{1, 2}, {3}}) })
	require.Panics(t, func() { FromValue([][]float32{}) })
	require.Panics(t, func() { FromAnyValue(&struct{}{}) })

	// FromAnyValue passes tensors through.
	assert.Same(t, tensor, FromAnyValue(tensor))
}

func TestFloat16(t *testing.T) {
	data := []float16.Float16{
		float16.Fromfloat32(1), float16.Fromfloat32(2),
		float16.Fromfloat32(3), float16.Fromfloat32(4),
	}
	tensor := FromFlatDataAndDimensions(data, 2, 2)
	assert.Equal(t, dtypes.Float16, tensor.DType())
	assert.Equal(t, 2*2*2, int(tensor.Memory()))
	ConstFlatData(tensor, func(flat []float16.Float16) {
		assert.Equal(t, float32(3), flat[2].Float32())
	})
}

func TestEqualAndClone(t *testing.T) {
	a := FromValue([]float64{1, 2, 3})
	b := FromValue([]float64{1, 2, 3})
	c := FromValue([]float64{1, 2, 4})
	d := FromValue([][]float64{{1, 2, 3}})

	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))

	clone := a.Clone()
	assert.True(t, a.Equal(clone))
	MutableFlatData(clone, func(flat []float64) { flat[0] = 100 })
	assert.False(t, a.Equal(clone))

	assert.True(t, a.TreeEqual(b))
	assert.False(t, a.TreeEqual(c))
	assert.False(t, a.TreeEqual("not a tensor"))

	var nilTensor *Tensor
	assert.True(t, nilTensor.TreeEqual(nilTensor))
	assert.False(t, nilTensor.TreeEqual(a))
	assert.False(t, a.TreeEqual(nilTensor))
}

func TestFlatDataAccess(t *testing.T) {
	tensor := FromValue([]int32{1, 2, 3})
	MutableFlatData(tensor, func(flat []int32) { flat[1] = 20 })
	assert.Equal(t, []int32{1, 20, 3}, tensor.Value())
	require.Panics(t, func() { ConstFlatData(tensor, func(flat []float32) {}) })
	require.Panics(t, func() { MutableFlatData(tensor, func(flat []float64) {}) })
	require.Panics(t, func() { ToScalar[int32](tensor) })
}

func TestString(t *testing.T) {
	small := FromValue([]float32{1, 2})
	assert.Contains(t, small.String(), "(Float32)[2]")
	assert.Contains(t, small.String(), "[1 2]")

	big := FromShape(shapes.Make(dtypes.Float32, 100, 100))
	s := big.String()
	assert.Contains(t, s, "(Float32)[100 100]")
	assert.Contains(t, s, "10000 values")
	assert.False(t, strings.Contains(s, "0 0 0 0 0 0 0 0 0 0 0 0"))

	var invalid *Tensor
	assert.Equal(t, "Tensor(<invalid>)", invalid.String())
	require.Panics(t, func() { invalid.AssertValid() })
}
