// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a dense multi-dimensional array type, the reference
// leaf value held by module fields.
//
// A Tensor is a flat Go slice of the DType's Go type plus a shapes.Shape. It is
// deliberately host-memory only: the numerical engine consuming flattened module
// trees keeps its own device representations, this package only needs values that
// can be constructed, compared and displayed.
//
// Construction:
//
//   - FromShape: zero-initialized tensor of the given shape.
//   - FromScalar, FromScalarAndDimensions, FromFlatDataAndDimensions: from Go values.
//   - FromValue (and FromAnyValue): from arbitrary multi-dimensional Go slices.
//
// Data access goes through ConstFlatData/MutableFlatData, which hold the tensor's
// lock for the duration of the access function. Tensors stored in module trees are
// treated as immutable snapshots: build them, then stop mutating.
package tensors

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/modtree/modtree/pkg/core/shapes"
	"github.com/modtree/modtree/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Tensor is a dense multi-dimensional array of one of the supported DTypes.
//
// The zero value is invalid, use one of the From* constructors.
type Tensor struct {
	shape shapes.Shape

	mu   sync.Mutex
	flat any // Slice of the Go type corresponding to shape.DType, of length shape.Size().
}

// FromShape returns a Tensor of the given shape, with the data zero-initialized.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): shape is invalid", shape)
	}
	size := shape.Size()
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	return &Tensor{shape: shape, flat: flatV.Interface()}
}

// AssertValid panics if t is nil or uninitialized.
func (t *Tensor) AssertValid() {
	if t == nil {
		panic(errors.New("tensors.Tensor is nil"))
	}
	if !t.shape.Ok() {
		panic(errors.New("tensors.Tensor shape is invalid -- was it created with one of the From* constructors?"))
	}
	if t.flat == nil {
		panic(errors.New("tensors.Tensor holds no data -- was it created with one of the From* constructors?"))
	}
}

// Ok returns whether the tensor is valid and holds data.
func (t *Tensor) Ok() bool {
	return t != nil && t.shape.Ok() && t.flat != nil
}

// Shape of the tensor. It implements the shapes.HasShape interface.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements, the product of the dimensions.
func (t *Tensor) Size() int { return t.shape.Size() }

// IsScalar returns whether the tensor holds a single value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Memory returns the number of bytes used to store the tensor's data.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// FromScalar returns a scalar Tensor with the given value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions returns a Tensor of the given dimensions with every
// element set to value. With no dimensions it returns a scalar.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) (t *Tensor) {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	t = FromShape(shape)
	if v, isInt := any(value).(int); isInt {
		// Go `int` is stored as Int64 or Int32 depending on the platform.
		t.fillConverted(v)
		return
	}
	MutableFlatData(t, func(flat []T) {
		xslices.FillSlice(flat, value)
	})
	return
}

// FromFlatDataAndDimensions returns a Tensor of the given dimensions with the data
// copied from the flat slice, laid out row-major. It panics if the number of
// elements doesn't match the dimensions.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) (t *Tensor) {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions(%s): data has %d elements, dimensions require %d", shape, len(data), shape.Size())
	}
	t = FromShape(shape)
	if intData, isInt := any(data).([]int); isInt {
		t.copyConverted(intData)
		return
	}
	MutableFlatData(t, func(flat []T) {
		copy(flat, data)
	})
	return
}

// fillConverted sets every element to v, converting it to the flat slice's element type.
func (t *Tensor) fillConverted(v int) {
	t.MutableFlatData(func(flatAny any) {
		flatV := reflect.ValueOf(flatAny)
		converted := reflect.ValueOf(v).Convert(flatV.Type().Elem())
		for ii := 0; ii < flatV.Len(); ii++ {
			flatV.Index(ii).Set(converted)
		}
	})
}

// copyConverted copies data into the flat slice, converting each element.
func (t *Tensor) copyConverted(data []int) {
	t.MutableFlatData(func(flatAny any) {
		flatV := reflect.ValueOf(flatAny)
		elemT := flatV.Type().Elem()
		for ii, v := range data {
			flatV.Index(ii).Set(reflect.ValueOf(v).Convert(elemT))
		}
	})
}

// ConstFlatData calls accessFn with the tensor's flat data (a slice of the DType's
// Go type), holding the tensor's lock for the duration of the call.
// The slice must not be modified -- see MutableFlatData for that.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.AssertValid()
	t.mu.Lock()
	defer t.mu.Unlock()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with the tensor's flat data, holding the tensor's
// lock for the duration of the call. The slice may be modified in place.
//
// Only use during construction: tensors already stored in module trees are treated
// as immutable snapshots.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.AssertValid()
	t.mu.Lock()
	defer t.mu.Unlock()
	accessFn(t.flat)
}

// ConstFlatData calls accessFn with the tensor's typed flat data.
// It panics if T doesn't match the tensor's DType. Notice Go `int` values are
// stored as int64 or int32 depending on the platform, so access them as such.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("tensors.ConstFlatData[%T]: tensor is %s", v, t.shape.DType)
	}
	t.ConstFlatData(func(flat any) {
		accessFn(flat.([]T))
	})
}

// MutableFlatData calls accessFn with the tensor's typed flat data, which may be
// modified in place. It panics if T doesn't match the tensor's DType.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("tensors.MutableFlatData[%T]: tensor is %s", v, t.shape.DType)
	}
	t.MutableFlatData(func(flat any) {
		accessFn(flat.([]T))
	})
}

// ToScalar returns the value of a scalar Tensor.
// It panics if the tensor is not a scalar or if T doesn't match its DType.
func ToScalar[T dtypes.Supported](t *Tensor) (value T) {
	t.AssertValid()
	if !t.IsScalar() {
		exceptions.Panicf("tensors.ToScalar: tensor is %s, not a scalar", t.shape)
	}
	ConstFlatData(t, func(flat []T) {
		value = flat[0]
	})
	return
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	t2 := FromShape(t.shape.Clone())
	t.ConstFlatData(func(flat any) {
		t2.MutableFlatData(func(flat2 any) {
			reflect.Copy(reflect.ValueOf(flat2), reflect.ValueOf(flat))
		})
	})
	return t2
}

// Equal checks whether t and other have the same shape and data.
//
// Slow implementation: fine for small tensors, write something specialized for the
// DType if speed is needed.
func (t *Tensor) Equal(other *Tensor) bool {
	t.AssertValid()
	other.AssertValid()
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	equal := false
	t.ConstFlatData(func(flat0 any) {
		other.ConstFlatData(func(flat1 any) {
			equal = reflect.DeepEqual(flat0, flat1)
		})
	})
	return equal
}

// TreeEqual implements leaf equality for module trees: true if other is a *Tensor
// with the same shape and data. Unlike Equal it tolerates nil and invalid
// tensors, which only compare equal to themselves.
func (t *Tensor) TreeEqual(other any) bool {
	otherT, ok := other.(*Tensor)
	if !ok {
		return false
	}
	if !t.Ok() || !otherT.Ok() {
		return t == otherT
	}
	return t.Equal(otherT)
}

// MaxStringSize is the largest number of elements String prints in full; larger
// tensors print only their shape and size.
const MaxStringSize = 64

// String prints the shape and, for small tensors, the values.
func (t *Tensor) String() string {
	if !t.Ok() {
		return "Tensor(<invalid>)"
	}
	if t.Size() <= MaxStringSize {
		return fmt.Sprintf("%s: %v", t.shape, t.Value())
	}
	return fmt.Sprintf("%s: (%d values)", t.shape, t.Size())
}
