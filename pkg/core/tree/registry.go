// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/modtree/modtree/pkg/support/xsync"
)

// containerHandler adapts one registered container type to the tree walkers,
// with the type parameter erased.
type containerHandler struct {
	flatten   func(container any) (elems []any, aux any, err error)
	unflatten func(aux any, elems []any) (any, error)
}

var containerHandlers xsync.SyncMap[reflect.Type, containerHandler]

// RegisterContainer teaches the tree machinery to traverse a custom container
// type T: flattenFn decomposes a container into its ordered elements plus
// opaque static metadata (aux), unflattenFn rebuilds one from them. The pair
// must round-trip: unflattenFn(flattenFn(c)) reproduces c.
//
// Elements inherit the kind of the field the container hangs off, like the
// built-in slice, array and map containers. aux is captured into the structure
// descriptor like a static, so it participates in structural equality and must
// format deterministically with %#v.
//
// Register in an init function, before the first Flatten of any tree using T.
// Registering the same type twice panics.
func RegisterContainer[T any](
	flattenFn func(container T) (elems []any, aux any, err error),
	unflattenFn func(aux any, elems []any) (T, error),
) {
	containerType := reflect.TypeFor[T]()
	handler := containerHandler{
		flatten: func(container any) ([]any, any, error) {
			return flattenFn(container.(T))
		},
		unflatten: func(aux any, elems []any) (any, error) {
			return unflattenFn(aux, elems)
		},
	}
	if _, alreadyRegistered := containerHandlers.LoadOrStore(containerType, handler); alreadyRegistered {
		exceptions.Panicf("tree.RegisterContainer: container type %s registered twice", containerType)
	}
	klog.V(1).Infof("tree: registered container type %s", containerType)
}
