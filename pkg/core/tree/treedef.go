// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package tree

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/modtree/modtree/pkg/core/kinds"
	"github.com/modtree/modtree/pkg/support/xsync"
)

// nodeClass discriminates the structural node types of a TreeDef.
type nodeClass int8

const (
	leafClass nodeClass = iota
	nilClass
	moduleClass
	sliceClass
	arrayClass
	mapClass
	containerClass
)

// staticEntry is a static field captured by value into the descriptor.
type staticEntry struct {
	index int
	name  string
	value any
}

// childEntry is one dynamic (non-static) field of a module node.
type childEntry struct {
	index int
	name  string
	kind  kinds.Kind
	def   *TreeDef
}

// TreeDef is the structure descriptor of a tree: everything about it except
// the leaf values. Module types, static field values, init flags, container
// shapes and map keys are all part of the structure, the leaves are not, so a
// filtered tree shares the descriptor of the tree it came from.
//
// Descriptors are interned: two trees with equal structure yield the same
// *TreeDef pointer, so descriptors compare with == and serve as map keys.
// They are immutable and live for the lifetime of the process.
type TreeDef struct {
	class nodeClass
	typ   reflect.Type // Module struct type, container type, or declared type of a nil; nil for leaves.

	initialized bool          // moduleClass: the base's init-once flag.
	statics     []staticEntry // moduleClass; containerClass stores the handler aux as a single entry.
	children    []childEntry  // moduleClass.

	keys    []any      // mapClass: key values in descriptor order.
	keyStrs []string   // mapClass: formatted keys, aligned with keys.
	elems   []*TreeDef // slice, array, map and container children.

	numLeaves int
	internKey string
}

// NumLeaves returns how many leaf slots the structure has, Absent ones
// included.
func (def *TreeDef) NumLeaves() int { return def.numLeaves }

// LeafKinds returns the kind of every leaf slot, in flatten order. Kinds live
// on module field edges and are inherited down through containers.
func (def *TreeDef) LeafKinds() []kinds.Kind {
	return def.appendLeafKinds(kinds.SubTree, make([]kinds.Kind, 0, def.numLeaves))
}

func (def *TreeDef) appendLeafKinds(edge kinds.Kind, out []kinds.Kind) []kinds.Kind {
	switch def.class {
	case leafClass:
		return append(out, edge)
	case nilClass:
		return out
	case moduleClass:
		for _, c := range def.children {
			out = c.def.appendLeafKinds(c.kind, out)
		}
	default:
		for _, e := range def.elems {
			out = e.appendLeafKinds(edge, out)
		}
	}
	return out
}

// Paths returns the path of every leaf slot in flatten order, e.g.
// "layers[1].W" or "stats[mean]". Paths are a structure property, they don't
// depend on leaf values.
func (def *TreeDef) Paths() []string {
	return def.appendPaths("", make([]string, 0, def.numLeaves))
}

func (def *TreeDef) appendPaths(prefix string, out []string) []string {
	switch def.class {
	case leafClass:
		return append(out, prefix)
	case nilClass:
		return out
	case moduleClass:
		for _, c := range def.children {
			out = c.def.appendPaths(joinPath(prefix, c.name), out)
		}
	case mapClass:
		for i, ks := range def.keyStrs {
			out = def.elems[i].appendPaths(prefix+"["+ks+"]", out)
		}
	default:
		for i, e := range def.elems {
			out = e.appendPaths(fmt.Sprintf("%s[%d]", prefix, i), out)
		}
	}
	return out
}

// Signature returns a human-readable description of the structure. It is
// descriptive, not identity: descriptor identity is pointer equality.
func (def *TreeDef) Signature() string {
	var b strings.Builder
	def.writeSignature(&b)
	return b.String()
}

func (def *TreeDef) writeSignature(b *strings.Builder) {
	switch def.class {
	case leafClass:
		b.WriteString("leaf")
	case nilClass:
		fmt.Fprintf(b, "nil(%s)", def.typ)
	case moduleClass:
		b.WriteString(def.typ.String())
		b.WriteByte('{')
		first := true
		if def.initialized {
			b.WriteString("initialized")
			first = false
		}
		for _, s := range def.statics {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(b, "%s=%v", s.name, s.value)
		}
		for _, c := range def.children {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(b, "%s:%s=", c.name, c.kind)
			c.def.writeSignature(b)
		}
		b.WriteByte('}')
	case sliceClass, arrayClass:
		b.WriteByte('[')
		for i, e := range def.elems {
			if i > 0 {
				b.WriteString(", ")
			}
			e.writeSignature(b)
		}
		b.WriteByte(']')
	case mapClass:
		b.WriteByte('{')
		for i, ks := range def.keyStrs {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: ", ks)
			def.elems[i].writeSignature(b)
		}
		b.WriteByte('}')
	case containerClass:
		fmt.Fprintf(b, "%s(", def.typ)
		for i, e := range def.elems {
			if i > 0 {
				b.WriteString(", ")
			}
			e.writeSignature(b)
		}
		b.WriteByte(')')
	}
}

// String implements fmt.Stringer, as Signature.
func (def *TreeDef) String() string { return def.Signature() }

// Descriptor interning. The first descriptor built for a given structure wins;
// equal structures built later resolve to the same pointer. Intern keys are
// assembled bottom-up from already-interned child pointers, type ids, and
// static value representations, so key equality means structural equality.
var (
	internTable xsync.SyncMap[string, *TreeDef]

	// leafDef is the shared descriptor of every leaf slot: a leaf's identity
	// lives in its position, not its value.
	leafDef = &TreeDef{class: leafClass, numLeaves: 1, internKey: "leaf"}
)

func intern(def *TreeDef) *TreeDef {
	def.internKey = buildInternKey(def)
	canonical, loaded := internTable.LoadOrStore(def.internKey, def)
	if !loaded {
		klog.V(2).Infof("tree: interned new structure descriptor with %d leaves: %s",
			def.numLeaves, def.Signature())
	}
	return canonical
}

// typeID returns a process-unique id for a reflect.Type. Type ids keep intern
// keys collision-free without relying on type name formatting.
var (
	typeIDs    xsync.SyncMap[reflect.Type, int64]
	nextTypeID atomic.Int64
)

func typeID(t reflect.Type) int64 {
	if id, found := typeIDs.Load(t); found {
		return id
	}
	id, _ := typeIDs.LoadOrStore(t, nextTypeID.Add(1))
	return id
}

// staticRepr formats a static (or container aux) value for the intern key:
// dynamic type plus Go-syntax value, so 1 (int) and 1.0 (float64) held in any
// fields stay distinct.
func staticRepr(v any) string {
	return fmt.Sprintf("%T=%#v", v, v)
}

func buildInternKey(def *TreeDef) string {
	var b strings.Builder
	switch def.class {
	case leafClass:
		return "leaf"
	case nilClass:
		fmt.Fprintf(&b, "nil|t%d", typeID(def.typ))
	case moduleClass:
		fmt.Fprintf(&b, "mod|t%d|init=%t", typeID(def.typ), def.initialized)
		for _, s := range def.statics {
			fmt.Fprintf(&b, "|%s=%s", s.name, staticRepr(s.value))
		}
		for _, c := range def.children {
			fmt.Fprintf(&b, "|%s:%s:%p", c.name, c.kind, c.def)
		}
	case sliceClass:
		fmt.Fprintf(&b, "slice|t%d", typeID(def.typ))
		for _, e := range def.elems {
			fmt.Fprintf(&b, "|%p", e)
		}
	case arrayClass:
		fmt.Fprintf(&b, "array|t%d", typeID(def.typ))
		for _, e := range def.elems {
			fmt.Fprintf(&b, "|%p", e)
		}
	case mapClass:
		fmt.Fprintf(&b, "map|t%d", typeID(def.typ))
		for i, ks := range def.keyStrs {
			fmt.Fprintf(&b, "|%q=%p", ks, def.elems[i])
		}
	case containerClass:
		fmt.Fprintf(&b, "cont|t%d|aux=%s", typeID(def.typ), staticRepr(def.statics[0].value))
		for _, e := range def.elems {
			fmt.Fprintf(&b, "|%p", e)
		}
	}
	return b.String()
}

func newNilDef(typ reflect.Type) *TreeDef {
	return intern(&TreeDef{class: nilClass, typ: typ})
}

func newModuleDef(typ reflect.Type, initialized bool, statics []staticEntry, children []childEntry) *TreeDef {
	def := &TreeDef{class: moduleClass, typ: typ, initialized: initialized, statics: statics, children: children}
	for _, c := range children {
		def.numLeaves += c.def.numLeaves
	}
	return intern(def)
}

func newElemsDef(class nodeClass, typ reflect.Type, elems []*TreeDef) *TreeDef {
	def := &TreeDef{class: class, typ: typ, elems: elems}
	for _, e := range elems {
		def.numLeaves += e.numLeaves
	}
	return intern(def)
}

func newMapDef(typ reflect.Type, keys []any, keyStrs []string, elems []*TreeDef) *TreeDef {
	def := &TreeDef{class: mapClass, typ: typ, keys: keys, keyStrs: keyStrs, elems: elems}
	for _, e := range elems {
		def.numLeaves += e.numLeaves
	}
	return intern(def)
}

func newContainerDef(typ reflect.Type, aux any, elems []*TreeDef) *TreeDef {
	def := &TreeDef{
		class:   containerClass,
		typ:     typ,
		statics: []staticEntry{{name: "aux", value: aux}},
		elems:   elems,
	}
	for _, e := range elems {
		def.numLeaves += e.numLeaves
	}
	return intern(def)
}
