// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

// Package treeview renders module trees for terminals: a per-leaf table with
// paths, kinds, shapes and sizes, plus a per-kind summary with totals. It
// accepts anything tree.Flatten accepts, partial trees included -- absent
// leaves render as "--".
package treeview

import (
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/modtree/modtree/pkg/core/kinds"
	"github.com/modtree/modtree/pkg/core/shapes"
	"github.com/modtree/modtree/pkg/core/tensors"
	"github.com/modtree/modtree/pkg/core/tree"
	"github.com/modtree/modtree/pkg/support/xslices"
)

// maxValueWidth bounds the Value column; longer renderings are cut.
const maxValueWidth = 40

// Table renders one row per leaf slot: path, kind, and for shaped leaves
// (anything implementing shapes.HasShape) the shape, element count and memory.
func Table(root any) (string, error) {
	return renderTable(lipgloss.DefaultRenderer(), root)
}

func renderTable(r *lipgloss.Renderer, root any) (string, error) {
	leaves, paths, def, err := tree.FlattenWithPaths(root)
	if err != nil {
		return "", err
	}
	leafKinds := def.LeafKinds()
	table := newTableStyles(r).newPlainTable(true,
		lipgloss.Left, lipgloss.Center, lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Left)
	table.Headers("Path", "Kind", "Shape", "Size", "Bytes", "Value")
	for i, leaf := range leaves {
		table.Row(leafRow(paths[i], leafKinds[i], leaf)...)
	}
	return table.Render(), nil
}

func leafRow(path string, kind kinds.Kind, leaf any) []string {
	row := []string{path, kind.String(), "", "", "", ""}
	switch {
	case leaf == nil:
		row[5] = "<nil>"
	case tree.IsAbsent(leaf):
		row[5] = "--"
	default:
		if rv := reflect.ValueOf(leaf); rv.Kind() == reflect.Pointer && rv.IsNil() {
			row[5] = "<nil>"
			break
		}
		if hasShape, ok := leaf.(shapes.HasShape); ok {
			shape := hasShape.Shape()
			if !shape.Ok() {
				klog.Warningf("treeview: leaf %q (%T) reports an invalid shape", path, leaf)
				row[2] = "<invalid>"
				break
			}
			row[2] = shape.String()
			row[3] = humanize.Comma(int64(shape.Size()))
			row[4] = humanize.Bytes(uint64(shape.Memory()))
			if t, ok := leaf.(*tensors.Tensor); ok && t.Ok() && t.IsScalar() {
				row[5] = truncate(fmt.Sprintf("%v", t.Value()))
			}
			break
		}
		row[5] = truncate(fmt.Sprintf("%v", leaf))
	}
	return row
}

func truncate(s string) string {
	if len(s) <= maxValueWidth {
		return s
	}
	// Cut on a rune boundary; a byte cut can leave invalid UTF-8 in the cell.
	runes := []rune(s)
	if len(runes) <= maxValueWidth {
		return s
	}
	return string(runes[:maxValueWidth-3]) + "..."
}

// kindTotals aggregates the Summary numbers for one kind.
type kindTotals struct {
	leaves int
	absent int
	size   int64
	memory uint64
}

// Summary renders per-kind totals: leaf slots, absent slots, elements and
// memory, with a trailing total row. Leaves without a shape count as slots but
// contribute no elements or bytes.
func Summary(root any) (string, error) {
	return renderSummary(lipgloss.DefaultRenderer(), root)
}

func renderSummary(r *lipgloss.Renderer, root any) (string, error) {
	leaves, def, err := tree.Flatten(root)
	if err != nil {
		return "", err
	}
	leafKinds := def.LeafKinds()
	totals := make(map[string]*kindTotals)
	for i, leaf := range leaves {
		name := leafKinds[i].String()
		kt := totals[name]
		if kt == nil {
			kt = &kindTotals{}
			totals[name] = kt
		}
		kt.leaves++
		if tree.IsAbsent(leaf) {
			kt.absent++
			continue
		}
		if leaf == nil {
			continue
		}
		if rv := reflect.ValueOf(leaf); rv.Kind() == reflect.Pointer && rv.IsNil() {
			continue
		}
		if hasShape, ok := leaf.(shapes.HasShape); ok {
			shape := hasShape.Shape()
			kt.size += int64(shape.Size())
			kt.memory += uint64(shape.Memory())
		}
	}

	table := newTableStyles(r).newPlainTable(true,
		lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Right)
	table.Headers("Kind", "Leaves", "Absent", "Elements", "Bytes")
	grand := kindTotals{}
	for _, name := range xslices.SortedKeys(totals) {
		kt := totals[name]
		table.Row(name,
			humanize.Comma(int64(kt.leaves)),
			humanize.Comma(int64(kt.absent)),
			humanize.Comma(kt.size),
			humanize.Bytes(kt.memory))
		grand.leaves += kt.leaves
		grand.absent += kt.absent
		grand.size += kt.size
		grand.memory += kt.memory
	}
	table.Row("total",
		humanize.Comma(int64(grand.leaves)),
		humanize.Comma(int64(grand.absent)),
		humanize.Comma(grand.size),
		humanize.Bytes(grand.memory))
	return table.Render(), nil
}

// Fprint writes the title, leaf table and summary of root to w. When w is not
// a color-capable terminal the output degrades to plain ASCII. Styling is
// scoped to w; the package-global color profile is left alone.
func Fprint(w io.Writer, root any) error {
	r := lipgloss.NewRenderer(w)
	header := fmt.Sprintf("%T", root)
	if p, ok := root.(*tree.Partial); ok {
		header = p.String()
	}
	table, err := renderTable(r, root)
	if err != nil {
		return err
	}
	summary, err := renderSummary(r, root)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintln(w, newTableStyles(r).title.Render(header)); err != nil {
		return err
	}
	if _, err = fmt.Fprintln(w, table); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, summary)
	return err
}

// Print writes the tree to stdout.
func Print(root any) error {
	return Fprint(os.Stdout, root)
}
