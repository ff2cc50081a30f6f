// Copyright 2025-2026 The ModTree Authors. SPDX-License-Identifier: Apache-2.0

package treeview

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

// tableStyles carries the lipgloss styles of one output. Styles are built per
// renderer so that rendering to a plain writer never touches the package-global
// color profile.
type tableStyles struct {
	title     lipgloss.Style
	headerRow lipgloss.Style
	oddRow    lipgloss.Style
	evenRow   lipgloss.Style
	border    lipgloss.Style
}

func newTableStyles(r *lipgloss.Renderer) tableStyles {
	return tableStyles{
		title: r.NewStyle().Bold(true).Padding(1, 4, 1, 4),
		headerRow: r.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center),
		oddRow:  r.NewStyle().Faint(false).PaddingLeft(1).PaddingRight(1),
		evenRow: r.NewStyle().Faint(true).PaddingLeft(1).PaddingRight(1),
		border:  r.NewStyle().Foreground(lipgloss.Color("99")),
	}
}

// newPlainTable builds the shared table scaffolding: normal border, alternating
// faint rows, one alignment per column (the last alignment repeats for extra
// columns).
func (st tableStyles) newPlainTable(withHeader bool, alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.border).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row < 0 {
				return st.headerRow
			}
			if row%2 == 0 {
				s = st.oddRow
			} else {
				s = st.evenRow
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
}
