// Package layout implements the column traversal strategies used when a
// studio's seats are generated and when an occurrence's inventory is
// materialized. Each addressing mode is an ordering function selected by
// the studio's mode enum, so seat generation itself stays free of
// per-mode branching.
package layout

import "github.com/pedalhouse/reservation/internal/model"

// ColumnOrder returns the 1-based column indices of a row in the order
// they are traversed under the given addressing mode. Unknown modes fall
// back to left-to-right. A non-positive column count yields an empty
// slice.
//
//	left_to_right: 1, 2, 3, 4, 5
//	right_to_left: 5, 4, 3, 2, 1
//	center:        3, 2, 4, 1, 5   (midpoint first, nearer-left before nearer-right)
func ColumnOrder(mode model.AddressingMode, cols int) []int {
	if cols <= 0 {
		return nil
	}
	switch mode {
	case model.AddressRightToLeft:
		out := make([]int, 0, cols)
		for c := cols; c >= 1; c-- {
			out = append(out, c)
		}
		return out
	case model.AddressCenter:
		return centerOrder(cols)
	default:
		out := make([]int, 0, cols)
		for c := 1; c <= cols; c++ {
			out = append(out, c)
		}
		return out
	}
}

// centerOrder starts at the midpoint and alternates outward, visiting
// the nearer column on the left before the one on the right. For an
// even count the midpoint is the left of the two central columns.
func centerOrder(cols int) []int {
	mid := (cols + 1) / 2
	out := make([]int, 0, cols)
	out = append(out, mid)
	for d := 1; len(out) < cols; d++ {
		if c := mid - d; c >= 1 {
			out = append(out, c)
		}
		if c := mid + d; c <= cols {
			out = append(out, c)
		}
	}
	return out
}

// Traverse walks an R×C grid row-major, applying the mode's column
// order within each row, and calls visit with each (row, col) pair in
// 1-based coordinates. It is the single traversal used by both seat
// generation and inventory materialization so the two can never
// disagree on addressing.
func Traverse(mode model.AddressingMode, rows, cols int, visit func(row, col int)) {
	order := ColumnOrder(mode, cols)
	for r := 1; r <= rows; r++ {
		for _, c := range order {
			visit(r, c)
		}
	}
}
