// Package symbol provides small helpers over index strings: ordered
// sequences of single-character axis identifiers (spec.md §3's "Index
// string"). An index string may repeat a character — that designates
// multiple dimensions bound to the same axis, which must all agree on
// extent at runtime.
package symbol

import "sort"

// Axes returns the unique axis characters of idx in first-occurrence order.
func Axes(idx string) []rune {
	seen := make(map[rune]bool, len(idx))
	out := make([]rune, 0, len(idx))
	for _, c := range idx {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Count returns how many times axis appears in idx.
func Count(idx string, axis rune) int {
	n := 0
	for _, c := range idx {
		if c == axis {
			n++
		}
	}
	return n
}

// Positions returns the (0-based) positions at which axis occurs in idx.
func Positions(idx string, axis rune) []int {
	var out []int
	for i, c := range idx {
		if c == axis {
			out = append(out, i)
		}
	}
	return out
}

// SortedAxes returns the unique axis characters across all of indices,
// sorted in canonical (ascending) order. This is the default loop order
// spec.md §4.4.2 step 4 and the DESIGN NOTES "Schedule defaulting" entry
// require when a schedule has no explicit loop_order.
func SortedAxes(indices ...string) []rune {
	seen := make(map[rune]bool)
	var out []rune
	for _, idx := range indices {
		for _, c := range idx {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
