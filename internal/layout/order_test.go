package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pedalhouse/reservation/internal/model"
)

func TestColumnOrder(t *testing.T) {
	tests := []struct {
		name string
		mode model.AddressingMode
		cols int
		want []int
	}{
		{"left to right", model.AddressLeftToRight, 5, []int{1, 2, 3, 4, 5}},
		{"right to left", model.AddressRightToLeft, 5, []int{5, 4, 3, 2, 1}},
		{"center odd", model.AddressCenter, 5, []int{3, 2, 4, 1, 5}},
		{"center even", model.AddressCenter, 4, []int{2, 1, 3, 4}},
		{"center single", model.AddressCenter, 1, []int{1}},
		{"unknown mode falls back", model.AddressingMode("bogus"), 3, []int{1, 2, 3}},
		{"zero columns", model.AddressLeftToRight, 0, nil},
		{"negative columns", model.AddressRightToLeft, -2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColumnOrder(tt.mode, tt.cols))
		})
	}
}

func TestColumnOrderIsPermutation(t *testing.T) {
	for _, mode := range []model.AddressingMode{model.AddressLeftToRight, model.AddressRightToLeft, model.AddressCenter} {
		for cols := 1; cols <= 12; cols++ {
			got := ColumnOrder(mode, cols)
			assert.Len(t, got, cols)
			seen := make(map[int]bool, cols)
			for _, c := range got {
				assert.GreaterOrEqual(t, c, 1)
				assert.LessOrEqual(t, c, cols)
				assert.False(t, seen[c], "mode %s cols %d repeats column %d", mode, cols, c)
				seen[c] = true
			}
		}
	}
}

func TestTraverse(t *testing.T) {
	type pos struct{ r, c int }
	var got []pos
	Traverse(model.AddressRightToLeft, 3, 5, func(r, c int) {
		got = append(got, pos{r, c})
	})

	assert.Len(t, got, 15)
	// Row 1 must be visited 5,4,3,2,1 before row 2 starts.
	want := []pos{{1, 5}, {1, 4}, {1, 3}, {1, 2}, {1, 1}}
	assert.Equal(t, want, got[:5])
	assert.Equal(t, pos{2, 5}, got[5])
	assert.Equal(t, pos{3, 1}, got[14])
}
