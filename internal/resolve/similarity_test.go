package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "ACME", "ACME", 100},
		{"empty left", "", "ACME", 0},
		{"empty right", "ACME", "", 0},
		{"one substitution", "ABCD", "ABCE", 75},
		{"one insertion", "ACME STEEL", "ACME STEELS", 100 * (1 - 1.0/21)},
		{"disjoint", "ABC", "XYZ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 0.001)
		})
	}
}

func TestRatio_Symmetric(t *testing.T) {
	assert.Equal(t, Ratio("ACME STEEL", "ACME STAHL"), Ratio("ACME STAHL", "ACME STEEL"))
}

func TestTokenSortRatio_OrderIndependent(t *testing.T) {
	assert.Equal(t, 100.0, TokenSortRatio("Acme Steel GmbH", "GmbH Acme Steel"))
	assert.Equal(t, 100.0, TokenSortRatio("Steel, Acme", "acme steel"))
}

func TestTokenSortRatio_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"Thyssenkrupp Steel Europe", "ThyssenKrupp Stahl"},
		{"Nucor", "Nucor Steel Berkeley"},
		{"Tata Steel IJmuiden", "Tata Steel Nederland"},
		{"Posco", "Baosteel"},
	}
	for _, p := range pairs {
		r := TokenSortRatio(p[0], p[1])
		assert.GreaterOrEqual(t, r, 0.0, p)
		assert.Less(t, r, 100.0, p)
	}
}

func TestTokenSortRatio_Deterministic(t *testing.T) {
	first := TokenSortRatio("Salzgitter Flachstahl", "Salzgitter AG")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, TokenSortRatio("Salzgitter Flachstahl", "Salzgitter AG"))
	}
}
