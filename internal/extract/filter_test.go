package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/civicner/internal/model"
)

func TestIsPlausibleLocation(t *testing.T) {
	f := NewFilter(testGazetteer(t), true)

	tests := []struct {
		candidate string
		want      bool
	}{
		{"Sheffield", true},
		{"sheffield", true},
		{"West Yorkshire", true},
		{"Tunbridge Wells", true},
		{"Haringey Council", true},
		{"Bethnal Green", true},
		{"Kings Cross", true},
		{"SW1A 1AA", true},
		{"sw1a1aa", true},
		{"M1 1AE", true},
		{"Narnia", true},
		{"NHS", false},
		{"narnia", false},
		{"Reform UK", false},
		{"Jane Doe", false},
		{"the big meeting", false},
		{"12345", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			require.Equal(t, tt.want, f.IsPlausibleLocation(tt.candidate))
		})
	}
}

func TestSingleWordFallbackDisabled(t *testing.T) {
	f := NewFilter(testGazetteer(t), false)
	require.False(t, f.IsPlausibleLocation("Narnia"))
	require.True(t, f.IsPlausibleLocation("Leeds"))
	require.True(t, f.IsPlausibleLocation("SW1A 1AA"))
}

func TestFilterApply(t *testing.T) {
	f := NewFilter(testGazetteer(t), true)
	in := model.NewLocationSet("Leeds", "the meeting", "SW1A 1AA")

	out := f.Apply(in)

	require.Equal(t, []string{"Leeds", "SW1A 1AA"}, out.Sorted())
	require.Len(t, in, 3)
}

func TestIsTitleCased(t *testing.T) {
	require.True(t, isTitleCased("Leeds"))
	require.False(t, isTitleCased("LEEDS"))
	require.False(t, isTitleCased("leeds"))
	require.False(t, isTitleCased("McDonald"))
	require.False(t, isTitleCased("123"))
}
