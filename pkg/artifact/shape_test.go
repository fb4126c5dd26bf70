package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_UniformGridUnchanged(t *testing.T) {
	g := Normalize("🟩🟩\n🟩🟩", 15)
	assert.Equal(t, []string{"🟩🟩", "🟩🟩"}, g.Rows)
	assert.Equal(t, 2, g.Width)
	assert.False(t, g.Truncated)
	assert.True(t, g.Uniform())
}

func TestNormalize_CentersShortRows(t *testing.T) {
	in := "❄️❄️❄️❄️\n🏠🎄🏠\n⛄️⛄️"
	g := Normalize(in, 15)

	require.Len(t, g.Rows, 3)
	assert.Equal(t, 4, g.Width)
	assert.True(t, g.Uniform())
	assert.Equal(t, "❄️❄️❄️❄️", g.Rows[0])
	assert.Equal(t, "🏠🎄🏠　", g.Rows[1], "odd deficit puts the extra glyph on the right")
	assert.Equal(t, "　⛄️⛄️　", g.Rows[2], "even deficit is split evenly")
}

func TestNormalize_CustomFiller(t *testing.T) {
	n := Normalizer{MaxLines: 10, DensityThreshold: 0.3, Filler: "⬛"}
	g := n.Normalize("🟦🟦🟦🟦\n🟦🟦")
	assert.Equal(t, []string{"🟦🟦🟦🟦", "⬛🟦🟦⬛"}, g.Rows)

	n.Filler = "ab" // more than one cell, default used instead
	g = n.Normalize("🟦🟦🟦🟦\n🟦🟦")
	assert.Equal(t, "　🟦🟦　", g.Rows[1])
}

func TestNormalize_SingleLineUntouched(t *testing.T) {
	g := Normalize("(ง •̀_•́)ง", 15)
	assert.Equal(t, []string{"(ง •̀_•́)ง"}, g.Rows)
	assert.Equal(t, Width("(ง •̀_•́)ง"), g.Width)
	assert.False(t, g.Truncated)
}

func TestNormalize_AlphabeticTextUntouched(t *testing.T) {
	in := "  /\\_/\\\n ( o.o )\n  > ^ <"
	g := Normalize(in, 15)
	assert.Equal(t, strings.Split(in, "\n"), g.Rows)
	assert.Equal(t, 8, g.Width)
	assert.False(t, g.Uniform())
}

func TestNormalize_Truncation(t *testing.T) {
	g := Normalize("a\nb\nc\nd\ne", 3)
	assert.Equal(t, []string{"a", "b", "c", TruncatedMarker}, g.Rows)
	assert.True(t, g.Truncated)

	g = Normalize("a\nb\nc", 3)
	assert.Len(t, g.Rows, 3)
	assert.False(t, g.Truncated)

	g = Normalize("a\nb\nc\nd\ne", 0)
	assert.Len(t, g.Rows, 5, "zero cap disables truncation")
	assert.False(t, g.Truncated)
}

func TestNormalize_TruncatedDenseGridStaysRectangular(t *testing.T) {
	in := strings.Repeat("🌊🌊🌊🌊🌊🌊🌊\n", 20) + "🌊"
	g := Normalize(in, 15)
	require.Len(t, g.Rows, 16)
	assert.True(t, g.Truncated)
	assert.True(t, g.Uniform())
	assert.Equal(t, Width(TruncatedMarker), g.Width)
}

func TestNormalize_Rectangular(t *testing.T) {
	inputs := []string{
		"🟩\n🟩🟩\n🟩🟩🟩",
		"⠀⠀⢔⢕⢄\n⠀⡀⠄\n⠐⢌⠪⠸⠠⡁⠆⢋",
		"🌊🔥👁️🔥\n🌊⚡️\n\n🌊",
		"🍜\n" + strings.Repeat("🍥", 9),
	}
	for _, in := range inputs {
		g := Normalize(in, 15)
		require.NotEmpty(t, g.Rows)
		for _, row := range g.Rows {
			assert.Equal(t, g.Width, Width(row), "input %q row %q", in, row)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	g := Normalize("", 15)
	assert.Empty(t, g.Rows)
	assert.Equal(t, 0, g.Width)
	assert.Empty(t, g.Text())
}

func TestIsDenseGrid(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{text: "", want: false},
		{text: "hello world", want: false},
		{text: "🟩🟩\n🟩🟩", want: true},
		{text: "abcdefg🟩", want: false},
		{text: "abcd🟩🟩", want: true},
		{text: "⠀⠀⢔⢕", want: true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsDenseGrid(tc.text, DefaultDensityThreshold), "text %q", tc.text)
	}
	assert.False(t, IsDenseGrid("abcd🟩🟩", 0.5))
}

func TestWidth(t *testing.T) {
	assert.Equal(t, 0, Width(""))
	assert.Equal(t, 3, Width("abc"))
	assert.Equal(t, 2, Width("🟩🟩"))
	assert.Equal(t, 1, Width("⚡️"), "variation selector is part of the cluster")
	assert.Equal(t, 1, Width("　"))
}
