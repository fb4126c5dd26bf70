package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Parsed
	}{
		{name: "empty", raw: "", want: Parsed{}},
		{name: "whitespace only", raw: " \n\t ", want: Parsed{}},
		{name: "plan and art inline", raw: "[PLAN] x [ART] 🟩🟩\n🟩🟩", want: Parsed{Plan: "x", Art: "🟩🟩\n🟩🟩"}},
		{
			name: "plan and art on separate lines",
			raw:  "[PLAN]\n1. Selected Style: 2\n2. Palette: 🟩\n\n[ART]\n\n🌿🟩🌿\n🌿🌿🌿\n\n",
			want: Parsed{Plan: "1. Selected Style: 2\n2. Palette: 🟩", Art: "🌿🟩🌿\n🌿🌿🌿"},
		},
		{name: "no marker", raw: "  (ง •̀_•́)ง \n", want: Parsed{Art: "(ง •̀_•́)ง"}},
		{name: "art marker without plan marker", raw: "thinking...[ART]🐒", want: Parsed{Plan: "thinking...", Art: "🐒"}},
		{name: "empty art", raw: "[PLAN] only plan [ART]   \n  ", want: Parsed{Plan: "only plan"}},
		{
			name: "repeated marker stays in art",
			raw:  "[ART]a\n[ART]b",
			want: Parsed{Art: "a\n[ART]b"},
		},
		{
			name: "indent of first art line preserved",
			raw:  "[ART]\n   /\\_/\\\n  ( o.o )",
			want: Parsed{Art: "   /\\_/\\\n  ( o.o )"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.raw))
		})
	}
}

func TestParse_Total(t *testing.T) {
	inputs := []string{"", "[ART]", "[PLAN]", "[PLAN][ART]", "[ART][ART][ART]", "\x00\xff", "[AR", "T]", "\n\n\n"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = Parse(in) }, "input %q", in)
	}
	assert.Equal(t, Parsed{Art: "[ART][ART]"}, Parse("[ART][ART][ART]"))
}

func TestHasArtMarker(t *testing.T) {
	assert.True(t, HasArtMarker("x [ART] y"))
	assert.False(t, HasArtMarker("x [art] y"))
	assert.False(t, HasArtMarker(""))
}
