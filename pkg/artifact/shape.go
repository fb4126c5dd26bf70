package artifact

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// defaults for Normalizer, tunable through config.
const (
	DefaultMaxLines         = 15
	DefaultDensityThreshold = 0.30
	DefaultFiller           = "　" // full-width space, same cell width as most emoji
	TruncatedMarker         = "...(truncated ✂️)"
)

// Grid is the shaped art. Rows are equally wide (Width grapheme clusters) when the art is a
// dense multi-line grid. single-line and mostly alphabetic art is left as is.
type Grid struct {
	Rows      []string
	Width     int
	Truncated bool
}

// Text joins rows back into the deliverable text.
func (g Grid) Text() string {
	return strings.Join(g.Rows, "\n")
}

// Uniform reports whether all rows have the same width.
func (g Grid) Uniform() bool {
	for _, r := range g.Rows {
		if Width(r) != g.Width {
			return false
		}
	}
	return true
}

// Normalizer repairs art into a bounded, rectangular grid.
type Normalizer struct {
	MaxLines         int     // keep at most this many lines, <= 0 disables truncation
	DensityThreshold float64 // minimal share of non-ASCII runes for the text to count as a grid
	Filler           string  // padding glyph, must be a single grapheme cluster
}

// NewNormalizer makes a Normalizer with the given line cap and default tuning.
func NewNormalizer(maxLines int) Normalizer {
	return Normalizer{MaxLines: maxLines, DensityThreshold: DefaultDensityThreshold, Filler: DefaultFiller}
}

// Normalize shapes text with the given line cap and default tuning.
func Normalize(text string, maxLines int) Grid {
	return NewNormalizer(maxLines).Normalize(text)
}

// Normalize truncates text to MaxLines (adding a marker line) and, for dense multi-line grids,
// centers every short row with filler glyphs up to the widest row.
func (n Normalizer) Normalize(text string) Grid {
	if text == "" {
		return Grid{}
	}

	lines := strings.Split(text, "\n")
	grid := Grid{}
	dense := IsDenseGrid(text, n.threshold())
	if n.MaxLines > 0 && len(lines) > n.MaxLines {
		dense = IsDenseGrid(strings.Join(lines[:n.MaxLines], "\n"), n.threshold())
		lines = append(lines[:n.MaxLines:n.MaxLines], TruncatedMarker)
		grid.Truncated = true
	}

	grid.Width = maxWidth(lines)
	if !dense || len(lines) < 2 {
		grid.Rows = lines
		return grid
	}

	filler := n.filler()
	grid.Rows = make([]string, len(lines))
	for i, line := range lines {
		grid.Rows[i] = padCenter(line, grid.Width, filler)
	}
	return grid
}

func (n Normalizer) threshold() float64 {
	if n.DensityThreshold <= 0 {
		return DefaultDensityThreshold
	}
	return n.DensityThreshold
}

func (n Normalizer) filler() string {
	if uniseg.GraphemeClusterCount(n.Filler) != 1 {
		return DefaultFiller
	}
	return n.Filler
}

// IsDenseGrid reports whether text looks like a symbol grid: the share of non-ASCII runes
// is at least threshold. alphabetic text and ASCII art stay below it.
func IsDenseGrid(text string, threshold float64) bool {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return false
	}
	nonASCII := 0
	for _, r := range text {
		if r >= utf8.RuneSelf {
			nonASCII++
		}
	}
	return float64(nonASCII)/float64(total) >= threshold
}

// Width returns the length of a row in grapheme clusters, so an emoji with a variation
// selector counts as one cell.
func Width(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

func maxWidth(lines []string) int {
	res := 0
	for _, l := range lines {
		res = max(res, Width(l))
	}
	return res
}

// padCenter splits the width deficit between both sides, the extra glyph goes right.
func padCenter(line string, width int, filler string) string {
	deficit := width - Width(line)
	if deficit <= 0 {
		return line
	}
	left := deficit / 2
	return strings.Repeat(filler, left) + line + strings.Repeat(filler, deficit-left)
}
