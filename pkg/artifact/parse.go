// Package artifact extracts, cleans and shapes the art payload from free-form generated text.
// every function here is pure and total: malformed input degrades to a usable value, never an error.
package artifact

import (
	"strings"
	"unicode"
)

// marker tokens the instruction prompt asks the backend to emit.
const (
	PlanMarker = "[PLAN]"
	ArtMarker  = "[ART]"
)

// Parsed holds the two sections of a generated response.
type Parsed struct {
	Plan string // design notes, may be empty
	Art  string // deliverable text
}

// HasArtMarker reports whether text contains the artifact-start marker.
func HasArtMarker(text string) bool {
	return strings.Contains(text, ArtMarker)
}

// Parse splits raw generated text into plan and art sections.
// only the first [ART] marker splits; later markers stay in Art verbatim.
// without a marker the whole trimmed input is treated as the art.
func Parse(raw string) Parsed {
	before, after, found := strings.Cut(raw, ArtMarker)
	if !found {
		return Parsed{Art: strings.TrimSpace(raw)}
	}

	plan := strings.TrimSpace(strings.ReplaceAll(before, PlanMarker, ""))

	// blanks on the marker line and the line breaks after it are not part of the art,
	// indentation of the first art line is
	art := strings.TrimLeft(after, " \t")
	art = strings.TrimLeft(art, "\r\n")
	art = strings.TrimRightFunc(art, unicode.IsSpace)

	return Parsed{Plan: plan, Art: art}
}
