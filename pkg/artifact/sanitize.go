package artifact

import (
	"regexp"
	"strings"
	"unicode"
)

// fenceRe matches a code fence with an optional language tag, e.g. ```python
var fenceRe = regexp.MustCompile("```[A-Za-z0-9_+-]*")

// lineEndRe matches CRLF and a lone CR. no CR survives the replacement, so it can't form a new CRLF.
var lineEndRe = regexp.MustCompile("\r\n?")

// Sanitize strips formatting noise from generated text.
// fences are removed but their content kept, single-line text loses surrounding quotes,
// trailing whitespace is dropped. leading whitespace of lines is kept, it carries alignment.
// Sanitize(Sanitize(s)) == Sanitize(s) for every s.
func Sanitize(text string) string {
	text = lineEndRe.ReplaceAllString(text, "\n")
	text = fenceRe.ReplaceAllString(text, "")
	text = strings.TrimRightFunc(text, unicode.IsSpace)

	// a trailing line break alone does not make the text multi-line
	if !strings.Contains(text, "\n") {
		text = stripQuotes(strings.TrimSpace(text))
	}
	return text
}

// stripQuotes removes matched single or double quotes wrapping the whole string.
// nested layers ("'x'") are all removed, a single pass would leave the result quoted.
func stripQuotes(s string) string {
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first != last || (first != '"' && first != '\'') {
			break
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
