package artifact

import (
	"regexp"
	"strings"
)

// FallbackArt is delivered instead of an empty artifact.
const FallbackArt = "(🎨 그림을 생성하지 못했어요. 다시 한 번 요청해 주세요!)"

// Validate replaces a blank grid with the fallback art.
// the returned flag is true when the fallback was used.
func Validate(g Grid) (Grid, bool) {
	if strings.TrimSpace(g.Text()) != "" {
		return g, false
	}
	return Grid{Rows: []string{FallbackArt}, Width: Width(FallbackArt)}, true
}

var hangulRe = regexp.MustCompile(`[가-힣]`)

// disclaimer notes for ASCII-style art, which renders unevenly in chat clients.
const (
	disclaimerHangul = "(人 > <,,) 한글 아스키아트는 아직 미지원이에요.."
	disclaimerText   = "(人 > <,,) 텍스트 아스키아트는 아직 불완전할 수 있어요."
)

// IsASCIIStyle reports whether the plan selected the ASCII/braille style (style 4).
func IsASCIIStyle(plan string) bool {
	up := strings.ToUpper(plan)
	return strings.Contains(plan, "4") || strings.Contains(up, "ASCII") || strings.Contains(up, "BLOCK")
}

// Disclaimer appends a note to ASCII-style art. requests with Hangul get the
// "not supported yet" note, others the "may be imperfect" one.
func Disclaimer(request, plan, art string) string {
	if !IsASCIIStyle(plan) {
		return art
	}
	if hangulRe.MatchString(request) {
		return art + "\n\n" + disclaimerHangul
	}
	return art + "\n\n" + disclaimerText
}
