// Package content turns raw user text into storable chat content.
package content

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// An unterminated tag swallows the rest of the input.
	tagPattern        = regexp.MustCompile(`<[^>]*>?`)
	scriptURIPattern  = regexp.MustCompile(`(?i)javascript:`)
	eventAttrPattern  = regexp.MustCompile(`(?i)on\w+\s*=`)
	angleEscaper      = strings.NewReplacer("<", "&lt;", ">", "&gt;")
	lineEndingEscaper = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Sanitize strips markup and unsafe patterns from raw and normalizes it.
// It is pure and idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(raw string) string {
	s := strings.ToValidUTF8(raw, string(unicode.ReplacementChar))
	s = tagPattern.ReplaceAllString(s, "")
	s = angleEscaper.Replace(s)
	s = lineEndingEscaper.Replace(s)
	s = strings.Map(dropControl, s)
	s = stripScripts(s)
	return strings.TrimSpace(s)
}

// stripScripts runs until nothing matches, so that a removal can never
// reassemble a new "javascript:" or "onxxx=" out of the surrounding text.
func stripScripts(s string) string {
	for {
		next := scriptURIPattern.ReplaceAllString(s, "")
		next = eventAttrPattern.ReplaceAllString(next, "")
		if next == s {
			return s
		}
		s = next
	}
}

func dropControl(r rune) rune {
	if r == '\n' || r == '\t' {
		return r
	}
	if unicode.IsControl(r) {
		return -1
	}
	return r
}
