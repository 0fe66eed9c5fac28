package content

import (
	"strings"
	"unicode/utf8"

	"nerdsphere/domain"
	"nerdsphere/errors"
)

// Validate checks sanitized content against the posting rules.
// Checks run in a fixed order and the first failure wins:
// empty, too long, spam.
func Validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > domain.MaxContentLength {
		return errors.ErrTooLong
	}
	if hasRun(content, domain.SpamRunLength) {
		return errors.ErrSpamPattern
	}
	return nil
}

// hasRun reports whether s holds n or more identical consecutive runes.
func hasRun(s string, n int) bool {
	var prev rune
	count := 0
	for _, r := range s {
		if count > 0 && r == prev {
			count++
		} else {
			prev, count = r, 1
		}
		if count >= n {
			return true
		}
	}
	return false
}
