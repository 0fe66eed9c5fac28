// Package fingerprint derives the client-class token used as a rate-limit key.
//
// A Token is a low-entropy heuristic computed from what a browser exposes about
// itself (user agent and screen resolution). Many people share a token and one
// person can produce several. It never authenticates anyone; the server-side
// cooldown is the only binding control.
package fingerprint

import (
	"fmt"
	"strconv"
	"unicode/utf16"
)

// Token identifies a class of clients, not a person.
type Token string

func (t Token) String() string {
	return string(t)
}

// Resolution formats a screen size the way browsers report it.
func Resolution(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// ClientClass hashes the user agent and resolution into a short base-36 token.
// The rolling hash works on UTF-16 code units in 32-bit signed arithmetic so the
// result matches tokens generated by browser clients.
func ClientClass(userAgent, resolution string) Token {
	combined := userAgent + "-" + resolution
	var hash int32
	for _, unit := range utf16.Encode([]rune(combined)) {
		hash = (hash << 5) - hash + int32(unit)
	}
	return Token(strconv.FormatInt(int64(hash), 36))
}
