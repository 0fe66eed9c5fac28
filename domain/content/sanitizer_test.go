package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Script tag removed", "<script>alert(1)</script>hello", "alert(1)hello"},
		{"Simple markup removed", "<b>bold</b> text", "bold text"},
		{"Unterminated tag swallows the rest", "hello <img src=x onerror=alert(1)", "hello"},
		{"Lone less-than starts a tag", "a < b", "a"},
		{"Residual greater-than escaped", "a > b", "a &gt; b"},
		{"javascript scheme stripped", "click javascript:alert(1)", "click alert(1)"},
		{"javascript scheme is case insensitive", "JaVaScRiPt:void(0)", "void(0)"},
		{"Event handler stripped", "x onclick = y", "x  y"},
		{"Event handler is case insensitive", "ONLOAD=run", "run"},
		{"Nested scheme does not survive", "javajavascript:script:", ""},
		{"Handler reassembled by tag removal", "on<b></b>click=go", "go"},
		{"Null byte removed", "hello\x00world", "helloworld"},
		{"Control characters removed", "bell\x07 and\x1b escape", "bell and escape"},
		{"Line endings normalized", "line1\r\nline2\rline3", "line1\nline2\nline3"},
		{"Tabs and newlines kept", "col1\tcol2\nrow2", "col1\tcol2\nrow2"},
		{"Surrounding whitespace trimmed", "  \n padded \t ", "padded"},
		{"Plain text untouched", "Hello nerds, how is it going?", "Hello nerds, how is it going?"},
		{"Unicode kept", "Un été à Paris 🚀", "Un été à Paris 🚀"},
		{"Empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_NoRunnableMarkup(t *testing.T) {
	req := require.New(t)
	sanitized := Sanitize("<script>alert(1)</script>hello")

	req.Contains(sanitized, "hello")
	req.NotContains(sanitized, "<")
	req.NotContains(strings.ToLower(sanitized), "script>")
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"<script>alert(1)</script>hello",
		"a > b >> c",
		"&lt;b&gt; already escaped",
		"javajavascript:script:alert(1)",
		"on<b></b>click=go",
		"java\x00script:alert(1)",
		"on\x01click=x",
		"  \r\n  spaced \r\n ",
		"\xff\xfe invalid utf8",
		"<<<>>>",
		"one=1 two = 2",
		strings.Repeat("<a>", 20) + "tail",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			req := require.New(t)
			once := Sanitize(input)
			req.Equal(once, Sanitize(once))
		})
	}
}

func FuzzSanitize_Idempotent(f *testing.F) {
	for _, seed := range []string{"<i>x</i>", "javascript:", "onx=", "\r\n", "a>b", "\x00"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		once := Sanitize(input)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", input, once, twice)
		}
		if strings.ContainsAny(once, "<>") {
			t.Fatalf("raw angle bracket left in %q", once)
		}
	})
}
