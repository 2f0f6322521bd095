// Package htmlmeta mines titles, descriptions and image links out of the
// HTML documents the platforms serve. The pages are not well-formed and the
// interesting data often sits inside inline script text, so extraction is
// layered: meta tags, the title tag, JSON-LD blocks, marker-located app-state
// blobs, and finally a raw URL sweep.
package htmlmeta

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var namedEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&nbsp;", " ",
)

var (
	decimalEntityPattern = regexp.MustCompile(`&#([0-9]{1,7});`)
	hexEntityPattern     = regexp.MustCompile(`&#[xX]([0-9a-fA-F]{1,6});`)
)

// DecodeEntities resolves the HTML character references that show up in
// attribute values and inline text. Numeric references are decoded before
// named ones so "&amp;#65;" decodes once, not twice.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	s = hexEntityPattern.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.ParseInt(m[3:len(m)-1], 16, 32)
		if err != nil || n <= 0 || n > utf8.MaxRune {
			return m
		}
		return string(rune(n))
	})
	s = decimalEntityPattern.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.ParseInt(m[2:len(m)-1], 10, 32)
		if err != nil || n <= 0 || n > utf8.MaxRune {
			return m
		}
		return string(rune(n))
	})
	return namedEntities.Replace(s)
}

// UnescapeUnicode decodes \uXXXX escapes in values lifted out of inline
// script text, pairing UTF-16 surrogates. Escaped forward slashes are
// unescaped too since serialized URLs carry them.
func UnescapeUnicode(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'u':
				if r, size, ok := decodeUnicodeEscape(s[i:]); ok {
					b.WriteRune(r)
					i += size
					continue
				}
			case '/':
				b.WriteByte('/')
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// decodeUnicodeEscape reads one \uXXXX escape starting at s[0], consuming a
// following low surrogate when the first unit is a high one.
func decodeUnicodeEscape(s string) (rune, int, bool) {
	if len(s) < 6 || s[0] != '\\' || s[1] != 'u' {
		return 0, 0, false
	}
	hi, err := strconv.ParseUint(s[2:6], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	r := rune(hi)
	if !utf16.IsSurrogate(r) {
		return r, 6, true
	}
	if len(s) >= 12 && s[6] == '\\' && s[7] == 'u' {
		lo, loErr := strconv.ParseUint(s[8:12], 16, 32)
		if loErr == nil {
			if combined := utf16.DecodeRune(r, rune(lo)); combined != utf8.RuneError {
				return combined, 12, true
			}
		}
	}
	// Lone surrogate, emit the replacement rune rather than invalid UTF-8.
	return utf8.RuneError, 6, true
}
