package htmlmeta

import "strings"

// maxMarkerGap bounds how far past a marker the JSON opener may sit. Markers
// are key names or assignment targets, so the opener follows within a few
// bytes of whitespace and punctuation on real pages.
const maxMarkerGap = 64

// ScanJSONAfterMarker locates marker in src and returns the balanced JSON
// object or array starting at the first brace after it. The surrounding
// document is not valid JSON as a whole, which is why this is a character
// scan and not a parse.
func ScanJSONAfterMarker(src, marker string) (string, bool) {
	at := strings.Index(src, marker)
	if at < 0 {
		return "", false
	}
	rest := src[at+len(marker):]
	start := strings.IndexAny(rest, "{[")
	if start < 0 || start > maxMarkerGap {
		return "", false
	}
	return BalancedJSON(rest[start:])
}

// BalancedJSON returns the prefix of src spanning one balanced {} or []
// group. Braces inside quoted strings are ignored and backslash escapes are
// honored, so brace characters in titles or URLs cannot derail the depth
// count.
func BalancedJSON(src string) (string, bool) {
	if src == "" || (src[0] != '{' && src[0] != '[') {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return src[:i+1], true
			}
		}
	}
	return "", false
}

// SanitizeJSTokens rewrites bare JavaScript tokens that break JSON decoding
// of app-state blobs, currently the undefined literal. Occurrences inside
// quoted strings are left alone.
func SanitizeJSTokens(s string) string {
	const token = "undefined"
	if !strings.Contains(s, token) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == 'u' && strings.HasPrefix(s[i:], token) &&
			!followsWordByte(s, i) && !precedesWordByte(s, i+len(token)) {
			b.WriteString("null")
			i += len(token) - 1
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func followsWordByte(s string, i int) bool {
	if i == 0 {
		return false
	}
	return isWordByte(s[i-1])
}

func precedesWordByte(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	return isWordByte(s[i])
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
