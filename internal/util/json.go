// Package util contains small helpers shared across packages but not part of
// the public API.
package util

import "strings"

// ExtractJSONObject returns the first top-level JSON object embedded in s.
// Models frequently wrap their JSON reply in prose or code fences; this pulls
// out the {...} slice so the strict parse can run on it. Returns false when
// no balanced object is present.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
