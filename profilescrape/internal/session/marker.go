package session

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchMarker returns the first marker that occurs in text as a whole word or
// phrase, ignoring case. "join" matches "Join LinkedIn" but not "Sam Joiner".
func MatchMarker(text string, markers []string) string {
	lower := strings.ToLower(text)
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" && containsWord(lower, m) {
			return m
		}
	}
	return ""
}

func containsWord(s, word string) bool {
	for off := 0; off <= len(s)-len(word); {
		i := strings.Index(s[off:], word)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(word)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		off = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
