package document

import (
	"strings"
	"unicode"
)

// splitSentences breaks text at whitespace that follows terminal punctuation
// and precedes an ASCII capital. Abbreviations shaped like "e.g." or "Dr."
// do not end a sentence.
func splitSentences(text string) []string {
	runes := []rune(text)
	var (
		out   []string
		start int
	)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || i == 0 || unicode.IsSpace(runes[i-1]) {
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if !isBoundary(runes, i, j) {
			i = j - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:i])); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// isBoundary reports whether the whitespace run runes[ws:next] separates two sentences.
func isBoundary(runes []rune, ws, next int) bool {
	if next >= len(runes) || !isASCIIUpper(runes[next]) {
		return false
	}
	switch runes[ws-1] {
	case '.', '!', '?':
	default:
		return false
	}
	// "e.g." style: word, dot, word, any.
	if ws >= 4 && isWordRune(runes[ws-4]) && runes[ws-3] == '.' && isWordRune(runes[ws-2]) {
		return false
	}
	// "Dr." style: capital, lower, dot.
	if ws >= 3 && isASCIIUpper(runes[ws-3]) && isASCIILower(runes[ws-2]) && runes[ws-1] == '.' {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
