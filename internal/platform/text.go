package platform

import (
	"strings"
	"unicode/utf8"
)

// Length counts text in runes
func Length(text string) int {
	return utf8.RuneCountInString(text)
}

// Paragraphs splits text into blank-line separated, non-empty blocks
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		out   []string
		block []string
	)
	flush := func() {
		if len(block) > 0 {
			out = append(out, strings.Join(block, "\n"))
			block = block[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, strings.TrimRight(line, " \t"))
	}
	flush()
	return out
}

// HasHashtag reports whether text carries a '#'
func HasHashtag(text string) bool {
	return strings.Contains(text, "#")
}

// MatchesCTA reports whether any lexicon entry is a case-insensitive
// substring of text
func (r Rules) MatchesCTA(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range r.CTALexicon {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// Truncate cuts text to at most limit runes, replacing the tail with "..."
// when it had to cut
func Truncate(text string, limit int) string {
	if limit <= 0 || Length(text) <= limit {
		return text
	}
	if limit <= 3 {
		return string([]rune(text)[:limit])
	}
	return string([]rune(text)[:limit-3]) + "..."
}
