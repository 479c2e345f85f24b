package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// normalizeName produces the canonical page name: trimmed, lower case,
// spaces replaced by hyphens, then passed through sanitize.
func normalizeName(name string, sanitize func(string) string) string {
	proper := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
	return sanitize(proper)
}

// KebabCase turns a free-form title into a page name. Words are split on
// non-alphanumerics, lower-to-upper transitions, acronym ends and
// letter/digit boundaries, then joined lower case with hyphens:
// "My Page" -> "my-page", "XMLHttpRequest" -> "xml-http-request".
func KebabCase(title string) string {
	var words []string
	for _, field := range strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words = append(words, splitWords([]rune(field))...)
	}
	return strings.ToLower(strings.Join(words, "-"))
}

func splitWords(rs []rune) []string {
	var words []string
	start := 0
	for i := 1; i < len(rs); i++ {
		prev, cur := rs[i-1], rs[i]
		boundary := false
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			boundary = true
		case unicode.IsDigit(prev) && unicode.IsLetter(cur):
			boundary = true
		case unicode.IsUpper(prev) && unicode.IsDigit(cur):
			boundary = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
			boundary = true
		}
		if boundary {
			words = append(words, string(rs[start:i]))
			start = i
		}
	}
	return append(words, string(rs[start:]))
}

// DisplayName renders a page name for headings: "my-page" -> "My Page".
func DisplayName(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}
