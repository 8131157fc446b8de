package media

import (
	"strings"
	"unicode"

	"github.com/goliatone/go-slug"
)

// minTagLength is the shortest token kept as a tag; anything at or below 2 runes is noise.
const minTagLength = 3

// Tags turns free-text context into an ordered, deduplicated tag list.
// Inputs are split on whitespace, hyphens, underscores and camel-case
// boundaries, lower-cased and slug-normalized. First-seen order is kept,
// so earlier inputs weigh more in the degrading match.
func Tags(inputs ...string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, input := range inputs {
		for _, word := range splitWords(input) {
			tag, err := slug.Normalize(strings.ToLower(word))
			if err != nil || len([]rune(tag)) < minTagLength {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	return tags
}

func splitWords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})

	var words []string
	for _, field := range fields {
		words = append(words, splitCamel(field)...)
	}
	return words
}

// splitCamel breaks "smallBusinessSEO" into "small", "Business", "SEO".
// A run of capitals followed by a lower-case letter yields its last capital
// to the next word ("HTTPServer" -> "HTTP", "Server").
func splitCamel(s string) []string {
	runes := []rune(s)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := unicode.IsLower(prev) && unicode.IsUpper(cur)
		if !boundary && unicode.IsUpper(prev) && unicode.IsUpper(cur) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}
