package content

import (
	"strings"

	"golang.org/x/net/html"
)

// Sanitize strips HTML tags from s, drops script and style contents,
// unescapes entities and trims surrounding whitespace.
func Sanitize(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skipDepth++
			case "br":
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skipDepth > 0 {
					skipDepth--
				}
			case "p", "li", "div":
				b.WriteByte('\n')
			}
		}
	}
}

// sanitizeValue applies Sanitize to every string in a decoded JSON value.
func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return Sanitize(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}
