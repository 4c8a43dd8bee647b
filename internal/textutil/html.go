package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

const Ellipsis = "…"

// StripTags returns the visible text of an HTML snippet. Script and style
// bodies are dropped and character references are decoded.
func StripTags(s string) string {
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
			if isRawTextTag(z) {
				skipDepth++
			}
		case html.EndTagToken:
			if isRawTextTag(z) && skipDepth > 0 {
				skipDepth--
			}
		}
	}
}

func isRawTextTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	default:
		return false
	}
}

// Excerpt strips tags from s and cuts the result to at most limit runes,
// appending an ellipsis when anything was cut. limit <= 0 disables cutting.
func Excerpt(s string, limit int) string {
	clean := StripTags(s)
	if limit <= 0 {
		return clean
	}

	r := []rune(clean)
	if len(r) <= limit {
		return clean
	}

	cut := strings.TrimRightFunc(string(r[:limit]), unicode.IsSpace)
	return cut + Ellipsis
}
