// Package textutil holds the small text canonicalisation helpers shared by
// admission, search and rendering.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letters that do not decompose into base + combining mark
var specialLetters = strings.NewReplacer(
	"ł", "l",
	"đ", "d",
	"ø", "o",
	"æ", "ae",
	"œ", "oe",
	"ß", "ss",
	"þ", "th",
)

// Slugify turns a tag name or user supplied slug into its canonical slug:
// lowercase ASCII letters, digits, '_' and single dashes.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = specialLetters.Replace(s)

	// transformers carry state, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}

	return b.String()
}

// SlugList splits a comma joined list, slugifies every item and drops empty
// and repeated entries while keeping first-seen order.
func SlugList(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, 4)

	for _, part := range strings.Split(joined, ",") {
		slug := Slugify(part)
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}

	return out
}

// CollapseSpaces trims s and replaces every run of Unicode white space with a
// single ASCII space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
