package catalog

import (
	"strings"
	"unicode"
)

// Slugify lowercases name and joins its letter and digit runs with single dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}

// derivedSlug returns slug, or the slug of name when slug is empty.
func derivedSlug(name, slug string) (string, error) {
	if slug != "" {
		return slug, nil
	}
	if slug = Slugify(name); slug == "" {
		return "", invalid("name %q produces an empty slug; supply slug explicitly", name)
	}
	return slug, nil
}
