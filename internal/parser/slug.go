package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugSepRe     = regexp.MustCompile(`[\s_]+`)
	slugInvalidRe = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashRe    = regexp.MustCompile(`-{2,}`)
)

// Slug builds a URL-safe project slug: accents folded, lower case, spaces
// and underscores as hyphens, everything outside [a-z0-9-] dropped.
func Slug(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	s := strings.ToLower(folded)
	s = slugSepRe.ReplaceAllString(s, "-")
	s = slugInvalidRe.ReplaceAllString(s, "")
	s = slugDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
