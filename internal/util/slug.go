package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a lowercase dash-separated key.
// Accents are dropped and "&" reads as "and", so "Arte & Música" becomes "arte-and-musica".
func Slugify(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")
	s = stripMarks(strings.ToLower(strings.TrimSpace(s)))
	s = nonSlug.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "subject"
	}
	return s
}

func stripMarks(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
