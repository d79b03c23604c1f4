package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics strips combining marks, so "Jiří" becomes "Jiri".
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName folds an enrolled name to the form used for collision
// checks: no diacritics, lower case, dashes and underscores read as spaces,
// and whitespace runs collapsed.
func NormalizePersonName(name string) string {
	name = strings.ToLower(RemoveDiacritics(name))
	name = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, name)
	return strings.Join(strings.Fields(name), " ")
}

// SameName reports whether two enrolled names would collide on disk and in
// listings.
func SameName(a, b string) bool {
	return NormalizePersonName(a) == NormalizePersonName(b)
}
