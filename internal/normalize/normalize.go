// Package normalize holds the canonical search-key transform applied to every
// restaurant name before it is stored or queried. Changing this function
// invalidates every stored key; run the renormalize maintenance job afterwards.
package normalize

import "strings"

var accentFold = map[rune]rune{
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}

// Name lowercases, expands "&" to " and ", folds accented Latin letters to
// ASCII, strips apostrophes and periods, turns "/" and "-" into spaces, drops
// everything else outside [a-z0-9 ], and collapses whitespace. Total and
// idempotent: Name(Name(s)) == Name(s).
func Name(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := accentFold[r]; ok {
			r = folded
		}
		switch {
		case r == '\'' || r == '.':
			// stripped entirely, "Joe's" -> "joes"
		case r == '/' || r == '-':
			b.WriteRune(' ')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(' ')
		default:
			// dropped
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
