package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that carry no combining mark, so NFD leaves them untouched.
var special = strings.NewReplacer(
	"ı", "i", "ß", "ss", "ø", "o", "đ", "d", "ł", "l", "æ", "ae", "œ", "oe",
)

// Generate turns a display name into a URL-friendly slug. Accents are
// stripped and runs of anything else become single hyphens.
//
//	"Vegetarian"      -> "vegetarian"
//	"Jalapeño Picante" -> "jalapeno-picante"
//	"  Meat & Grill!"  -> "meat-grill"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = special.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}
