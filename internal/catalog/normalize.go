package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// packQualifiers matches packaging/size noise that supplier exports embed in
// product descriptions ("BUTTER SALTED 36/1 LB", "OIL OLIVE 6 CT").
var packQualifiers = regexp.MustCompile(
	`(?i)\b\d+\s*/\s*\d+(\.\d+)?\s*(LB|OZ|GAL|QT|PT|KG|GM?|ML|L|CT|EA|PK|DZ)\b` +
		`|\b\d+(\.\d+)?\s*(LB|OZ|GAL|QT|PT|KG|GM?|ML|L|CT|EA|PK|DZ|CS|CASE|PACK)\b`)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// accentFold strips combining marks so "JALAPEÑO" and "JALAPENO" compare equal.
var accentFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize produces the canonical matching form of a catalog or query name:
// upper-cased, accent-folded, packaging qualifiers and punctuation stripped,
// whitespace collapsed.
func Normalize(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	if folded, _, err := transform.String(accentFold, n); err == nil {
		n = folded
	}
	n = packQualifiers.ReplaceAllString(n, " ")
	n = punctuation.ReplaceAllString(n, " ")
	n = multiSpace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}
