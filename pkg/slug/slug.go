package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// đ has no decomposition, so it is mapped by hand before accents are stripped.
var letterReplacer = strings.NewReplacer("đ", "d", "Đ", "d")

// Generate creates a URL-friendly slug from a title. Vietnamese diacritics are
// stripped to their base letters.
//
// Examples:
//   - "Áo thun nữ" → "ao-thun-nu"
//   - "Đồng hồ Đeo tay" → "dong-ho-deo-tay"
//   - "Hello   World!" → "hello-world"
func Generate(title string) string {
	s := letterReplacer.Replace(strings.TrimSpace(title))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	s = strings.ToLower(s)
	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
