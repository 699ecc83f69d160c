package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldSearchTerm normalises a free-text search term: trims, uppercases and
// strips diacritics so "Émbolo" matches "EMBOLO" in the catalogue.
func FoldSearchTerm(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	folded, _, err := transform.String(foldTransformer, term)
	if err != nil {
		folded = term
	}
	return strings.ToUpper(folded)
}
