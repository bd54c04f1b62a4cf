package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopwords are Indonesian function words that carry no sentiment or
// framing. Negators are deliberately absent.
var stopwords = map[string]bool{
	"yang": true, "dan": true, "di": true, "ke": true, "dari": true,
	"untuk": true, "dengan": true, "ini": true, "itu": true, "pada": true,
	"dalam": true, "adalah": true, "akan": true, "atau": true, "juga": true,
	"karena": true, "oleh": true, "sebagai": true, "bagi": true, "para": true,
	"tersebut": true, "telah": true, "sudah": true, "bisa": true, "dapat": true,
	"ada": true, "kata": true, "saat": true, "jadi": true, "lebih": true,
	"soal": true, "usai": true, "hingga": true, "antara": true, "secara": true,
	"the": true, "a": true, "an": true, "of": true, "to": true, "in": true,
	"and": true, "is": true, "for": true, "on": true,
}

// Tokens folds text to NFKC with accents removed, lowercases it and
// returns the words, dropping punctuation, digits and stopwords.
func Tokens(text string) []string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	folded = cases.Lower(language.Indonesian).String(folded)

	words := strings.FieldsFunc(folded, func(r rune) bool { return !unicode.IsLetter(r) })
	out := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// Preprocess returns the cleaned text as a single space-separated string.
func Preprocess(text string) string {
	return strings.Join(Tokens(text), " ")
}
