package classify

import (
	"context"
	"slices"
	"strings"

	"github.com/IshaanNene/newsgoat/internal/types"
)

var headlineKeywords = map[string][]string{
	Provokatif: {
		"hasut", "provokasi", "provokatif", "serang", "lawan", "tantang",
		"kecam", "usir", "ganyang", "boikot", "bubarkan", "tolak",
	},
	Hiperbola: {
		"terbesar", "termahal", "terparah", "spektakuler", "fantastis",
		"dahsyat", "gila", "luar biasa", "sepanjang masa", "tak terhingga",
		"triliunan", "sejuta",
	},
	Sensasional: {
		"heboh", "viral", "geger", "gempar", "terungkap", "skandal",
		"mengejutkan", "bocor", "ternyata", "rahasia", "terbongkar", "netizen",
	},
	Glorifikasi: {
		"pahlawan", "legendaris", "gemilang", "jaya", "berjasa", "harum",
		"membanggakan", "bangga", "teladan", "sosok hebat", "juara", "prestasi",
	},
	Emosional: {
		"sedih", "haru", "pilu", "tangis", "menangis", "duka", "murka",
		"marah", "kecewa", "takut", "geram", "histeris",
	},
}

var headlineOrder = []string{Provokatif, Hiperbola, Sensasional, Glorifikasi, Emosional, Informatif}

// informativeConfidence is reported when no framing keyword matched.
const informativeConfidence = 0.5

// KeywordLabeler tags headlines with a framing label by keyword hits.
// Text with no hits is Informatif. Ties go to the earlier label in
// Labels order.
type KeywordLabeler struct {
	keywords map[string][]string
	order    []string
}

func NewKeywordLabeler() *KeywordLabeler {
	return &KeywordLabeler{keywords: headlineKeywords, order: headlineOrder}
}

func (k *KeywordLabeler) Name() string { return "label" }

func (k *KeywordLabeler) Labels() []string { return append([]string(nil), k.order...) }

func (k *KeywordLabeler) Classify(_ context.Context, text string) (types.ClassificationResult, error) {
	clean := Preprocess(text)
	if clean == "" {
		return types.ClassificationResult{}, classifyErr(k.Name(), types.ErrEmptyText)
	}
	tokens := strings.Fields(clean)
	joined := " " + clean + " "

	best, bestScore, total := Informatif, 0, 0
	for _, label := range k.order {
		score := 0
		for _, kw := range k.keywords[label] {
			if strings.Contains(kw, " ") {
				if strings.Contains(joined, " "+kw+" ") {
					score++
				}
				continue
			}
			for _, tok := range tokens {
				if matchesWord(tok, kw) {
					score++
				}
			}
		}
		total += score
		if score > bestScore {
			best, bestScore = label, score
		}
	}

	if bestScore == 0 {
		return types.ClassificationResult{Label: Informatif, Confidence: informativeConfidence}, nil
	}
	return types.ClassificationResult{Label: best, Confidence: float64(bestScore) / float64(total)}, nil
}

// wordSuffixes are the enclitics and suffixes a headline word may carry
// on top of a keyword ("marahnya", "tantangan", "bubarkan").
var wordSuffixes = []string{"nya", "kan", "an", "i", "lah", "pun"}

// matchesWord reports whether tok is kw, alone or with one suffix. Other
// words that merely start with or contain kw ("jayapura", "gilang") do
// not match.
func matchesWord(tok, kw string) bool {
	rest, ok := strings.CutPrefix(tok, kw)
	if !ok {
		return false
	}
	return rest == "" || slices.Contains(wordSuffixes, rest)
}
