package classify

import (
	"context"
	"math"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// Valences on the usual -4..+4 sentiment lexicon scale.
var defaultLexicon = map[string]float64{
	// Indonesian
	"baik": 1.9, "bagus": 1.9, "hebat": 2.5, "sukses": 2.3, "berhasil": 2.0,
	"untung": 1.8, "naik": 0.8, "tumbuh": 1.5, "meningkat": 1.3, "positif": 2.0,
	"senang": 2.2, "bahagia": 2.7, "gembira": 2.5, "puas": 1.9, "aman": 1.6,
	"damai": 2.0, "menang": 2.4, "juara": 2.3, "prestasi": 2.1, "dukung": 1.4,
	"mendukung": 1.4, "bantu": 1.4, "membantu": 1.5, "optimis": 2.0, "stabil": 1.1,
	"pulih": 1.6, "lancar": 1.5, "apresiasi": 1.9, "terbaik": 2.6, "harapan": 1.3,
	"buruk": -2.3, "jelek": -2.0, "gagal": -2.2, "rugi": -1.9, "turun": -0.8,
	"anjlok": -2.1, "merosot": -1.9, "negatif": -2.0, "sedih": -2.1, "marah": -2.3,
	"kecewa": -2.1, "takut": -1.9, "bahaya": -2.2, "berbahaya": -2.3, "krisis": -2.4,
	"korupsi": -2.8, "suap": -2.5, "tersangka": -1.8, "tewas": -2.9, "meninggal": -2.3,
	"bencana": -2.6, "banjir": -1.8, "kecelakaan": -2.4, "konflik": -2.0, "kerusuhan": -2.6,
	"ancam": -2.0, "ancaman": -2.0, "kritik": -1.4, "kecam": -2.1, "tolak": -1.3,
	"protes": -1.5, "masalah": -1.6, "sulit": -1.4, "lemah": -1.5, "pesimis": -1.9,
	"penipuan": -2.6, "hoaks": -2.0, "skandal": -2.4, "mundur": -0.9, "defisit": -1.4,
	// English
	"good": 1.9, "great": 3.1, "success": 2.7, "win": 2.8, "growth": 1.6,
	"gain": 1.7, "happy": 2.7, "safe": 1.9, "strong": 2.3, "improve": 1.9,
	"bad": -2.5, "fail": -2.5, "loss": -1.3, "crisis": -3.1, "fear": -2.2,
	"angry": -2.3, "dead": -3.3, "corruption": -2.8, "scandal": -2.6, "weak": -1.9,
}

// boosters scale the next sentiment-bearing word.
var boosters = map[string]float64{
	"sangat": 0.293, "amat": 0.293, "sekali": 0.293, "paling": 0.293,
	"makin": 0.18, "semakin": 0.18, "very": 0.293, "extremely": 0.293,
	"agak": -0.293, "kurang": -0.293, "sedikit": -0.293, "slightly": -0.293,
}

var negators = map[string]bool{
	"tidak": true, "tak": true, "bukan": true, "belum": true, "jangan": true,
	"tanpa": true, "enggak": true, "nggak": true, "gak": true,
	"not": true, "no": true, "never": true, "without": true,
}

const (
	negationScalar    = -0.74
	normalizeAlpha    = 15.0
	negationLookback  = 3
	sentimentBoundary = 0.05
)

// LexiconSentiment scores text by summing word valences with negation
// and intensity modifiers, then squashes the sum into a compound score in
// [-1, 1]. Compound >= 0.05 is Positive, <= -0.05 Negative, else Neutral.
type LexiconSentiment struct {
	lexicon map[string]float64
}

// NewLexiconSentiment uses the built-in Indonesian and English lexicon.
func NewLexiconSentiment() *LexiconSentiment {
	return &LexiconSentiment{lexicon: defaultLexicon}
}

// NewLexiconSentimentWith overrides or extends the built-in lexicon.
func NewLexiconSentimentWith(extra map[string]float64) *LexiconSentiment {
	lex := make(map[string]float64, len(defaultLexicon)+len(extra))
	for k, v := range defaultLexicon {
		lex[k] = v
	}
	for k, v := range extra {
		lex[k] = v
	}
	return &LexiconSentiment{lexicon: lex}
}

func (s *LexiconSentiment) Name() string { return "sentiment" }

func (s *LexiconSentiment) Labels() []string { return []string{Positive, Negative, Neutral} }

func (s *LexiconSentiment) Classify(_ context.Context, text string) (types.ClassificationResult, error) {
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return types.ClassificationResult{}, classifyErr(s.Name(), types.ErrEmptyText)
	}

	compound := s.Compound(tokens)
	switch {
	case compound >= sentimentBoundary:
		return types.ClassificationResult{Label: Positive, Confidence: compound}, nil
	case compound <= -sentimentBoundary:
		return types.ClassificationResult{Label: Negative, Confidence: -compound}, nil
	default:
		return types.ClassificationResult{Label: Neutral, Confidence: 1 - math.Abs(compound)}, nil
	}
}

// Compound returns the normalized score of already tokenized text.
func (s *LexiconSentiment) Compound(tokens []string) float64 {
	var sum float64
	for i, tok := range tokens {
		v, ok := s.lexicon[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if b, ok := boosters[tokens[i-1]]; ok {
				if v > 0 {
					v += b
				} else {
					v -= b
				}
			}
		}
		for j := max(0, i-negationLookback); j < i; j++ {
			if negators[tokens[j]] {
				v *= negationScalar
				break
			}
		}
		sum += v
	}
	if sum == 0 {
		return 0
	}
	return sum / math.Sqrt(sum*sum+normalizeAlpha)
}
