// Package classify scores article text into categorical labels and
// aggregates the results of a run.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// Classifier maps one text to a label. Implementations must be safe for
// concurrent use.
type Classifier interface {
	Name() string
	Labels() []string
	Classify(ctx context.Context, text string) (types.ClassificationResult, error)
}

// Sentiment labels.
const (
	Positive = "Positive"
	Negative = "Negative"
	Neutral  = "Neutral"
)

// Headline labels.
const (
	Provokatif  = "Provokatif"
	Hiperbola   = "Hiperbola"
	Sensasional = "Sensasional"
	Glorifikasi = "Glorifikasi"
	Emosional   = "Emosional"
	Informatif  = "Informatif"
)

// FromConfig builds the configured backends in order.
func FromConfig(cfg config.ClassifierConfig, logger *slog.Logger) ([]Classifier, error) {
	var out []Classifier
	for _, name := range cfg.Backends {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "sentiment":
			out = append(out, NewLexiconSentiment())
		case "label":
			out = append(out, NewKeywordLabeler())
		case "llm":
			c, err := NewLLMClassifier(cfg.LLM, logger)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		default:
			return nil, fmt.Errorf("unknown classifier backend %q (valid: sentiment, label, llm)", name)
		}
	}
	return out, nil
}

func classifyErr(name string, err error) error {
	return &types.ClassificationError{Classifier: name, Err: err}
}
