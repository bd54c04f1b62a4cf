package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

const (
	maxPromptText = 2000
	maxAnswerSize = 64 << 10
)

const promptTemplate = `Classify the following Indonesian news text into exactly one of these labels: %s.
Answer with the label only.

Text: %s`

// dialect is how one provider's HTTP API is spoken.
type dialect struct {
	defaultBase string
	path        string
	body        func(model, prompt string) any
	// answer pulls the generated text out of the raw response body.
	answer func(raw []byte) (string, error)
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

var dialects = map[string]dialect{
	"ollama": {
		defaultBase: "http://localhost:11434",
		path:        "/api/generate",
		body: func(model, prompt string) any {
			return ollamaRequest{Model: model, Prompt: prompt, Options: map[string]any{"temperature": 0}}
		},
		answer: func(raw []byte) (string, error) {
			var out struct {
				Response string `json:"response"`
			}
			if err := json.Unmarshal(raw, &out); err != nil {
				return "", fmt.Errorf("decode ollama answer: %w", err)
			}
			return out.Response, nil
		},
	},
	"openai": {
		defaultBase: "https://api.openai.com/v1",
		path:        "/chat/completions",
		body: func(model, prompt string) any {
			return chatRequest{Model: model, Messages: []chatMessage{{Role: "user", Content: prompt}}}
		},
		answer: func(raw []byte) (string, error) {
			var out struct {
				Choices []struct {
					Message chatMessage `json:"message"`
				} `json:"choices"`
			}
			if err := json.Unmarshal(raw, &out); err != nil {
				return "", fmt.Errorf("decode chat answer: %w", err)
			}
			if len(out.Choices) == 0 {
				return "", errors.New("chat answer has no choices")
			}
			return out.Choices[0].Message.Content, nil
		},
	},
	// custom posts {prompt, model} to the endpoint as is and takes the
	// whole response body as the answer.
	"custom": {
		body: func(model, prompt string) any {
			return struct {
				Prompt string `json:"prompt"`
				Model  string `json:"model"`
			}{prompt, model}
		},
		answer: func(raw []byte) (string, error) { return string(raw), nil },
	},
}

// LLMClient sends single prompts to a model server.
type LLMClient struct {
	provider string
	dialect  dialect
	url      string
	model    string
	apiKey   string
	http     *http.Client
}

// NewLLMClient validates the provider and resolves the request URL.
func NewLLMClient(cfg config.LLMConfig) (*LLMClient, error) {
	provider := strings.ToLower(cfg.Provider)
	d, ok := dialects[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
	base := strings.TrimRight(cfg.Endpoint, "/")
	if base == "" {
		base = d.defaultBase
	}
	if base == "" {
		return nil, fmt.Errorf("llm provider %s requires an endpoint", provider)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &LLMClient{
		provider: provider,
		dialect:  d,
		url:      base + d.path,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Generate returns the model's answer to prompt.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(c.dialect.body(c.model, prompt))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerSize))
	if err != nil {
		return "", fmt.Errorf("%s response: %w", c.provider, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%s returned HTTP %d", c.provider, resp.StatusCode)
	}
	return c.dialect.answer(raw)
}

// LLMClassifier asks a model to pick exactly one of its labels.
type LLMClassifier struct {
	client *LLMClient
	labels []string
	logger *slog.Logger
}

// NewLLMClassifier defaults to the headline labels when none are configured.
func NewLLMClassifier(cfg config.LLMConfig, logger *slog.Logger) (*LLMClassifier, error) {
	client, err := NewLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = headlineOrder
	}
	return &LLMClassifier{
		client: client,
		labels: append([]string(nil), labels...),
		logger: logger.With("component", "llm_classifier", "provider", client.provider),
	}, nil
}

func (l *LLMClassifier) Name() string { return "llm" }

func (l *LLMClassifier) Labels() []string { return append([]string(nil), l.labels...) }

func (l *LLMClassifier) Classify(ctx context.Context, text string) (types.ClassificationResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.ClassificationResult{}, classifyErr(l.Name(), types.ErrEmptyText)
	}
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}

	answer, err := l.client.Generate(ctx, fmt.Sprintf(promptTemplate, strings.Join(l.labels, ", "), text))
	if err != nil {
		return types.ClassificationResult{}, classifyErr(l.Name(), err)
	}
	res, err := l.match(answer)
	if err != nil {
		l.logger.Debug("unusable answer", "answer", answer)
	}
	return res, err
}

// match maps a free-form answer to a label. An exact answer gets full
// confidence, a label found inside a longer answer half.
func (l *LLMClassifier) match(answer string) (types.ClassificationResult, error) {
	clean := strings.Trim(strings.TrimSpace(answer), ".\"'`*")
	for _, label := range l.labels {
		if strings.EqualFold(clean, label) {
			return types.ClassificationResult{Label: label, Confidence: 1}, nil
		}
	}
	lowered := strings.ToLower(answer)
	for _, label := range l.labels {
		if strings.Contains(lowered, strings.ToLower(label)) {
			return types.ClassificationResult{Label: label, Confidence: 0.5}, nil
		}
	}
	return types.ClassificationResult{}, classifyErr(l.Name(), fmt.Errorf("answer %q is not one of %v", answer, l.labels))
}
