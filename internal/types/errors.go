package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrParse         = errors.New("parse error")
	ErrEmptyText     = errors.New("empty text")
	ErrUnknownSource = errors.New("unknown source")
	ErrInvalidWindow = errors.New("invalid date window")
	ErrRunUsed       = errors.New("crawl run already used")
	ErrNoFetcher     = errors.New("no fetcher available for request")
	ErrEmptyKeyword  = errors.New("keyword must not be empty")
)

// NetworkError wraps errors that occur during fetching.
type NetworkError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *NetworkError) Error() string {
	prefix := "network error for " + e.URL
	if e.Attempts > 1 {
		prefix = fmt.Sprintf("%s after %d attempts", prefix, e.Attempts)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %v", prefix, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) IsRetryable() bool { return e.Retryable }

// ParseError reports markup drift or a missing field.
type ParseError struct {
	URL   string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error for %s (field=%q): %v", e.URL, e.Field, e.Err)
	}
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// DateParseError reports a malformed date string. It is treated as a
// ParseError by callers: errors.Is(err, ErrParse) holds.
type DateParseError struct {
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("cannot parse date %q: %v", e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

func (e *DateParseError) Is(target error) bool { return target == ErrParse }

// ClassificationError reports a failure to score a single article.
type ClassificationError struct {
	Classifier string
	Err        error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification error (%s): %v", e.Classifier, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the article middleware chain.
type PipelineError struct {
	Stage string
	URL   string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
