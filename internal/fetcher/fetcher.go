package fetcher

import (
	"context"
	"time"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// Fetcher is the interface for all page fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Func adapts a plain function to the Fetcher interface.
type Func func(ctx context.Context, req *types.Request) (*types.Response, error)

func (f Func) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	return f(ctx, req)
}

func (f Func) Close() error { return nil }

func (f Func) Type() string { return "func" }

// Timed wraps a fetcher and reports how long each call took, tagged with
// the request's Tag.
type Timed struct {
	next    Fetcher
	observe func(tag string, d time.Duration)
}

// NewTimed creates a Timed fetcher. A nil observe makes it a pass-through.
func NewTimed(next Fetcher, observe func(tag string, d time.Duration)) *Timed {
	return &Timed{next: next, observe: observe}
}

func (t *Timed) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()
	resp, err := t.next.Fetch(ctx, req)
	if t.observe != nil {
		t.observe(req.Tag, time.Since(start))
	}
	return resp, err
}

func (t *Timed) Close() error { return t.next.Close() }

func (t *Timed) Type() string { return t.next.Type() }
