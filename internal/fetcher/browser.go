package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

var errBrowserClosed = errors.New("browser session closed")

// BrowserFetcher renders pages in a headless Chromium driven by Rod, for
// portals whose search results are filled in by script. One instance is
// one browser session; Close must be called on every exit path.
type BrowserFetcher struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	timeout time.Duration
	agents  UserAgentPicker
	logger  *slog.Logger

	// idle holds blank tabs ready for reuse, at most PoolSize of them.
	idle      chan *rod.Page
	closeOnce sync.Once
	closeErr  error
}

// NewBrowserFetcher launches Chromium and connects to it.
func NewBrowserFetcher(cfg *config.Config, agents UserAgentPicker, logger *slog.Logger) (*BrowserFetcher, error) {
	bc := cfg.Browser
	l := newLauncher(bc)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf := &BrowserFetcher{
		browser: browser,
		cfg:     bc,
		timeout: cfg.Engine.RequestTimeout,
		agents:  agents,
		logger:  logger.With("component", "browser_fetcher"),
		idle:    make(chan *rod.Page, max(bc.PoolSize, 1)),
	}
	bf.logger.Info("browser session ready", "tabs", cap(bf.idle), "stealth", bc.Stealth, "headless", bc.Headless)
	return bf, nil
}

func newLauncher(bc config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(bc.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")
	if bc.WindowSize != "" {
		l = l.Set("window-size", bc.WindowSize)
	}
	if bc.BinPath != "" {
		l = l.Bin(bc.BinPath)
	}
	return l
}

// Fetch loads the request URL in a tab and returns the DOM once the page
// has settled.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	target := req.URLString()
	start := time.Now()

	tab, err := bf.acquire()
	if err != nil {
		return nil, &types.NetworkError{URL: target, Err: err, Retryable: !errors.Is(err, errBrowserClosed)}
	}
	defer bf.release(tab)

	bf.setUserAgent(tab, req)

	timeout := bf.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	p := tab.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	html, finalURL, err := bf.render(p, req)
	if err != nil {
		// A render that ran out of time is retryable; only cancellation
		// of the run is not.
		return nil, &types.NetworkError{URL: target, Err: err, Retryable: !errors.Is(ctx.Err(), context.Canceled)}
	}

	elapsed := time.Since(start)
	bf.logger.Debug("page rendered",
		"url", target,
		"tag", req.Tag,
		"final_url", finalURL,
		"bytes", len(html),
		"took", elapsed,
	)
	return types.NewBrowserResponse(req, []byte(html), finalURL, elapsed), nil
}

// render navigates and waits. Load, selector and stability waits that
// time out are logged and the DOM is taken as it is.
func (bf *BrowserFetcher) render(p *rod.Page, req *types.Request) (string, string, error) {
	target := req.URLString()
	if err := p.Navigate(target); err != nil {
		return "", "", fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		bf.logger.Warn("page load incomplete", "url", target, "error", err)
	}
	if req.WaitSelector != "" {
		if err := waitVisible(p, req.WaitSelector); err != nil {
			bf.logger.Warn("listing selector never appeared", "url", target, "selector", req.WaitSelector, "error", err)
		}
	}
	if bf.cfg.WaitStable > 0 {
		if err := p.WaitStable(bf.cfg.WaitStable); err != nil {
			bf.logger.Debug("page kept changing", "url", target, "error", err)
		}
	}

	html, err := p.HTML()
	if err != nil {
		return "", "", fmt.Errorf("read DOM: %w", err)
	}
	finalURL := target
	if info, err := p.Info(); err == nil && info != nil && info.URL != "" {
		finalURL = info.URL
	}
	return html, finalURL, nil
}

func waitVisible(p *rod.Page, selector string) error {
	el, err := p.Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (bf *BrowserFetcher) setUserAgent(tab *rod.Page, req *types.Request) {
	ua := req.Headers.Get("User-Agent")
	if ua == "" && bf.agents != nil {
		ua = bf.agents.UserAgent()
	}
	if ua == "" {
		return
	}
	if err := tab.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		bf.logger.Warn("user agent override failed", "error", err)
	}
}

// acquire reuses an idle tab or opens a new one, stealth-patched when
// configured.
func (bf *BrowserFetcher) acquire() (*rod.Page, error) {
	select {
	case tab, ok := <-bf.idle:
		if !ok {
			return nil, errBrowserClosed
		}
		return tab, nil
	default:
	}
	if bf.cfg.Stealth {
		return stealth.Page(bf.browser)
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// release blanks the tab and parks it, or closes it when enough tabs are
// already idle.
func (bf *BrowserFetcher) release(tab *rod.Page) {
	_ = tab.Navigate("about:blank")
	select {
	case bf.idle <- tab:
	default:
		_ = tab.Close()
	}
}

// Close shuts the browser down. It is safe to call more than once but must
// not race with Fetch.
func (bf *BrowserFetcher) Close() error {
	bf.closeOnce.Do(func() {
		close(bf.idle)
		for tab := range bf.idle {
			_ = tab.Close()
		}
		if bf.browser != nil {
			bf.closeErr = bf.browser.Close()
		}
		bf.logger.Info("browser session closed")
	})
	return bf.closeErr
}

func (bf *BrowserFetcher) Type() string { return "browser" }
