package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/jhillyerd/enmime"

	"cityprice/internal/config"
)

// Fetcher retrieves the HTML of a report page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

func NewFetcher(cfg config.Config) (Fetcher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.FetchMode)) {
	case "", "http":
		return NewHTTPFetcher(cfg), nil
	case "browser":
		return NewBrowserFetcher(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported fetch mode: %s", cfg.FetchMode)
	}
}

type HTTPFetcher struct {
	httpClient  *http.Client
	userAgent   string
	maxAttempts int
	backoffBase time.Duration
	pacer       *pacer
}

func NewHTTPFetcher(cfg config.Config) *HTTPFetcher {
	attempts := cfg.FetchMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPFetcher{
		httpClient:  &http.Client{Timeout: time.Duration(cfg.FetchTimeoutMs) * time.Millisecond},
		userAgent:   cfg.FetchUserAgent,
		maxAttempts: attempts,
		backoffBase: 250 * time.Millisecond,
		pacer:       newPacer(float64(cfg.FetchRPS)),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := f.pacer.wait(ctx); err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !f.wait(ctx, attempt) {
				break
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if !f.wait(ctx, attempt) {
				break
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("report fetch status %d", resp.StatusCode)
			if isRetryableStatus(resp.StatusCode) && f.wait(ctx, attempt) {
				continue
			}
			return "", fmt.Errorf("report fetch failed: status=%d url=%s", resp.StatusCode, url)
		}
		return string(body), nil
	}

	if lastErr == nil {
		lastErr = errors.New("report request failed")
	}
	return "", fmt.Errorf("fetch %s: %w", url, lastErr)
}

// wait sleeps before the next attempt and reports whether one remains.
func (f *HTTPFetcher) wait(ctx context.Context, attempt int) bool {
	if attempt >= f.maxAttempts {
		return false
	}
	backoff := f.backoffBase*time.Duration(1<<(attempt-1)) + time.Duration(rand.Intn(100))*time.Millisecond
	select {
	case <-ctx.Done():
		return false
	case <-time.After(backoff):
		return true
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// BrowserFetcher renders the page in headless Chrome, for mirrors that build
// their tables with scripts.
type BrowserFetcher struct {
	timeout   time.Duration
	userAgent string
}

func NewBrowserFetcher(cfg config.Config) *BrowserFetcher {
	return &BrowserFetcher{
		timeout:   time.Duration(cfg.FetchTimeoutMs) * time.Millisecond,
		userAgent: cfg.FetchUserAgent,
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if f.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.userAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if f.timeout > 0 {
		var cancelTimeout context.CancelFunc
		browserCtx, cancelTimeout = context.WithTimeout(browserCtx, f.timeout)
		defer cancelTimeout()
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("table", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser fetch %s: %w", url, err)
	}
	return html, nil
}

// LoadFile reads a saved report. Web archives (.mht, .mhtml, .eml) are
// unpacked and their HTML part returned.
func LoadFile(path string) (string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mht", ".mhtml", ".eml":
		env, err := enmime.ReadEnvelope(bytes.NewReader(blob))
		if err != nil {
			return "", fmt.Errorf("read web archive %s: %w", path, err)
		}
		if strings.TrimSpace(env.HTML) == "" {
			return "", fmt.Errorf("web archive %s has no html part", path)
		}
		return env.HTML, nil
	default:
		return string(blob), nil
	}
}
