// Package fetcher retrieves a normalized text representation of a
// destination URL for analysis.
package fetcher

import (
	"context"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/jonesrussell/linkguard/internal/config"
	"github.com/jonesrussell/linkguard/internal/logger"
)

// Fetcher fetches destination pages and extracts their text content.
//
// An unreachable destination or a page with too little text is an expected
// outcome, not an error: Fetch returns ("", nil) and the analysis engine
// falls back to a deterministic result.
type Fetcher struct {
	cfg config.FetcherConfig
	log logger.Logger
}

// New creates a Fetcher.
func New(cfg config.FetcherConfig, log logger.Logger) *Fetcher {
	return &Fetcher{cfg: cfg, log: log}
}

// Fetch retrieves the destination and returns its normalized text, bounded
// by the configured maximum. It returns ("", nil) when the destination
// cannot be rendered or yields near-empty text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	body, ok := f.download(ctx, rawURL)
	if !ok {
		return "", nil
	}

	text, err := extractText(body)
	if err != nil {
		f.log.Debug("Failed to parse destination HTML",
			logger.String("url", rawURL),
			logger.Error(err),
		)
		return "", nil
	}

	text = normalizeWhitespace(text)
	if len(text) < f.cfg.MinChars {
		f.log.Debug("Destination yielded near-empty text",
			logger.String("url", rawURL),
			logger.Int("length", len(text)),
		)
		return "", nil
	}

	if len(text) > f.cfg.MaxChars {
		text = text[:f.cfg.MaxChars]
	}
	return text, nil
}

// download fetches the raw page body. The second return is false when the
// destination could not be retrieved.
func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, bool) {
	c := colly.NewCollector(
		colly.IgnoreRobotsTxt(),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(f.cfg.Timeout)

	var (
		mu       sync.Mutex
		body     []byte
		fetchErr error
	)

	c.OnResponse(func(r *colly.Response) {
		mu.Lock()
		defer mu.Unlock()
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		fetchErr = err
	})

	// colly has no per-request context; honor cancellation before the visit
	// and rely on the request timeout during it.
	if ctx.Err() != nil {
		return nil, false
	}

	if err := c.Visit(rawURL); err != nil {
		f.log.Debug("Failed to visit destination",
			logger.String("url", rawURL),
			logger.Error(err),
		)
		return nil, false
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fetchErr != nil || len(body) == 0 {
		if fetchErr != nil {
			f.log.Debug("Destination fetch failed",
				logger.String("url", rawURL),
				logger.Error(fetchErr),
			)
		}
		return nil, false
	}
	return body, true
}

// normalizeWhitespace collapses all runs of whitespace to single spaces.
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
