package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/linkguard/internal/config"
	"github.com/jonesrussell/linkguard/internal/logger"
)

func testConfig() config.FetcherConfig {
	return config.FetcherConfig{
		Timeout:  5 * time.Second,
		MaxChars: 40000,
		MinChars: 100,
	}
}

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchExtractsText(t *testing.T) {
	body := strings.Repeat("Quarterly results beat expectations across segments. ", 10)
	srv := serveHTML(t, `<html>
		<head>
			<title>Acme Quarterly Report</title>
			<meta name="description" content="Earnings summary for the quarter.">
		</head>
		<body>
			<nav>Home | About</nav>
			<script>trackPageView();</script>
			<article><p>`+body+`</p></article>
			<footer>Copyright Acme</footer>
		</body>
	</html>`)

	f := New(testConfig(), logger.NewNop())
	text, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Acme Quarterly Report")
	assert.Contains(t, text, "Earnings summary for the quarter.")
	assert.Contains(t, text, "Quarterly results beat expectations")
	assert.NotContains(t, text, "trackPageView")
	assert.NotContains(t, text, "Home | About")
	assert.NotContains(t, text, "\n")
}

func TestFetchUnreachableIsAbsent(t *testing.T) {
	f := New(testConfig(), logger.NewNop())

	text, err := f.Fetch(context.Background(), "http://127.0.0.1:1/nothing")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFetchNearEmptyPageIsAbsent(t *testing.T) {
	srv := serveHTML(t, `<html><body><p>tiny</p></body></html>`)

	f := New(testConfig(), logger.NewNop())
	text, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFetchServerErrorIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	f := New(testConfig(), logger.NewNop())
	text, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFetchTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	srv := serveHTML(t, `<html><body><main><p>`+long+`</p></main></body></html>`)

	cfg := testConfig()
	cfg.MaxChars = 500

	f := New(cfg, logger.NewNop())
	text, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, text, 500)
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", normalizeWhitespace("  a \n\t b \r\n  c  "))
	assert.Equal(t, "", normalizeWhitespace("  \n\t "))
}
