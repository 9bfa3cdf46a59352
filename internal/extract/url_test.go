package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/mohammad-safakhou/companion/config"
)

func testExtractor() *URLExtractor {
	return NewURLExtractor(config.ExtractConfig{
		Timeout:   5 * time.Second,
		MaxChars:  20000,
		UserAgent: "companion-test/1.0",
	})
}

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Quarterly Results</title></head>
<body>
<article>
<h1>Quarterly Results</h1>
<p>Revenue grew twelve percent year over year, driven by strong demand in the subscription segment and steady renewals across the installed base.</p>
<p>Operating margin held at twenty one percent while the company continued to invest in infrastructure and hiring for the platform organization.</p>
<p>Management reiterated full year guidance and flagged currency exposure as the main downside risk for the second half of the year.</p>
</article>
</body>
</html>`

func TestExtractHTML(t *testing.T) {
	t.Parallel()
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	result, err := testExtractor().Extract(context.Background(), srv.URL+"/results")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if gotUA != "companion-test/1.0" {
		t.Fatalf("user agent not sent: %q", gotUA)
	}
	if !strings.Contains(result.Text, "Revenue grew twelve percent") {
		t.Fatalf("article text lost: %q", result.Text)
	}
	if strings.Contains(result.Text, "<p>") {
		t.Fatalf("markup leaked into text: %q", result.Text)
	}
	if result.Metadata.Title != "Quarterly Results" {
		t.Fatalf("title = %q", result.Metadata.Title)
	}
	if result.Metadata.URL != srv.URL+"/results" {
		t.Fatalf("url = %q", result.Metadata.URL)
	}
	if result.Metadata.WordCount == 0 || result.Metadata.ExtractedAt.IsZero() {
		t.Fatalf("metadata incomplete: %+v", result.Metadata)
	}
}

func TestExtractPlainText(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "plain notes about revenue\n")
	}))
	defer srv.Close()

	result, err := testExtractor().Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Text != "plain notes about revenue" {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Metadata.WordCount != 4 {
		t.Fatalf("word count = %d", result.Metadata.WordCount)
	}
}

func TestExtractClampsLongText(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("x", 500))
	}))
	defer srv.Close()

	extractor := NewURLExtractor(config.ExtractConfig{Timeout: 5 * time.Second, MaxChars: 100})
	result, err := extractor.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(result.Text) != 100 {
		t.Fatalf("text not clamped: %d chars", len(result.Text))
	}
}

func TestExtractClampKeepsRunesWhole(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, strings.Repeat("日", 50))
	}))
	defer srv.Close()

	// 100 is not a multiple of the 3-byte rune width, so the byte limit
	// lands mid-rune.
	extractor := NewURLExtractor(config.ExtractConfig{Timeout: 5 * time.Second, MaxChars: 100})
	result, err := extractor.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !utf8.ValidString(result.Text) {
		t.Fatalf("clamped text is not valid UTF-8: %q", result.Text)
	}
	if len(result.Text) == 0 || len(result.Text) > 100 {
		t.Fatalf("unexpected clamped length: %d", len(result.Text))
	}
}

func TestExtractUnsupportedContentType(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
	}))
	defer srv.Close()

	_, err := testExtractor().Extract(context.Background(), srv.URL)
	if !errors.Is(err, ErrUnsupportedContent) {
		t.Fatalf("expected ErrUnsupportedContent, got %v", err)
	}
}

func TestExtractInvalidURL(t *testing.T) {
	t.Parallel()
	for _, link := range []string{"", "   ", "not-a-url", "/relative/only"} {
		_, err := testExtractor().Extract(context.Background(), link)
		if err == nil || !strings.Contains(err.Error(), "invalid url") {
			t.Fatalf("link %q: expected invalid url error, got %v", link, err)
		}
	}
}

func TestExtractUpstreamStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testExtractor().Extract(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected status error, got %v", err)
	}
}
