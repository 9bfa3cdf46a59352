// Package extract implements the text-extraction collaborator for web pages:
// fetch a URL and reduce it to (text, metadata) suitable for the context
// assembler.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/companion/config"
)

// Result is the extraction output handed back to the caller.
type Result struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes the extracted page.
type Metadata struct {
	Title       string    `json:"title,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Author      string    `json:"author,omitempty"`
	URL         string    `json:"url"`
	ExtractedAt time.Time `json:"extractedAt"`
	WordCount   int       `json:"wordCount"`
}

// ErrUnsupportedContent is returned for responses that are neither HTML nor
// plain text.
var ErrUnsupportedContent = errors.New("unsupported content type")

// URLExtractor fetches pages over plain HTTP and runs readability
// extraction on HTML responses.
type URLExtractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

// NewURLExtractor builds an extractor from configuration.
func NewURLExtractor(cfg config.ExtractConfig) *URLExtractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 20000
	}
	return &URLExtractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		maxChars:  maxChars,
	}
}

// Extract fetches link and returns its readable text. HTML goes through
// readability; text/* bodies are taken as-is; anything else is
// ErrUnsupportedContent.
func (e *URLExtractor) Extract(ctx context.Context, link string) (Result, error) {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{}, fmt.Errorf("invalid url: %q", link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", parsed.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("fetch %s: status %d", parsed.Host, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "text/html"):
		article, err := readability.FromReader(resp.Body, parsed)
		if err != nil {
			return Result{}, fmt.Errorf("readability: %w", err)
		}
		text := e.clamp(strings.TrimSpace(article.TextContent))
		return Result{
			Text: text,
			Metadata: Metadata{
				Title:       strings.TrimSpace(article.Title),
				Summary:     strings.TrimSpace(article.Excerpt),
				Author:      strings.TrimSpace(article.Byline),
				URL:         parsed.String(),
				ExtractedAt: time.Now().UTC(),
				WordCount:   len(strings.Fields(text)),
			},
		}, nil
	case strings.Contains(contentType, "text/"):
		body, err := io.ReadAll(io.LimitReader(resp.Body, int64(e.maxChars)))
		if err != nil {
			return Result{}, fmt.Errorf("read body: %w", err)
		}
		// The byte limit may have cut a multi-byte rune short.
		text := strings.TrimSpace(trimPartialRune(string(body)))
		return Result{
			Text: text,
			Metadata: Metadata{
				URL:         parsed.String(),
				ExtractedAt: time.Now().UTC(),
				WordCount:   len(strings.Fields(text)),
			},
		}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
}

// clamp truncates to maxChars without splitting a multi-byte rune.
func (e *URLExtractor) clamp(text string) string {
	if len(text) <= e.maxChars {
		return text
	}
	cut := e.maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// trimPartialRune drops an incomplete trailing rune left by a byte-bounded
// read.
func trimPartialRune(s string) string {
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			return s
		}
		s = s[:len(s)-1]
	}
	return s
}
