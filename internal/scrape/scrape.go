// Package scrape fetches web pages and extracts whitespace-normalized text
// plus a heading outline bucketed by level (h1..h6).
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fyrsmithlabs/harvestd/internal/logging"
	"go.uber.org/zap"
)

// HeadingLevels enumerates the recognized heading buckets, ordered by
// importance. Collection and prompt rendering both rely on this order.
var HeadingLevels = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// Document is the transient result of fetching one URL. It is produced once
// per ingestion request and consumed by the enrichment pipeline.
type Document struct {
	// SourceURL is the origin address.
	SourceURL string

	// FullText is the whitespace-normalized extracted text. Unbounded;
	// consumers truncate to their own character budget.
	FullText string

	// Headings maps heading level (h1..h6) to heading text in document order.
	Headings map[string][]string

	// FetchErr is set when the fetch never succeeded. Mutually exclusive
	// with a populated FullText.
	FetchErr string
}

// Fetcher retrieves and parses a single web page.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *logging.Logger
}

// Config holds fetcher configuration.
type Config struct {
	// Timeout bounds the whole fetch round trip. Default: 10s.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// NewFetcher creates a Fetcher with the given configuration.
func NewFetcher(cfg Config, logger *logging.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "harvestd/1.0"
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Fetch retrieves url and extracts its text and heading outline.
//
// On failure it returns a non-nil error and a Document whose FetchErr is
// populated, so callers that thread the document through the pipeline get the
// terminal-failure behavior without inspecting the error themselves.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	f.logger.Info(ctx, "fetching url", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failedDocument(url, err), fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error(ctx, "fetch failed", zap.String("url", url), zap.Error(err))
		return failedDocument(url, err), fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		f.logger.Error(ctx, "fetch failed", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return failedDocument(url, err), fmt.Errorf("fetching %s: %w", url, err)
	}

	doc, err := Parse(resp.Body)
	if err != nil {
		return failedDocument(url, err), fmt.Errorf("parsing %s: %w", url, err)
	}
	doc.SourceURL = url

	f.logger.Debug(ctx, "fetched url",
		zap.String("url", url),
		zap.Int("text_len", len(doc.FullText)),
	)
	return doc, nil
}

func failedDocument(url string, err error) *Document {
	return &Document{SourceURL: url, FetchErr: err.Error()}
}

// Parse extracts normalized text and a heading outline from an HTML stream.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	headings := make(map[string][]string, len(HeadingLevels))
	for _, level := range HeadingLevels {
		headings[level] = []string{}
	}

	var text strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			// Script and style bodies are not page content.
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
			if _, ok := headings[n.Data]; ok {
				if title := normalizeWhitespace(textContent(n)); title != "" {
					headings[n.Data] = append(headings[n.Data], title)
				}
			}
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return &Document{
		FullText: normalizeWhitespace(text.String()),
		Headings: headings,
	}, nil
}

// textContent concatenates all text nodes beneath n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// normalizeWhitespace collapses all runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
