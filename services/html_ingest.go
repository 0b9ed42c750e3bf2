package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/models"
)

// HTMLFetcher downloads a single web page and reduces it to plain text
// so it can flow through the same pipeline as a one-page PDF.
type HTMLFetcher struct {
	httpClient *http.Client
}

func NewHTMLFetcher(timeout time.Duration) *HTMLFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTMLFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DisableCompression: false, // enables gzip decompression
			},
		},
	}
}

// FetchedPage is the text form of one web page.
type FetchedPage struct {
	URL   string
	Title string
	Text  string
}

// Fetch downloads the URL and extracts readable text. Only http(s)
// schemes and HTML content types are accepted.
func (f *HTMLFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedPage, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	// Browser-like headers avoid 403s from picky origins
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Go's transport decompresses gzip transparently, but not brotli
	if strings.Contains(resp.Header.Get("Content-Encoding"), "br") {
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err == nil {
			body = decompressed
		}
	}

	// Decode to UTF-8 using the declared or sniffed charset
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err == nil {
		if decoded, readErr := io.ReadAll(utf8Reader); readErr == nil && len(decoded) > 0 {
			body = decoded
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, iframe, svg, nav, footer, header").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := extractReadableText(doc)

	logger.Debug("page fetched", "url", parsed.String(), "title", title, "text_len", len(text))

	return &FetchedPage{
		URL:   parsed.String(),
		Title: title,
		Text:  text,
	}, nil
}

// AsPageText converts the fetched page into the pipeline's page form.
func (p *FetchedPage) AsPageText() models.PageText {
	text := p.Text
	if p.Title != "" {
		text = p.Title + "\n\n" + text
	}
	page := models.PageText{Number: 1, Text: text}
	page.WordCount = page.Words()
	return page
}

// extractReadableText walks block elements so paragraph boundaries
// survive into the plain text.
func extractReadableText(doc *goquery.Document) string {
	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, blockquote, pre, article").Each(func(_ int, sel *goquery.Selection) {
		// Skip containers whose text is fully covered by nested blocks
		if sel.Children().Is("p, li, h1, h2, h3, h4, h5, h6") {
			return
		}
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}

	return strings.Join(blocks, "\n\n")
}
