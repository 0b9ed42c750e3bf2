package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Release Notes</title><style>p { color: red }</style></head>
<body>
<nav>Home | About</nav>
<h1>Version 2.0</h1>
<p>The parser was rewritten for speed.</p>
<script>console.log("tracking")</script>
<ul><li>Faster startup</li><li>Lower memory use</li></ul>
<footer>Copyright</footer>
</body>
</html>`

func TestFetchExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	fetcher := NewHTMLFetcher(5 * time.Second)
	page, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	if page.Title != "Release Notes" {
		t.Errorf("title = %q, want Release Notes", page.Title)
	}
	for _, want := range []string{"Version 2.0", "parser was rewritten", "Faster startup"} {
		if !strings.Contains(page.Text, want) {
			t.Errorf("text missing %q", want)
		}
	}
	for _, unwanted := range []string{"console.log", "color: red", "Home | About", "Copyright"} {
		if strings.Contains(page.Text, unwanted) {
			t.Errorf("text should not contain %q", unwanted)
		}
	}

	pageText := page.AsPageText()
	if pageText.Number != 1 {
		t.Errorf("page number = %d, want 1", pageText.Number)
	}
	if !strings.HasPrefix(pageText.Text, "Release Notes") {
		t.Errorf("title should lead the page text")
	}
	if pageText.WordCount == 0 {
		t.Errorf("word count not computed")
	}
}

func TestFetchRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	fetcher := NewHTMLFetcher(5 * time.Second)
	if _, err := fetcher.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-HTML content type")
	}
}

func TestFetchRejectsBadScheme(t *testing.T) {
	fetcher := NewHTMLFetcher(5 * time.Second)
	if _, err := fetcher.Fetch(context.Background(), "ftp://example.com/doc"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	fetcher := NewHTMLFetcher(5 * time.Second)
	if _, err := fetcher.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
