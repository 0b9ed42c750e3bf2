package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/models"
)

func ocrTestConfig(url string) *config.Config {
	return &config.Config{
		OCRServiceEnabled:     true,
		OCRServiceURL:         url,
		OCRTimeout:            5,
		OCRDensityThreshold:   25,
		LanguageMinConfidence: 0.5,
		ParentChunkSize:       800,
		ChildChunkSize:        200,
		ChildChunkOverlap:     50,
	}
}

// ocrSidecar fakes the OCR service: healthy, recovers the pages listed
// in recoverable and reports failure for everything else. Requested page
// numbers are appended to *called.
func ocrSidecar(t *testing.T, recoverable map[int]string, called *[]int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", ModelLoaded: true})
	})
	mux.HandleFunc("/ocr/page", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("bad multipart request: %v", err)
		}
		page, _ := strconv.Atoi(r.FormValue("page"))
		*called = append(*called, page)

		if text, ok := recoverable[page]; ok {
			json.NewEncoder(w).Encode(OCRPageResponse{Success: true, Text: text, Page: page, Confidence: 0.9})
			return
		}
		json.NewEncoder(w).Encode(OCRPageResponse{Success: false, Page: page, Error: "no text detected"})
	})
	return httptest.NewServer(mux)
}

func TestRecoverSparsePagesThresholdAndGaps(t *testing.T) {
	var called []int
	server := ocrSidecar(t, map[int]string{2: makeWords(30)}, &called)
	defer server.Close()

	svc := NewIngestionService(ocrTestConfig(server.URL), nil, nil, nil)

	input := []models.PageText{
		{Number: 1, Text: makeWords(40), WordCount: 40},
		{Number: 2, Text: "faint scan", WordCount: 2},
		{Number: 3, Text: "", WordCount: 0},
	}

	pages, gaps, ocrPages := svc.recoverSparsePages(context.Background(), input, []byte("%PDF-1.4"), "scan.pdf")

	// Only the two pages below the 25-word threshold reach the sidecar.
	if len(called) != 2 || called[0] != 2 || called[1] != 3 {
		t.Fatalf("OCR called for pages %v, want [2 3]", called)
	}

	if pages[0].OCRProcessed {
		t.Errorf("dense page must keep its native extraction")
	}
	if !pages[1].OCRProcessed {
		t.Errorf("recovered page must carry OCR provenance")
	}
	if pages[1].WordCount != 30 {
		t.Errorf("recovered page word count = %d, want 30", pages[1].WordCount)
	}
	if ocrPages != 1 {
		t.Errorf("ocrPages = %d, want 1", ocrPages)
	}

	// Page 3 failed both native extraction and OCR: a gap, not an error.
	if len(gaps) != 1 || gaps[0] != 3 {
		t.Errorf("gaps = %v, want [3]", gaps)
	}
	if pages[2].OCRProcessed || pages[2].Text != "" {
		t.Errorf("unrecovered page must stay empty without OCR provenance")
	}
}

func TestRecoverSparsePagesOCRDisabled(t *testing.T) {
	cfg := ocrTestConfig("http://localhost:1")
	cfg.OCRServiceEnabled = false
	svc := NewIngestionService(cfg, nil, nil, nil)

	input := []models.PageText{
		{Number: 1, Text: makeWords(40), WordCount: 40},
		{Number: 2, Text: "", WordCount: 0},
	}

	pages, gaps, ocrPages := svc.recoverSparsePages(context.Background(), input, []byte("%PDF-1.4"), "scan.pdf")

	if ocrPages != 0 {
		t.Errorf("ocrPages = %d, want 0 with OCR disabled", ocrPages)
	}
	if len(gaps) != 1 || gaps[0] != 2 {
		t.Errorf("gaps = %v, want [2]", gaps)
	}
	if pages[1].OCRProcessed {
		t.Errorf("no page may carry OCR provenance when OCR is disabled")
	}
}

func TestRecoverSparsePagesUnhealthySidecar(t *testing.T) {
	var called []int
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", ModelLoaded: false})
	})
	mux.HandleFunc("/ocr/page", func(w http.ResponseWriter, r *http.Request) {
		called = append(called, 0)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewIngestionService(ocrTestConfig(server.URL), nil, nil, nil)

	input := []models.PageText{{Number: 1, Text: "", WordCount: 0}}
	_, gaps, ocrPages := svc.recoverSparsePages(context.Background(), input, []byte("%PDF-1.4"), "scan.pdf")

	if len(called) != 0 {
		t.Errorf("no page may be sent to a sidecar that failed its health check")
	}
	if ocrPages != 0 || len(gaps) != 1 {
		t.Errorf("sparse page must become a gap, got ocrPages=%d gaps=%v", ocrPages, gaps)
	}
}
