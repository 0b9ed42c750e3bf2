package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pdf-rag-chatbot/internal/config"
)

func ocrTestClient(baseURL string) *OCRClient {
	return NewOCRClient(&config.Config{
		OCRServiceURL:     baseURL,
		OCRServiceEnabled: true,
		OCRTimeout:        5,
	})
}

func TestOCRExtractPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr/page" {
			t.Errorf("path = %s, want /ocr/page", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("multipart parse: %v", err)
		}
		if got := r.FormValue("page"); got != "3" {
			t.Errorf("page field = %s, want 3", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file field missing: %v", err)
		}
		json.NewEncoder(w).Encode(OCRPageResponse{
			Success:    true,
			Text:       "recovered page text",
			Page:       3,
			Confidence: 0.93,
		})
	}))
	defer srv.Close()

	client := ocrTestClient(srv.URL)
	text, err := client.ExtractPage(context.Background(), []byte("%PDF-1.4 fake"), "scan.pdf", 3)
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if text != "recovered page text" {
		t.Errorf("text = %q", text)
	}
}

func TestOCRExtractPageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(OCRPageResponse{Success: false, Error: "rasterization failed"})
	}))
	defer srv.Close()

	client := ocrTestClient(srv.URL)
	if _, err := client.ExtractPage(context.Background(), []byte("%PDF"), "scan.pdf", 1); err == nil {
		t.Fatal("expected error when sidecar reports failure")
	}
}

func TestOCRHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		resp    HealthResponse
		status  int
		healthy bool
	}{
		{name: "healthy", resp: HealthResponse{Status: "healthy", ModelLoaded: true}, status: 200, healthy: true},
		{name: "model not loaded", resp: HealthResponse{Status: "healthy", ModelLoaded: false}, status: 200, healthy: false},
		{name: "degraded", resp: HealthResponse{Status: "degraded", ModelLoaded: true}, status: 200, healthy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("path = %s, want /health", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.resp)
			}))
			defer srv.Close()

			client := ocrTestClient(srv.URL)
			healthy, err := client.IsHealthy(context.Background())
			if err != nil {
				t.Fatalf("health check error: %v", err)
			}
			if healthy != tt.healthy {
				t.Errorf("healthy = %v, want %v", healthy, tt.healthy)
			}
		})
	}
}
