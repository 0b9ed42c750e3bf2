package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/models"
	"pdf-rag-chatbot/services"
)

const (
	TaskIngestDocument = "document:ingest"
	TaskIngestURL      = "document:ingest_url"
)

type IngestDocumentPayload struct {
	DocumentID string `json:"document_id"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	FilePath   string `json:"file_path"`
}

type IngestURLPayload struct {
	DocumentID string `json:"document_id"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	URL        string `json:"url"`
}

// Task creators
func NewIngestDocumentTask(documentID, sessionID, userID, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestDocumentPayload{
		DocumentID: documentID,
		SessionID:  sessionID,
		UserID:     userID,
		FilePath:   filePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewIngestURLTask(documentID, sessionID, userID, url string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestURLPayload{
		DocumentID: documentID,
		SessionID:  sessionID,
		UserID:     userID,
		URL:        url,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestURL,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("default"),
	), nil
}

// TaskProcessor runs ingestion jobs on the worker.
type TaskProcessor struct {
	ingestion *services.IngestionService
	sessions  *services.SessionService
	fetcher   *services.HTMLFetcher
}

func NewTaskProcessor(ingestion *services.IngestionService, sessions *services.SessionService, fetcher *services.HTMLFetcher) *TaskProcessor {
	return &TaskProcessor{
		ingestion: ingestion,
		sessions:  sessions,
		fetcher:   fetcher,
	}
}

// ProcessIngestDocument runs the full PDF pipeline for an uploaded file.
// Terminal failures (empty document) skip retries; index errors retry.
func (p *TaskProcessor) ProcessIngestDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("processing document task",
		"document_id", payload.DocumentID,
		"session_id", payload.SessionID)

	session, err := p.sessions.Get(ctx, payload.SessionID, payload.UserID)
	if err != nil {
		return fmt.Errorf("session lookup failed: %v: %w", err, asynq.SkipRetry)
	}

	content, err := os.ReadFile(payload.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read stored file: %v: %w", err, asynq.SkipRetry)
	}

	doc, err := p.loadDocument(ctx, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("document lookup failed: %v: %w", err, asynq.SkipRetry)
	}

	if err := p.ingestion.IngestPDF(ctx, doc, content, session); err != nil {
		if isTerminal(err) {
			return fmt.Errorf("ingestion failed: %v: %w", err, asynq.SkipRetry)
		}
		return err // Will retry
	}

	// Uploaded file is no longer needed once chunks are indexed
	if err := os.Remove(payload.FilePath); err != nil {
		logger.Warn("failed to remove processed file", "path", payload.FilePath, "error", err)
	}

	return nil
}

// ProcessIngestURL fetches a web page and runs it through the pipeline.
func (p *TaskProcessor) ProcessIngestURL(ctx context.Context, t *asynq.Task) error {
	var payload IngestURLPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	session, err := p.sessions.Get(ctx, payload.SessionID, payload.UserID)
	if err != nil {
		return fmt.Errorf("session lookup failed: %v: %w", err, asynq.SkipRetry)
	}

	doc, err := p.loadDocument(ctx, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("document lookup failed: %v: %w", err, asynq.SkipRetry)
	}

	page, err := p.fetcher.Fetch(ctx, payload.URL)
	if err != nil {
		return err // Will retry; origin may be transiently down
	}

	pageText := page.AsPageText()
	doc.FileHash = services.FileHash([]byte(pageText.Text))

	if err := p.ingestion.IngestPages(ctx, doc, []models.PageText{pageText}, session); err != nil {
		if isTerminal(err) {
			return fmt.Errorf("ingestion failed: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	return nil
}

func (p *TaskProcessor) loadDocument(ctx context.Context, documentID string) (*models.Document, error) {
	return p.ingestion.GetDocument(ctx, documentID)
}

// isTerminal reports failures that retries cannot fix.
func isTerminal(err error) bool {
	return !models.IsRetryable(err)
}
