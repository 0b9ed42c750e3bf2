package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/models"
	"pdf-rag-chatbot/utils"
)

// IngestionService runs the full document pipeline: page extraction,
// OCR fallback for sparse pages, language detection, hierarchical
// chunking and index rebuild. One document per session; re-ingesting
// replaces the session's collection wholesale.
type IngestionService struct {
	cfg       *config.Config
	db        *mongo.Database
	extractor *PDFExtractor
	ocr       *OCRClient
	detector  *LanguageDetector
	chunker   *HierarchicalChunker
	index     *VectorIndex
	metrics   *telemetry.Metrics
}

func NewIngestionService(cfg *config.Config, db *mongo.Database, index *VectorIndex, metrics *telemetry.Metrics) *IngestionService {
	return &IngestionService{
		cfg:       cfg,
		db:        db,
		extractor: NewPDFExtractor(cfg),
		ocr:       NewOCRClient(cfg),
		detector:  NewLanguageDetector(cfg.LanguageMinConfidence),
		chunker: NewHierarchicalChunker(models.ChunkerConfig{
			ParentSize:   cfg.ParentChunkSize,
			ChildSize:    cfg.ChildChunkSize,
			ChildOverlap: cfg.ChildChunkOverlap,
		}),
		index:   index,
		metrics: metrics,
	}
}

// IngestPDF processes raw PDF bytes for the given session. On success
// the document record is persisted and the session's vector collection
// holds exactly this document's chunks.
func (s *IngestionService) IngestPDF(ctx context.Context, doc *models.Document, content []byte, session *models.Session) error {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.pdf")
	defer span.End()

	start := time.Now()
	s.setStatus(ctx, doc, models.StatusProcessing, 10, "")

	extraction, err := s.extractor.ExtractPages(ctx, content)
	if err != nil {
		return s.fail(ctx, doc, models.NewIngestionError(err))
	}
	span.SetAttributes(attribute.Int("ingestion.pages", extraction.PageCount))
	s.setStatus(ctx, doc, models.StatusProcessing, 30, "")

	pages, gaps, ocrPages := s.recoverSparsePages(ctx, extraction.Pages, content, doc.Filename)
	doc.Gaps = gaps
	doc.OCRUsed = ocrPages > 0
	s.setStatus(ctx, doc, models.StatusProcessing, 55, "")

	err = s.finishIngest(ctx, doc, pages, session)

	status := models.StatusCompleted
	if err != nil {
		status = models.StatusFailed
	}
	if s.metrics != nil {
		s.metrics.RecordIngestion(time.Since(start).Seconds(), status, int64(ocrPages))
	}
	return err
}

// IngestPages runs the shared tail of the pipeline on pages that came
// from a non-PDF source (a fetched web page). OCR does not apply.
func (s *IngestionService) IngestPages(ctx context.Context, doc *models.Document, pages []models.PageText, session *models.Session) error {
	start := time.Now()
	s.setStatus(ctx, doc, models.StatusProcessing, 40, "")

	err := s.finishIngest(ctx, doc, pages, session)

	status := models.StatusCompleted
	if err != nil {
		status = models.StatusFailed
	}
	if s.metrics != nil {
		s.metrics.RecordIngestion(time.Since(start).Seconds(), status, 0)
	}
	return err
}

// recoverSparsePages sends pages below the density threshold to OCR.
// Pages that stay empty after the fallback become gaps; they are
// recorded and skipped, never fatal.
func (s *IngestionService) recoverSparsePages(ctx context.Context, pages []models.PageText, content []byte, filename string) ([]models.PageText, []int, int) {
	var gaps []int
	ocrPages := 0

	ocrAvailable := s.ocr.Enabled()
	if ocrAvailable {
		healthy, err := s.ocr.IsHealthy(ctx)
		if err != nil || !healthy {
			logger.Warn("OCR service unavailable, sparse pages will become gaps", "error", err)
			ocrAvailable = false
		}
	}

	for i := range pages {
		if !s.extractor.IsSparsePage(pages[i]) {
			continue
		}

		if ocrAvailable {
			text, err := s.ocr.ExtractPage(ctx, content, filename, pages[i].Number)
			if err != nil {
				pageErr := &models.PageExtractionError{Page: pages[i].Number, Err: err}
				logger.Warn("OCR fallback failed", "page", pages[i].Number, "error", pageErr)
			} else if strings.TrimSpace(text) != "" {
				pages[i].Text = normalizeExtractedText(text)
				pages[i].OCRProcessed = true
				pages[i].WordCount = 0
				pages[i].WordCount = pages[i].Words()
				ocrPages++
			}
		}

		if strings.TrimSpace(pages[i].Text) == "" {
			gaps = append(gaps, pages[i].Number)
		}
	}

	return pages, gaps, ocrPages
}

// finishIngest is the source-independent tail: language detection,
// chunking, index rebuild, persistence and session update.
func (s *IngestionService) finishIngest(ctx context.Context, doc *models.Document, pages []models.PageText, session *models.Session) error {
	var full strings.Builder
	for _, p := range pages {
		full.WriteString(p.Text)
		full.WriteString("\n")
	}
	if strings.TrimSpace(full.String()) == "" {
		return s.fail(ctx, doc, models.NewIngestionError(models.ErrEmptyDocument))
	}

	lang, confidence := s.detector.Detect(full.String())
	doc.Language = lang
	doc.LanguageConfidence = confidence
	doc.Pages = pages
	doc.PageCount = len(pages)

	result, err := s.chunker.Chunk(doc.FileHash, lang, pages)
	if err != nil {
		return s.fail(ctx, doc, err)
	}
	s.setStatus(ctx, doc, models.StatusProcessing, 70, "")

	if err := s.index.Rebuild(ctx, session.CollectionName, result.Parents, result.Children); err != nil {
		return s.fail(ctx, doc, err)
	}
	if s.metrics != nil {
		s.metrics.RecordChunksIndexed(session.CollectionName, int64(len(result.Parents)+len(result.Children)))
	}
	s.setStatus(ctx, doc, models.StatusProcessing, 90, "")

	if err := s.persistDocument(ctx, doc); err != nil {
		return s.fail(ctx, doc, models.NewIngestionError(err))
	}

	now := time.Now()
	doc.Status = models.StatusCompleted
	doc.Progress = 100
	doc.ProcessedAt = &now
	s.setStatus(ctx, doc, models.StatusCompleted, 100, "")

	session.DocumentID = doc.ID
	session.Language = lang
	session.LanguageConfidence = confidence
	session.ParentCount = len(result.Parents)
	session.ChildCount = len(result.Children)
	session.OCRUsed = doc.OCRUsed
	session.UpdatedAt = now
	if err := s.updateSession(ctx, session); err != nil {
		return models.NewIngestionError(err)
	}

	logger.Info("document ingested",
		"document_id", doc.ID,
		"session_id", session.ID,
		"pages", doc.PageCount,
		"gaps", len(doc.Gaps),
		"parents", len(result.Parents),
		"children", len(result.Children),
		"language", lang,
		"ocr_used", doc.OCRUsed)

	return nil
}

// persistDocument stores the document with its page texts compressed.
func (s *IngestionService) persistDocument(ctx context.Context, doc *models.Document) error {
	raw, err := json.Marshal(doc.Pages)
	if err != nil {
		return fmt.Errorf("failed to serialize pages: %w", err)
	}
	compressed, algorithm, err := utils.CompressText(string(raw))
	if err != nil {
		return fmt.Errorf("failed to compress pages: %w", err)
	}
	doc.CompressedPages = compressed
	doc.PagesCompression = string(algorithm)

	opts := options.Replace().SetUpsert(true)
	_, err = s.db.Collection("documents").ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

// GetDocument loads one document record by id.
func (s *IngestionService) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	err := s.db.Collection("documents").FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadDocumentPages decompresses the stored page texts of a document.
func (s *IngestionService) LoadDocumentPages(ctx context.Context, documentID string) ([]models.PageText, error) {
	var doc models.Document
	err := s.db.Collection("documents").FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	if err != nil {
		return nil, err
	}

	raw, err := utils.DecompressText(doc.CompressedPages, utils.CompressionAlgorithm(doc.PagesCompression))
	if err != nil {
		return nil, err
	}

	var pages []models.PageText
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (s *IngestionService) updateSession(ctx context.Context, session *models.Session) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection("sessions").ReplaceOne(ctx, bson.M{"_id": session.ID}, session, opts)
	return err
}

// setStatus records pipeline progress; best effort, failures only log.
func (s *IngestionService) setStatus(ctx context.Context, doc *models.Document, status string, progress int, errMsg string) {
	doc.Status = status
	doc.Progress = progress
	doc.ErrorMessage = errMsg

	update := bson.M{"$set": bson.M{
		"status":        status,
		"progress":      progress,
		"error_message": errMsg,
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Collection("documents").UpdateOne(ctx, bson.M{"_id": doc.ID}, update, opts); err != nil {
		logger.Warn("failed to update document status", "document_id", doc.ID, "error", err)
	}
}

func (s *IngestionService) fail(ctx context.Context, doc *models.Document, err error) error {
	s.setStatus(ctx, doc, models.StatusFailed, doc.Progress, err.Error())
	logger.Error("ingestion failed", "document_id", doc.ID, "error", err)

	if errors.Is(err, models.ErrIngestionFailed) || errors.Is(err, models.ErrIndexUnavailable) {
		return err
	}
	return models.NewIngestionError(err)
}

// FileHash returns the content-addressed id used to derive chunk ids.
func FileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
