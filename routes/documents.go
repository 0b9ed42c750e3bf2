package routes

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/queue"
	"pdf-rag-chatbot/middleware"
	"pdf-rag-chatbot/models"
	"pdf-rag-chatbot/services"
	"pdf-rag-chatbot/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetupDocumentRoutes wires document upload and status endpoints. Small
// files are ingested synchronously in the request; larger ones are saved
// to disk and handed to the worker queue.
func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *mongo.Database,
	ingestion *services.IngestionService,
	sessions *services.SessionService,
	queueClient *asynq.Client,
	auth *middleware.AuthMiddleware,
) {
	documents := router.Group("/documents")
	documents.Use(auth.RequireAuth())

	documentsCollection := db.Collection("documents")

	documents.POST("/upload", handlePDFUpload(cfg, documentsCollection, ingestion, sessions, queueClient))
	documents.POST("/url", handleURLIngest(documentsCollection, sessions, queueClient))
	documents.GET("/:id/status", handleDocumentStatus(documentsCollection))
	documents.GET("", handleDocumentList(documentsCollection))
}

func handlePDFUpload(
	cfg *config.Config,
	documentsCollection *mongo.Collection,
	ingestion *services.IngestionService,
	sessions *services.SessionService,
	queueClient *asynq.Client,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		sessionID := c.PostForm("session_id")
		if sessionID == "" {
			utils.RespondWithBadRequest(c, "session_id is required", nil)
			return
		}
		session, err := sessions.Get(c.Request.Context(), sessionID, userID)
		if err != nil {
			utils.RespondWithNotFound(c, "Session not found")
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		ct := header.Header.Get("Content-Type")
		if !strings.Contains(ct, "pdf") && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"Only PDF files are allowed", nil)
			return
		}
		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				"File size exceeds maximum limit", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}

		// Magic-byte check before committing to any processing.
		headerBuf := make([]byte, 5)
		if _, err := io.ReadFull(file, headerBuf); err != nil || string(headerBuf[:4]) != "%PDF" {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_pdf",
				"File does not appear to be a valid PDF", nil)
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			utils.RespondWithInternalError(c, "Failed to reset file for reading", nil)
			return
		}

		doc := &models.Document{
			ID:         uuid.NewString(),
			UserID:     userID,
			SessionID:  session.ID,
			Filename:   header.Filename,
			Size:       header.Size,
			Status:     models.StatusPending,
			UploadedAt: time.Now(),
		}

		// Small files finish inside the request; large ones go through
		// the worker so the upload returns quickly.
		if header.Size <= cfg.SyncProcessingLimit {
			content, err := io.ReadAll(io.LimitReader(file, cfg.MaxFileSize))
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to read file", nil)
				return
			}
			doc.FileHash = services.FileHash(content)

			if _, err := documentsCollection.InsertOne(c.Request.Context(), doc); err != nil {
				utils.RespondWithInternalError(c, "Failed to create document record", nil)
				return
			}

			if err := ingestion.IngestPDF(c.Request.Context(), doc, content, session); err != nil {
				utils.RespondWithError(c, http.StatusUnprocessableEntity, "ingestion_failed",
					"Document could not be processed", gin.H{"error": err.Error()})
				return
			}

			c.JSON(http.StatusOK, models.UploadResponse{
				ID:          doc.ID,
				SessionID:   session.ID,
				Filename:    doc.Filename,
				Status:      doc.Status,
				ParentCount: session.ParentCount,
				ChildCount:  session.ChildCount,
				Language:    session.Language,
				OCRUsed:     session.OCRUsed,
				Message:     "Document processed successfully",
			})
			return
		}

		uploadDir := filepath.Join(cfg.FileStorageDir, "uploads", userID)
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		filePath := filepath.Join(uploadDir, fmt.Sprintf("%s.pdf", doc.ID))
		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			dst.Close()
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}
		dst.Close()

		if _, err := documentsCollection.InsertOne(c.Request.Context(), doc); err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to create document record", nil)
			return
		}

		task, err := queue.NewIngestDocumentTask(doc.ID, session.ID, userID, filePath)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create processing task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
				"Processing queue is unavailable. Please try again later.", nil)
			return
		}

		logger.Info("document queued for processing",
			"document_id", doc.ID,
			"task_id", info.ID,
			"size", header.Size)

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:        doc.ID,
			SessionID: session.ID,
			Filename:  doc.Filename,
			Status:    models.StatusPending,
			TaskID:    info.ID,
			Message:   "Document accepted for processing. Poll the status endpoint for progress.",
		})
	}
}

func handleURLIngest(
	documentsCollection *mongo.Collection,
	sessions *services.SessionService,
	queueClient *asynq.Client,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req models.URLIngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		sessionID := c.Query("session_id")
		if sessionID == "" {
			sessionID = c.GetHeader("X-Session-ID")
		}
		if sessionID == "" {
			utils.RespondWithBadRequest(c, "session_id is required", nil)
			return
		}
		session, err := sessions.Get(c.Request.Context(), sessionID, userID)
		if err != nil {
			utils.RespondWithNotFound(c, "Session not found")
			return
		}

		doc := &models.Document{
			ID:         uuid.NewString(),
			UserID:     userID,
			SessionID:  session.ID,
			Filename:   req.URL,
			SourceURL:  req.URL,
			Status:     models.StatusPending,
			UploadedAt: time.Now(),
		}
		if _, err := documentsCollection.InsertOne(c.Request.Context(), doc); err != nil {
			utils.RespondWithInternalError(c, "Failed to create document record", nil)
			return
		}

		task, err := queue.NewIngestURLTask(doc.ID, session.ID, userID, req.URL)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create processing task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
				"Processing queue is unavailable. Please try again later.", nil)
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:        doc.ID,
			SessionID: session.ID,
			Filename:  req.URL,
			Status:    models.StatusPending,
			TaskID:    info.ID,
			Message:   "URL accepted for processing. Poll the status endpoint for progress.",
		})
	}
}

func handleDocumentStatus(documentsCollection *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		documentID := c.Param("id")

		var doc models.Document
		err := documentsCollection.FindOne(c.Request.Context(),
			bson.M{"_id": documentID, "user_id": userID}).Decode(&doc)
		if err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		resp := gin.H{
			"id":       doc.ID,
			"status":   doc.Status,
			"progress": doc.Progress,
		}
		if doc.Status == models.StatusCompleted {
			resp["page_count"] = doc.PageCount
			resp["language"] = doc.Language
			resp["ocr_used"] = doc.OCRUsed
			if len(doc.Gaps) > 0 {
				resp["gaps"] = doc.Gaps
			}
		}
		if doc.Status == models.StatusFailed {
			resp["error_message"] = doc.ErrorMessage
		}

		c.JSON(http.StatusOK, resp)
	}
}

func handleDocumentList(documentsCollection *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
		if err != nil || limit < 1 || limit > 200 {
			limit = 50
		}
		offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
		if err != nil || offset < 0 {
			offset = 0
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
			SetSkip(offset).
			SetLimit(limit)
		cursor, err := documentsCollection.Find(c.Request.Context(), bson.M{"user_id": userID}, opts)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch documents", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		var docs []models.Document
		if err := cursor.All(c.Request.Context(), &docs); err != nil {
			utils.RespondWithInternalError(c, "Failed to decode documents", nil)
			return
		}
		if docs == nil {
			docs = []models.Document{}
		}

		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}
