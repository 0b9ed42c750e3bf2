package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pdf-rag-chatbot/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ExportRequest represents the request parameters for conversation export
type ExportRequest struct {
	Format         string    `form:"format" binding:"omitempty,oneof=json excel"`
	SessionID      string    `form:"session_id"`
	ConversationID string    `form:"conversation_id"`
	DateFrom       time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo         time.Time `form:"date_to" time_format:"2006-01-02"`
	Limit          int       `form:"limit"`
}

// ConversationExportData is the structured form written to either format
type ConversationExportData struct {
	ExportDate   time.Time        `json:"export_date"`
	TotalRecords int              `json:"total_records"`
	TotalTokens  int              `json:"total_tokens"`
	Messages     []models.Message `json:"messages"`
}

// ExportService handles conversation export operations
type ExportService struct {
	messagesCollection *mongo.Collection
}

// NewExportService creates a new export service
func NewExportService(messagesCollection *mongo.Collection) *ExportService {
	return &ExportService{
		messagesCollection: messagesCollection,
	}
}

// CollectMessages fetches the user's messages matching the request.
func (es *ExportService) CollectMessages(ctx context.Context, req *ExportRequest, userID primitive.ObjectID) (*ConversationExportData, error) {
	filter := bson.M{"from_user_id": userID}
	if req.SessionID != "" {
		filter["session_id"] = req.SessionID
	}
	if req.ConversationID != "" {
		filter["conversation_id"] = req.ConversationID
	}
	if !req.DateFrom.IsZero() || !req.DateTo.IsZero() {
		dateFilter := bson.M{}
		if !req.DateFrom.IsZero() {
			dateFilter["$gte"] = req.DateFrom
		}
		if !req.DateTo.IsZero() {
			dateFilter["$lte"] = req.DateTo
		}
		filter["timestamp"] = dateFilter
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if req.Limit > 0 {
		opts.SetLimit(int64(req.Limit))
	}

	cursor, err := es.messagesCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	totalTokens := 0
	for _, msg := range messages {
		totalTokens += msg.TokenCost
	}

	return &ConversationExportData{
		ExportDate:   time.Now(),
		TotalRecords: len(messages),
		TotalTokens:  totalTokens,
		Messages:     messages,
	}, nil
}

// StreamExport writes the export directly to the HTTP response
func (es *ExportService) StreamExport(ctx *gin.Context, data *ConversationExportData, format string) error {
	switch format {
	case "json", "":
		jsonData, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}

		ctx.Header("Content-Disposition", "attachment; filename=conversation_export.json")
		ctx.Header("Content-Length", strconv.Itoa(len(jsonData)))
		ctx.Data(http.StatusOK, "application/json", jsonData)

	case "excel":
		buf, err := es.buildWorkbook(data)
		if err != nil {
			return err
		}

		ctx.Header("Content-Disposition", "attachment; filename=conversation_export.xlsx")
		ctx.Header("Content-Length", strconv.Itoa(buf.Len()))
		ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())

	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	return nil
}

func (es *ExportService) buildWorkbook(data *ConversationExportData) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Conversation"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"Timestamp", "Conversation ID", "Session ID", "Question", "Answer",
		"Degraded", "No Content", "Citations", "Token Cost",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, msg := range data.Messages {
		row := rowIdx + 2 // Start from row 2 (after headers)

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), msg.Timestamp.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), msg.ConversationID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), msg.SessionID)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), msg.Question)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), msg.Answer)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), msg.Degraded)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), msg.NoContent)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), formatCitations(msg.Citations))
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), msg.TokenCost)
	}

	for i := range headers {
		col := fmt.Sprintf("%c:%c", 'A'+i, 'A'+i)
		f.SetColWidth(sheetName, col, col, 18)
	}

	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summaryRows := [][]interface{}{
		{"Export Date", data.ExportDate.Format("2006-01-02 15:04:05")},
		{"Total Messages", data.TotalRecords},
		{"Total Tokens", data.TotalTokens},
	}
	for i, row := range summaryRows {
		for j, cell := range row {
			cellRef := fmt.Sprintf("%c%d", 'A'+j, i+1)
			f.SetCellValue(summarySheet, cellRef, cell)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return &buf, nil
}

// formatCitations renders citations as "pages 3-5 (ocr)" fragments so
// they fit in a single spreadsheet cell.
func formatCitations(citations []models.Citation) string {
	var b bytes.Buffer
	for i, c := range citations {
		if i > 0 {
			b.WriteString("; ")
		}
		if c.PageEnd > c.PageStart {
			fmt.Fprintf(&b, "pages %d-%d", c.PageStart, c.PageEnd)
		} else {
			fmt.Fprintf(&b, "page %d", c.PageStart)
		}
		if c.OCRUsed {
			b.WriteString(" (ocr)")
		}
	}
	return b.String()
}
