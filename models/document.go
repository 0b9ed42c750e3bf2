package models

import (
	"time"
)

// Document is the immutable result of ingesting one uploaded file.
// Page texts are stored compressed in Mongo; the in-memory form is used
// by the chunking pipeline.
type Document struct {
	ID                 string     `bson:"_id" json:"id"`
	UserID             string     `bson:"user_id" json:"user_id"`
	SessionID          string     `bson:"session_id" json:"session_id"`
	Filename           string     `bson:"filename" json:"filename"`
	SourceURL          string     `bson:"source_url,omitempty" json:"source_url,omitempty"`
	Size               int64      `bson:"size" json:"size"`
	FileHash           string     `bson:"file_hash" json:"file_hash"`
	Pages              []PageText `bson:"-" json:"-"`
	CompressedPages    []byte     `bson:"compressed_pages,omitempty" json:"-"`
	PagesCompression   string     `bson:"pages_compression,omitempty" json:"-"`
	PageCount          int        `bson:"page_count" json:"page_count"`
	Language           string     `bson:"language" json:"language"`
	LanguageConfidence float64    `bson:"language_confidence" json:"language_confidence"`
	OCRUsed            bool       `bson:"ocr_used" json:"ocr_used"`
	Gaps               []int      `bson:"gaps,omitempty" json:"gaps,omitempty"`
	Status             string     `bson:"status" json:"status"`
	Progress           int        `bson:"progress" json:"progress"`
	ErrorMessage       string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt         time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt        *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// PageText is the extraction result for a single page, tagged with how
// the text was obtained so downstream code never re-infers provenance.
type PageText struct {
	Number       int    `bson:"number" json:"number"`
	Text         string `bson:"text" json:"text"`
	OCRProcessed bool   `bson:"ocr_processed" json:"ocr_processed"`
	WordCount    int    `bson:"word_count" json:"word_count"`
}

// Words returns the word count of the page, computing it lazily when the
// stored value is zero.
func (p PageText) Words() int {
	if p.WordCount > 0 {
		return p.WordCount
	}
	n := 0
	inWord := false
	for _, r := range p.Text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

// Processing status constants shared by sync and async pipelines.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// InflightStatuses are the statuses of a document whose ingestion has
// not finished. While any document of a session is in one of these, the
// session's vector collection may be mid rebuild and must not be queried.
var InflightStatuses = []string{StatusPending, StatusProcessing}

// LanguageUnknown is stored when detection confidence is below threshold.
const LanguageUnknown = "unknown"

// UploadResponse is returned after an upload is accepted.
type UploadResponse struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	TaskID      string `json:"task_id,omitempty"`
	ParentCount int    `json:"parent_count,omitempty"`
	ChildCount  int    `json:"child_count,omitempty"`
	Language    string `json:"language,omitempty"`
	OCRUsed     bool   `json:"ocr_used,omitempty"`
	Message     string `json:"message"`
}

// URLIngestRequest asks the server to fetch a web page as a document.
type URLIngestRequest struct {
	URL string `json:"url" binding:"required,url"`
}
