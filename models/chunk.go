package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// ChunkKind distinguishes the two levels of the chunk hierarchy. A fixed
// enumeration instead of free-form metadata keys keeps payloads typo-proof.
type ChunkKind string

const (
	ChunkKindParent ChunkKind = "parent"
	ChunkKindChild  ChunkKind = "child"
)

// ChunkerConfig controls hierarchical chunking. Sizes and overlap are
// measured in words throughout.
type ChunkerConfig struct {
	ParentSize   int `json:"parent_size" bson:"parent_size"`
	ChildSize    int `json:"child_size" bson:"child_size"`
	ChildOverlap int `json:"child_overlap" bson:"child_overlap"`
}

// Fingerprint returns a stable string identifying this configuration,
// used as part of deterministic chunk ids.
func (c ChunkerConfig) Fingerprint() string {
	return fmt.Sprintf("p%d-c%d-o%d", c.ParentSize, c.ChildSize, c.ChildOverlap)
}

// ParentChunk is a broad context unit covering one or more pages. It owns
// its children exclusively; a child belongs to exactly one parent.
type ParentChunk struct {
	ID        string   `bson:"_id" json:"id"`
	Text      string   `bson:"text" json:"text"`
	PageStart int      `bson:"page_start" json:"page_start"`
	PageEnd   int      `bson:"page_end" json:"page_end"`
	Language  string   `bson:"language" json:"language"`
	WordCount int      `bson:"word_count" json:"word_count"`
	Order     int      `bson:"order" json:"order"`
	ChildIDs  []string `bson:"child_ids" json:"child_ids"`
	OCRUsed   bool     `bson:"ocr_used" json:"ocr_used"`
}

// ChildChunk is a fine-grained search unit linked back to its parent.
// Its text is a subset of (or bounded overlap with) the parent's span.
type ChildChunk struct {
	ID           string    `bson:"_id" json:"id"`
	ParentID     string    `bson:"parent_id" json:"parent_id"`
	Text         string    `bson:"text" json:"text"`
	Page         int       `bson:"page" json:"page"`
	Language     string    `bson:"language" json:"language"`
	WordCount    int       `bson:"word_count" json:"word_count"`
	Order        int       `bson:"order" json:"order"`
	OCRProcessed bool      `bson:"ocr_processed" json:"ocr_processed"`
	Embedding    []float32 `bson:"embedding,omitempty" json:"-"`
}

// ChunkID derives a deterministic chunk id from the document hash, the
// chunker configuration and the chunk's position, so re-running the
// chunker on an identical (document, config) pair reproduces ids exactly.
func ChunkID(docHash string, cfg ChunkerConfig, kind ChunkKind, ordinal ...int) string {
	seed := docHash + "|" + cfg.Fingerprint() + "|" + string(kind)
	for _, n := range ordinal {
		seed += fmt.Sprintf("|%d", n)
	}
	sum := md5.Sum([]byte(seed))
	return string(kind[0]) + "_" + hex.EncodeToString(sum[:8])
}

// RecordPayload is the fixed payload schema stored with every vector
// record. Field names must be preserved verbatim for compatibility with
// the expansion logic.
type RecordPayload struct {
	ChunkType    ChunkKind `bson:"chunk_type" json:"chunk_type"`
	ParentID     string    `bson:"parent_id" json:"parent_id"`
	Page         int       `bson:"page" json:"page"`
	PageEnd      int       `bson:"page_end,omitempty" json:"page_end,omitempty"`
	OCRProcessed bool      `bson:"ocr_processed" json:"ocr_processed"`
	Language     string    `bson:"language" json:"language"`
	Text         string    `bson:"text" json:"text"`
}

// VectorRecord is one entry in a named vector collection. Child records
// carry an embedding; parent records are stored vector-less in the same
// collection so expansion can resolve them without a second store.
type VectorRecord struct {
	ID      string        `bson:"_id" json:"id"`
	Vector  []float32     `bson:"vector,omitempty" json:"vector,omitempty"`
	Payload RecordPayload `bson:"payload" json:"payload"`
}
