package models

import "time"

// Session is the explicit per-session context passed into every pipeline
// call. It replaces ambient mutable state: the active collection name,
// chunk counts and detected language all live here, keyed per user
// session in Mongo.
type Session struct {
	ID                 string    `bson:"_id" json:"id"`
	UserID             string    `bson:"user_id" json:"user_id"`
	CollectionName     string    `bson:"collection_name" json:"collection_name"`
	DocumentID         string    `bson:"document_id,omitempty" json:"document_id,omitempty"`
	Language           string    `bson:"language,omitempty" json:"language,omitempty"`
	LanguageConfidence float64   `bson:"language_confidence,omitempty" json:"language_confidence,omitempty"`
	ParentCount        int       `bson:"parent_count" json:"parent_count"`
	ChildCount         int       `bson:"child_count" json:"child_count"`
	OCRUsed            bool      `bson:"ocr_used" json:"ocr_used"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at" json:"updated_at"`
	ExpiresAt          time.Time `bson:"expires_at" json:"expires_at"`
}
