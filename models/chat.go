package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FromUserID     primitive.ObjectID `bson:"from_user_id" json:"from_user_id"`
	SessionID      string             `bson:"session_id" json:"session_id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	Question       string             `bson:"question" json:"question"`
	Answer         string             `bson:"answer" json:"answer"`
	Citations      []Citation         `bson:"citations,omitempty" json:"citations,omitempty"`
	Degraded       bool               `bson:"degraded,omitempty" json:"degraded,omitempty"`
	NoContent      bool               `bson:"no_content,omitempty" json:"no_content,omitempty"`
	TokenCost      int                `bson:"token_cost" json:"token_cost"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
}

type AskRequest struct {
	Question       string `json:"question" binding:"required,min=1,max=2000"`
	SessionID      string `json:"session_id" binding:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
	TopK           int    `json:"top_k,omitempty" binding:"omitempty,min=1,max=50"`
}

type AskResponse struct {
	Answer            string     `json:"answer"`
	Citations         []Citation `json:"citations"`
	Degraded          bool       `json:"degraded"`
	NoRelevantContent bool       `json:"no_relevant_content"`
	ConversationID    string     `json:"conversation_id"`
	TokensUsed        int        `json:"tokens_used"`
	LatencyMs         int64      `json:"latency_ms"`
	Timestamp         time.Time  `json:"timestamp"`
}

type ConversationHistory struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
	TotalTokens    int       `json:"total_tokens"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
