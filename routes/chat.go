package routes

import (
	"net/http"
	"time"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/middleware"
	"pdf-rag-chatbot/models"
	"pdf-rag-chatbot/services"
	"pdf-rag-chatbot/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetupChatRoutes wires the question answering endpoints. The ask flow is
// retrieval then generation: child chunks locate the relevant parents,
// the model answers from those parents, and the citations ride along.
func SetupChatRoutes(
	router *gin.Engine,
	db *mongo.Database,
	sessions *services.SessionService,
	retriever *services.Retriever,
	answers *services.AnswerService,
	exporter *services.ExportService,
	auth *middleware.AuthMiddleware,
) {
	chat := router.Group("/chat")
	chat.Use(auth.RequireAuth())

	messagesCollection := db.Collection("messages")
	documentsCollection := db.Collection("documents")

	chat.POST("/ask", func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		userID := middleware.GetUserID(c)
		userObjID, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user identity")
			return
		}

		session, err := sessions.Get(c.Request.Context(), req.SessionID, userID)
		if err != nil {
			utils.RespondWithNotFound(c, "Session not found")
			return
		}
		if session.DocumentID == "" {
			utils.RespondWithError(c, http.StatusConflict, "no_document",
				"No document has been ingested in this session yet", nil)
			return
		}

		// A re-ingest rebuilds the session's vector collection in the
		// worker process, outside this server's index lock. Hold questions
		// off until no document of the session is still inflight, so a
		// query cannot observe the drop-then-insert window half done.
		inflight, err := documentsCollection.CountDocuments(c.Request.Context(), bson.M{
			"session_id": session.ID,
			"status":     bson.M{"$in": models.InflightStatuses},
		})
		if err != nil {
			logger.Warn("inflight document check failed", "session_id", session.ID, "error", err)
		} else if inflight > 0 {
			utils.RespondWithError(c, http.StatusConflict, "document_processing",
				"A document in this session is still being processed. Try again shortly.", nil)
			return
		}

		start := time.Now()

		retrieval, err := retriever.Retrieve(c.Request.Context(), session.CollectionName, req.Question, req.TopK)
		if err != nil {
			logger.Error("retrieval failed", "session_id", session.ID, "error", err)
			utils.RespondWithError(c, http.StatusServiceUnavailable, "index_unavailable",
				"The document index is temporarily unavailable. Please try again.", nil)
			return
		}

		result := answers.Answer(c.Request.Context(), req.Question, retrieval, session.Language)

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		message := models.Message{
			FromUserID:     userObjID,
			SessionID:      session.ID,
			ConversationID: conversationID,
			Question:       req.Question,
			Answer:         result.Answer,
			Citations:      result.Citations,
			Degraded:       result.Degraded,
			NoContent:      retrieval.NoRelevantContent,
			TokenCost:      result.TokensUsed,
			Timestamp:      time.Now(),
		}
		if _, err := messagesCollection.InsertOne(c.Request.Context(), message); err != nil {
			// The answer was already produced; losing the history entry
			// should not fail the request.
			logger.Warn("failed to persist message", "session_id", session.ID, "error", err)
		}

		if err := sessions.Touch(c.Request.Context(), session.ID); err != nil {
			logger.Warn("failed to touch session", "session_id", session.ID, "error", err)
		}

		c.JSON(http.StatusOK, models.AskResponse{
			Answer:            result.Answer,
			Citations:         result.Citations,
			Degraded:          result.Degraded,
			NoRelevantContent: retrieval.NoRelevantContent,
			ConversationID:    conversationID,
			TokensUsed:        result.TokensUsed,
			LatencyMs:         time.Since(start).Milliseconds(),
			Timestamp:         time.Now(),
		})
	})

	// Conversations grouped from the message log, most recent first.
	chat.GET("/conversations", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		userObjID, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user identity")
			return
		}

		pipeline := mongo.Pipeline{
			bson.D{{Key: "$match", Value: bson.M{"from_user_id": userObjID}}},
			bson.D{{Key: "$sort", Value: bson.M{"timestamp": 1}}},
			bson.D{{Key: "$group", Value: bson.M{
				"_id":           "$conversation_id",
				"session_id":    bson.M{"$first": "$session_id"},
				"first_message": bson.M{"$first": "$question"},
				"messages":      bson.M{"$sum": 1},
				"total_tokens":  bson.M{"$sum": "$token_cost"},
				"started_at":    bson.M{"$first": "$timestamp"},
				"updated_at":    bson.M{"$last": "$timestamp"},
			}}},
			bson.D{{Key: "$sort", Value: bson.M{"updated_at": -1}}},
			bson.D{{Key: "$limit", Value: 100}},
		}

		cursor, err := messagesCollection.Aggregate(c.Request.Context(), pipeline)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list conversations", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		var conversations []bson.M
		if err := cursor.All(c.Request.Context(), &conversations); err != nil {
			utils.RespondWithInternalError(c, "Failed to decode conversations", nil)
			return
		}
		if conversations == nil {
			conversations = []bson.M{}
		}

		c.JSON(http.StatusOK, gin.H{"conversations": conversations, "count": len(conversations)})
	})

	// Conversation history within one session, oldest first.
	chat.GET("/conversations/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		userObjID, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user identity")
			return
		}
		conversationID := c.Param("id")

		opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
		cursor, err := messagesCollection.Find(c.Request.Context(),
			bson.M{"conversation_id": conversationID, "from_user_id": userObjID}, opts)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch conversation", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		var messages []models.Message
		if err := cursor.All(c.Request.Context(), &messages); err != nil {
			utils.RespondWithInternalError(c, "Failed to decode messages", nil)
			return
		}
		if len(messages) == 0 {
			utils.RespondWithNotFound(c, "Conversation not found")
			return
		}

		totalTokens := 0
		for _, m := range messages {
			totalTokens += m.TokenCost
		}

		c.JSON(http.StatusOK, models.ConversationHistory{
			ConversationID: conversationID,
			Messages:       messages,
			TotalTokens:    totalTokens,
			CreatedAt:      messages[0].Timestamp,
			UpdatedAt:      messages[len(messages)-1].Timestamp,
		})
	})

	// Export conversation history as JSON or an Excel workbook.
	chat.GET("/export", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		userObjID, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user identity")
			return
		}

		var req services.ExportRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid export parameters", gin.H{"error": err.Error()})
			return
		}

		data, err := exporter.CollectMessages(c.Request.Context(), &req, userObjID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to collect messages", nil)
			return
		}

		if err := exporter.StreamExport(c, data, req.Format); err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
	})
}
