package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/models"
)

// SessionService manages chat sessions. Each session owns exactly one
// vector collection named after it; deleting the session removes the
// collection, its document and its messages.
type SessionService struct {
	db    *mongo.Database
	index *VectorIndex
	ttl   time.Duration
}

func NewSessionService(db *mongo.Database, index *VectorIndex, ttl time.Duration) *SessionService {
	return &SessionService{
		db:    db,
		index: index,
		ttl:   ttl,
	}
}

// Create starts a fresh session for the user.
func (s *SessionService) Create(ctx context.Context, userID string) (*models.Session, error) {
	now := time.Now()
	id := uuid.NewString()

	session := &models.Session{
		ID:             id,
		UserID:         userID,
		CollectionName: "session_" + strings.ReplaceAll(id, "-", ""),
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}

	if _, err := s.db.Collection("sessions").InsertOne(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the session if it exists and belongs to the user.
func (s *SessionService) Get(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	var session models.Session
	err := s.db.Collection("sessions").FindOne(ctx, bson.M{"_id": sessionID, "user_id": userID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByCollection resolves a session from its collection name.
func (s *SessionService) GetByCollection(ctx context.Context, collection, userID string) (*models.Session, error) {
	var session models.Session
	err := s.db.Collection("sessions").FindOne(ctx, bson.M{"collection_name": collection, "user_id": userID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Touch extends the session's expiry after activity.
func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	now := time.Now()
	_, err := s.db.Collection("sessions").UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"updated_at": now, "expires_at": now.Add(s.ttl)}})
	return err
}

// List returns the user's sessions, most recent first.
func (s *SessionService) List(ctx context.Context, userID string) ([]models.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.db.Collection("sessions").Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Delete tears a session down: vector collection, document, messages,
// then the session record itself.
func (s *SessionService) Delete(ctx context.Context, session *models.Session) error {
	if err := s.index.Delete(ctx, session.CollectionName); err != nil {
		// A missing collection is fine; anything else aborts so we
		// don't strand an orphaned collection.
		logger.Warn("failed to drop vector collection", "collection", session.CollectionName, "error", err)
		return err
	}

	if _, err := s.db.Collection("documents").DeleteMany(ctx, bson.M{"session_id": session.ID}); err != nil {
		return err
	}
	if _, err := s.db.Collection("messages").DeleteMany(ctx, bson.M{"session_id": session.ID}); err != nil {
		return err
	}
	if _, err := s.db.Collection("sessions").DeleteOne(ctx, bson.M{"_id": session.ID}); err != nil {
		return err
	}

	logger.Info("session deleted", "session_id", session.ID, "collection", session.CollectionName)
	return nil
}

// Expired returns sessions whose expiry has passed.
func (s *SessionService) Expired(ctx context.Context, now time.Time) ([]models.Session, error) {
	cursor, err := s.db.Collection("sessions").Find(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
