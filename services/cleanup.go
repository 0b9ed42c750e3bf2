package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.mongodb.org/mongo-driver/bson"

	"pdf-rag-chatbot/internal/logger"
)

// CleanupService periodically removes expired sessions and any vector
// collections left behind by crashed ingestions.
type CleanupService struct {
	sessions  *SessionService
	store     *MongoVectorStore
	scheduler *gocron.Scheduler
	interval  time.Duration
}

func NewCleanupService(sessions *SessionService, store *MongoVectorStore, interval time.Duration) *CleanupService {
	return &CleanupService{
		sessions:  sessions,
		store:     store,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
	}
}

// Start schedules the cleanup job and returns immediately.
func (c *CleanupService) Start() error {
	_, err := c.scheduler.Every(c.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		c.runOnce(ctx)
	})
	if err != nil {
		return err
	}

	c.scheduler.StartAsync()
	logger.Info("cleanup scheduler started", "interval", c.interval.String())
	return nil
}

func (c *CleanupService) Stop() {
	c.scheduler.Stop()
}

// runOnce removes expired sessions, then sweeps vector collections that
// no live session references.
func (c *CleanupService) runOnce(ctx context.Context) {
	expired, err := c.sessions.Expired(ctx, time.Now())
	if err != nil {
		logger.Error("cleanup: failed to list expired sessions", "error", err)
		return
	}

	removed := 0
	for _, session := range expired {
		if err := c.sessions.Delete(ctx, &session); err != nil {
			logger.Warn("cleanup: failed to delete session", "session_id", session.ID, "error", err)
			continue
		}
		removed++
	}

	orphans := c.sweepOrphanCollections(ctx)

	if removed > 0 || orphans > 0 {
		logger.Info("cleanup pass complete", "expired_sessions", removed, "orphan_collections", orphans)
	}
}

func (c *CleanupService) sweepOrphanCollections(ctx context.Context) int {
	collections, err := c.store.ListCollections(ctx)
	if err != nil {
		logger.Error("cleanup: failed to list vector collections", "error", err)
		return 0
	}

	swept := 0
	for _, name := range collections {
		count, err := c.sessions.db.Collection("sessions").CountDocuments(ctx, bson.M{"collection_name": name})
		if err != nil {
			logger.Warn("cleanup: session lookup failed", "collection", name, "error", err)
			continue
		}
		if count > 0 {
			continue
		}
		if err := c.store.Drop(ctx, name); err != nil {
			logger.Warn("cleanup: failed to drop orphan collection", "collection", name, "error", err)
			continue
		}
		swept++
	}
	return swept
}
