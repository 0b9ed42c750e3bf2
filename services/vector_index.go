package services

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pdf-rag-chatbot/internal/ai"
	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/models"
)

// VectorStore is the persistence interface for named vector collections.
// Recreate is drop-then-insert and is not atomic on its own. Within one
// process the VectorIndex per-collection lock serializes it against
// queries; across processes (worker rebuild vs API query) the HTTP layer
// refuses questions for a session while any of its documents is still
// inflight, so a query never observes a half-rebuilt collection.
type VectorStore interface {
	// Recreate drops the collection if it exists and creates it fresh
	// with the given records.
	Recreate(ctx context.Context, collection string, records []models.VectorRecord) error
	// Search scores the query vector against all child records and
	// returns the topK best matches, highest score first.
	Search(ctx context.Context, collection string, query []float32, topK int) ([]models.ChildMatch, error)
	// Fetch resolves records by id, typically parents during expansion.
	Fetch(ctx context.Context, collection string, ids []string) ([]models.VectorRecord, error)
	// Drop removes the collection entirely.
	Drop(ctx context.Context, collection string) error
}

// MongoVectorStore keeps each logical collection in its own Mongo
// collection, prefixed to avoid clashing with application collections.
// Scoring happens in-process; collection sizes here are a single
// document's chunks, which fit comfortably in one scan.
type MongoVectorStore struct {
	db *mongo.Database
}

func NewMongoVectorStore(db *mongo.Database) *MongoVectorStore {
	return &MongoVectorStore{db: db}
}

func (s *MongoVectorStore) mongoCollection(name string) *mongo.Collection {
	return s.db.Collection("vec_" + name)
}

func (s *MongoVectorStore) Recreate(ctx context.Context, collection string, records []models.VectorRecord) error {
	coll := s.mongoCollection(collection)

	if err := coll.Drop(ctx); err != nil {
		return &models.IndexError{Collection: collection, Op: "drop", Err: err}
	}

	if len(records) == 0 {
		return nil
	}

	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = r
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return &models.IndexError{Collection: collection, Op: "insert", Err: err}
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "payload.chunk_type", Value: 1}}},
		{Keys: bson.D{{Key: "payload.parent_id", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return &models.IndexError{Collection: collection, Op: "index", Err: err}
	}

	return nil
}

func (s *MongoVectorStore) Search(ctx context.Context, collection string, query []float32, topK int) ([]models.ChildMatch, error) {
	coll := s.mongoCollection(collection)

	filter := bson.M{"payload.chunk_type": models.ChunkKindChild}
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, &models.IndexError{Collection: collection, Op: "search", Err: err}
	}
	defer cursor.Close(ctx)

	var matches []models.ChildMatch
	for cursor.Next(ctx) {
		var record models.VectorRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, &models.IndexError{Collection: collection, Op: "decode", Err: err}
		}
		if len(record.Vector) == 0 {
			continue
		}
		matches = append(matches, models.ChildMatch{
			ChildID: record.ID,
			Score:   cosineSimilarity(query, record.Vector),
			Payload: record.Payload,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, &models.IndexError{Collection: collection, Op: "search", Err: err}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MongoVectorStore) Fetch(ctx context.Context, collection string, ids []string) ([]models.VectorRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	coll := s.mongoCollection(collection)

	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, &models.IndexError{Collection: collection, Op: "fetch", Err: err}
	}
	defer cursor.Close(ctx)

	var records []models.VectorRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, &models.IndexError{Collection: collection, Op: "fetch", Err: err}
	}
	return records, nil
}

func (s *MongoVectorStore) Drop(ctx context.Context, collection string) error {
	if err := s.mongoCollection(collection).Drop(ctx); err != nil {
		return &models.IndexError{Collection: collection, Op: "drop", Err: err}
	}
	return nil
}

// ListCollections returns the logical names of all vector collections,
// used by the cleanup job to find orphans.
func (s *MongoVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{"name": bson.M{"$regex": "^vec_"}})
	if err != nil {
		return nil, &models.IndexError{Collection: "*", Op: "list", Err: err}
	}
	logical := make([]string, len(names))
	for i, n := range names {
		logical[i] = n[len("vec_"):]
	}
	return logical, nil
}

// MemoryVectorStore is an in-process VectorStore used by tests and
// available as a storage mode for single-node deployments.
type MemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]models.VectorRecord
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{collections: make(map[string]map[string]models.VectorRecord)}
}

func (s *MemoryVectorStore) Recreate(ctx context.Context, collection string, records []models.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make(map[string]models.VectorRecord, len(records))
	for _, r := range records {
		fresh[r.ID] = r
	}
	s.collections[collection] = fresh
	return nil
}

func (s *MemoryVectorStore) Search(ctx context.Context, collection string, query []float32, topK int) ([]models.ChildMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.collections[collection]
	if !ok {
		return nil, &models.IndexError{Collection: collection, Op: "search", Err: models.ErrIndexUnavailable}
	}

	var matches []models.ChildMatch
	for _, r := range records {
		if r.Payload.ChunkType != models.ChunkKindChild || len(r.Vector) == 0 {
			continue
		}
		matches = append(matches, models.ChildMatch{
			ChildID: r.ID,
			Score:   cosineSimilarity(query, r.Vector),
			Payload: r.Payload,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChildID < matches[j].ChildID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryVectorStore) Fetch(ctx context.Context, collection string, ids []string) ([]models.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.collections[collection]
	if !ok {
		return nil, &models.IndexError{Collection: collection, Op: "fetch", Err: models.ErrIndexUnavailable}
	}

	var out []models.VectorRecord
	for _, id := range ids {
		if r, found := records[id]; found {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryVectorStore) Drop(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// VectorIndex pairs an embedder with a store and serializes rebuilds
// against queries per collection: a rebuild takes the write lock, so a
// query sees either the old index or the new one.
type VectorIndex struct {
	store    VectorStore
	embedder ai.Embedder

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func NewVectorIndex(store VectorStore, embedder ai.Embedder) *VectorIndex {
	return &VectorIndex{
		store:    store,
		embedder: embedder,
		locks:    make(map[string]*sync.RWMutex),
	}
}

func (v *VectorIndex) lockFor(collection string) *sync.RWMutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[collection]
	if !ok {
		l = &sync.RWMutex{}
		v.locks[collection] = l
	}
	return l
}

// Rebuild embeds all children and replaces the collection's contents.
// Parents are stored vector-less alongside children so expansion can
// resolve them from the same collection.
func (v *VectorIndex) Rebuild(ctx context.Context, collection string, parents []models.ParentChunk, children []models.ChildChunk) error {
	start := time.Now()

	texts := make([]string, len(children))
	for i, child := range children {
		texts[i] = child.Text
	}

	vectors, err := v.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return &models.IndexError{Collection: collection, Op: "embed", Err: err}
	}

	records := make([]models.VectorRecord, 0, len(parents)+len(children))
	for _, parent := range parents {
		records = append(records, models.VectorRecord{
			ID: parent.ID,
			Payload: models.RecordPayload{
				ChunkType:    models.ChunkKindParent,
				ParentID:     parent.ID,
				Page:         parent.PageStart,
				PageEnd:      parent.PageEnd,
				OCRProcessed: parent.OCRUsed,
				Language:     parent.Language,
				Text:         parent.Text,
			},
		})
	}
	for i, child := range children {
		records = append(records, models.VectorRecord{
			ID:     child.ID,
			Vector: vectors[i],
			Payload: models.RecordPayload{
				ChunkType:    models.ChunkKindChild,
				ParentID:     child.ParentID,
				Page:         child.Page,
				OCRProcessed: child.OCRProcessed,
				Language:     child.Language,
				Text:         child.Text,
			},
		})
	}

	lock := v.lockFor(collection)
	lock.Lock()
	defer lock.Unlock()

	if err := v.store.Recreate(ctx, collection, records); err != nil {
		return err
	}

	logger.Info("vector index rebuilt",
		"collection", collection,
		"parents", len(parents),
		"children", len(children),
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// Query embeds the question and returns the topK child matches.
func (v *VectorIndex) Query(ctx context.Context, collection, question string, topK int) ([]models.ChildMatch, error) {
	vector, err := v.embedder.Embed(ctx, question)
	if err != nil {
		return nil, &models.IndexError{Collection: collection, Op: "embed", Err: err}
	}

	lock := v.lockFor(collection)
	lock.RLock()
	defer lock.RUnlock()

	return v.store.Search(ctx, collection, vector, topK)
}

// FetchParents resolves parent records by id under the read lock.
func (v *VectorIndex) FetchParents(ctx context.Context, collection string, ids []string) ([]models.VectorRecord, error) {
	lock := v.lockFor(collection)
	lock.RLock()
	defer lock.RUnlock()

	return v.store.Fetch(ctx, collection, ids)
}

// Delete drops the collection and forgets its lock.
func (v *VectorIndex) Delete(ctx context.Context, collection string) error {
	lock := v.lockFor(collection)
	lock.Lock()
	err := v.store.Drop(ctx, collection)
	lock.Unlock()

	if err == nil {
		v.mu.Lock()
		delete(v.locks, collection)
		v.mu.Unlock()
	}
	return err
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// 0 when either has no magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
