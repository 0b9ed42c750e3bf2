package services

import (
	"context"
	"errors"
	"testing"

	"pdf-rag-chatbot/models"
)

// stubEmbedder returns canned vectors keyed by text, so similarity
// ordering in tests is fully controlled.
type stubEmbedder struct {
	vectors map[string][]float32
	def     []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.def, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parentRecord(id, text string, pageStart, pageEnd int, ocr bool) models.VectorRecord {
	return models.VectorRecord{
		ID: id,
		Payload: models.RecordPayload{
			ChunkType:    models.ChunkKindParent,
			ParentID:     id,
			Page:         pageStart,
			PageEnd:      pageEnd,
			OCRProcessed: ocr,
			Language:     "en",
			Text:         text,
		},
	}
}

func childRecord(id, parentID string, vector []float32) models.VectorRecord {
	return models.VectorRecord{
		ID:     id,
		Vector: vector,
		Payload: models.RecordPayload{
			ChunkType: models.ChunkKindChild,
			ParentID:  parentID,
			Page:      1,
			Language:  "en",
			Text:      "child of " + parentID,
		},
	}
}

func seedCollection(t *testing.T, store *MemoryVectorStore, collection string, records []models.VectorRecord) {
	t.Helper()
	if err := store.Recreate(context.Background(), collection, records); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestRetrieveDedupesByParent(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	seedCollection(t, store, "c1", []models.VectorRecord{
		parentRecord("p_a", makeWords(100), 1, 2, false),
		parentRecord("p_b", makeWords(100), 3, 3, true),
		childRecord("c_a1", "p_a", []float32{1, 0}),
		childRecord("c_a2", "p_a", []float32{0.6, 0.8}),
		childRecord("c_b1", "p_b", []float32{0.9, 0.1}),
	})

	retriever := NewRetriever(index, 8, 10000)
	result, err := retriever.Retrieve(context.Background(), "c1", "question", 0)
	if err != nil {
		t.Fatalf("retrieve error: %v", err)
	}

	if result.NoRelevantContent {
		t.Fatal("unexpected NoRelevantContent")
	}
	if len(result.Matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(result.Matches))
	}

	// Two parents, not three context pieces: both children of p_a fold
	// into one entry, ordered by first appearance in the ranking.
	if len(result.Context) != 2 {
		t.Fatalf("context pieces = %d, want 2", len(result.Context))
	}
	if result.Context[0].ParentID != "p_a" || result.Context[1].ParentID != "p_b" {
		t.Errorf("context order = %s, %s; want p_a, p_b",
			result.Context[0].ParentID, result.Context[1].ParentID)
	}

	// Best score per parent is the best of its children.
	if result.Context[0].BestScore != 1 {
		t.Errorf("p_a best score = %v, want 1", result.Context[0].BestScore)
	}

	// Citations mirror the context and carry page ranges and provenance.
	if len(result.Citations) != 2 {
		t.Fatalf("citations = %d, want 2", len(result.Citations))
	}
	if result.Citations[0].PageStart != 1 || result.Citations[0].PageEnd != 2 {
		t.Errorf("citation 0 pages = %d-%d, want 1-2",
			result.Citations[0].PageStart, result.Citations[0].PageEnd)
	}
	if !result.Citations[1].OCRUsed {
		t.Errorf("citation 1 should carry OCR provenance")
	}
}

func TestRetrieveRespectsWordBudget(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	seedCollection(t, store, "c1", []models.VectorRecord{
		parentRecord("p_a", makeWords(100), 1, 1, false),
		parentRecord("p_b", makeWords(100), 2, 2, false),
		parentRecord("p_c", makeWords(30), 3, 3, false),
		childRecord("c_a", "p_a", []float32{1, 0}),
		childRecord("c_b", "p_b", []float32{0.9, 0.1}),
		childRecord("c_c", "p_c", []float32{0.5, 0.5}),
	})

	// 140 words fit p_a (100) and p_c (30) but not p_b.
	retriever := NewRetriever(index, 8, 140)
	result, err := retriever.Retrieve(context.Background(), "c1", "question", 0)
	if err != nil {
		t.Fatalf("retrieve error: %v", err)
	}

	if len(result.Context) != 2 {
		t.Fatalf("context pieces = %d, want 2", len(result.Context))
	}
	if result.Context[0].ParentID != "p_a" || result.Context[1].ParentID != "p_c" {
		t.Errorf("context = %s, %s; want p_a, p_c",
			result.Context[0].ParentID, result.Context[1].ParentID)
	}
	if got := result.ContextWords(); got != 130 {
		t.Errorf("context words = %d, want 130", got)
	}
}

func TestRetrieveBudgetNeverExceeded(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	seedCollection(t, store, "c1", []models.VectorRecord{
		parentRecord("p_big", makeWords(500), 1, 4, false),
		childRecord("c_big", "p_big", []float32{1, 0}),
	})

	// The lone parent is larger than the whole budget. It must be
	// excluded whole rather than truncated, leaving an empty context
	// flagged as NoRelevantContent.
	retriever := NewRetriever(index, 8, 50)
	result, err := retriever.Retrieve(context.Background(), "c1", "question", 0)
	if err != nil {
		t.Fatalf("retrieve error: %v", err)
	}

	if len(result.Context) != 0 {
		t.Fatalf("context pieces = %d, want 0 for an over-budget parent", len(result.Context))
	}
	if len(result.Citations) != 0 {
		t.Errorf("citations = %d, want 0", len(result.Citations))
	}
	if !result.NoRelevantContent {
		t.Errorf("empty context must be flagged NoRelevantContent")
	}
	if got := result.ContextWords(); got != 0 {
		t.Errorf("context words = %d, want 0", got)
	}
}

func TestRetrieveSkipsOversizedParentForSmallerOne(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	seedCollection(t, store, "c1", []models.VectorRecord{
		parentRecord("p_big", makeWords(500), 1, 4, false),
		parentRecord("p_small", makeWords(40), 5, 5, false),
		childRecord("c_big", "p_big", []float32{1, 0}),
		childRecord("c_small", "p_small", []float32{0.9, 0.1}),
	})

	// The best-ranked parent does not fit the budget; the next one does.
	retriever := NewRetriever(index, 8, 50)
	result, err := retriever.Retrieve(context.Background(), "c1", "question", 0)
	if err != nil {
		t.Fatalf("retrieve error: %v", err)
	}

	if len(result.Context) != 1 {
		t.Fatalf("context pieces = %d, want 1", len(result.Context))
	}
	if result.Context[0].ParentID != "p_small" {
		t.Errorf("context parent = %s, want p_small", result.Context[0].ParentID)
	}
	if got := result.ContextWords(); got > 50 {
		t.Errorf("context words = %d, exceeds budget 50", got)
	}
}

func TestRetrieveNoMatchesIsNotAnError(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	// Parents only; nothing searchable.
	seedCollection(t, store, "c1", []models.VectorRecord{
		parentRecord("p_a", makeWords(100), 1, 1, false),
	})

	retriever := NewRetriever(index, 8, 1000)
	result, err := retriever.Retrieve(context.Background(), "c1", "question", 0)
	if err != nil {
		t.Fatalf("retrieve error: %v", err)
	}

	if !result.NoRelevantContent {
		t.Errorf("expected NoRelevantContent for empty match set")
	}
	if len(result.Context) != 0 || len(result.Citations) != 0 {
		t.Errorf("empty result should carry no context or citations")
	}
}

func TestRetrieveMissingCollection(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	retriever := NewRetriever(index, 8, 1000)
	_, err := retriever.Retrieve(context.Background(), "missing", "question", 0)
	if err == nil {
		t.Fatal("expected error for missing collection")
	}
	if !errors.Is(err, models.ErrIndexUnavailable) {
		t.Errorf("error = %v, want ErrIndexUnavailable", err)
	}
	if !models.IsRetryable(err) {
		t.Errorf("index errors must be retryable")
	}
}

func TestRetrieveTopKOverride(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	records := []models.VectorRecord{parentRecord("p_a", makeWords(50), 1, 1, false)}
	vectors := [][]float32{{1, 0}, {0.9, 0.1}, {0.8, 0.2}, {0.7, 0.3}}
	for i, v := range vectors {
		records = append(records, childRecord("c_"+string(rune('a'+i)), "p_a", v))
	}
	seedCollection(t, store, "c1", records)

	retriever := NewRetriever(index, 8, 1000)
	result, err := retriever.Retrieve(context.Background(), "c1", "question", 2)
	if err != nil {
		t.Fatalf("retrieve error: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Errorf("matches = %d, want 2 with per-request top_k", len(result.Matches))
	}
}
