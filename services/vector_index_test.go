package services

import (
	"context"
	"errors"
	"testing"

	"pdf-rag-chatbot/models"
)

func testChunks(docHash string, parentWords int) ([]models.ParentChunk, []models.ChildChunk) {
	cfg := models.ChunkerConfig{ParentSize: parentWords, ChildSize: 50, ChildOverlap: 10}
	chunker := NewHierarchicalChunker(cfg)
	result, err := chunker.Chunk(docHash, "en", []models.PageText{
		{Number: 1, Text: makeWords(parentWords)},
	})
	if err != nil {
		panic(err)
	}
	return result.Parents, result.Children
}

func TestRebuildStoresParentsAndChildren(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	parents, children := testChunks("doc-1", 200)
	if err := index.Rebuild(context.Background(), "c1", parents, children); err != nil {
		t.Fatalf("rebuild error: %v", err)
	}

	matches, err := index.Query(context.Background(), "c1", "question", 100)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	// Only children are searchable; parents carry no vectors.
	if len(matches) != len(children) {
		t.Errorf("searchable records = %d, want %d children", len(matches), len(children))
	}

	ids := make([]string, len(parents))
	for i, p := range parents {
		ids[i] = p.ID
	}
	records, err := index.FetchParents(context.Background(), "c1", ids)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if len(records) != len(parents) {
		t.Errorf("fetched parents = %d, want %d", len(records), len(parents))
	}
	for _, r := range records {
		if r.Payload.ChunkType != models.ChunkKindParent {
			t.Errorf("record %s chunk_type = %s, want parent", r.ID, r.Payload.ChunkType)
		}
		if len(r.Vector) != 0 {
			t.Errorf("parent record %s should be stored vector-less", r.ID)
		}
	}
}

func TestRebuildReplacesPreviousContents(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	oldParents, oldChildren := testChunks("doc-old", 200)
	if err := index.Rebuild(context.Background(), "c1", oldParents, oldChildren); err != nil {
		t.Fatalf("rebuild error: %v", err)
	}

	newParents, newChildren := testChunks("doc-new", 100)
	if err := index.Rebuild(context.Background(), "c1", newParents, newChildren); err != nil {
		t.Fatalf("rebuild error: %v", err)
	}

	matches, err := index.Query(context.Background(), "c1", "question", 100)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if len(matches) != len(newChildren) {
		t.Fatalf("matches after rebuild = %d, want %d", len(matches), len(newChildren))
	}

	// No record from the old document may survive.
	oldIDs := make(map[string]struct{})
	for _, c := range oldChildren {
		oldIDs[c.ID] = struct{}{}
	}
	for _, m := range matches {
		if _, stale := oldIDs[m.ChildID]; stale {
			t.Errorf("stale record %s survived rebuild", m.ChildID)
		}
	}
}

func TestDeleteDropsCollection(t *testing.T) {
	store := NewMemoryVectorStore()
	embedder := &stubEmbedder{def: []float32{1, 0}}
	index := NewVectorIndex(store, embedder)

	parents, children := testChunks("doc-1", 100)
	if err := index.Rebuild(context.Background(), "c1", parents, children); err != nil {
		t.Fatalf("rebuild error: %v", err)
	}
	if err := index.Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("delete error: %v", err)
	}

	_, err := index.Query(context.Background(), "c1", "question", 10)
	if !errors.Is(err, models.ErrIndexUnavailable) {
		t.Errorf("query after delete = %v, want ErrIndexUnavailable", err)
	}
}

func TestEmbedFailureIsIndexError(t *testing.T) {
	store := NewMemoryVectorStore()
	index := NewVectorIndex(store, failingEmbedder{})

	parents, children := testChunks("doc-1", 100)
	err := index.Rebuild(context.Background(), "c1", parents, children)
	if !errors.Is(err, models.ErrIndexUnavailable) {
		t.Errorf("rebuild with failing embedder = %v, want ErrIndexUnavailable", err)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedder down")
}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedder down")
}
