package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pdf-rag-chatbot/models"
)

func makeWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestChunkSinglePageHierarchy(t *testing.T) {
	chunker := NewHierarchicalChunker(models.ChunkerConfig{
		ParentSize:   1000,
		ChildSize:    200,
		ChildOverlap: 50,
	})

	pages := []models.PageText{{Number: 1, Text: makeWords(500)}}
	result, err := chunker.Chunk("doc-hash", "en", pages)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}

	if len(result.Parents) != 1 {
		t.Fatalf("expected 1 parent, got %d", len(result.Parents))
	}
	if len(result.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(result.Children))
	}

	parent := result.Parents[0]
	if parent.WordCount != 500 {
		t.Errorf("parent word count = %d, want 500", parent.WordCount)
	}
	if parent.PageStart != 1 || parent.PageEnd != 1 {
		t.Errorf("parent page range = %d-%d, want 1-1", parent.PageStart, parent.PageEnd)
	}

	// Stride is 150, last window clips to the span end.
	wantCounts := []int{200, 200, 200}
	for i, child := range result.Children {
		if child.WordCount != wantCounts[i] {
			t.Errorf("child %d word count = %d, want %d", i, child.WordCount, wantCounts[i])
		}
		if child.ParentID != parent.ID {
			t.Errorf("child %d parent id = %q, want %q", i, child.ParentID, parent.ID)
		}
	}

	// Third window starts at word 300 and ends exactly at 500.
	if !strings.HasPrefix(result.Children[2].Text, "w300 ") {
		t.Errorf("last child starts with %q, want w300", strings.SplitN(result.Children[2].Text, " ", 2)[0])
	}
	if !strings.HasSuffix(result.Children[2].Text, " w499") {
		t.Errorf("last child does not end at w499")
	}
}

func TestChunkMultipleParents(t *testing.T) {
	chunker := NewHierarchicalChunker(models.ChunkerConfig{
		ParentSize:   800,
		ChildSize:    200,
		ChildOverlap: 50,
	})

	pages := []models.PageText{
		{Number: 1, Text: makeWords(1000)},
		{Number: 2, Text: makeWords(1000)},
	}
	result, err := chunker.Chunk("doc-hash", "en", pages)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}

	if len(result.Parents) != 3 {
		t.Fatalf("expected 3 parents for 2000 words, got %d", len(result.Parents))
	}
	if result.Parents[2].WordCount != 400 {
		t.Errorf("last parent word count = %d, want 400", result.Parents[2].WordCount)
	}

	// Parent page ranges must follow token provenance across the page break.
	if result.Parents[0].PageStart != 1 || result.Parents[0].PageEnd != 1 {
		t.Errorf("parent 0 page range = %d-%d, want 1-1", result.Parents[0].PageStart, result.Parents[0].PageEnd)
	}
	if result.Parents[1].PageStart != 1 || result.Parents[1].PageEnd != 2 {
		t.Errorf("parent 1 page range = %d-%d, want 1-2", result.Parents[1].PageStart, result.Parents[1].PageEnd)
	}

	// Every child must reference an existing parent and every parent's
	// child id list must match the children produced for it.
	childrenByParent := make(map[string]int)
	for _, child := range result.Children {
		childrenByParent[child.ParentID]++
	}
	for _, parent := range result.Parents {
		if childrenByParent[parent.ID] != len(parent.ChildIDs) {
			t.Errorf("parent %s: %d children produced, %d ids recorded",
				parent.ID, childrenByParent[parent.ID], len(parent.ChildIDs))
		}
	}
	if len(childrenByParent) != len(result.Parents) {
		t.Errorf("children reference %d parents, want %d", len(childrenByParent), len(result.Parents))
	}
}

func TestChunkShortDocumentSingleChild(t *testing.T) {
	chunker := NewHierarchicalChunker(models.ChunkerConfig{
		ParentSize:   800,
		ChildSize:    200,
		ChildOverlap: 50,
	})

	pages := []models.PageText{{Number: 1, Text: makeWords(30)}}
	result, err := chunker.Chunk("doc-hash", "en", pages)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}

	if len(result.Parents) != 1 || len(result.Children) != 1 {
		t.Fatalf("expected 1 parent and 1 child, got %d/%d", len(result.Parents), len(result.Children))
	}
	if result.Children[0].Text != result.Parents[0].Text {
		t.Errorf("short document child text should equal parent text")
	}
}

func TestChunkDeterministicIDs(t *testing.T) {
	cfg := models.ChunkerConfig{ParentSize: 800, ChildSize: 200, ChildOverlap: 50}
	pages := []models.PageText{{Number: 1, Text: makeWords(600)}}

	first, err := NewHierarchicalChunker(cfg).Chunk("doc-hash", "en", pages)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	second, err := NewHierarchicalChunker(cfg).Chunk("doc-hash", "en", pages)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}

	for i := range first.Parents {
		if first.Parents[i].ID != second.Parents[i].ID {
			t.Errorf("parent %d id differs across runs", i)
		}
	}
	for i := range first.Children {
		if first.Children[i].ID != second.Children[i].ID {
			t.Errorf("child %d id differs across runs", i)
		}
	}

	// Changing the configuration must change every id.
	other, err := NewHierarchicalChunker(models.ChunkerConfig{
		ParentSize: 800, ChildSize: 150, ChildOverlap: 50,
	}).Chunk("doc-hash", "en", pages)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if other.Parents[0].ID == first.Parents[0].ID {
		t.Errorf("parent id unchanged despite different chunker config")
	}
}

func TestChunkSpacelessScriptFallback(t *testing.T) {
	chunker := NewHierarchicalChunker(models.ChunkerConfig{
		ParentSize:   800,
		ChildSize:    200,
		ChildOverlap: 50,
	})

	text := strings.Repeat("안녕하세요", 12)
	pages := []models.PageText{{Number: 1, Text: text}}
	result, err := chunker.Chunk("doc-hash", "ko", pages)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}

	// Per-character tokens: 60 runes, one parent, one child.
	if result.Parents[0].WordCount != 60 {
		t.Errorf("parent token count = %d, want 60", result.Parents[0].WordCount)
	}
	// Character tokens rejoin without separators.
	if strings.Contains(result.Parents[0].Text, " ") {
		t.Errorf("spaceless script text should rejoin without spaces")
	}
	if result.Parents[0].Text != text {
		t.Errorf("rejoined text does not round-trip")
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	chunker := NewHierarchicalChunker(models.ChunkerConfig{
		ParentSize:   800,
		ChildSize:    200,
		ChildOverlap: 50,
	})

	pages := []models.PageText{{Number: 1, Text: "   \n\t  "}}
	_, err := chunker.Chunk("doc-hash", "en", pages)
	if err == nil {
		t.Fatal("expected error for empty document")
	}
	if !errors.Is(err, models.ErrIngestionFailed) {
		t.Errorf("error = %v, want ErrIngestionFailed", err)
	}
}

func TestChunkOCRProvenance(t *testing.T) {
	chunker := NewHierarchicalChunker(models.ChunkerConfig{
		ParentSize:   800,
		ChildSize:    100,
		ChildOverlap: 0,
	})

	pages := []models.PageText{
		{Number: 1, Text: makeWords(100)},
		{Number: 2, Text: makeWords(100), OCRProcessed: true},
	}
	result, err := chunker.Chunk("doc-hash", "en", pages)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}

	if !result.Parents[0].OCRUsed {
		t.Errorf("parent spanning an OCR page should report OCRUsed")
	}
	if result.Children[0].OCRProcessed {
		t.Errorf("child from native page should not report OCR")
	}
	if !result.Children[1].OCRProcessed {
		t.Errorf("child from OCR page should report OCR")
	}
}
