package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/models"
)

// Retriever runs a similarity query and expands child hits into whole
// parent chunks. Children locate the relevant spot; the parent supplies
// enough surrounding text for the model to answer from.
type Retriever struct {
	index       *VectorIndex
	topK        int
	budgetWords int
}

func NewRetriever(index *VectorIndex, topK, budgetWords int) *Retriever {
	return &Retriever{
		index:       index,
		topK:        topK,
		budgetWords: budgetWords,
	}
}

// Retrieve answers one question against one collection. A query that
// matches nothing returns NoRelevantContent=true with empty context,
// which is a valid outcome rather than an error.
func (r *Retriever) Retrieve(ctx context.Context, collection, question string, topK int) (*models.RetrievalResult, error) {
	tracer := otel.Tracer("retriever")
	ctx, span := tracer.Start(ctx, "retrieval.query_and_expand")
	defer span.End()

	start := time.Now()

	if topK <= 0 {
		topK = r.topK
	}

	matches, err := r.index.Query(ctx, collection, question, topK)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("retrieval.matches", len(matches)),
		attribute.Int("retrieval.top_k", topK),
	)

	result := &models.RetrievalResult{
		Query:   question,
		Matches: matches,
	}

	if len(matches) == 0 {
		result.NoRelevantContent = true
		span.SetAttributes(attribute.Bool("retrieval.no_content", true))
		return result, nil
	}

	// Dedupe by parent, keeping the best-scoring child per parent and
	// the order in which parents first appear in the ranked matches.
	bestByParent := make(map[string]float64)
	var parentOrder []string
	for _, m := range matches {
		parentID := m.Payload.ParentID
		if score, seen := bestByParent[parentID]; !seen {
			bestByParent[parentID] = m.Score
			parentOrder = append(parentOrder, parentID)
		} else if m.Score > score {
			bestByParent[parentID] = m.Score
		}
	}

	parents, err := r.index.FetchParents(ctx, collection, parentOrder)
	if err != nil {
		return nil, err
	}
	parentByID := make(map[string]models.VectorRecord, len(parents))
	for _, p := range parents {
		parentByID[p.ID] = p
	}

	// Greedy inclusion of whole parents under the word budget. A parent
	// that does not fit is excluded whole, never truncated, and the loop
	// keeps going so a smaller lower-ranked parent can still use the
	// remaining budget. A best-ranked parent larger than the entire
	// budget is therefore dropped too; the caller sees NoRelevantContent.
	used := 0
	for _, parentID := range parentOrder {
		record, ok := parentByID[parentID]
		if !ok {
			logger.Warn("child hit references missing parent", "parent_id", parentID, "collection", collection)
			continue
		}

		words := countWords(record.Payload.Text)
		if used+words > r.budgetWords {
			continue
		}

		result.Context = append(result.Context, models.ContextPiece{
			ParentID:  parentID,
			Text:      record.Payload.Text,
			WordCount: words,
			BestScore: bestByParent[parentID],
		})
		result.Citations = append(result.Citations, models.Citation{
			ParentID:  parentID,
			PageStart: record.Payload.Page,
			PageEnd:   record.Payload.PageEnd,
			OCRUsed:   record.Payload.OCRProcessed,
			BestScore: bestByParent[parentID],
		})
		used += words
	}

	if len(result.Context) == 0 {
		result.NoRelevantContent = true
	}

	span.SetAttributes(
		attribute.Int("retrieval.context_parents", len(result.Context)),
		attribute.Int("retrieval.context_words", used),
	)
	logger.Debug("retrieval complete",
		"collection", collection,
		"matches", len(matches),
		"parents", len(result.Context),
		"context_words", used,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

func countWords(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
