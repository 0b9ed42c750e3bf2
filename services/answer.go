package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pdf-rag-chatbot/internal/ai"
	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/models"
)

// AnswerService turns a retrieval result into a grounded answer. Model
// failures never fail the request: the caller gets a degraded result
// carrying the citations that retrieval already earned.
type AnswerService struct {
	client  *ai.GeminiClient
	cfg     *config.Config
	metrics *telemetry.Metrics
}

func NewAnswerService(client *ai.GeminiClient, cfg *config.Config, metrics *telemetry.Metrics) *AnswerService {
	return &AnswerService{
		client:  client,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Answer generates a response for the question using the retrieved
// context. An empty retrieval short-circuits to a fixed reply without
// calling the model.
func (s *AnswerService) Answer(ctx context.Context, question string, retrieval *models.RetrievalResult, language string) *models.AnswerResult {
	if retrieval.NoRelevantContent || len(retrieval.Context) == 0 {
		return &models.AnswerResult{
			Answer:    "The document does not contain information relevant to this question.",
			Citations: []models.Citation{},
		}
	}

	timeout := time.Duration(s.cfg.AnswerTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := buildAnswerPrompt(question, retrieval.Context, language)

	text, tokens, err := s.client.GenerateAnswer(ctx, prompt)
	if err != nil {
		logger.Warn("answer generation degraded", "error", err)
		return &models.AnswerResult{
			Answer:    degradedAnswer(retrieval),
			Citations: retrieval.Citations,
			Degraded:  true,
		}
	}

	if s.metrics != nil {
		s.metrics.RecordTokensUsed(int64(tokens), s.cfg.AnswerModel)
	}

	return &models.AnswerResult{
		Answer:     strings.TrimSpace(text),
		Citations:  retrieval.Citations,
		TokensUsed: tokens,
	}
}

// buildAnswerPrompt assembles the grounded prompt. Context pieces are
// numbered so the model can refer to passages, and the answer language
// follows the document when it was detected.
func buildAnswerPrompt(question string, pieces []models.ContextPiece, language string) string {
	var b strings.Builder

	b.WriteString("You are a document assistant. Answer the question using ONLY the passages below. ")
	b.WriteString("If the passages do not contain the answer, say so plainly. Do not invent facts.\n")
	if language != "" && language != models.LanguageUnknown {
		fmt.Fprintf(&b, "Answer in the document's language (%s).\n", language)
	}
	b.WriteString("\n")

	for i, piece := range pieces {
		fmt.Fprintf(&b, "Passage %d:\n%s\n\n", i+1, piece.Text)
	}

	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// degradedAnswer produces a structured fallback from the raw context so
// the user still gets the located passages when the model is down.
func degradedAnswer(retrieval *models.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("The answer service is temporarily unavailable. The most relevant passages from the document are:\n\n")

	for i, piece := range retrieval.Context {
		if i >= 2 {
			break
		}
		excerpt := piece.Text
		if len(excerpt) > 600 {
			excerpt = excerpt[:600] + "..."
		}
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, excerpt)
	}

	return strings.TrimSpace(b.String())
}
