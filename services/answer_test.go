package services

import (
	"context"
	"strings"
	"testing"

	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/models"
)

func TestAnswerNoContentShortCircuits(t *testing.T) {
	// No model client needed: an empty retrieval never reaches it.
	svc := NewAnswerService(nil, &config.Config{AnswerTimeoutSeconds: 1}, nil)

	result := svc.Answer(context.Background(), "what is this", &models.RetrievalResult{
		NoRelevantContent: true,
	}, "en")

	if result.Degraded {
		t.Errorf("no-content reply should not be marked degraded")
	}
	if len(result.Citations) != 0 {
		t.Errorf("no-content reply should carry no citations")
	}
	if result.Answer == "" {
		t.Errorf("no-content reply must still carry a message")
	}
}

func TestBuildAnswerPrompt(t *testing.T) {
	pieces := []models.ContextPiece{
		{ParentID: "p_a", Text: "first passage text"},
		{ParentID: "p_b", Text: "second passage text"},
	}

	prompt := buildAnswerPrompt("what changed", pieces, "es")

	if !strings.Contains(prompt, "Passage 1:\nfirst passage text") {
		t.Errorf("prompt missing numbered first passage")
	}
	if !strings.Contains(prompt, "Passage 2:\nsecond passage text") {
		t.Errorf("prompt missing numbered second passage")
	}
	if !strings.Contains(prompt, "(es)") {
		t.Errorf("prompt should pin the answer language")
	}
	if !strings.HasSuffix(prompt, "Question: what changed") {
		t.Errorf("prompt should end with the question")
	}

	// Unknown language must not be pinned.
	prompt = buildAnswerPrompt("q", pieces, models.LanguageUnknown)
	if strings.Contains(prompt, models.LanguageUnknown) {
		t.Errorf("unknown language should be omitted from the prompt")
	}
}

func TestDegradedAnswerKeepsTopPassages(t *testing.T) {
	retrieval := &models.RetrievalResult{
		Context: []models.ContextPiece{
			{ParentID: "p_a", Text: "alpha " + strings.Repeat("x", 700)},
			{ParentID: "p_b", Text: "bravo"},
			{ParentID: "p_c", Text: "charlie"},
		},
	}

	text := degradedAnswer(retrieval)

	if !strings.Contains(text, "alpha") || !strings.Contains(text, "bravo") {
		t.Errorf("fallback should include the top two passages")
	}
	if strings.Contains(text, "charlie") {
		t.Errorf("fallback should stop after two passages")
	}
	// Long passages are excerpted, not dumped whole.
	if !strings.Contains(text, "...") {
		t.Errorf("long passage should be truncated with an ellipsis")
	}
}
