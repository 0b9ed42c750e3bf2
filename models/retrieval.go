package models

// ChildMatch is one scored child hit from a similarity query.
type ChildMatch struct {
	ChildID string        `json:"child_id"`
	Score   float64       `json:"score"`
	Payload RecordPayload `json:"payload"`
}

// Citation identifies the source of one included parent chunk so an
// answer can be traced back to the document.
type Citation struct {
	ParentID  string  `json:"parent_id"`
	PageStart int     `json:"page_start"`
	PageEnd   int     `json:"page_end"`
	OCRUsed   bool    `json:"ocr_used"`
	BestScore float64 `json:"best_score"`
}

// ContextPiece is one whole parent chunk delivered as answer context.
type ContextPiece struct {
	ParentID  string  `json:"parent_id"`
	Text      string  `json:"text"`
	WordCount int     `json:"word_count"`
	BestScore float64 `json:"best_score"`
}

// RetrievalResult is the outcome of query + parent expansion for one
// question. NoRelevantContent reports a valid empty result, not an error.
type RetrievalResult struct {
	Query             string         `json:"query"`
	Matches           []ChildMatch   `json:"matches"`
	Context           []ContextPiece `json:"context"`
	Citations         []Citation     `json:"citations"`
	NoRelevantContent bool           `json:"no_relevant_content"`
}

// ContextWords is the combined size of the assembled context in words.
func (r RetrievalResult) ContextWords() int {
	total := 0
	for _, p := range r.Context {
		total += p.WordCount
	}
	return total
}

// AnswerResult is what the answer-generation step returns. Degraded is
// set when the generator failed or timed out and Answer holds a fallback
// message instead of a model response.
type AnswerResult struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Degraded   bool       `json:"degraded"`
	TokensUsed int        `json:"tokens_used"`
}
