package services

import (
	"strings"
	"unicode"

	"pdf-rag-chatbot/models"
)

// HierarchicalChunker splits a document into parent chunks (broad
// context units spanning whole page ranges) and overlapping child chunks
// (fine-grained search units). All sizes are in words. Ids are derived
// from the document hash and the configuration, so chunking the same
// document twice produces identical ids.
type HierarchicalChunker struct {
	cfg models.ChunkerConfig
}

func NewHierarchicalChunker(cfg models.ChunkerConfig) *HierarchicalChunker {
	return &HierarchicalChunker{cfg: cfg}
}

// token is one word of the document annotated with its provenance.
type token struct {
	text string
	page int
	ocr  bool
	cjk  bool
}

// ChunkResult is the full output of one chunking pass.
type ChunkResult struct {
	Parents  []models.ParentChunk
	Children []models.ChildChunk
}

// Chunk builds the two-level hierarchy for the given pages. Pages with
// no text contribute nothing; a document with no tokens at all is an
// ErrEmptyDocument.
func (c *HierarchicalChunker) Chunk(docHash, language string, pages []models.PageText) (*ChunkResult, error) {
	var tokens []token
	for _, page := range pages {
		tokens = append(tokens, tokenizePage(page)...)
	}

	if len(tokens) == 0 {
		return nil, models.NewIngestionError(models.ErrEmptyDocument)
	}

	result := &ChunkResult{}
	childOrder := 0

	for parentOrder, start := 0, 0; start < len(tokens); parentOrder++ {
		end := start + c.cfg.ParentSize
		if end > len(tokens) {
			end = len(tokens)
		}
		span := tokens[start:end]

		parent := models.ParentChunk{
			ID:        models.ChunkID(docHash, c.cfg, models.ChunkKindParent, parentOrder),
			Text:      joinTokens(span),
			PageStart: span[0].page,
			PageEnd:   span[len(span)-1].page,
			Language:  language,
			WordCount: len(span),
			Order:     parentOrder,
			OCRUsed:   anyOCR(span),
		}

		children := c.childWindows(docHash, language, span, parent.ID, parentOrder, &childOrder)
		for _, child := range children {
			parent.ChildIDs = append(parent.ChildIDs, child.ID)
		}

		result.Parents = append(result.Parents, parent)
		result.Children = append(result.Children, children...)

		start = end
	}

	return result, nil
}

// childWindows slides a fixed-size window across one parent's span.
// Consecutive windows overlap by the configured amount; the last window
// is clipped to the span so no trailing words are orphaned.
func (c *HierarchicalChunker) childWindows(docHash, language string, span []token, parentID string, parentOrder int, childOrder *int) []models.ChildChunk {
	stride := c.cfg.ChildSize - c.cfg.ChildOverlap
	if stride < 1 {
		stride = 1
	}

	var children []models.ChildChunk
	for local, start := 0, 0; start < len(span); local, start = local+1, start+stride {
		end := start + c.cfg.ChildSize
		if end > len(span) {
			end = len(span)
		}
		window := span[start:end]

		children = append(children, models.ChildChunk{
			ID:           models.ChunkID(docHash, c.cfg, models.ChunkKindChild, parentOrder, local),
			ParentID:     parentID,
			Text:         joinTokens(window),
			Page:         window[0].page,
			Language:     language,
			WordCount:    len(window),
			Order:        *childOrder,
			OCRProcessed: anyOCR(window),
		})
		*childOrder++

		if end == len(span) {
			break
		}
	}

	return children
}

// tokenizePage splits page text into word tokens. Text in spaceless
// scripts (Han, Kana, Hangul) gets no word boundaries from Fields, so
// those pages fall back to per-character tokens.
func tokenizePage(page models.PageText) []token {
	fields := strings.Fields(page.Text)
	if len(fields) == 0 {
		return nil
	}

	if isSpacelessScript(page.Text) {
		var tokens []token
		for _, r := range page.Text {
			if unicode.IsSpace(r) {
				continue
			}
			tokens = append(tokens, token{
				text: string(r),
				page: page.Number,
				ocr:  page.OCRProcessed,
				cjk:  true,
			})
		}
		return tokens
	}

	tokens := make([]token, len(fields))
	for i, f := range fields {
		tokens[i] = token{text: f, page: page.Number, ocr: page.OCRProcessed}
	}
	return tokens
}

// isSpacelessScript reports whether a page is dominated by scripts that
// don't separate words with spaces.
func isSpacelessScript(text string) bool {
	var cjk, total int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		}
	}
	return total > 0 && float64(cjk)/float64(total) > 0.5
}

// joinTokens reassembles token text. Adjacent character tokens join
// without a separator; word tokens get single spaces back.
func joinTokens(tokens []token) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 && !(t.cjk && tokens[i-1].cjk) {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	return b.String()
}

func anyOCR(tokens []token) bool {
	for _, t := range tokens {
		if t.ocr {
			return true
		}
	}
	return false
}
