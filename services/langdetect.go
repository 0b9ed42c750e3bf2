package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"

	"pdf-rag-chatbot/models"
)

// LanguageDetector guesses the dominant language of a document from
// stopword profiles, with a script check for languages that don't use
// spaces. Results below the confidence floor come back as "unknown" so
// downstream prompts don't commit to a wrong language.
type LanguageDetector struct {
	minConfidence float64
	profiles      map[string]map[string]struct{}
}

// Stopword profiles, lowercased. Small on purpose: high-frequency
// function words separate these languages well enough at document scale.
var stopwordProfiles = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "is", "that", "it", "for", "with", "as", "was", "on", "are", "this"},
	"es": {"el", "la", "de", "que", "y", "en", "los", "del", "las", "por", "con", "una", "para", "es", "como"},
	"fr": {"le", "la", "de", "et", "les", "des", "est", "un", "une", "du", "dans", "que", "pour", "qui", "sur"},
	"de": {"der", "die", "und", "das", "den", "von", "ist", "mit", "des", "im", "ein", "eine", "auf", "als", "nicht"},
	"pt": {"de", "que", "e", "do", "da", "em", "um", "para", "com", "uma", "os", "no", "na", "por", "mais"},
	"it": {"di", "che", "e", "il", "la", "per", "un", "in", "una", "del", "con", "non", "sono", "le", "della"},
	"nl": {"de", "het", "een", "van", "en", "in", "is", "dat", "op", "te", "zijn", "met", "voor", "niet", "aan"},
}

// NewLanguageDetector builds the detector with the given confidence
// floor (0..1).
func NewLanguageDetector(minConfidence float64) *LanguageDetector {
	profiles := make(map[string]map[string]struct{}, len(stopwordProfiles))
	for lang, words := range stopwordProfiles {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		profiles[lang] = set
	}
	return &LanguageDetector{
		minConfidence: minConfidence,
		profiles:      profiles,
	}
}

// Detect returns a BCP 47 base language tag and a confidence in [0,1].
// Confidence below the floor yields models.LanguageUnknown.
func (d *LanguageDetector) Detect(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return models.LanguageUnknown, 0
	}

	// Spaceless scripts first: stopword scoring can't see them.
	if lang, conf := detectByScript(text); lang != "" {
		if conf < d.minConfidence {
			return models.LanguageUnknown, conf
		}
		return lang, conf
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return models.LanguageUnknown, 0
	}

	// Sample large documents; profiles converge quickly.
	if len(words) > 5000 {
		words = words[:5000]
	}

	hits := make(map[string]int, len(d.profiles))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		for lang, set := range d.profiles {
			if _, ok := set[w]; ok {
				hits[lang]++
			}
		}
	}

	best, bestCount, secondCount := "", 0, 0
	for lang, count := range hits {
		if count > bestCount {
			best, secondCount, bestCount = lang, bestCount, count
		} else if count > secondCount {
			secondCount = count
		}
	}

	if best == "" || bestCount == 0 {
		return models.LanguageUnknown, 0
	}

	// Confidence blends stopword density with the margin over the
	// runner-up, since Romance languages share function words.
	density := float64(bestCount) / float64(len(words))
	margin := 1.0
	if bestCount > 0 {
		margin = float64(bestCount-secondCount) / float64(bestCount)
	}
	confidence := clamp01(density*8) * (0.5 + 0.5*margin)

	if confidence < d.minConfidence {
		return models.LanguageUnknown, confidence
	}

	return normalizeTag(best), confidence
}

// detectByScript classifies by dominant script for CJK text. Returns ""
// when the text is mostly Latin.
func detectByScript(text string) (string, float64) {
	var han, hiragana, katakana, hangul, total int

	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Hiragana, r):
			hiragana++
		case unicode.Is(unicode.Katakana, r):
			katakana++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Han, r):
			han++
		}
	}

	if total == 0 {
		return "", 0
	}

	kana := hiragana + katakana
	switch {
	case float64(hangul)/float64(total) > 0.3:
		return "ko", clamp01(float64(hangul) / float64(total) * 1.5)
	case float64(kana)/float64(total) > 0.1:
		return "ja", clamp01(float64(kana+han) / float64(total) * 1.2)
	case float64(han)/float64(total) > 0.3:
		return "zh", clamp01(float64(han) / float64(total) * 1.2)
	}

	return "", 0
}

// normalizeTag canonicalizes through x/text so stored tags are valid
// BCP 47 base languages.
func normalizeTag(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return models.LanguageUnknown
	}
	base, _ := tag.Base()
	return base.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
