package services

import (
	"strings"
	"testing"

	"pdf-rag-chatbot/models"
)

func TestDetectLatinLanguages(t *testing.T) {
	detector := NewLanguageDetector(0.5)

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "english",
			text: "The quick brown fox jumps over the lazy dog and it is clear that this text is written in English for the purpose of the test with all the usual function words.",
			want: "en",
		},
		{
			name: "spanish",
			text: "El informe describe la estructura de los datos y el proceso que se utiliza para generar las respuestas con una referencia por cada una de las secciones del documento.",
			want: "es",
		},
		{
			name: "german",
			text: "Der Bericht beschreibt die Struktur der Daten und den Prozess der mit den Antworten auf die Fragen im Dokument als eine der wichtigsten Quellen nicht zu vergleichen ist.",
			want: "de",
		},
		{
			name: "french",
			text: "Le rapport décrit la structure des données et le processus qui est utilisé pour générer les réponses avec une référence pour chacune des sections du document sur le sujet.",
			want: "fr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang, conf := detector.Detect(tt.text)
			if lang != tt.want {
				t.Errorf("Detect() = %q (conf %.2f), want %q", lang, conf, tt.want)
			}
			if conf < 0.5 {
				t.Errorf("confidence %.2f below floor for clear %s text", conf, tt.want)
			}
		})
	}
}

func TestDetectScriptLanguages(t *testing.T) {
	detector := NewLanguageDetector(0.5)

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "korean", text: strings.Repeat("문서의 내용을 요약하면 다음과 같습니다 ", 5)},
		{name: "japanese", text: strings.Repeat("この文書の内容をまとめると次のようになります ", 5)},
		{name: "chinese", text: strings.Repeat("本文件的内容总结如下所述 ", 5)},
	}
	want := []string{"ko", "ja", "zh"}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang, conf := detector.Detect(tt.text)
			if lang != want[i] {
				t.Errorf("Detect() = %q (conf %.2f), want %q", lang, conf, want[i])
			}
		})
	}
}

func TestDetectLowConfidenceIsUnknown(t *testing.T) {
	detector := NewLanguageDetector(0.5)

	// Numbers and codes carry no stopword signal.
	lang, conf := detector.Detect("4821 9402 XJ-42 7731 0094 ZZ-99 8080 4040")
	if lang != models.LanguageUnknown {
		t.Errorf("Detect() = %q, want unknown for signal-free text", lang)
	}
	if conf >= 0.5 {
		t.Errorf("confidence %.2f should be below floor", conf)
	}
}

func TestDetectEmptyText(t *testing.T) {
	detector := NewLanguageDetector(0.5)

	lang, conf := detector.Detect("   \n\t ")
	if lang != models.LanguageUnknown || conf != 0 {
		t.Errorf("Detect(blank) = %q/%.2f, want unknown/0", lang, conf)
	}
}
