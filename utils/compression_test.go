package utils

import (
	"strings"
	"testing"
)

func TestCompressTextRoundTrip(t *testing.T) {
	original := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)

	compressed, algorithm, err := CompressText(original)
	if err != nil {
		t.Fatalf("compress error: %v", err)
	}
	if algorithm != CompressionBrotli {
		t.Errorf("algorithm = %s, want brotli for large text", algorithm)
	}
	if len(compressed) >= len(original) {
		t.Errorf("repetitive text did not shrink: %d >= %d", len(compressed), len(original))
	}

	restored, err := DecompressText(compressed, algorithm)
	if err != nil {
		t.Fatalf("decompress error: %v", err)
	}
	if restored != original {
		t.Errorf("round trip mismatch")
	}
}

func TestSmallTextSkipsCompression(t *testing.T) {
	original := "short note"

	compressed, algorithm, err := CompressText(original)
	if err != nil {
		t.Fatalf("compress error: %v", err)
	}
	if algorithm != CompressionNone {
		t.Errorf("algorithm = %s, want none for small text", algorithm)
	}
	if string(compressed) != original {
		t.Errorf("uncompressed text should be stored verbatim")
	}
}

func TestDecompressUnknownAlgorithm(t *testing.T) {
	if _, err := DecompressData([]byte("data"), CompressionAlgorithm("zstd")); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
