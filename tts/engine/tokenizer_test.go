package engine

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeIndexer(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unicode_indexer.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewTokenizerMissing(t *testing.T) {
	if _, err := NewTokenizer(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("NewTokenizer() error = nil, want error for missing file")
	}
}

func TestNewTokenizerInvalid(t *testing.T) {
	path := writeIndexer(t, "[1, 2, 3")
	if _, err := NewTokenizer(path); err == nil {
		t.Error("NewTokenizer() error = nil, want error for invalid JSON")
	}
}

func TestTokenizerEncode(t *testing.T) {
	// 'H'=72 'i'=105 'e'=101 'l'=108 'o'=111
	path := writeIndexer(t, `{"72": 5, "105": 9, "101": 2, "108": 3, "111": 4}`)
	tok, err := NewTokenizer(path)
	if err != nil {
		t.Fatalf("NewTokenizer() error = %v", err)
	}

	enc := tok.Encode([]string{"Hi", "Hello"})
	if enc.MaxLen != 5 {
		t.Fatalf("MaxLen = %d, want 5", enc.MaxLen)
	}
	if want := []int64{2, 5}; !reflect.DeepEqual(enc.Lengths, want) {
		t.Errorf("Lengths = %v, want %v", enc.Lengths, want)
	}
	wantIDs := []int64{
		5, 9, 0, 0, 0,
		5, 2, 3, 3, 4,
	}
	if !reflect.DeepEqual(enc.IDs, wantIDs) {
		t.Errorf("IDs = %v, want %v", enc.IDs, wantIDs)
	}
	wantMask := []float32{
		1, 1, 0, 0, 0,
		1, 1, 1, 1, 1,
	}
	if !reflect.DeepEqual(enc.Mask, wantMask) {
		t.Errorf("Mask = %v, want %v", enc.Mask, wantMask)
	}
}

func TestTokenizerEncodeUnknownRune(t *testing.T) {
	path := writeIndexer(t, `{"72": 5}`)
	tok, err := NewTokenizer(path)
	if err != nil {
		t.Fatalf("NewTokenizer() error = %v", err)
	}

	enc := tok.Encode([]string{"H✺"})
	if want := []int64{5, 0}; !reflect.DeepEqual(enc.IDs, want) {
		t.Errorf("IDs = %v, want %v (unknown runes map to 0)", enc.IDs, want)
	}
	if want := []float32{1, 1}; !reflect.DeepEqual(enc.Mask, want) {
		t.Errorf("Mask = %v, want %v (unknown runes still count)", enc.Mask, want)
	}
}

func TestSynthesizeSegmentNotInitialized(t *testing.T) {
	e := New(Config{AssetDir: t.TempDir()})

	_, err := e.SynthesizeSegment("Hello.", "en", nil, 5, 1.0)
	if err != ErrNotInitialized {
		t.Errorf("SynthesizeSegment() error = %v, want ErrNotInitialized", err)
	}
}
