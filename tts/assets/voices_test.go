package assets

import (
	"sort"
	"testing"
)

func TestVoiceKeys(t *testing.T) {
	keys := VoiceKeys()
	if len(keys) != 10 {
		t.Fatalf("VoiceKeys() returned %d keys, want 10", len(keys))
	}
	if !sort.StringsAreSorted(keys) {
		t.Errorf("VoiceKeys() = %v, want sorted order", keys)
	}
	if keys[0] != "F1" || keys[9] != "M5" {
		t.Errorf("VoiceKeys() = %v, want F1..M5", keys)
	}
}

func TestIsValidVoice(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"M1", true},
		{"F5", true},
		{DefaultVoice, true},
		{"m1", false},
		{"M6", false},
		{"", false},
		{"narrator", false},
	}
	for _, tt := range tests {
		if got := IsValidVoice(tt.key); got != tt.want {
			t.Errorf("IsValidVoice(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestVoice(t *testing.T) {
	info, ok := Voice("M3")
	if !ok {
		t.Fatal("Voice(M3) not found")
	}
	if info.Gender != "male" || info.Character != "deep" {
		t.Errorf("Voice(M3) = %+v, want male/deep", info)
	}

	if _, ok := Voice("X1"); ok {
		t.Error("Voice(X1) = ok, want missing")
	}
}

func TestVoices(t *testing.T) {
	voices := Voices()
	if len(voices) != 10 {
		t.Fatalf("Voices() returned %d entries, want 10", len(voices))
	}
	for i, v := range voices {
		if v.Key == "" || v.Gender == "" || v.Character == "" {
			t.Errorf("voice %d has empty metadata: %+v", i, v)
		}
	}
}

func TestSuggestVoice(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"m1", "M1"},
		{"f3", "F3"},
		{"zz", ""},
	}
	for _, tt := range tests {
		if got := SuggestVoice(tt.key); got != tt.want {
			t.Errorf("SuggestVoice(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
