package text

import (
	"reflect"
	"testing"
)

func TestTag(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		lang     string
		expected string
	}{
		{
			name:     "wraps plain text",
			input:    "Hello",
			lang:     "en",
			expected: "<en>Hello</en>",
		},
		{
			name:     "keeps matching tag",
			input:    "<en>Hello</en>",
			lang:     "en",
			expected: "<en>Hello</en>",
		},
		{
			name:     "replaces differing tag",
			input:    "<es>Hola</es>",
			lang:     "en",
			expected: "<en>Hola</en>",
		},
		{
			name:     "trims before wrapping",
			input:    "  Hello  ",
			lang:     "ko",
			expected: "<ko>Hello</ko>",
		},
		{
			name:     "mismatched pair treated as body",
			input:    "<en>Hello</es>",
			lang:     "fr",
			expected: "<fr><en>Hello</es></fr>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tag(tt.input, tt.lang)
			if got != tt.expected {
				t.Errorf("Tag(%q, %q) = %q, want %q", tt.input, tt.lang, got, tt.expected)
			}
		})
	}
}

func TestTagIdempotent(t *testing.T) {
	once := Tag("Hello world", "en")
	twice := Tag(once, "en")
	if once != twice {
		t.Errorf("Tag not idempotent: first %q, second %q", once, twice)
	}
}

func TestExtractLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<en>Hi</en>", "en"},
		{"<ko>안녕</ko>", "ko"},
		{"<en>Hi</es>", ""},
		{"plain text", ""},
		{"<en>multi\nline</en>", "en"},
	}

	for _, tt := range tests {
		if got := ExtractLanguage(tt.input); got != tt.expected {
			t.Errorf("ExtractLanguage(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestStripTag(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<en>Hi</en>", "Hi"},
		{"<en>  padded  </en>", "padded"},
		{"untagged", "untagged"},
		{"<en>Hi</es>", "<en>Hi</es>"},
	}

	for _, tt := range tests {
		if got := StripTag(tt.input); got != tt.expected {
			t.Errorf("StripTag(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseTagged(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Segment
	}{
		{
			name:  "two segments in order",
			input: "<en>Hi</en> <es>Hola</es>",
			expected: []Segment{
				{Language: "en", Text: "Hi"},
				{Language: "es", Text: "Hola"},
			},
		},
		{
			name:  "interleaved plain text ignored",
			input: "intro <en>Hi</en> middle <fr>Salut</fr> outro",
			expected: []Segment{
				{Language: "en", Text: "Hi"},
				{Language: "fr", Text: "Salut"},
			},
		},
		{
			name:  "body whitespace trimmed",
			input: "<pt>  Olá  </pt>",
			expected: []Segment{
				{Language: "pt", Text: "Olá"},
			},
		},
		{
			name:     "empty body dropped",
			input:    "<en>   </en>",
			expected: nil,
		},
		{
			name:     "mismatched pair dropped",
			input:    "<en>Hi</es>",
			expected: nil,
		},
		{
			name:     "unsupported code dropped",
			input:    "<zz>mystery</zz>",
			expected: nil,
		},
		{
			name:  "nested outer tag dropped inner kept",
			input: "<en><es>Hola</es></en>",
			expected: []Segment{
				{Language: "es", Text: "Hola"},
			},
		},
		{
			name:     "no tags at all",
			input:    "just plain text",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTagged(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseTagged(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMixSegments(t *testing.T) {
	segments := []Segment{
		{Language: "en", Text: "Hello"},
		{Language: "es", Text: "Hola"},
	}
	got := MixSegments(segments)
	want := "<en>Hello</en> <es>Hola</es>"
	if got != want {
		t.Errorf("MixSegments = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(ParseTagged(got), segments) {
		t.Errorf("ParseTagged(MixSegments) did not round-trip: %v", ParseTagged(got))
	}
}
