// Package text prepares raw input for synthesis: Unicode normalization,
// language tagging and tag parsing, and length-bounded chunking.
package text

// Segment is a contiguous span of text carrying one language code.
type Segment struct {
	Language string
	Text     string
}

// SupportedLanguages lists the language codes the synthesis models accept.
var SupportedLanguages = []string{"en", "ko", "es", "pt", "fr"}

// IsSupportedLanguage reports whether lang is one of the supported codes.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
