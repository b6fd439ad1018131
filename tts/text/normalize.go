package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}` +
		`\x{1F300}-\x{1F5FF}` +
		`\x{1F680}-\x{1F6FF}` +
		`\x{1F700}-\x{1F77F}` +
		`\x{1F780}-\x{1F7FF}` +
		`\x{1F800}-\x{1F8FF}` +
		`\x{1F900}-\x{1F9FF}` +
		`\x{1FA00}-\x{1FA6F}` +
		`\x{1FA70}-\x{1FAFF}` +
		`\x{2600}-\x{26FF}` +
		`\x{2700}-\x{27BF}` +
		`\x{1F1E6}-\x{1F1FF}]+`)

	specialSymbols = regexp.MustCompile(`[♥☆♡©\\]`)
	extraSpaces    = regexp.MustCompile(`\s+`)

	// Terminal punctuation, closing quotes and closing brackets, including
	// the CJK forms the Korean voices produce.
	terminalPunct = regexp.MustCompile(`[.!?;:,'")\]}…。」』】〉》›»]$`)

	// Typographic punctuation mapped to its plain ASCII equivalent, plus
	// symbols the character indexer has no entries for.
	punctReplacer = strings.NewReplacer(
		"–", "-", // en dash
		"‑", "-", // non-breaking hyphen
		"—", "-", // em dash
		"_", " ",
		"“", `"`, // left double quote
		"”", `"`, // right double quote
		"‘", "'", // left single quote
		"’", "'", // right single quote
		"´", "'",
		"`", "'",
		"[", " ",
		"]", " ",
		"|", " ",
		"/", " ",
		"#", " ",
		"→", " ",
		"←", " ",
	)

	spacedPunctReplacer = strings.NewReplacer(
		" ,", ",",
		" .", ".",
		" !", "!",
		" ?", "?",
		" ;", ";",
		" :", ":",
		" '", "'",
	)
)

// Normalize canonicalizes raw text for the character indexer: NFKD
// decomposition, emoji and blacklist removal, ASCII punctuation mapping,
// whitespace cleanup, and a guaranteed terminal punctuation mark.
func Normalize(s string) string {
	s = norm.NFKD.String(s)

	s = emojiPattern.ReplaceAllString(s, "")
	s = punctReplacer.Replace(s)
	s = specialSymbols.ReplaceAllString(s, "")
	s = spacedPunctReplacer.Replace(s)

	for strings.Contains(s, `""`) {
		s = strings.ReplaceAll(s, `""`, `"`)
	}
	for strings.Contains(s, "''") {
		s = strings.ReplaceAll(s, "''", "'")
	}

	s = extraSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if s != "" && !terminalPunct.MatchString(s) {
		s += "."
	}

	return s
}
