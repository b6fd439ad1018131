package text

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxChunkLength bounds a single inference call's text. Longer inputs
// degrade duration prediction, so the orchestrator synthesizes per chunk.
const DefaultMaxChunkLength = 300

var paragraphSeparator = regexp.MustCompile(`\n\s*\n+`)

// Abbreviations whose trailing period does not terminate a sentence.
var abbreviations = []string{
	"Mr.", "Mrs.", "Ms.", "Dr.", "Prof.", "Sr.", "Jr.",
	"St.", "Ave.", "Rd.", "Blvd.", "Dept.", "Inc.", "Ltd.",
	"Co.", "Corp.", "etc.", "vs.", "i.e.", "e.g.", "Ph.D.",
}

// Chunk splits text into pieces no longer than maxLen characters. Paragraphs
// (blank-line separated) are chunked independently. With preserveSentences
// set, sentences are packed greedily and an oversized sentence falls back to
// comma-level and then word-level packing; otherwise words are packed
// directly. Words are never split, so a single word longer than maxLen
// becomes one oversized chunk.
func Chunk(text string, maxLen int, preserveSentences bool) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for _, para := range paragraphSeparator.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxLen {
			chunks = append(chunks, para)
			continue
		}
		if preserveSentences {
			chunks = appendSentenceChunks(chunks, para, maxLen)
		} else {
			chunks = appendWordChunks(chunks, para, maxLen)
		}
	}
	return chunks
}

func appendSentenceChunks(chunks []string, para string, maxLen int) []string {
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, sentence := range SplitSentences(para) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if len(sentence) > maxLen {
			flush()
			chunks = appendClauseChunks(chunks, sentence, maxLen)
			continue
		}

		if currentLen+len(sentence)+1 > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += len(sentence)
	}
	flush()
	return chunks
}

// appendClauseChunks packs an oversized sentence by comma-separated clauses,
// dropping to word packing for any clause that is still too long.
func appendClauseChunks(chunks []string, sentence string, maxLen int) []string {
	var current strings.Builder
	currentLen := 0

	for _, part := range strings.Split(sentence, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if len(part) > maxLen {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
				currentLen = 0
			}
			chunks = appendWordChunks(chunks, part, maxLen)
			continue
		}

		// The join below costs two characters, not one.
		if currentLen+len(part)+2 > maxLen && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
		if current.Len() > 0 {
			current.WriteString(", ")
			currentLen += 2
		}
		current.WriteString(part)
		currentLen += len(part)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func appendWordChunks(chunks []string, text string, maxLen int) []string {
	var current strings.Builder
	currentLen := 0

	for _, word := range strings.Fields(text) {
		if currentLen+len(word)+1 > maxLen && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(word)
		currentLen += len(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// SplitSentences splits text on sentence-terminating punctuation followed by
// whitespace. Periods that close a known abbreviation or a single-capital
// initial do not terminate a sentence.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	lastStart := 0

	i := 0
	for i < len(runes) {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			i++
			continue
		}

		// Collect a run of terminators, e.g. "?!" or "...".
		punctEnd := i + 1
		for punctEnd < len(runes) && (runes[punctEnd] == '.' || runes[punctEnd] == '!' || runes[punctEnd] == '?') {
			punctEnd++
		}

		if punctEnd >= len(runes) || !unicode.IsSpace(runes[punctEnd]) {
			i = punctEnd
			continue
		}
		if r == '.' && punctEnd == i+1 && endsWithAbbreviation(runes[lastStart:punctEnd]) {
			i = punctEnd
			continue
		}

		spaceEnd := punctEnd
		for spaceEnd < len(runes) && unicode.IsSpace(runes[spaceEnd]) {
			spaceEnd++
		}
		sentences = append(sentences, string(runes[lastStart:punctEnd]))
		lastStart = spaceEnd
		i = spaceEnd
	}

	if lastStart < len(runes) {
		sentences = append(sentences, string(runes[lastStart:]))
	}
	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func endsWithAbbreviation(runes []rune) bool {
	s := string(runes)
	for _, abbrev := range abbreviations {
		if strings.HasSuffix(s, abbrev) {
			return true
		}
	}
	// Single-capital initials such as "J." in "J. Smith". The capital must
	// start a word, otherwise ordinary uppercase endings would match.
	n := len(runes)
	if n >= 2 && runes[n-1] == '.' && unicode.IsUpper(runes[n-2]) {
		if n == 2 || !unicode.IsLetter(runes[n-3]) && !unicode.IsDigit(runes[n-3]) {
			return true
		}
	}
	return false
}
