package text

import (
	"fmt"
	"regexp"
	"strings"
)

// Language tags use the wire format <xx>body</xx> with a two-letter
// lowercase code. Nesting is not supported.
var (
	wholeTagPattern = regexp.MustCompile(`(?s)^<([a-z]{2})>(.*?)</([a-z]{2})>$`)
	openTagPattern  = regexp.MustCompile(`^<([a-z]{2})>`)
	segmentPattern  = regexp.MustCompile(`<([a-z]{2})>([^<]*)</([a-z]{2})>`)
)

// HasTag reports whether s begins with a language tag.
func HasTag(s string) bool {
	return openTagPattern.MatchString(strings.TrimSpace(s))
}

// ExtractLanguage returns the language code of a fully tagged string, or ""
// when s is not wrapped in a matching tag pair.
func ExtractLanguage(s string) string {
	m := wholeTagPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || m[1] != m[3] {
		return ""
	}
	return m[1]
}

// StripTag removes an enclosing tag pair, returning the trimmed body. Text
// without an enclosing pair is returned unchanged.
func StripTag(s string) string {
	trimmed := strings.TrimSpace(s)
	m := wholeTagPattern.FindStringSubmatch(trimmed)
	if m == nil || m[1] != m[3] {
		return s
	}
	return strings.TrimSpace(m[2])
}

// Tag wraps s as <lang>s</lang>. Already-tagged text keeps its tag when the
// language matches; a tag of a different language is stripped and replaced.
// Tag is idempotent: Tag(Tag(s, l), l) == Tag(s, l).
func Tag(s, lang string) string {
	s = strings.TrimSpace(s)
	if ExtractLanguage(s) == lang {
		return s
	}
	return fmt.Sprintf("<%s>%s</%s>", lang, StripTag(s), lang)
}

// ParseTagged scans tagged text for non-overlapping <xx>body</xx> spans and
// returns them in input order. Only pairs whose opening and closing codes
// match and name a supported language produce a segment; bodies that trim to
// nothing are dropped. Malformed, mismatched, or nested tag regions yield no
// segment rather than an error.
func ParseTagged(s string) []Segment {
	var segments []Segment
	for _, m := range segmentPattern.FindAllStringSubmatch(s, -1) {
		if m[1] != m[3] || !IsSupportedLanguage(m[1]) {
			continue
		}
		body := strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		segments = append(segments, Segment{Language: m[1], Text: body})
	}
	return segments
}

// MixSegments renders segments back to the tagged wire format, separated by
// single spaces.
func MixSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, fmt.Sprintf("<%s>%s</%s>", seg.Language, seg.Text, seg.Language))
	}
	return strings.Join(parts, " ")
}
