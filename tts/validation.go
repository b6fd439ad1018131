package tts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tonelab/supertonic/tts/assets"
	"github.com/tonelab/supertonic/tts/text"
)

// ValidationResult aggregates every problem found in a request instead of
// stopping at the first. Warnings flag values that are accepted but likely
// to sound wrong.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Err collapses a failed result into one error wrapping ErrInvalidOptions.
// A valid result yields nil; warnings never produce an error.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(r.Errors, "; "))
}

// ValidateRequest checks text and options together, collecting all
// problems. This is what the CLI and the /validate endpoint run before a
// request reaches the pipeline.
func ValidateRequest(input string, opts Options) *ValidationResult {
	r := &ValidationResult{Valid: true}
	checkText(r, input)
	checkOptions(r, opts)
	return r
}

// ValidateText checks only the request text.
func ValidateText(input string) *ValidationResult {
	r := &ValidationResult{Valid: true}
	checkText(r, input)
	return r
}

// ValidateOptions checks only the request options.
func ValidateOptions(opts Options) *ValidationResult {
	r := &ValidationResult{Valid: true}
	checkOptions(r, opts)
	return r
}

func checkText(r *ValidationResult, input string) {
	if strings.TrimSpace(input) == "" {
		r.fail("text is empty")
		return
	}
	if n := utf8.RuneCountInString(input); n > MaxTextLength {
		r.fail("text exceeds the maximum length of %d characters (got %d)", MaxTextLength, n)
	}
}

func checkOptions(r *ValidationResult, opts Options) {
	if opts.Voice != "" && !assets.IsValidVoice(opts.Voice) {
		if suggestion := assets.SuggestVoice(opts.Voice); suggestion != "" {
			r.fail("unknown voice %q (did you mean %q?)", opts.Voice, suggestion)
		} else {
			r.fail("unknown voice %q (valid: %s)", opts.Voice, strings.Join(assets.VoiceKeys(), ", "))
		}
	}

	if opts.Language != "" && !text.IsSupportedLanguage(opts.Language) {
		r.fail("unsupported language %q (supported: %s)",
			opts.Language, strings.Join(text.SupportedLanguages, ", "))
	}

	if speed, err := opts.Speed(); err != nil {
		r.fail("%v", err)
	} else {
		switch {
		case speed < MinSpeed || speed > MaxSpeed:
			r.fail("rate must resolve to a multiplier between %v and %v, got %v", MinSpeed, MaxSpeed, speed)
		case speed < 0.7:
			r.warn("rate below 0.7 may sound unnatural")
		case speed > 1.5:
			r.warn("rate above 1.5 may be difficult to understand")
		}
	}

	if opts.Quality != "" {
		if _, ok := qualitySteps[opts.Quality]; !ok {
			r.fail("quality must be one of %s, got %q",
				strings.Join(QualityNames(), ", "), opts.Quality)
		}
	}

	if opts.TotalSteps != 0 {
		switch opts.TotalSteps {
		case 3, 5, 10, 15:
		default:
			r.fail("total steps must be one of 3, 5, 10, 15, got %d", opts.TotalSteps)
		}
	}

	if opts.ChunkLength != 0 && (opts.ChunkLength < MinChunkLength || opts.ChunkLength > MaxChunkLength) {
		r.fail("chunk length must be between %d and %d characters, got %d",
			MinChunkLength, MaxChunkLength, opts.ChunkLength)
	}

	if opts.Silence != 0 && (opts.Silence < MinSilence || opts.Silence > MaxSilence) {
		r.fail("silence duration must be between %v and %v seconds, got %v",
			MinSilence, MaxSilence, opts.Silence)
	}
}

// Sanitize strips null and control characters the tokenizer would map to
// the unknown id. Tabs, newlines, and carriage returns survive; leading
// and trailing whitespace does not.
func Sanitize(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(cleaned)
}
